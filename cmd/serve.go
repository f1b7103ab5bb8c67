package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/hurdletime/internal/adapters/http/api"
	service "github.com/okian/hurdletime/internal/app"
	"github.com/okian/hurdletime/pkg/logger"
)

// HTTP server timeout constants. WriteTimeout stays zero: connect requests
// block for up to the connect timeout and /ws streams indefinitely.
const (
	readTimeout       = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd(c *cli) *cobra.Command {
	var origins []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the timing service and its HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context(), origins)
		},
	}
	cmd.Flags().String("addr", "", "HTTP listen address")
	cmd.Flags().String("transport", "", "radio: ble or sim")
	cmd.Flags().Int("hurdles", 0, "default hurdle count")
	cmd.Flags().StringSliceVar(&origins, "ws-origin", nil, "extra websocket origin patterns")
	return cmd
}

func (c *cli) serve(parent context.Context, origins []string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.Get()
	cfg := c.cfg

	store, err := c.openStore()
	if err != nil {
		return err
	}
	radio, err := c.openTransport()
	if err != nil {
		_ = store.Close()
		return err
	}

	svc := service.New(
		service.WithLogger(log.Named("service")),
		service.WithTransport(radio),
		service.WithStore(store),
		service.WithSeedAthletes(cfg.SeedAthletes),
		service.WithNamePrefixes(cfg.DeviceNamePrefixes),
		service.WithConnectTimeout(cfg.ConnectTimeout()),
		service.WithLivenessInterval(cfg.LivenessInterval()),
		service.WithDefaultHurdles(cfg.DefaultHurdles),
		service.WithQueueSize(cfg.CommandQueueSize),
	)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return err
	}
	defer svc.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(svc, api.WithOriginPatterns(origins...)).Routes(),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("transport", svc.TransportName()),
			logger.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}
