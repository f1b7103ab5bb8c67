// Package api exposes the hurdle timer to the UI host over HTTP and a
// websocket event stream.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/hurdletime/internal/adapters/export"
	service "github.com/okian/hurdletime/internal/app"
	"github.com/okian/hurdletime/internal/domain/model"
	"github.com/okian/hurdletime/internal/domain/race"
	"github.com/okian/hurdletime/internal/domain/types"
	"github.com/okian/hurdletime/pkg/logger"
	"github.com/okian/hurdletime/pkg/metrics"
)

const maxImportBytes = 8 << 20

// Dependencies required by HTTP handlers. *service.Service satisfies it.
type Dependencies interface {
	Status(ctx context.Context) (service.Status, error)
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	StartRace(ctx context.Context, athleteID string, hurdles int) (race.Snapshot, error)
	FinishRace(ctx context.Context) (*model.TrainingSession, error)

	Athletes(ctx context.Context) ([]model.Athlete, error)
	AddAthlete(ctx context.Context, name, category string) (model.Athlete, error)
	RemoveAthlete(ctx context.Context, id string) error
	Sessions(ctx context.Context, athleteID string) ([]model.TrainingSession, error)
	Stats(ctx context.Context, athleteID string) (types.AthleteStats, error)
	Leaderboard(ctx context.Context) ([]types.Entry, error)

	Export(ctx context.Context) (export.Document, error)
	Import(ctx context.Context, doc export.Document) error

	Subscribe() (<-chan service.Event, func())
	SimulateRun(hurdles int) error
	DropLink() error
}

// Server wires HTTP routes for the timer API.
type Server struct {
	deps           Dependencies
	originPatterns []string
	writeTimeout   time.Duration
	logger         logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithOriginPatterns allows websocket clients from other origins, such as
// a UI served by a dev server.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) {
		s.originPatterns = append(s.originPatterns, patterns...)
	}
}

// WithLogger sets a custom logger for the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:         deps,
		writeTimeout: 5 * time.Second,
		logger:       logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the router with every endpoint attached.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleEvents)

	r.Group(func(r chi.Router) {
		r.Use(MetricsMiddleware)

		r.Get("/healthz", s.handleHealth)
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
		r.Get("/status", s.handleStatus)

		r.Route("/device", func(r chi.Router) {
			r.Post("/connect", s.handleConnect)
			r.Post("/disconnect", s.handleDisconnect)
		})
		r.Route("/race", func(r chi.Router) {
			r.Post("/start", s.handleStartRace)
			r.Post("/finish", s.handleFinishRace)
		})
		r.Route("/athletes", func(r chi.Router) {
			r.Get("/", s.handleListAthletes)
			r.Post("/", s.handleAddAthlete)
			r.Delete("/{id}", s.handleRemoveAthlete)
			r.Get("/{id}/stats", s.handleAthleteStats)
		})
		r.Get("/sessions", s.handleSessions)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)

		r.Route("/sim", func(r chi.Router) {
			r.Post("/run", s.handleSimRun)
			r.Post("/drop", s.handleSimDrop)
		})
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("code", code),
			logger.Error(err))
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest(err)
	}
	return nil
}
