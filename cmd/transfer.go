package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/hurdletime/internal/adapters/export"
	"github.com/okian/hurdletime/internal/adapters/repository"
	"github.com/okian/hurdletime/pkg/logger"
)

func newExportCmd(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write roster and sessions as a JSON document",
		Long:  "Write roster and sessions as a JSON document. The badger store is locked while serve runs.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.export(cmd.Context(), out, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file; \"auto\" picks timing-data-<date>.json, empty writes to stdout")
	return cmd
}

func newImportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace roster and sessions with an exported document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.importFile(cmd.Context(), args[0])
		},
	}
}

func (c *cli) export(ctx context.Context, out string, stdout io.Writer) error {
	store, err := c.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	repo := repository.NewMemory()
	if err := repo.Hydrate(ctx, store); err != nil {
		return err
	}
	now := time.Now()
	doc := export.New(repo.Athletes(), repo.Sessions(), now)

	if out == "" {
		return export.Encode(stdout, doc)
	}
	if out == "auto" {
		out = export.FileName(now)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if err := export.Encode(f, doc); err != nil {
		_ = f.Close()
		return err
	}
	logger.Get().Info(ctx, "export written",
		logger.String("file", out),
		logger.Int("athletes", len(doc.Athletes)),
		logger.Int("sessions", len(doc.Sessions)))
	return f.Close()
}

func (c *cli) importFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := export.Decode(f)
	if err != nil {
		return err
	}

	store, err := c.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	repo := repository.NewMemory()
	if err := repo.Replace(doc.Athletes, doc.Sessions); err != nil {
		return err
	}
	if err := repo.Persist(ctx, store); err != nil {
		return err
	}
	logger.Get().Info(ctx, "import stored",
		logger.String("file", path),
		logger.Int("athletes", len(doc.Athletes)),
		logger.Int("sessions", len(doc.Sessions)))
	return nil
}
