package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/okian/hurdletime/internal/adapters/persistence"
	"github.com/okian/hurdletime/internal/adapters/transport/ble"
	"github.com/okian/hurdletime/internal/adapters/transport/sim"
	"github.com/okian/hurdletime/internal/config"
	"github.com/okian/hurdletime/internal/domain/connection"
	"github.com/okian/hurdletime/pkg/logger"
)

// cli carries state shared by every subcommand.
type cli struct {
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "hurdletime",
		Short:        "Hurdle timing over a BLE sensor",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd.Flags())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", os.Getenv("HURDLE_CONFIG"), "YAML config file")
	flags.String("storage", "", "storage backend: badger or memory")
	flags.String("data-dir", "", "badger data directory")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "text or json")

	root.AddCommand(newServeCmd(c), newExportCmd(c), newImportCmd(c))
	return root
}

// load reads the config and applies flags the user set explicitly.
func (c *cli) load(flags *pflag.FlagSet) error {
	cfg, err := config.LoadFile(c.cfgFile)
	if err != nil {
		return err
	}

	var ferr error
	flags.Visit(func(f *pflag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "storage":
			cfg.Storage = v
		case "data-dir":
			cfg.DataDir = v
		case "log-level":
			cfg.LogLevel = v
		case "log-format":
			cfg.LogFormat = v
		case "addr":
			cfg.Addr = v
		case "transport":
			cfg.Transport = v
		case "hurdles":
			n, err := strconv.Atoi(v)
			if err != nil {
				ferr = fmt.Errorf("--hurdles: %w", err)
			}
			cfg.DefaultHurdles = n
		}
	})
	if ferr != nil {
		return ferr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.InitWithOptions(logger.Options{Format: cfg.LogFormat, Writer: os.Stderr}); err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

func (c *cli) openStore() (persistence.Store, error) {
	if c.cfg.Storage == config.StorageMemory {
		return persistence.NewMemoryStore(), nil
	}
	return persistence.OpenBadger(c.cfg.DataDir)
}

func (c *cli) openTransport() (connection.Transport, error) {
	if c.cfg.Transport == config.TransportSim {
		return sim.New(sim.WithSplitInterval(c.cfg.SimSplitInterval())), nil
	}
	return ble.New(ble.WithUUIDs(c.cfg.ServiceUUID, c.cfg.CharacteristicUUID))
}
