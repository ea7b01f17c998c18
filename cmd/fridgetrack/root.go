// cmd/fridgetrack/root.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fridgetrack-sync/internal/client"
	"fridgetrack-sync/internal/common/config"
	"fridgetrack-sync/internal/common/logger"
	"fridgetrack-sync/internal/common/observability"
)

// app carries what every subcommand needs once the root has been set up.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath  string
	userID      string
	logLevel    string
	dumpMetrics bool

	zap    *zap.Logger
	obs    *observability.Observability
	client *client.Client
}

// run executes the CLI with args and releases everything setup acquired,
// whether or not the command succeeded.
func run(args []string, out, errOut io.Writer) error {
	a := &app{out: out, errOut: errOut}
	defer a.teardown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := a.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fridgetrack",
		Short:         "Command line client for the FridgeTrack backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "metrics" {
				return nil
			}
			return a.setup()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a config file (default: configs/config.yaml)")
	flags.StringVarP(&a.userID, "user", "u", "", "user id to act as")
	flags.StringVar(&a.logLevel, "log-level", "", "override logging.level")
	flags.BoolVar(&a.dumpMetrics, "metrics", false, "print Prometheus metrics to stderr when the command finishes")

	root.AddCommand(
		a.healthCmd(),
		a.inventoryCmd(),
		a.expiringCmd(),
		a.recipesCmd(),
		a.shoppingListCmd(),
		a.statsCmd(),
		a.scanCmd(),
		a.statusCmd("consume", "Mark an item as consumed", a.consume),
		a.statusCmd("waste", "Mark an item as wasted", a.waste),
		a.statusCmd("restore", "Move a consumed or wasted item back to the active list", a.restore),
		a.deleteCmd(),
		a.metricsCmd(),
	)
	return root
}

func (a *app) setup() error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFromFile(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	a.zap = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	a.obs = observability.New(cfg.App.Name)
	a.client, err = client.New(cfg, logger.NewZapAdapter(a.zap), client.WithObservability(a.obs))
	if err != nil {
		return err
	}
	return nil
}

func (a *app) teardown() {
	if a.dumpMetrics {
		if err := writeMetrics(a.errOut); err != nil && a.zap != nil {
			a.zap.Warn("metrics dump failed", zap.Error(err))
		}
	}
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			a.zap.Warn("client close failed", zap.Error(err))
		}
	}
	a.obs.Shutdown()
	if a.zap != nil {
		_ = a.zap.Sync()
	}
}

func (a *app) requireUser() (string, error) {
	if a.userID == "" {
		return "", errors.New("--user is required for this command")
	}
	return a.userID, nil
}

// fail logs err with its payload and returns a message suitable for the
// terminal.
func (a *app) fail(operation string, err error) error {
	se := a.client.Report(operation, err)
	if se.Status > 0 {
		return fmt.Errorf("%s (status %d)", se.Message, se.Status)
	}
	return errors.New(se.Message)
}

func (a *app) print(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
