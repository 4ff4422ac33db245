package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/config"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "livepen:", err)
		stop()
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand
type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "livepen",
		Short:         "Live HTML/CSS/JS playground with a sandboxed preview",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "YAML or TOML config file (default $"+config.PathEnv+")")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newRenderCmd(flags))
	root.AddCommand(newImportCmd(flags))
	root.AddCommand(newExportCmd(flags))

	return root
}

func (f *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	return cfg, nil
}

// toolLogger writes to stderr so command output on stdout stays clean
func toolLogger(cfg *config.Config) (*logging.Logger, error) {
	level := ""
	if cfg.Logging.Level != "info" {
		level = cfg.Logging.Level
	}
	return logging.New(logging.ToolConfig(level, cfg.Logging.Development))
}
