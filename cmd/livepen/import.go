package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/livepen/internal/domain/workspace"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/server"
	"github.com/GriffinCanCode/livepen/internal/providers/filesystem"
	"github.com/GriffinCanCode/livepen/internal/shared/id"
)

func newImportCmd(flags *globalFlags) *cobra.Command {
	var pattern string
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Add the HTML, CSS and JS files under a directory to the saved workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			logger, err := toolLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			kv, err := server.NewKV(cfg, logger)
			if err != nil {
				return err
			}
			store := workspace.NewStore(id.Default(), kv, logger)
			if err := store.Open(cmd.Context()); err != nil {
				return err
			}
			before := len(store.Snapshot().Buffers)

			if _, err := importInto(cmd.Context(), store, args[0], pattern, logger); err != nil {
				return err
			}
			ws := store.Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d files, workspace now holds %d buffers\n",
				len(ws.Buffers)-before, len(ws.Buffers))
			return nil
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", filesystem.DefaultPattern, "doublestar pattern of files to import")
	return cmd
}
