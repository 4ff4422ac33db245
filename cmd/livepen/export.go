package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/livepen/internal/domain/preview"
	"github.com/GriffinCanCode/livepen/internal/domain/workspace"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/server"
	"github.com/GriffinCanCode/livepen/internal/providers/filesystem"
	"github.com/GriffinCanCode/livepen/internal/shared/id"
)

func newExportCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.zip>",
		Short: "Write the saved workspace and its assembled preview to a zip archive",
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

			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			ws := store.Snapshot()
			if err := filesystem.ExportZip(f, ws, preview.Assemble(store.ActiveContents())); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d buffers to %s\n", len(ws.Buffers), args[0])
			return nil
		},
	}
}
