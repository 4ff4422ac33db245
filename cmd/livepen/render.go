package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/preview"
	"github.com/GriffinCanCode/livepen/internal/domain/workspace"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/logging"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/server"
	"github.com/GriffinCanCode/livepen/internal/providers/browser"
	"github.com/GriffinCanCode/livepen/internal/providers/browser/sandbox"
	"github.com/GriffinCanCode/livepen/internal/providers/filesystem"
	"github.com/GriffinCanCode/livepen/internal/shared/id"
)

type renderOptions struct {
	pattern string
	engine  string
	out     string
	console bool
	source  bool
}

func newRenderCmd(flags *globalFlags) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render <dir>",
		Short: "Render a directory of HTML/CSS/JS once and print the resulting DOM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if opts.engine != "" {
				cfg.Preview.Engine = opts.engine
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, err := toolLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			store, err := importInto(cmd.Context(), workspace.NewStore(id.Default(), nil, logger), args[0], opts.pattern, logger)
			if err != nil {
				return err
			}

			boundary, err := server.NewBoundary(cfg, logger)
			if err != nil {
				return err
			}
			defer boundary.Close()

			renderer := preview.NewRenderer(boundary, logger)
			defer renderer.Close()

			out := cmd.OutOrStdout()
			if opts.out != "" {
				f, err := os.Create(opts.out)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return renderOnce(cmd.Context(), renderer, store, opts, out, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.pattern, "pattern", filesystem.DefaultPattern, "doublestar pattern of files to import")
	cmd.Flags().StringVar(&opts.engine, "engine", "", "preview engine: sandbox or chrome")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write the result to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.console, "console", false, "print sandbox console output to stderr")
	cmd.Flags().BoolVar(&opts.source, "source", false, "print the assembled document instead of the live DOM")
	return cmd
}

// importInto loads every candidate under dir into store
func importInto(ctx context.Context, store *workspace.Store, dir, pattern string, logger *logging.Logger) (*workspace.Store, error) {
	candidates, err := filesystem.ImportDir(ctx, dir, pattern)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no html, css or js files under %s", dir)
	}
	for _, c := range candidates {
		if _, err := store.Import(ctx, c.Name, c.Kind, c.Content); err != nil {
			return nil, fmt.Errorf("import %s: %w", c.Path, err)
		}
		logger.Debug("imported file",
			zap.String("path", c.Path),
			logging.Kind(string(c.Kind)),
			zap.String("charset", c.Charset))
	}
	return store, nil
}

func renderOnce(ctx context.Context, renderer *preview.Renderer, store *workspace.Store, opts *renderOptions, out, errOut io.Writer) error {
	composite := store.ActiveContents()
	if opts.source {
		_, err := io.WriteString(out, preview.Assemble(composite))
		return err
	}

	if _, err := renderer.Render(ctx, composite); err != nil {
		return err
	}

	handle, ok := renderer.Handle()
	if !ok {
		return preview.ErrBoundaryClosed
	}
	if in, ok := handle.(browser.Interactive); ok {
		if err := in.Settle(ctx); err != nil {
			return fmt.Errorf("settle: %w", err)
		}
	}

	dom, err := renderer.Snapshot(ctx)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(out, dom+"\n"); err != nil {
		return err
	}

	if rt, ok := handle.(*sandbox.Runtime); ok && opts.console {
		for _, entry := range rt.Console() {
			fmt.Fprintf(errOut, "[%s] %s\n", entry.Level, entry.Message)
		}
		for _, fault := range rt.Faults() {
			fmt.Fprintf(errOut, "[uncaught] %s\n", fault.Message)
		}
	}
	return nil
}
