package main

import (
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/server"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var (
		host   string
		port   string
		engine string
		dev    bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the editor and preview server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("engine") {
				cfg.Preview.Engine = engine
			}
			if dev {
				cfg.Logging.Development = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			srv, err := server.NewServer(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			runErr := srv.Run(cmd.Context())
			if err := srv.Close(); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host")
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port")
	cmd.Flags().StringVar(&engine, "engine", "", "preview engine: sandbox or chrome")
	cmd.Flags().BoolVar(&dev, "dev", false, "development logging")
	return cmd
}
