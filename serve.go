package main

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/chaos-io/rembg-tool/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the registered tools over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			if a.cfg.SlogLevel() != slog.LevelDebug {
				gin.SetMode(gin.ReleaseMode)
			}

			health := server.NewHealth(a.cfg.Backend, a.remover)
			if err := health.Start(a.cfg.Server.HealthCron); err != nil {
				return err
			}
			defer health.Stop()

			return server.New(a.registry, health).Run(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
