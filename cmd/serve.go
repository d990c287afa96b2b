package cmd

import (
	"github.com/spf13/cobra"

	"muwi-backup/internal/application"
)

var serveAddr string

// serveCmd runs the HTTP download/upload endpoints
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve snapshot download and upload over HTTP",
	Long: `Serve snapshot download and upload over HTTP until SIGINT or SIGTERM.

Endpoints:
  GET  /api/backup                 download a snapshot
  POST /api/backup/restore         restore an uploaded snapshot (form field "file")
  POST /api/backup/restore?merge=true   merge instead of replacing
  GET  /api/backup/stats           record counts and estimated size
  GET  /metrics                    Prometheus metrics
  GET  /healthz                    liveness`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from server.addr)")
	v.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	app, err := openApp(cmd, cfg, application.ModeServer, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := app.HandleSignals(cmd.Context())
	defer stop()

	newPrinter(cfg).Info("Listening on " + cfg.Server.Addr)
	return app.Serve(ctx)
}
