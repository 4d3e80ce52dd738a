package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parcelworks/siteatlas/internal/analysis"
	"github.com/parcelworks/siteatlas/internal/refdata"
	"github.com/parcelworks/siteatlas/internal/server"
)

var servePort int

// initService loads the reference layers and wires the analysis service.
func initService() (*analysis.Service, error) {
	zoning, err := refdata.LoadZoning(cfg.Data.ZoningPath)
	if err != nil {
		return nil, err
	}
	buildings, err := refdata.LoadBuildings(cfg.Data.BuildingsPath, cfg.Data.MinHeightM)
	if err != nil {
		return nil, err
	}
	return analysis.New(cfg, zoning, buildings), nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the site-analysis HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, err := initService()
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.New(cfg, svc).Handler(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
