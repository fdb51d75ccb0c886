package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/stockshastri/shastri/internal/api"
	"github.com/stockshastri/shastri/internal/api/job"
	"github.com/stockshastri/shastri/internal/core"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the prediction API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	return withEnv(func(ctx context.Context, e *env) error {
		log := e.log
		cfg := e.cfg

		if err := e.app.LoadModel(ctx); err != nil {
			if !errors.Is(err, core.ErrModelNotLoaded) {
				return fmt.Errorf("loading model: %w", err)
			}
			log.Warn("no trained model found, predictions unavailable until POST /train")
		}

		log.Info("starting shastri server",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("model_loaded", e.app.Ready()),
			zap.Bool("auth", cfg.Server.APIKey != ""),
		)

		server, err := api.NewServer(api.Config{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			APIKey:         cfg.Server.APIKey,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			MetricsEnabled: cfg.Metrics.Enabled,
			MetricsPath:    cfg.Metrics.Path,
		}, api.Dependencies{
			App:     e.app,
			Metrics: e.metrics,
			Jobs:    job.NewStore(100, time.Hour),
		}, log)
		if err != nil {
			return fmt.Errorf("creating server: %w", err)
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case <-quit:
		}

		log.Info("shutting down shastri server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})
}
