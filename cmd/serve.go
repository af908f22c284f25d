package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/osbuddy/osbuddy/internal/api"
	"github.com/osbuddy/osbuddy/internal/config"
	"github.com/osbuddy/osbuddy/internal/guard"
	"github.com/osbuddy/osbuddy/internal/store"
	"github.com/osbuddy/osbuddy/internal/tutor"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // model calls can run long
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tutoring HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe initializes and starts the HTTP API server.
func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	logger.Info("starting OS Buddy", "version", AppVersion, "model", cfg.ModelName)

	sessions, err := store.Open(ctx, store.Options{
		MongoURI:  cfg.MongoURI,
		FilePath:  cfg.SessionsFilePath(),
		Retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}

	client, err := newModelClient(ctx, cfg, logger)
	if err != nil {
		return err
	}

	tut := tutor.New(tutor.Options{
		Store:        sessions,
		Retriever:    newRetriever(cfg, client, logger),
		Classifier:   guard.New(),
		Generator:    tutor.NewGeminiGenerator(client, cfg.ModelName),
		TopK:         cfg.TopK,
		HistoryLimit: cfg.HistoryLimit,
		Logger:       logger,
	})

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:     logger,
		Store:      sessions,
		Tutor:      tut,
		UserHeader: cfg.UserHeader,
		TrustProxy: cfg.TrustProxy,
		RateBurst:  cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.Addr,
		"routes", "/chat, /sessions",
		"health", "/healthz",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
