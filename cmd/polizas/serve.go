package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/polizas/backend"
	"github.com/hazyhaar/polizas/config"
	"github.com/hazyhaar/polizas/dbopen"
	"github.com/hazyhaar/polizas/docpipe"
	"github.com/hazyhaar/polizas/extraction"
	"github.com/hazyhaar/polizas/journal"
	"github.com/hazyhaar/polizas/server"
	"github.com/hazyhaar/polizas/session"
	"github.com/hazyhaar/polizas/shield"
	"github.com/hazyhaar/polizas/wizard"
)

func serveCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg, slog.Default())
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := dbopen.Open(cfg.DBPath,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(session.Schema),
		dbopen.WithSchema(journal.Schema),
	)
	if err != nil {
		return err
	}
	defer db.Close()

	client := backend.New(backend.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
		Logger:  logger,
	})
	pipeline := docpipe.New(docpipe.Config{
		MaxFileSize:  cfg.MaxUploadBytes,
		PreviewChars: cfg.PreviewChars,
		Logger:       logger,
	})
	sessions := session.NewStore(db, session.WithTTL(cfg.SessionTTL))
	events := journal.New(db, journal.WithLogger(logger))
	wizards := wizard.NewService(wizard.Config{
		Backend:    client,
		Pipeline:   pipeline,
		Normalizer: &extraction.Normalizer{Logger: logger},
		Journal:    events,
		Logger:     logger,
	})

	var limiter *shield.RateLimiter
	if cfg.LoginRateLimit > 0 {
		limiter = shield.NewRateLimiter(cfg.LoginRateLimit, time.Minute)
		limiter.StartGC(ctx.Done())
	}

	srv := server.New(server.Config{
		Backend:       client,
		Sessions:      sessions,
		Wizards:       wizards,
		Pipeline:      pipeline,
		Journal:       events,
		Secret:        cfg.JWTKey(),
		CookieDomain:  cfg.CookieDomain,
		MaxUpload:     cfg.MaxUploadBytes,
		MaxBatchFiles: cfg.MaxBatchFiles,
		LoginLimiter:  limiter,
		Logger:        logger,
	})
	client.SetOnUnauthorized(srv.OnUnauthorized)

	go srv.RunJanitor(ctx, 15*time.Minute)
	go events.RunRetention(ctx, cfg.JournalRetentionDays)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// extraction calls can take up to the backend timeout
		WriteTimeout: cfg.BackendTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "backend", cfg.BackendURL)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("server stopped")
	return nil
}
