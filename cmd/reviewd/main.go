// Command reviewd serves the spaced-repetition review API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/medrevise/reviewd/internal/catalog"
	"github.com/medrevise/reviewd/internal/config"
	"github.com/medrevise/reviewd/internal/session"
	"github.com/medrevise/reviewd/internal/sm2"
	"github.com/medrevise/reviewd/internal/storage"
	"github.com/medrevise/reviewd/internal/web"
)

func main() {
	flags := pflag.NewFlagSet("reviewd", pflag.ExitOnError)
	flags.String("config", "", "Path to a YAML config file")
	flags.String("listen", ":8080", "HTTP listen address")
	flags.String("db", "reviewd.db", "Path to the SQLite database file")
	flags.String("decks", "", "Local deck directory to register as a card source")
	flags.String("repos", "repos", "Checkout directory for git deck sources")
	flags.Bool("sync", false, "Sync the card catalog on startup")
	if err := flags.Parse(os.Args[1:]); err != nil {
		slog.Error("failed to parse flags", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("reviewd exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DB)

	cat := catalog.New(db, cfg.Repos)
	if cfg.Decks != "" {
		if _, err := cat.AddSource(ctx, cfg.Decks); err != nil {
			return err
		}
	}
	if cfg.Sync {
		if err := cat.RunSync(ctx); err != nil {
			return err
		}
	}

	engine := sm2.DefaultParams()
	engine.MaxIntervalDays = cfg.MaxIntervalDays

	writer := session.NewWriter(db, cfg.WriteRetries, cfg.WriteBackoff)
	defer writer.Close()

	sessions := session.NewManager(engine, writer, cfg.SessionTTL)
	go sessions.Run(ctx, cfg.SweepInterval)

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: web.NewServer(db, cat, sessions, engine),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
