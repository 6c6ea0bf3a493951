// Command twin serves an in-memory copy of the referral backend REST API for
// local development.
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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/kelseyhightower/envconfig"

	"github.com/referrush/csdash/internal/app"
	"github.com/referrush/csdash/internal/backend/twin"
)

type config struct {
	Addr      string `envconfig:"TWIN_ADDR" default:":5000"`
	SeedFile  string `envconfig:"TWIN_SEED_FILE"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping twin startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(&app.Config{LogFormat: cfg.LogFormat}, "twin")

	store, err := loadStore(cfg.SeedFile)
	if err != nil {
		logger.Error("seed twin", slog.String("file", cfg.SeedFile), slog.Any("error", err))
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(store),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting backend twin", slog.String("addr", cfg.Addr), slog.Int("customers", len(store.Customers())))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("twin server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func loadStore(seedFile string) (*twin.Store, error) {
	store := twin.New()
	if seedFile == "" {
		return store, store.LoadDefault()
	}
	return store, store.LoadSeedFile(seedFile)
}

func newRouter(store *twin.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.Recoverer, chimw.Logger)
	r.Route("/api", twin.NewHandler(store).Routes)
	return r
}
