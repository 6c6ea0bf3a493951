package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/referrush/csdash/cmd/csdash/cli"
	"github.com/referrush/csdash/internal/app"
	"github.com/referrush/csdash/internal/audit"
	audithttp "github.com/referrush/csdash/internal/audit/http"
	"github.com/referrush/csdash/internal/backend"
	"github.com/referrush/csdash/internal/customers"
	"github.com/referrush/csdash/internal/insights"
	insightshttp "github.com/referrush/csdash/internal/insights/http"
	"github.com/referrush/csdash/internal/nudges"
	"github.com/referrush/csdash/internal/observability"
	"github.com/referrush/csdash/internal/platform/cache"
	"github.com/referrush/csdash/internal/platform/db"
	"github.com/referrush/csdash/internal/shared"
	"github.com/referrush/csdash/internal/view"
	"github.com/referrush/csdash/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "csdash")

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobs(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("serve", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var auditRecorder shared.AuditRecorder
	auditService := audit.NewService(nil)
	if cfg.AuditEnabled {
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		auditLogger := shared.NewAuditLogger(pool)
		if err := auditLogger.EnsureSchema(ctx); err != nil {
			logger.Warn("ensure audit schema", slog.Any("error", err))
		}
		auditRecorder = auditLogger
		auditService = audit.NewService(audit.NewRepository(pool))
	}

	sessionManager := shared.NewSessionManager(redisClient, "csdash_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	metrics := observability.NewMetrics()
	client := backend.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout, metrics)

	metricsCache := insights.NewCache(redisClient, cfg.MetricsCacheTTL)
	if err := metricsCache.ListenForInvalidation(ctx, insights.BumpChannel); err != nil {
		logger.Warn("subscribe metrics invalidation", slog.Any("error", err))
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	invalidator := jobs.NewWarmupInvalidator(metricsCache, jobsClient, logger)

	customersService := customers.NewService(client, auditRecorder, invalidator, logger)
	nudgesService := nudges.NewService(client, auditRecorder, invalidator, logger)
	insightsService := insights.NewService(client, metricsCache, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		CustomersHandler: customers.NewHandler(logger, customersService, templates, csrfManager),
		NudgesHandler: nudges.NewHandler(logger, nudgesService, templates, csrfManager, nudges.SendLimit{
			Requests: cfg.NudgeSendLimit,
			Window:   cfg.NudgeSendWindow,
		}),
		InsightsHandler: insightshttp.NewHandler(logger, insightsService, client, templates, csrfManager),
		AuditHandler:    audithttp.NewHandler(logger, auditService, templates, csrfManager),
		JobHandler:      jobs.NewHandler(inspector, logger),
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", client.BaseURL()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) error {
	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer func() { _ = jobsCLI.Close() }()

	if len(args) == 0 {
		return errors.New("usage: csdash jobs trigger <name> | csdash jobs stats")
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New("usage: csdash jobs trigger <name>")
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Println(stats)
	default:
		return fmt.Errorf("unknown jobs command %q", args[0])
	}
	return nil
}
