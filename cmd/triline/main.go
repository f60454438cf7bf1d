package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/triline/triline/internal/app"
	"github.com/triline/triline/internal/audit"
	"github.com/triline/triline/internal/authn"
	"github.com/triline/triline/internal/clients"
	"github.com/triline/triline/internal/documents"
	"github.com/triline/triline/internal/engagements"
	"github.com/triline/triline/internal/observability"
	"github.com/triline/triline/internal/platform/cache"
	"github.com/triline/triline/internal/platform/db"
	"github.com/triline/triline/internal/rbac"
	"github.com/triline/triline/internal/shared"
	"github.com/triline/triline/internal/tasks"
	"github.com/triline/triline/internal/workflow"
	"github.com/triline/triline/jobs"
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

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "triline_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	tokenIssuer := authn.NewTokenIssuer(cfg.APITokenSecret, cfg.APITokenTTL)
	authRepo := authn.NewRepository(pool)
	authService := authn.NewService(authRepo, tokenIssuer, logger)
	authHandler := authn.NewHandler(logger, authService, sessionManager)

	resolver := rbac.NewDefaultResolver()
	authMW := &authn.Middleware{Service: authService, Resolver: resolver, Logger: logger}

	metrics := observability.NewMetrics()

	historyStore := workflow.NewPGHistoryStore(pool)
	transitioner := workflow.NewTransitioner(pool, historyStore, logger)
	transitioner.SetObserver(metrics)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	clientsService := clients.NewService(clients.NewRepository(pool), logger)
	clientsHandler := clients.NewHandler(logger, clientsService, authMW)

	engagementsService := engagements.NewService(engagements.NewRepository(pool), transitioner, jobClient, logger)
	engagementsHandler := engagements.NewHandler(logger, engagementsService, authMW)

	documentsService := documents.NewService(documents.NewRepository(pool), transitioner, jobClient, logger)
	documentsHandler := documents.NewHandler(logger, documentsService, authMW)

	tasksService := tasks.NewService(tasks.NewRepository(pool), transitioner, logger)
	tasksHandler := tasks.NewHandler(logger, tasksService, authMW)

	auditService := audit.NewService(historyStore)
	auditHandler := audit.NewHandler(logger, auditService, authMW)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		AuthMiddleware:     authMW,
		AuthHandler:        authHandler,
		ClientsHandler:     clientsHandler,
		EngagementsHandler: engagementsHandler,
		DocumentsHandler:   documentsHandler,
		TasksHandler:       tasksHandler,
		AuditHandler:       auditHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
