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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/Digigit24/kumsserp-sub000/internal/app"
	"github.com/Digigit24/kumsserp-sub000/internal/fulfillment"
	"github.com/Digigit24/kumsserp-sub000/internal/indent"
	"github.com/Digigit24/kumsserp-sub000/internal/inventory"
	"github.com/Digigit24/kumsserp-sub000/internal/issue"
	"github.com/Digigit24/kumsserp-sub000/internal/notify"
	"github.com/Digigit24/kumsserp-sub000/internal/observability"
	"github.com/Digigit24/kumsserp-sub000/internal/platform/cache"
	"github.com/Digigit24/kumsserp-sub000/internal/platform/db"
	"github.com/Digigit24/kumsserp-sub000/internal/procurement"
	"github.com/Digigit24/kumsserp-sub000/internal/shared"
	"github.com/Digigit24/kumsserp-sub000/internal/workflow"
	"github.com/Digigit24/kumsserp-sub000/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	auditLogger := shared.NewAuditLogger(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	docLocks := shared.NewDocLock(redisClient, cfg.LockTTL)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	notifier := notify.NewAsynqNotifier(jobsClient, logger)

	inventoryRepo := inventory.NewRepository(dbpool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, idempotencyStore, inventory.ServiceConfig{
		AllowNegativeStock: cfg.AllowNegativeStock,
	})

	indentRepo := indent.NewRepository(dbpool)
	indentService, err := indent.NewService(indentRepo, approvalRecorder, auditLogger, docLocks, notifier, cfg.ApprovalTiers)
	if err != nil {
		logger.Error("init indent service", slog.Any("error", err))
		os.Exit(1)
	}

	issueRepo := issue.NewRepository(dbpool)
	issueService := issue.NewService(issueRepo, inventoryService, auditLogger, docLocks, notifier)

	procurementRepo := procurement.NewRepository(dbpool)
	procurementService := procurement.NewService(procurementRepo, approvalRecorder, auditLogger, docLocks, notifier, procurement.Config{
		SingleTierApproval: cfg.ApprovalTiers <= 1,
		SkipInspection:     cfg.SkipInspection,
		AllowOverReceipt:   cfg.AllowOverReceipt,
	})

	orchestrator := fulfillment.NewOrchestrator(indentService, issueService, procurementService, inventoryService, idempotencyStore)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	for _, machine := range []*workflow.Machine{
		indentService.Machine(),
		issueService.Machine(),
		procurementService.RequirementMachine(),
		procurementService.POMachine(),
		procurementService.GRNMachine(),
	} {
		machine.Observe(metrics.RecordTransition)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		IndentHandler:      indent.NewHandler(logger, indentService),
		IssueHandler:       issue.NewHandler(logger, issueService),
		ProcurementHandler: procurement.NewHandler(logger, procurementService),
		FulfillmentHandler: fulfillment.NewHandler(logger, orchestrator),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
