package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/config"
	"github.com/mamadbah2/traystore/internal/repository/mongodb"
	"github.com/mamadbah2/traystore/internal/repository/sheets"
	"github.com/mamadbah2/traystore/internal/scheduler"
	"github.com/mamadbah2/traystore/internal/server/handlers"
	"github.com/mamadbah2/traystore/internal/server/router"
	"github.com/mamadbah2/traystore/internal/service/locking"
	"github.com/mamadbah2/traystore/internal/service/orchestrator"
	"github.com/mamadbah2/traystore/internal/service/picking"
	"github.com/mamadbah2/traystore/internal/service/reconcile"
	"github.com/mamadbah2/traystore/internal/service/registry"
	reportingsvc "github.com/mamadbah2/traystore/internal/service/reporting"
	"github.com/mamadbah2/traystore/internal/service/transactions"
	whatsappsvc "github.com/mamadbah2/traystore/internal/service/whatsapp"
	"github.com/mamadbah2/traystore/pkg/clients/ledger"
	whatsappclient "github.com/mamadbah2/traystore/pkg/clients/whatsapp"
	"github.com/mamadbah2/traystore/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ledgerClient := ledger.NewClient(cfg.Ledger, baseLogger.Named("client.ledger"))

	trays := registry.NewRegistry(ledgerClient, cfg.Sync.PageSize, baseLogger.Named("svc.registry"))
	orch := orchestrator.New(trays, cfg.Sync, baseLogger.Named("svc.orchestrator"))
	defer orch.Close()

	locks := locking.NewManager(ledgerClient, ledgerClient, cfg.Locking, baseLogger.Named("svc.locking"))
	recorder := transactions.NewRecorder(ledgerClient, trays, ledgerClient, orch, baseLogger.Named("svc.transactions"))
	picker := picking.NewService(ledgerClient, locks, recorder, baseLogger.Named("svc.picking"))

	var (
		external reconcile.ExternalLedger = ledgerClient
		stores   []reportingsvc.SummaryStore
	)

	if cfg.SheetsEnabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		sheetLedger := sheets.NewExternalLedger(sheetsRepo, cfg.Sheets.ExternalRange, cfg.Sheets.SummaryRange, baseLogger.Named("repo.sheets"))
		if cfg.Reconcile.Source == config.SourceSheets {
			external = sheetLedger
			baseLogger.Info("external quantities read from google sheets")
		}
		if cfg.Sheets.SummaryRange != "" {
			stores = append(stores, sheetLedger)
		}
	}

	if cfg.MongoDB.URI != "" {
		mongoRepo, err := mongodb.NewMongoDBRepository(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		stores = append(stores, mongoRepo)
	} else {
		baseLogger.Warn("mongodb uri missing, reconcile summaries are not stored")
	}

	engine := reconcile.NewEngine(external, ledgerClient, ledgerClient, cfg.Reconcile.PageSize, baseLogger.Named("svc.reconcile"))
	reportingSvc := reportingsvc.NewService(engine, baseLogger.Named("svc.reporting"), stores...)

	var notifier scheduler.Notifier
	if cfg.WhatsApp.AccessToken != "" {
		whatsClient := whatsappclient.NewClient(cfg.WhatsApp)
		notifier = whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, whatsClient, baseLogger.Named("svc.whatsapp"))
		baseLogger.Info("whatsapp notifications enabled")
	} else {
		baseLogger.Warn("whatsapp token missing, daily reports are not sent")
	}

	sched, err := scheduler.NewScheduler(*cfg, reportingSvc, notifier, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	engineRouter := router.New(router.Handlers{
		Trays:        handlers.NewTrayHandler(trays, baseLogger.Named("handlers.trays")),
		Locks:        handlers.NewLockHandler(locks, baseLogger.Named("handlers.locks")),
		Transactions: handlers.NewTransactionHandler(recorder, baseLogger.Named("handlers.transactions")),
		Reconcile:    handlers.NewReconcileHandler(engine, baseLogger.Named("handlers.reconcile")),
		Views:        handlers.NewViewHandler(orch, baseLogger.Named("handlers.views")),
		SapOrders:    handlers.NewSapOrderHandler(picker, baseLogger.Named("handlers.sap_orders")),
	}, baseLogger.Named("router"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engineRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Ledger.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
