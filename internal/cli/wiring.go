package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/config"
	"github.com/mamadbah2/traystore/internal/repository/sheets"
	"github.com/mamadbah2/traystore/internal/service/locking"
	"github.com/mamadbah2/traystore/internal/service/orchestrator"
	"github.com/mamadbah2/traystore/internal/service/picking"
	"github.com/mamadbah2/traystore/internal/service/reconcile"
	"github.com/mamadbah2/traystore/internal/service/registry"
	"github.com/mamadbah2/traystore/internal/service/transactions"
	"github.com/mamadbah2/traystore/pkg/clients/ledger"
	"github.com/mamadbah2/traystore/pkg/logger"
)

// Services is everything a subcommand may need.
type Services struct {
	Trays        *registry.Registry
	Locks        *locking.Manager
	Recorder     *transactions.Recorder
	Engine       *reconcile.Engine
	Orchestrator *orchestrator.Orchestrator
	Picking      *picking.Service
	Logger       *zap.Logger
	Close        func()
}

// Builder produces Services for one invocation.
type Builder func(opts *RootOptions) (*Services, error)

// LedgerBackend is the Ledger Store surface the services are wired over.
type LedgerBackend interface {
	registry.TraySource
	locking.OrderStore
	locking.StationController
	transactions.Ledger
	reconcile.ExternalLedger
	reconcile.ReportSource
	picking.OrderSource
}

// NewServices wires the services over one ledger backend. external overrides
// the backend's external quantities when non-nil.
func NewServices(backend LedgerBackend, external reconcile.ExternalLedger, cfg *config.Config, log *zap.Logger) *Services {
	if log == nil {
		log = zap.NewNop()
	}
	if external == nil {
		external = backend
	}

	trays := registry.NewRegistry(backend, cfg.Sync.PageSize, log.Named("registry"))
	orch := orchestrator.New(trays, cfg.Sync, log.Named("orchestrator"))
	locks := locking.NewManager(backend, backend, cfg.Locking, log.Named("locking"))
	recorder := transactions.NewRecorder(backend, trays, backend, orch, log.Named("transactions"))

	return &Services{
		Trays:        trays,
		Locks:        locks,
		Recorder:     recorder,
		Engine:       reconcile.NewEngine(external, backend, backend, cfg.Reconcile.PageSize, log.Named("reconcile")),
		Orchestrator: orch,
		Picking:      picking.NewService(backend, locks, recorder, log.Named("picking")),
		Logger:       log,
		Close: func() {
			orch.Close()
			_ = log.Sync()
		},
	}
}

// BuildFromEnv loads configuration and talks to the real Ledger Store.
func BuildFromEnv(opts *RootOptions) (*Services, error) {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return nil, err
	}

	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	log, err := logger.New(level)
	if err != nil {
		return nil, err
	}

	client := ledger.NewClient(cfg.Ledger, log.Named("client.ledger"))

	var external reconcile.ExternalLedger
	if cfg.Reconcile.Source == config.SourceSheets {
		repo, err := sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, log.Named("repo.sheets"))
		if err != nil {
			return nil, fmt.Errorf("sheets repository: %w", err)
		}
		external = sheets.NewExternalLedger(repo, cfg.Sheets.ExternalRange, "", log.Named("repo.sheets"))
	}

	return NewServices(client, external, cfg, log), nil
}
