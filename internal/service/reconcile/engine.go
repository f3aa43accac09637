package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/domain/models"
)

// maxPages bounds pagination against a ledger that keeps returning full pages.
const maxPages = 1000

// ExternalLedger reports the external (ERP) quantity of a material.
type ExternalLedger interface {
	ExternalQuantity(ctx context.Context, materialID string) (int, error)
}

// ReportSource returns batches of reconciliation records filtered by status.
type ReportSource interface {
	ReconcileReport(ctx context.Context, status models.ReconcileStatus, page models.Page) ([]models.ReconciliationRecord, error)
}

// TraySource fetches the trays that back internal quantities.
type TraySource interface {
	FetchTrays(ctx context.Context, filter models.TrayFilter) (models.TrayPage, error)
}

// Engine classifies divergence between internal tray quantities and the
// external ledger. Nothing it derives is stored.
type Engine struct {
	external ExternalLedger
	reports  ReportSource
	trays    TraySource
	pageSize int
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine wires the engine. pageSize is used for both tray and report
// pagination.
func NewEngine(external ExternalLedger, reports ReportSource, trays TraySource, pageSize int, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Engine{
		external: external,
		reports:  reports,
		trays:    trays,
		pageSize: pageSize,
		logger:   logger,
		now:      time.Now,
	}
}

// Classify computes the record for one material. A side that does not know
// the material counts as zero.
func (e *Engine) Classify(ctx context.Context, materialID string) (models.ReconciliationRecord, error) {
	if materialID == "" {
		return models.ReconciliationRecord{}, fmt.Errorf("%w: material_id", models.ErrInvalidID)
	}

	external, err := e.external.ExternalQuantity(ctx, materialID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		external = 0
	case err != nil:
		return models.ReconciliationRecord{}, fmt.Errorf("external quantity for %s: %w", materialID, err)
	}

	trays, err := e.backingTrays(ctx, materialID)
	if err != nil {
		return models.ReconciliationRecord{}, err
	}

	internal := 0
	for _, tray := range trays {
		internal += tray.Quantity(materialID)
	}

	record := models.NewReconciliationRecord(materialID, external, internal)
	e.logger.Debug("material classified",
		zap.String("material_id", materialID),
		zap.Int("external", external),
		zap.Int("internal", internal),
		zap.String("status", string(record.Status)))
	return record, nil
}

// DrillDown lists the trays behind the internal quantity of a material. Their
// quantities sum to the internal quantity Classify uses.
func (e *Engine) DrillDown(ctx context.Context, materialID string) ([]models.Tray, error) {
	if materialID == "" {
		return nil, fmt.Errorf("%w: material_id", models.ErrInvalidID)
	}
	return e.backingTrays(ctx, materialID)
}

// ListByStatus returns one page of records with the given status. A ledger
// not-found is an empty page.
func (e *Engine) ListByStatus(ctx context.Context, status models.ReconcileStatus, page models.Page) ([]models.ReconciliationRecord, error) {
	records, _, err := e.reportPage(ctx, status, page)
	return records, err
}

// reportPage fetches one report page and drops records whose derived status
// disagrees with the filter. The second result is the number of records the
// ledger returned before filtering, which decides whether another page exists.
func (e *Engine) reportPage(ctx context.Context, status models.ReconcileStatus, page models.Page) ([]models.ReconciliationRecord, int, error) {
	if _, err := models.ParseReconcileStatus(string(status)); err != nil {
		return nil, 0, err
	}
	if page.Offset < 0 {
		return nil, 0, fmt.Errorf("%w: offset must not be negative", models.ErrValidation)
	}
	if page.Limit <= 0 {
		page.Limit = e.pageSize
	}

	records, err := e.reports.ReconcileReport(ctx, status, page)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return []models.ReconciliationRecord{}, 0, nil
	case err != nil:
		return nil, 0, fmt.Errorf("reconcile report %s: %w", status, err)
	}

	out := make([]models.ReconciliationRecord, 0, len(records))
	for _, record := range records {
		if record.Status == status {
			out = append(out, record)
		}
	}
	return out, len(records), nil
}

// Summary walks every status and counts records.
func (e *Engine) Summary(ctx context.Context) (models.ReconcileSummary, error) {
	now := e.now()
	summary := models.ReconcileSummary{
		Date:      time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		CreatedAt: now,
	}

	worst := 0
	for _, status := range models.ReconcileStatuses {
		for offset, pages := 0, 0; pages < maxPages; pages++ {
			records, raw, err := e.reportPage(ctx, status, models.Page{Offset: offset, Limit: e.pageSize})
			if err != nil {
				return models.ReconcileSummary{}, err
			}
			for _, record := range records {
				summary.Add(record)
				if record.Difference < worst {
					worst = record.Difference
					summary.LargestShortfall = record.MaterialID
				}
			}
			if raw < e.pageSize {
				break
			}
			offset += e.pageSize
		}
	}

	e.logger.Info("reconcile summary computed",
		zap.Int("matched", summary.Matched),
		zap.Int("robot_shortage", summary.InternalSurplus),
		zap.Int("sap_shortage", summary.ExternalSurplus))
	return summary, nil
}

// backingTrays pages through every tray holding the material. The ledger
// pages item rows, so paging stops on a short page of rows and a tray whose
// rows straddle a page boundary is merged back together.
func (e *Engine) backingTrays(ctx context.Context, materialID string) ([]models.Tray, error) {
	key := models.MaterialKey{MaterialID: materialID, Location: models.LocationAny}

	trays := make([]models.Tray, 0)
	index := make(map[string]int)
	filter := key.Filter(e.pageSize)

	for pages := 0; pages < maxPages; pages++ {
		page, err := e.trays.FetchTrays(ctx, filter)
		if errors.Is(err, models.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("trays for %s: %w", materialID, err)
		}

		for _, tray := range page.Trays {
			if !tray.HasMaterial(materialID) {
				continue
			}
			if pos, ok := index[tray.ID]; ok {
				trays[pos].Merge(tray)
				continue
			}
			index[tray.ID] = len(trays)
			trays = append(trays, tray)
		}

		if page.Last(filter.Limit) {
			break
		}
		filter.Offset += filter.Limit
	}
	return trays, nil
}
