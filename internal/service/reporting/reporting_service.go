package reporting

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/domain/models"
)

// SummarySource computes the reconciliation summary.
type SummarySource interface {
	Summary(ctx context.Context) (models.ReconcileSummary, error)
}

// SummaryStore persists a computed summary.
type SummaryStore interface {
	SaveReconcileSummary(ctx context.Context, summary models.ReconcileSummary) error
}

// Service builds the daily reconciliation report.
type Service struct {
	source SummarySource
	stores []SummaryStore
	logger *zap.Logger
}

// NewService wires a new reporting service instance. Nil stores are ignored.
func NewService(source SummarySource, logger *zap.Logger, stores ...SummaryStore) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	kept := make([]SummaryStore, 0, len(stores))
	for _, store := range stores {
		if store != nil {
			kept = append(kept, store)
		}
	}
	return &Service{source: source, stores: kept, logger: logger}
}

// GenerateDailyReport computes the summary, saves it to every store and
// returns the operator message. A failing store is logged and skipped.
func (s *Service) GenerateDailyReport(ctx context.Context) (models.ReconcileSummary, string, error) {
	summary, err := s.source.Summary(ctx)
	if err != nil {
		return models.ReconcileSummary{}, "", fmt.Errorf("compute reconcile summary: %w", err)
	}

	for _, store := range s.stores {
		if err := store.SaveReconcileSummary(ctx, summary); err != nil {
			s.logger.Error("failed to store reconcile summary", zap.Error(err))
		}
	}

	return summary, FormatSummary(summary), nil
}

// FormatSummary renders the summary as a short plain-text message.
func FormatSummary(summary models.ReconcileSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stock reconciliation %s\n", summary.Date.Format(models.DateLayout))
	fmt.Fprintf(&b, "Matched: %d\n", summary.Matched)
	fmt.Fprintf(&b, "Trays above SAP: %d\n", summary.InternalSurplus)
	fmt.Fprintf(&b, "SAP above trays: %d\n", summary.ExternalSurplus)
	fmt.Fprintf(&b, "Net difference: %+d", summary.NetDifference)
	if summary.LargestShortfall != "" {
		fmt.Fprintf(&b, "\nLargest shortfall: %s", summary.LargestShortfall)
	}
	return b.String()
}
