package sheets

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/domain/models"
)

// ExternalLedger reads external (ERP) quantities from a two-column sheet
// range: material id, quantity. Rows whose quantity is not a number, such as
// a header, are skipped. Repeated materials are summed.
type ExternalLedger struct {
	repo       Repository
	quantities string
	summaries  string
	logger     *zap.Logger
}

// NewExternalLedger wraps a sheet repository. summaryRange may be empty, in
// which case SaveReconcileSummary is a no-op.
func NewExternalLedger(repo Repository, quantityRange, summaryRange string, logger *zap.Logger) *ExternalLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExternalLedger{
		repo:       repo,
		quantities: quantityRange,
		summaries:  summaryRange,
		logger:     logger,
	}
}

// ExternalQuantity returns the sheet quantity of one material.
func (l *ExternalLedger) ExternalQuantity(ctx context.Context, materialID string) (int, error) {
	quantities, err := l.Quantities(ctx)
	if err != nil {
		return 0, err
	}
	quantity, ok := quantities[materialID]
	if !ok {
		return 0, fmt.Errorf("%w: material %s not in sheet", models.ErrNotFound, materialID)
	}
	return quantity, nil
}

// Quantities returns every material quantity in the range.
func (l *ExternalLedger) Quantities(ctx context.Context) (map[string]int, error) {
	rows, err := l.repo.ReadRange(ctx, l.quantities)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}

	quantities := make(map[string]int, len(rows))
	skipped := 0
	for _, row := range rows {
		if len(row) < 2 {
			skipped++
			continue
		}
		material := strings.TrimSpace(fmt.Sprint(row[0]))
		quantity, ok := cellInt(row[1])
		if material == "" || !ok {
			skipped++
			continue
		}
		quantities[material] += quantity
	}

	if skipped > 0 {
		l.logger.Debug("skipped sheet rows", zap.String("range", l.quantities), zap.Int("rows", skipped))
	}
	return quantities, nil
}

// SaveReconcileSummary appends the summary as one row.
func (l *ExternalLedger) SaveReconcileSummary(ctx context.Context, summary models.ReconcileSummary) error {
	if l.summaries == "" {
		return nil
	}
	row := []interface{}{
		summary.Date.Format(models.DateLayout),
		summary.Matched,
		summary.InternalSurplus,
		summary.ExternalSurplus,
		summary.NetDifference,
		summary.LargestShortfall,
	}
	return l.repo.AppendRow(ctx, l.summaries, row)
}

func cellInt(cell interface{}) (int, bool) {
	switch v := cell.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(v), ",", ""))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
