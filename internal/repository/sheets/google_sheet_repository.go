package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/traystore/internal/config"
	"github.com/mamadbah2/traystore/internal/domain/models"
)

// Repository is the spreadsheet surface the external ledger needs.
type Repository interface {
	AppendRow(ctx context.Context, sheetRange string, values []interface{}) error
	ReadRange(ctx context.Context, sheetRange string) ([][]interface{}, error)
}

// GoogleSheetRepository reads and appends spreadsheet values through the
// Sheets v4 API.
type GoogleSheetRepository struct {
	values        *sheetsapi.SpreadsheetsValuesService
	spreadsheetID string
	readOnly      bool
	logger        *zap.Logger
}

// NewGoogleSheetRepository authenticates with the service account file. The
// token is scoped read-only unless a summary range is configured.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger, opts ...option.ClientOption) (*GoogleSheetRepository, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet id must not be empty")
	}

	readOnly := cfg.SummaryRange == ""
	scope := sheetsapi.SpreadsheetsScope
	if readOnly {
		scope = sheetsapi.SpreadsheetsReadonlyScope
	}

	if len(opts) == 0 {
		opts = []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsPath)}
	}
	opts = append(opts, option.WithScopes(scope))

	service, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init sheets client: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleSheetRepository{
		values:        service.Spreadsheets.Values,
		spreadsheetID: cfg.SpreadsheetID,
		readOnly:      readOnly,
		logger:        logger,
	}, nil
}

// AppendRow adds one row after the last populated row of the range.
func (r *GoogleSheetRepository) AppendRow(ctx context.Context, sheetRange string, values []interface{}) error {
	if sheetRange == "" {
		return fmt.Errorf("%w: empty sheet range", models.ErrValidation)
	}
	if r.readOnly {
		return fmt.Errorf("%w: spreadsheet opened read-only", models.ErrValidation)
	}

	_, err := r.values.Append(r.spreadsheetID, sheetRange, &sheetsapi.ValueRange{Values: [][]interface{}{values}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return classify("append", sheetRange, err)
	}

	r.logger.Debug("row appended", zap.String("range", sheetRange), zap.Int("cells", len(values)))
	return nil
}

// ReadRange returns raw cell values. Numbers come back unformatted so that
// quantities parse without locale separators.
func (r *GoogleSheetRepository) ReadRange(ctx context.Context, sheetRange string) ([][]interface{}, error) {
	if sheetRange == "" {
		return nil, fmt.Errorf("%w: empty sheet range", models.ErrValidation)
	}

	resp, err := r.values.Get(r.spreadsheetID, sheetRange).
		MajorDimension("ROWS").
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("read", sheetRange, err)
	}

	r.logger.Debug("range read", zap.String("range", sheetRange), zap.Int("rows", len(resp.Values)))
	return resp.Values, nil
}

// classify folds API failures into the shared error taxonomy.
func classify(op, sheetRange string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%s range %s: %w: %v", op, sheetRange, models.ErrNotFound, err)
		case http.StatusBadRequest:
			return fmt.Errorf("%s range %s: %w: %v", op, sheetRange, models.ErrValidation, err)
		}
	}
	return fmt.Errorf("%s range %s: %w: %v", op, sheetRange, models.ErrUnavailable, err)
}
