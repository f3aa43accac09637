package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mamadbah2/traystore/internal/domain/models"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // ledger unavailable or unexpected failure
	ExitCommandError = 2 // bad flags, arguments or configuration
	ExitNotFound     = 3
	ExitConflict     = 4 // tray locked, order not active, insufficient quantity
)

// ExitError carries a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode derives the process exit code from an error.
func GetExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, models.ErrValidation):
		return ExitCommandError
	case errors.Is(err, models.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, models.ErrInvariant):
		return ExitConflict
	default:
		return ExitFailure
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Emit writes data as indented JSON, or through text in text mode.
func (f *OutputFormatter) Emit(data interface{}, text func(w io.Writer)) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	text(f.Writer)
	return nil
}

func writeTrays(w io.Writer, trays []models.Tray) {
	if len(trays) == 0 {
		fmt.Fprintln(w, "no trays")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRAY\tLOCATION\tDIVIDER\tAVAILABLE\tCONTENTS")
	for _, tray := range trays {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\n", tray.ID, tray.Location, tray.Divider, tray.Available(), contents(tray))
	}
	_ = tw.Flush()
}

func contents(tray models.Tray) string {
	if len(tray.Contents) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(tray.Contents))
	for _, item := range tray.Contents {
		parts = append(parts, fmt.Sprintf("%s=%d", item.MaterialID, item.Quantity))
	}
	return strings.Join(parts, ",")
}

func writeRecords(w io.Writer, records []models.ReconciliationRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no records")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MATERIAL\tEXTERNAL\tINTERNAL\tDIFF\tSTATUS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%+d\t%s\n", r.MaterialID, r.ExternalQuantity, r.InternalQuantity, r.Difference, r.Status)
	}
	_ = tw.Flush()
}

func writeOrder(w io.Writer, order models.Order) {
	fmt.Fprintf(w, "order %s on tray %s for user %s: %s\n", order.ID, order.TrayID, order.UserID, order.Status)
}
