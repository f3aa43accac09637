package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mamadbah2/traystore/internal/domain/models"
)

// NewClassifyCommand creates the classify command.
func NewClassifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <material-id>",
		Short: "Compare one material's tray quantity with the external ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rootOpts.Services()
			if err != nil {
				return err
			}
			record, err := svc.Engine.Classify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return rootOpts.output(cmd).Emit(record, func(w io.Writer) {
				writeRecords(w, []models.ReconciliationRecord{record})
			})
		},
	}
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		status  string
		offset  int
		limit   int
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "List reconciliation records by status, or summarize every status",
		Example: `  trayctl reconcile --status sap_shortage --limit 20
  trayctl reconcile --summary --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !summary && status == "" {
				return WrapExitError(ExitCommandError, "missing flag", fmt.Errorf("--status or --summary is required"))
			}
			svc, err := rootOpts.Services()
			if err != nil {
				return err
			}

			if summary {
				result, err := svc.Engine.Summary(cmd.Context())
				if err != nil {
					return err
				}
				return rootOpts.output(cmd).Emit(result, func(w io.Writer) {
					fmt.Fprintf(w, "matched %d, trays above external %d, external above trays %d, net %+d\n",
						result.Matched, result.InternalSurplus, result.ExternalSurplus, result.NetDifference)
					if result.LargestShortfall != "" {
						fmt.Fprintf(w, "largest shortfall: %s\n", result.LargestShortfall)
					}
				})
			}

			parsed, err := models.ParseReconcileStatus(status)
			if err != nil {
				return err
			}
			records, err := svc.Engine.ListByStatus(cmd.Context(), parsed, models.Page{Offset: offset, Limit: limit})
			if err != nil {
				return err
			}
			return rootOpts.output(cmd).Emit(records, func(w io.Writer) { writeRecords(w, records) })
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "matched|robot_shortage|sap_shortage")
	cmd.Flags().IntVar(&offset, "offset", 0, "records to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (default RECONCILE_PAGE_SIZE)")
	cmd.Flags().BoolVar(&summary, "summary", false, "count records across every status")
	return cmd
}

// NewDrillDownCommand creates the drilldown command.
func NewDrillDownCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drilldown <material-id>",
		Short: "List the trays behind a material's internal quantity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rootOpts.Services()
			if err != nil {
				return err
			}
			trays, err := svc.Engine.DrillDown(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			total := models.TrayPage{Trays: trays}.SumQuantity(args[0])
			result := traysResult{Trays: trays, Total: total}
			return rootOpts.output(cmd).Emit(result, func(w io.Writer) {
				writeTrays(w, trays)
				fmt.Fprintf(w, "%s: %d across %d trays\n", args[0], total, len(trays))
			})
		},
	}
}
