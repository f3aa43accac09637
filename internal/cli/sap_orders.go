package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mamadbah2/traystore/internal/domain/models"
	"github.com/mamadbah2/traystore/internal/service/picking"
)

// NewSapOrdersCommand creates the sap-orders command.
func NewSapOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	var trayID string

	cmd := &cobra.Command{
		Use:   "sap-orders",
		Short: "List open ERP orders, or the order lines to pick from one tray",
		Example: `  trayctl sap-orders
  trayctl sap-orders --tray T1 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rootOpts.Services()
			if err != nil {
				return err
			}

			if trayID == "" {
				orders, err := svc.Picking.ActiveOrders(cmd.Context())
				if err != nil {
					return err
				}
				return rootOpts.output(cmd).Emit(orders, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ORDER\tTOTAL\tPENDING\tDONE")
					for _, o := range orders {
						fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", o.OrderRef, o.TotalItems, o.PendingItems, o.CompletedItems)
					}
					_ = tw.Flush()
				})
			}

			lines, err := svc.Picking.LinesInTray(cmd.Context(), trayID)
			if err != nil {
				return err
			}
			return rootOpts.output(cmd).Emit(lines, func(w io.Writer) { writeSapLines(w, lines) })
		},
	}

	cmd.Flags().StringVar(&trayID, "tray", "", "list the lines to pick from this tray")
	return cmd
}

// NewPickCommand creates the pick command.
func NewPickCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		orderID string
		userID  string
	)

	cmd := &cobra.Command{
		Use:   "pick <tray-id> <line-id> <quantity>",
		Short: "Pick an ERP order line out of a tray",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("%w: quantity %q", models.ErrInvalidQuantity, args[2])
			}

			svc, err := rootOpts.Services()
			if err != nil {
				return err
			}

			result, err := svc.Picking.PickLine(cmd.Context(), picking.PickRequest{
				TrayID:   args[0],
				LineID:   args[1],
				Quantity: quantity,
				OrderID:  orderID,
				UserID:   userID,
			})
			if err != nil {
				return err
			}

			return rootOpts.output(cmd).Emit(result, func(w io.Writer) {
				fmt.Fprintf(w, "picked %d of %s for order %s line %s on order %s\n",
					quantity, result.Line.MaterialID, result.Line.OrderRef, result.Line.ID, result.OrderID)
			})
		},
	}

	cmd.Flags().StringVar(&orderID, "order", "", "pick against this active order instead of locking the tray")
	cmd.Flags().StringVar(&userID, "user", "", "user the tray is locked for")
	return cmd
}

func writeSapLines(w io.Writer, lines []models.SapOrderLine) {
	if len(lines) == 0 {
		fmt.Fprintln(w, "no sap order lines")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tORDER\tMATERIAL\tQTY\tPICKED\tLEFT")
	for _, l := range lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n", l.ID, l.OrderRef, l.MaterialID, l.Quantity, l.Consumed, l.Remaining())
	}
	_ = tw.Flush()
}
