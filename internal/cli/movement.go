package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mamadbah2/traystore/internal/domain/models"
	"github.com/mamadbah2/traystore/internal/service/transactions"
)

// NewMovementCommand creates the inbound or outbound command.
func NewMovementCommand(rootOpts *RootOptions, direction string) *cobra.Command {
	var (
		date   string
		userID string
		sapRef string
	)

	cmd := &cobra.Command{
		Use:   direction + " <order-id> <material-id> <quantity>",
		Short: fmt.Sprintf("Record an %s movement against an active order", direction),
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := models.ParseTransactionType(direction)
			if err != nil {
				return err
			}
			quantity, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("%w: quantity %q", models.ErrInvalidQuantity, args[2])
			}

			day := time.Now().UTC().Truncate(24 * time.Hour)
			if date != "" {
				if day, err = models.ParseDate(date); err != nil {
					return err
				}
			}

			svc, err := rootOpts.Services()
			if err != nil {
				return err
			}

			tx, err := svc.Recorder.Record(cmd.Context(), transactions.Movement{
				OrderID:     args[0],
				MaterialID:  args[1],
				Type:        typ,
				Quantity:    quantity,
				Date:        day,
				UserID:      userID,
				SapOrderRef: sapRef,
			})
			if err != nil {
				return err
			}

			return rootOpts.output(cmd).Emit(tx, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s %+d on order %s (%s)\n",
					tx.Type, tx.MaterialID, tx.Delta, tx.OrderID, tx.Date.Format(models.DateLayout))
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "movement date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&userID, "user", "", "assign the order to this user first")
	cmd.Flags().StringVar(&sapRef, "sap-ref", "", "external order reference")
	return cmd
}
