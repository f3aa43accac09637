package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mamadbah2/traystore/internal/domain/models"
)

// NewLockCommand creates the lock command.
func NewLockCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		userID    string
		stationID string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "lock <tray-id>",
		Short: "Reserve a tray, reusing the user's active order if one exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rootOpts.Services()
			if err != nil {
				return err
			}

			order, err := svc.Locks.RequestLock(cmd.Context(), models.LockRequest{
				TrayID:    args[0],
				UserID:    userID,
				StationID: stationID,
				Timeout:   timeout,
			})
			if err != nil {
				return err
			}
			return rootOpts.output(cmd).Emit(order, func(w io.Writer) { writeOrder(w, order) })
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (default from LOCK_DEFAULT_USER)")
	cmd.Flags().StringVar(&stationID, "station", "", "station the tray is requested to")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "auto-complete timeout (default from LOCK_DEFAULT_TIMEOUT)")
	return cmd
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		release bool
		slotID  string
	)

	cmd := &cobra.Command{
		Use:   "complete <order-id>",
		Short: "Complete an order; completing twice is not an error",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rootOpts.Services()
			if err != nil {
				return err
			}

			orderID := args[0]
			if release || slotID != "" {
				err = svc.Locks.Release(cmd.Context(), orderID, slotID)
			} else {
				err = svc.Locks.Complete(cmd.Context(), orderID)
			}
			if err != nil {
				return err
			}

			result := map[string]string{"order_id": orderID, "status": string(models.OrderStatusCompleted)}
			return rootOpts.output(cmd).Emit(result, func(w io.Writer) {
				fmt.Fprintf(w, "order %s completed\n", orderID)
			})
		},
	}

	cmd.Flags().BoolVar(&release, "release", false, "also free the station slot and snapshot the tray")
	cmd.Flags().StringVar(&slotID, "slot", "", "station slot to free (implies --release)")
	return cmd
}
