package cli

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mamadbah2/traystore/internal/domain/models"
)

type watchFrame struct {
	Key   string        `json:"key"`
	Trays []models.Tray `json:"trays"`
	Total int           `json:"total"`
	Error string        `json:"error,omitempty"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &queryFlags{}
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll a tray query and print every refreshed result until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := flags.spec()
			if err != nil {
				return err
			}
			key, err := spec.Key()
			if err != nil {
				return err
			}
			svc, err := rootOpts.Services()
			if err != nil {
				return err
			}

			view, err := svc.Orchestrator.OpenView("trayctl-" + uuid.NewString())
			if err != nil {
				return err
			}
			defer view.Close()
			if err := view.SetQuery(key); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := rootOpts.output(cmd)
			for printed := 0; count <= 0 || printed < count; {
				select {
				case <-ctx.Done():
					return nil
				case <-view.Updates():
				}

				current, projection, ok := view.Snapshot()
				if !ok || current == nil {
					continue
				}
				frame := watchFrame{Key: current.String(), Trays: projection.Page.Trays, Total: len(projection.Page.Trays)}
				if projection.Page.TotalKnown {
					frame.Total = projection.Page.Total
				}
				if projection.Err != nil {
					frame.Error = projection.Err.Error()
				}

				if err := out.Emit(frame, func(w io.Writer) {
					fmt.Fprintf(w, "== %s (%d)\n", frame.Key, frame.Total)
					if frame.Error != "" {
						fmt.Fprintf(w, "error: %s\n", frame.Error)
						return
					}
					writeTrays(w, frame.Trays)
				}); err != nil {
					return err
				}
				printed++
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many refreshes (0 runs until interrupted)")
	return cmd
}
