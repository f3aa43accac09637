package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mamadbah2/traystore/internal/domain/models"
)

// queryFlags selects one query kind from command-line flags.
type queryFlags struct {
	TrayID       string
	MaterialID   string
	Location     string
	Divider      int
	HasInventory string
	Offset       int
}

func (q *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&q.TrayID, "tray", "", "select by tray id")
	cmd.Flags().StringVar(&q.MaterialID, "material", "", "select trays holding a material")
	cmd.Flags().StringVar(&q.Location, "location", "", "storage|station (default any)")
	cmd.Flags().IntVar(&q.Divider, "divider", -1, "unfiltered listing: divider count")
	cmd.Flags().StringVar(&q.HasInventory, "has-inventory", "", "unfiltered listing: true|false")
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "unfiltered listing: page offset")
}

func (q *queryFlags) spec() (models.QuerySpec, error) {
	if q.TrayID != "" && q.MaterialID != "" {
		return models.QuerySpec{}, fmt.Errorf("%w: --tray and --material are exclusive", models.ErrValidation)
	}

	location, err := models.ParseLocation(q.Location)
	if err != nil {
		return models.QuerySpec{}, err
	}
	spec := models.QuerySpec{Location: location, Offset: q.Offset}

	switch {
	case q.TrayID != "":
		spec.Kind, spec.ID = models.QueryKindTray, q.TrayID
	case q.MaterialID != "":
		spec.Kind, spec.ID = models.QueryKindMaterial, q.MaterialID
	default:
		spec.Kind = models.QueryKindUnfiltered
		if q.Divider >= 0 {
			divider := q.Divider
			spec.Divider = &divider
		}
		if q.HasInventory != "" {
			has, err := strconv.ParseBool(q.HasInventory)
			if err != nil {
				return models.QuerySpec{}, fmt.Errorf("%w: --has-inventory must be true or false", models.ErrValidation)
			}
			spec.HasInventory = &has
		}
	}
	return spec, nil
}

type traysResult struct {
	Trays []models.Tray `json:"trays"`
	Total int           `json:"total"`
}

// NewTraysCommand creates the trays command.
func NewTraysCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "trays",
		Short: "Look up trays by id, by material or through the paged listing",
		Example: `  trayctl trays --tray T-0001
  trayctl trays --material 4711 --location station
  trayctl trays --divider 4 --has-inventory=false --offset 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := flags.spec()
			if err != nil {
				return err
			}
			svc, err := rootOpts.Services()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var result traysResult
			switch spec.Kind {
			case models.QueryKindTray:
				result.Trays, err = svc.Trays.QueryByTray(ctx, spec.ID, spec.Location)
				result.Total = len(result.Trays)
			case models.QueryKindMaterial:
				result.Trays, err = svc.Trays.QueryByMaterial(ctx, spec.ID, spec.Location)
				result.Total = len(result.Trays)
			default:
				result.Trays, result.Total, err = svc.Trays.QueryUnfiltered(ctx,
					models.UnfilteredFilters{Divider: spec.Divider, HasInventory: spec.HasInventory}, spec.Offset)
			}
			if err != nil {
				return err
			}

			return rootOpts.output(cmd).Emit(result, func(w io.Writer) {
				writeTrays(w, result.Trays)
				if spec.Kind == models.QueryKindUnfiltered {
					fmt.Fprintf(w, "offset %d, %d total\n", spec.Offset, result.Total)
				}
			})
		},
	}

	flags.register(cmd)
	return cmd
}
