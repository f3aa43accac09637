package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format  string // "json" | "text"
	EnvFile string
	Verbose bool

	build    Builder
	services *Services
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the trayctl root command. build wires the services
// on first use; nil selects the production wiring from the environment.
func NewRootCommand(build Builder) *cobra.Command {
	if build == nil {
		build = BuildFromEnv
	}
	opts := &RootOptions{build: build}

	cmd := &cobra.Command{
		Use:   "trayctl",
		Short: "Operate trays, locks and stock reconciliation",
		Long: `trayctl talks to the Ledger Store to look up trays, reserve them,
record stock movements against the reservation and compare tray contents
with the external ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.services != nil && opts.services.Close != nil {
				opts.services.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env", "", "path to an env file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging on stderr")

	cmd.AddCommand(NewTraysCommand(opts))
	cmd.AddCommand(NewLockCommand(opts))
	cmd.AddCommand(NewCompleteCommand(opts))
	cmd.AddCommand(NewMovementCommand(opts, "inbound"))
	cmd.AddCommand(NewMovementCommand(opts, "outbound"))
	cmd.AddCommand(NewClassifyCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewDrillDownCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewSapOrdersCommand(opts))
	cmd.AddCommand(NewPickCommand(opts))

	return cmd
}

// Services builds the wiring once per invocation.
func (o *RootOptions) Services() (*Services, error) {
	if o.services != nil {
		return o.services, nil
	}
	svc, err := o.build(o)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "initialization failed", err)
	}
	if svc.Logger == nil {
		svc.Logger = zap.NewNop()
	}
	o.services = svc
	return svc, nil
}

func (o *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}
