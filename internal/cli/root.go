package cli

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string // overrides db_path from config
	Tenant     string // defaults to $BAKEHOUSE_TENANT
	User       string // defaults to $BAKEHOUSE_USER
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// formatter returns an OutputFormatter for cmd's writers.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// NewRootCommand creates the root command for the bakehouse CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bakehouse",
		Short: "Bakehouse - stock ledger for bakeries",
		Long: `A multi-tenant stock ledger for bakeries and small restaurants.

Every stock change is an append-only movement. Physical counts are
reconciled against the ledger through an open, submit and approve
workflow, and sales and production batches deduct stock as they happen.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output and debug logging")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	pf.StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	pf.StringVarP(&opts.Tenant, "tenant", "t", "", "tenant ID (default $BAKEHOUSE_TENANT)")
	pf.StringVarP(&opts.User, "user", "u", "", "acting user ID (default $BAKEHOUSE_USER)")

	cmd.AddCommand(
		NewInitCommand(opts),
		NewServeCommand(opts),
		NewTenantCommand(opts),
		NewMemberCommand(opts),
		NewCatalogCommand(opts),
		NewLocationCommand(opts),
		NewItemCommand(opts),
		NewStockCommand(opts),
		NewMoveCommand(opts),
		NewTransferCommand(opts),
		NewCountCommand(opts),
		NewSaleCommand(opts),
		NewProduceCommand(opts),
		NewVerifyCommand(opts),
		NewScenarioCommand(opts),
	)

	return cmd
}

// Execute runs the CLI with args and returns the process exit code.
// Errors are reported on stderr, or on stdout as a JSON envelope when
// --format json is in effect.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	if !slices.Contains(ValidFormats, opts.Format) {
		opts.Format = "text"
	}
	return opts.formatter(cmd).Report(err)
}
