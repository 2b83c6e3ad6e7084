package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/tenancy"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the database",
		Long: `Create the SQLite database if it does not exist and apply migrations.

Examples:
  bakehouse init --db ./bakehouse.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, func(a *app) error {
				data := map[string]string{"db_path": a.cfg.DBPath}
				return rootOpts.formatter(cmd).Emit(data, func(w io.Writer) {
					fmt.Fprintf(w, "Database ready at %s\n", a.cfg.DBPath)
				})
			})
		},
	}
}

// TenantOptions holds flags for tenant create.
type TenantOptions struct {
	*RootOptions
	Name             string
	Owner            string
	AllowNegative    bool
	ToleranceBP      int64
	DistinctApprover bool
}

// NewTenantCommand creates the tenant command group.
func NewTenantCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}
	cmd.AddCommand(newTenantCreateCommand(rootOpts), newTenantShowCommand(rootOpts), newTenantSettingsCommand(rootOpts))
	return cmd
}

func newTenantCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TenantOptions{RootOptions: rootOpts}
	defaults := ledger.DefaultSettings()

	cmd := &cobra.Command{
		Use:   "create <tenant-id>",
		Short: "Create a tenant with its default location and owner",
		Long: `Create a tenant. The tenant gets a "main" location and the owner
becomes its first member.

Examples:
  bakehouse tenant create corner --name "Corner Bakery" --owner ana
  bakehouse tenant create corner --owner ana --allow-negative --tolerance-bp 300`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := ledger.Settings{
				AllowNegativeStock:      opts.AllowNegative,
				VarianceToleranceBP:     opts.ToleranceBP,
				RequireDistinctApprover: opts.DistinctApprover,
			}
			return withApp(rootOpts, func(a *app) error {
				t, err := a.tenancy.CreateTenant(cmd.Context(), tenancy.CreateTenantInput{
					ID:       args[0],
					Name:     opts.Name,
					Owner:    opts.Owner,
					Settings: &settings,
				})
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(t, func(w io.Writer) {
					fmt.Fprintf(w, "Created tenant %s (%s) owned by %s\n", t.ID, t.Name, opts.Owner)
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "display name (defaults to the ID)")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "user ID of the owner (required)")
	_ = cmd.MarkFlagRequired("owner")
	cmd.Flags().BoolVar(&opts.AllowNegative, "allow-negative", defaults.AllowNegativeStock, "allow balances below zero")
	cmd.Flags().Int64Var(&opts.ToleranceBP, "tolerance-bp", defaults.VarianceToleranceBP, "count variance tolerance in basis points")
	cmd.Flags().BoolVar(&opts.DistinctApprover, "distinct-approver", defaults.RequireDistinctApprover, "forbid approving your own count")
	return cmd
}

func newTenantShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current tenant and its settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				t, err := a.tenancy.Tenant(cmd.Context(), actor)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(t, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintf(tw, "Tenant:\t%s (%s)\n", t.ID, t.Name)
					fmt.Fprintf(tw, "Ledger seq:\t%d\n", t.LedgerSeq)
					fmt.Fprintf(tw, "Negative stock:\t%t\n", t.Settings.AllowNegativeStock)
					fmt.Fprintf(tw, "Variance tolerance:\t%d bp\n", t.Settings.VarianceToleranceBP)
					fmt.Fprintf(tw, "Distinct approver:\t%t\n", t.Settings.RequireDistinctApprover)
					tw.Flush()
				})
			})
		},
	}
}

func newTenantSettingsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TenantOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Change ledger policies (owner only)",
		Long: `Change ledger policies. Only the flags given are changed.

Examples:
  bakehouse tenant settings --tolerance-bp 250 -t corner -u ana
  bakehouse tenant settings --allow-negative=false -t corner -u ana`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				ctx := cmd.Context()
				t, err := a.tenancy.Tenant(ctx, actor)
				if err != nil {
					return err
				}
				st := t.Settings
				flags := cmd.Flags()
				if flags.Changed("allow-negative") {
					st.AllowNegativeStock = opts.AllowNegative
				}
				if flags.Changed("tolerance-bp") {
					st.VarianceToleranceBP = opts.ToleranceBP
				}
				if flags.Changed("distinct-approver") {
					st.RequireDistinctApprover = opts.DistinctApprover
				}
				if err := a.tenancy.UpdateSettings(ctx, actor, st); err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(st, func(w io.Writer) {
					fmt.Fprintf(w, "Updated settings of %s\n", t.ID)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&opts.AllowNegative, "allow-negative", false, "allow balances below zero")
	cmd.Flags().Int64Var(&opts.ToleranceBP, "tolerance-bp", 0, "count variance tolerance in basis points")
	cmd.Flags().BoolVar(&opts.DistinctApprover, "distinct-approver", false, "forbid approving your own count")
	return cmd
}

// NewMemberCommand creates the member command group.
func NewMemberCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage tenant members",
	}

	add := &cobra.Command{
		Use:   "add <user-id> <owner|manager|staff>",
		Short: "Grant a user a role (owner only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := access.ParseRole(args[1])
			if err != nil {
				return err
			}
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				m, err := a.tenancy.AddMember(cmd.Context(), actor, args[0], role)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(m, func(w io.Writer) {
					fmt.Fprintf(w, "%s is now %s of %s\n", m.UserID, m.Role, m.TenantID)
				})
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				members, err := a.tenancy.ListMembers(cmd.Context(), actor)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(members, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "USER\tROLE")
					for _, m := range members {
						fmt.Fprintf(tw, "%s\t%s\n", m.UserID, m.Role)
					}
					tw.Flush()
				})
			})
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}
