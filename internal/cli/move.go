package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/inventory"
	"github.com/roach88/bakehouse/internal/ledger"
)

// MoveOptions holds flags for the move command.
type MoveOptions struct {
	*RootOptions
	Location  string
	Reason    string
	Reference string
	CostCents int64
}

// NewMoveCommand creates the move command.
func NewMoveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MoveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "move <purchase|usage|waste|adjustment> <sku> <quantity>",
		Short: "Record a stock movement",
		Long: `Record one movement against the ledger.

Purchase, usage and waste take a positive quantity. An adjustment keeps its
sign; put "--" before a negative quantity. Waste and adjustment need a reason.

Examples:
  bakehouse move purchase FLOUR 25 --cost 120 --reference INV-204
  bakehouse move waste CROISSANT 3 --reason "burnt tray"
  bakehouse move adjustment BUTTER --reason spoilage -- -0.5`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := ledger.ParseMovementType(args[0])
			if err != nil {
				return err
			}
			qty, err := parseQuantityArg("quantity", args[2])
			if err != nil {
				return err
			}
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				ctx := cmd.Context()
				it, err := a.inv.ResolveItem(ctx, actor, args[1])
				if err != nil {
					return err
				}
				loc, err := a.inv.ResolveLocation(ctx, actor, opts.Location)
				if err != nil {
					return err
				}
				m, err := a.inv.Record(ctx, actor, inventory.RecordInput{
					Type:          typ,
					ItemID:        it.ID,
					LocationID:    loc.ID,
					Quantity:      qty,
					Reason:        opts.Reason,
					Reference:     opts.Reference,
					UnitCostCents: ledger.Money(opts.CostCents),
				})
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(m, func(w io.Writer) {
					fmt.Fprintf(w, "#%d %s %s %s %s at %s, balance %s\n",
						m.Seq, m.Type, it.SKU, m.Delta, it.Unit, loc.Name, m.BalanceAfter)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Location, "location", "l", "", "location name or ID (default main)")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "reason, required for waste and adjustment")
	cmd.Flags().StringVar(&opts.Reference, "reference", "", "external reference such as an invoice number")
	cmd.Flags().Int64Var(&opts.CostCents, "cost", 0, "unit cost in cents (purchase)")
	return cmd
}

// TransferOptions holds flags for the transfer command.
type TransferOptions struct {
	*RootOptions
	From      string
	To        string
	Reference string
}

// NewTransferCommand creates the transfer command.
func NewTransferCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransferOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "transfer <sku> <quantity>",
		Short: "Move stock between two locations",
		Long: `Move stock between locations. Both legs are written together or not at all.

Examples:
  bakehouse transfer CROISSANT 24 --from kitchen --to shop`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseQuantityArg("quantity", args[1])
			if err != nil {
				return err
			}
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				ctx := cmd.Context()
				it, err := a.inv.ResolveItem(ctx, actor, args[0])
				if err != nil {
					return err
				}
				from, err := a.inv.ResolveLocation(ctx, actor, opts.From)
				if err != nil {
					return err
				}
				to, err := a.inv.ResolveLocation(ctx, actor, opts.To)
				if err != nil {
					return err
				}
				res, err := a.inv.Transfer(ctx, actor, inventory.TransferInput{
					ItemID:    it.ID,
					From:      from.ID,
					To:        to.ID,
					Quantity:  qty,
					Reference: opts.Reference,
				})
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(res, func(w io.Writer) {
					fmt.Fprintf(w, "Moved %s %s %s from %s (now %s) to %s (now %s)\n",
						qty, it.Unit, it.SKU, from.Name, res.Out.BalanceAfter, to.Name, res.In.BalanceAfter)
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "source location (required)")
	cmd.Flags().StringVar(&opts.To, "to", "", "destination location (required)")
	cmd.Flags().StringVar(&opts.Reference, "reference", "", "external reference")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
