package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/store"
)

// StockOptions holds flags for the stock command.
type StockOptions struct {
	*RootOptions
	Location string
	Low      bool
	History  string
	Limit    int
}

// NewStockCommand creates the stock command.
func NewStockCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StockOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Show stock on hand",
		Long: `Show balances and their value at cost.

Examples:
  bakehouse stock                      # every location
  bakehouse stock --location kitchen   # one location
  bakehouse stock --low                # items at or below reorder level
  bakehouse stock --history FLOUR      # latest movements of one item`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				switch {
				case opts.Low:
					return runLowStock(cmd, a, actor)
				case opts.History != "":
					return runHistory(cmd, a, actor, opts)
				default:
					return runStockOnHand(cmd, a, actor, opts)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Location, "location", "l", "", "location name or ID (default all)")
	cmd.Flags().BoolVar(&opts.Low, "low", false, "list items at or below their reorder level")
	cmd.Flags().StringVar(&opts.History, "history", "", "show movements of this SKU")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum movements with --history")
	return cmd
}

func runStockOnHand(cmd *cobra.Command, a *app, actor access.Actor, opts *StockOptions) error {
	ctx := cmd.Context()
	locationID := ""
	if opts.Location != "" {
		loc, err := a.inv.ResolveLocation(ctx, actor, opts.Location)
		if err != nil {
			return err
		}
		locationID = loc.ID
	}
	rows, err := a.inv.StockOnHand(ctx, actor, locationID)
	if err != nil {
		return err
	}
	return opts.formatter(cmd).Emit(rows, func(w io.Writer) {
		if len(rows) == 0 {
			fmt.Fprintln(w, "No stock recorded")
			return
		}
		var total ledger.Money
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SKU\tNAME\tLOCATION\tBALANCE\tUNIT\tVALUE")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.SKU, r.Name, r.Location, r.Balance, r.Unit, FormatMoney(r.ValueCents))
			total += r.ValueCents
		}
		fmt.Fprintf(tw, "\t\t\t\t\t%s\n", FormatMoney(total))
		tw.Flush()
	})
}

func runLowStock(cmd *cobra.Command, a *app, actor access.Actor) error {
	rows, err := a.inv.LowStock(cmd.Context(), actor)
	if err != nil {
		return err
	}
	return a.opts.formatter(cmd).Emit(rows, func(w io.Writer) {
		if len(rows) == 0 {
			fmt.Fprintln(w, "Nothing below reorder level")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SKU\tNAME\tTOTAL\tREORDER\tSHORT\tUNIT")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.SKU, r.Name, r.Total, r.ReorderLevel, r.Shortfall, r.Unit)
		}
		tw.Flush()
	})
}

func runHistory(cmd *cobra.Command, a *app, actor access.Actor, opts *StockOptions) error {
	ctx := cmd.Context()
	it, err := a.inv.ResolveItem(ctx, actor, opts.History)
	if err != nil {
		return err
	}
	var moves []ledger.Movement
	if opts.Location == "" {
		moves, err = a.inv.History(ctx, actor, it.ID, opts.Limit)
	} else {
		loc, lerr := a.inv.ResolveLocation(ctx, actor, opts.Location)
		if lerr != nil {
			return lerr
		}
		moves, err = a.inv.Movements(ctx, actor, store.MovementFilter{ItemID: it.ID, LocationID: loc.ID})
	}
	if err != nil {
		return err
	}
	return opts.formatter(cmd).Emit(moves, func(w io.Writer) {
		printMovements(w, moves)
	})
}

// printMovements renders movements as a table in the order given.
func printMovements(w io.Writer, moves []ledger.Movement) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTYPE\tDELTA\tBALANCE\tBY\tREASON")
	for _, m := range moves {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			m.Seq, m.Type, m.Delta, m.BalanceAfter, m.CreatedBy, m.Reason)
	}
	tw.Flush()
}
