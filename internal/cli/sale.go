package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/sales"
	"github.com/roach88/bakehouse/internal/store"
)

// dateLayout is the layout of --from and --to.
const dateLayout = "2006-01-02"

// SaleOptions holds flags for the sale commands.
type SaleOptions struct {
	*RootOptions
	Location string
	Channel  string
	From     string
	To       string
}

// NewSaleCommand creates the sale command.
func NewSaleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sale <SKU=QTY@PRICE_CENTS>...",
		Short: "Record a sale and deduct its items from stock",
		Long: `Record one sale ticket. Each line is SKU=QTY@PRICE_CENTS. The whole
ticket is rejected if any line cannot be covered by stock.

Examples:
  bakehouse sale CROISSANT=6@350 BAGUETTE=2@290 --location shop
  bakehouse sale summary --from 2025-03-01 --to 2025-03-08`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			type parsed struct {
				sku   string
				qty   ledger.Quantity
				price ledger.Money
			}
			entries := make([]parsed, 0, len(args))
			for _, arg := range args {
				sku, qty, price, err := parseSaleLine(arg)
				if err != nil {
					return err
				}
				entries = append(entries, parsed{sku, qty, price})
			}

			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				ctx := cmd.Context()
				loc, err := a.inv.ResolveLocation(ctx, actor, opts.Location)
				if err != nil {
					return err
				}
				in := sales.RecordInput{LocationID: loc.ID, Channel: opts.Channel}
				for _, e := range entries {
					it, err := a.inv.ResolveItem(ctx, actor, e.sku)
					if err != nil {
						return err
					}
					in.Lines = append(in.Lines, ledger.SaleLine{ItemID: it.ID, Quantity: e.qty, UnitPriceCents: e.price})
				}
				rc, err := a.sales.Record(ctx, actor, in)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(rc, func(w io.Writer) {
					fmt.Fprintf(w, "Sale %s at %s: %d lines, total %s\n",
						rc.Sale.ID, loc.Name, len(rc.Sale.Lines), FormatMoney(rc.Sale.TotalCents))
				})
			})
		},
	}
	cmd.Flags().StringVarP(&opts.Location, "location", "l", "", "location name or ID (default main)")
	cmd.Flags().StringVar(&opts.Channel, "channel", "", "sales channel, e.g. counter or wholesale")

	cmd.AddCommand(newSaleSummaryCommand(opts))
	return cmd
}

func newSaleSummaryCommand(opts *SaleOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Total sales per day and per item",
		Long:  `Total sales in [from, to). Dates are UTC days in YYYY-MM-DD form.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := time.Parse(dateLayout, opts.From)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --from", err)
			}
			to, err := time.Parse(dateLayout, opts.To)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --to", err)
			}
			return withActor(cmd.Context(), opts.RootOptions, func(a *app, actor access.Actor) error {
				ctx := cmd.Context()
				sum, err := a.sales.Summary(ctx, actor, from, to)
				if err != nil {
					return err
				}
				skus, err := itemSKUs(cmd, a, actor, sum.Items)
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Emit(sum, func(w io.Writer) {
					fmt.Fprintf(w, "%s to %s: %d tickets, %s\n",
						opts.From, opts.To, sum.Tickets, FormatMoney(sum.TotalCents))
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "DAY\tTICKETS\tTOTAL")
					for _, d := range sum.Days {
						fmt.Fprintf(tw, "%s\t%d\t%s\n", d.Day, d.Tickets, FormatMoney(d.TotalCents))
					}
					fmt.Fprintln(tw, "\t\t")
					fmt.Fprintln(tw, "SKU\tQUANTITY\tTOTAL")
					for _, it := range sum.Items {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", skus[it.ItemID], it.Quantity, FormatMoney(it.TotalCents))
					}
					tw.Flush()
				})
			})
		},
	}
	cmd.Flags().StringVar(&opts.From, "from", "", "first day, inclusive (required)")
	cmd.Flags().StringVar(&opts.To, "to", "", "last day, exclusive (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// itemSKUs maps the items of a sales summary to their SKUs.
func itemSKUs(cmd *cobra.Command, a *app, actor access.Actor, rows []store.ItemSales) (map[string]string, error) {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ItemID
	}
	out := make(map[string]string, len(rows))
	if len(ids) == 0 {
		return out, nil
	}
	items, err := a.inv.ListItems(cmd.Context(), actor, store.ItemFilter{IDs: ids})
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.ID] = it.SKU
	}
	return out, nil
}
