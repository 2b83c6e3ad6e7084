package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/inventory"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/store"
)

// ItemOptions holds flags for the item commands.
type ItemOptions struct {
	*RootOptions
	Category     string
	All          bool
	Name         string
	Unit         string
	ReorderLevel ledger.Quantity
	CostCents    int64
}

// NewItemCommand creates the item command group.
func NewItemCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ItemOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage catalog items",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List items ordered by SKU",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := store.ItemFilter{ActiveOnly: !opts.All, Category: ledger.Category(opts.Category)}
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				items, err := a.inv.ListItems(cmd.Context(), actor, f)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(items, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "SKU\tNAME\tUNIT\tCATEGORY\tREORDER\tCOST")
					for _, it := range items {
						name := it.Name
						if !it.Active {
							name += " (inactive)"
						}
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
							it.SKU, name, it.Unit, it.Category, it.ReorderLevel, FormatMoney(it.UnitCostCents))
					}
					tw.Flush()
				})
			})
		},
	}
	list.Flags().StringVar(&opts.Category, "category", "", "only items of this category")
	list.Flags().BoolVar(&opts.All, "all", false, "include inactive items")

	add := &cobra.Command{
		Use:   "add <sku>",
		Short: "Create an item",
		Long: `Create an item. Most catalogs are imported with "catalog import";
this adds a single item by hand.

Examples:
  bakehouse item add RYE --name "Rye flour" --unit kg --reorder 5 --cost 180`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := inventory.ItemInput{
				SKU:           args[0],
				Name:          opts.Name,
				Unit:          ledger.Unit(opts.Unit),
				Category:      ledger.Category(opts.Category),
				ReorderLevel:  opts.ReorderLevel,
				UnitCostCents: ledger.Money(opts.CostCents),
			}
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				it, err := a.inv.CreateItem(cmd.Context(), actor, in)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(it, func(w io.Writer) {
					fmt.Fprintf(w, "Created %s (%s, %s)\n", it.SKU, it.Name, it.Unit)
				})
			})
		},
	}
	add.Flags().StringVar(&opts.Name, "name", "", "display name (required)")
	add.Flags().StringVar(&opts.Unit, "unit", "", "unit of measure: g, kg, ml, l or pcs (required)")
	add.Flags().StringVar(&opts.Category, "category", "", "ingredient, packaging, finished or other")
	add.Flags().Var(newQuantityValue(&opts.ReorderLevel), "reorder", "reorder level")
	add.Flags().Int64Var(&opts.CostCents, "cost", 0, "unit cost in cents")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("unit")

	deactivate := &cobra.Command{
		Use:   "deactivate <sku>",
		Short: "Hide an item from counts and new movements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				it, err := a.inv.ResolveItem(cmd.Context(), actor, args[0])
				if err != nil {
					return err
				}
				it, err = a.inv.DeactivateItem(cmd.Context(), actor, it.ID)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(it, func(w io.Writer) {
					fmt.Fprintf(w, "Deactivated %s\n", it.SKU)
				})
			})
		},
	}

	cmd.AddCommand(list, add, deactivate)
	return cmd
}
