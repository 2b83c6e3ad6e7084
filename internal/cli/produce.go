package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/production"
)

// ProduceOptions holds flags for the produce command.
type ProduceOptions struct {
	*RootOptions
	Location string
}

// NewProduceCommand creates the produce command.
func NewProduceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProduceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "produce <recipe> <output>",
		Short: "Log a production batch",
		Long: `Log a batch of a recipe. Ingredients are consumed in proportion to the
output and the product is added, all in one transaction.

Examples:
  bakehouse produce "Butter Croissant" 24 --location kitchen
  bakehouse produce recipes`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := parseQuantityArg("output", args[1])
			if err != nil {
				return err
			}
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				ctx := cmd.Context()
				rec, err := a.prod.ResolveRecipe(ctx, actor, args[0])
				if err != nil {
					return err
				}
				loc, err := a.inv.ResolveLocation(ctx, actor, opts.Location)
				if err != nil {
					return err
				}
				res, err := a.prod.LogBatch(ctx, actor, production.BatchInput{
					RecipeID:   rec.ID,
					LocationID: loc.ID,
					Output:     output,
				})
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(res, func(w io.Writer) {
					fmt.Fprintf(w, "Batch %s: %s x %s at %s\n", res.Batch.ID, output, rec.Name, loc.Name)
					printMovements(w, res.Movements)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&opts.Location, "location", "l", "", "location name or ID (default main)")

	recipes := &cobra.Command{
		Use:   "recipes",
		Short: "List recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				list, err := a.prod.ListRecipes(cmd.Context(), actor)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(list, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "NAME\tYIELD\tINGREDIENTS")
					for _, r := range list {
						fmt.Fprintf(tw, "%s\t%s\t%d\n", r.Name, r.Yield, len(r.Ingredients))
					}
					tw.Flush()
				})
			})
		},
	}
	cmd.AddCommand(recipes)
	return cmd
}
