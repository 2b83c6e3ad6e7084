package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bakehouse/internal/access"
)

// NewLocationCommand creates the location command group.
func NewLocationCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "location",
		Short: "Manage stock locations",
	}

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a location such as kitchen or freezer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				loc, err := a.inv.CreateLocation(cmd.Context(), actor, args[0])
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(loc, func(w io.Writer) {
					fmt.Fprintf(w, "Created location %s (%s)\n", loc.Name, loc.ID)
				})
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				locs, err := a.inv.ListLocations(cmd.Context(), actor)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(locs, func(w io.Writer) {
					for _, l := range locs {
						fmt.Fprintf(w, "%s\t%s\n", l.Name, l.ID)
					}
				})
			})
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}
