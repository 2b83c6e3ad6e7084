package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bakehouse/internal/access"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Replay the ledger and compare it with stored balances",
		Long: `Replay every movement of the tenant and check that each recorded
balance and each stored stock level matches the fold of the ledger.

Exit codes:
  0 - ledger is consistent
  1 - discrepancies or drift found
  2 - command error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				rep, err := a.inv.Verify(cmd.Context(), actor)
				if err != nil {
					return err
				}
				if err := rootOpts.formatter(cmd).Emit(rep, func(w io.Writer) {
					fmt.Fprintf(w, "%d movements, last seq %d, tenant seq %d\n", rep.Movements, rep.LastSeq, rep.TenantSeq)
					for _, d := range rep.Discrepancies {
						fmt.Fprintf(w, "  ✗ seq %d: recorded %s, expected %s\n", d.Seq, d.Recorded, d.Expected)
					}
					for _, d := range rep.Drift {
						fmt.Fprintf(w, "  ✗ %s@%s: stored %s, replayed %s\n", d.ItemID, d.LocationID, d.Stored, d.Replayed)
					}
					if rep.OK() {
						fmt.Fprintln(w, "✓ ledger is consistent")
					}
				}); err != nil {
					return err
				}
				if !rep.OK() {
					return NewExitError(ExitFailure, fmt.Sprintf("ledger inconsistent: %d discrepancies, %d drifted balances",
						len(rep.Discrepancies), len(rep.Drift)))
				}
				return nil
			})
		},
	}
}
