package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/reconcile"
	"github.com/roach88/bakehouse/internal/store"
)

// CountOptions holds flags for the count commands.
type CountOptions struct {
	*RootOptions
	Location string
	Items    []string
	Note     string
	Digest   string
	Reason   string
	Status   string
}

// NewCountCommand creates the count command group.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Reconcile physical counts against the ledger",
		Long: `Physical counts move through open, pending and a final decision.

  count open       snapshot expected balances at a location
  count record     enter a counted quantity for one item
  count submit     freeze the count and produce the variance report
  count approve    write an adjustment for every variance
  count reject     close the count without touching stock
  count cancel     abandon an open count

Examples:
  bakehouse count open --location kitchen
  bakehouse count record <session> FLOUR 7.5
  bakehouse count submit <session>
  bakehouse count approve <session> --digest <digest>`,
	}

	open := &cobra.Command{
		Use:   "open",
		Short: "Open a count at a location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				ctx := cmd.Context()
				loc, err := a.inv.ResolveLocation(ctx, actor, opts.Location)
				if err != nil {
					return err
				}
				in := reconcile.OpenInput{LocationID: loc.ID, Note: opts.Note}
				for _, ref := range opts.Items {
					it, err := a.inv.ResolveItem(ctx, actor, ref)
					if err != nil {
						return err
					}
					in.ItemIDs = append(in.ItemIDs, it.ID)
				}
				sess, err := a.counts.Open(ctx, actor, in)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(sess, func(w io.Writer) {
					fmt.Fprintf(w, "Opened count %s at %s: %d items, snapshot at seq %d\n",
						sess.ID, loc.Name, len(sess.Lines), sess.SnapshotSeq)
				})
			})
		},
	}
	open.Flags().StringVarP(&opts.Location, "location", "l", "", "location name or ID (default main)")
	open.Flags().StringSliceVar(&opts.Items, "item", nil, "count only these SKUs (repeatable)")
	open.Flags().StringVar(&opts.Note, "note", "", "free-text note")

	record := &cobra.Command{
		Use:   "record <session-id> <sku> <quantity>",
		Short: "Record the counted quantity of an item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseQuantityArg("counted quantity", args[2])
			if err != nil {
				return err
			}
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				it, err := a.inv.ResolveItem(cmd.Context(), actor, args[1])
				if err != nil {
					return err
				}
				line, err := a.counts.RecordCount(cmd.Context(), actor, args[0], it.ID, qty)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(line, func(w io.Writer) {
					fmt.Fprintf(w, "%s counted %s %s\n", it.SKU, qty, it.Unit)
				})
			})
		},
	}

	submit := &cobra.Command{
		Use:   "submit <session-id>",
		Short: "Submit a count for approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				rep, err := a.counts.Submit(cmd.Context(), actor, args[0])
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(rep, func(w io.Writer) {
					printReport(w, rep)
				})
			})
		},
	}

	report := &cobra.Command{
		Use:   "report <session-id>",
		Short: "Show the variance report of a count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				rep, err := a.counts.Report(cmd.Context(), actor, args[0])
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(rep, func(w io.Writer) {
					printReport(w, rep)
				})
			})
		},
	}

	approve := &cobra.Command{
		Use:   "approve <session-id>",
		Short: "Approve a pending count and adjust stock",
		Long: `Approve a pending count. Every non-zero variance becomes an adjustment.

Pass --digest with the digest shown by "count report" to make sure the report
you reviewed is the one being approved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				dec, err := a.counts.Approve(cmd.Context(), actor, args[0], opts.Digest)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(dec, func(w io.Writer) {
					fmt.Fprintf(w, "Approved count %s: %d adjustments, net %s\n",
						dec.Session.ID, len(dec.Adjustments), FormatMoney(dec.Report.NetCents))
					if len(dec.Adjustments) > 0 {
						printMovements(w, dec.Adjustments)
					}
				})
			})
		},
	}
	approve.Flags().StringVar(&opts.Digest, "digest", "", "expected report digest")

	reject := &cobra.Command{
		Use:   "reject <session-id>",
		Short: "Reject a pending count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				dec, err := a.counts.Reject(cmd.Context(), actor, args[0], opts.Reason)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(dec, func(w io.Writer) {
					fmt.Fprintf(w, "Rejected count %s: %s\n", dec.Session.ID, dec.Session.DecisionReason)
				})
			})
		},
	}
	reject.Flags().StringVar(&opts.Reason, "reason", "", "why the count is rejected (required)")
	_ = reject.MarkFlagRequired("reason")

	cancel := &cobra.Command{
		Use:   "cancel <session-id>",
		Short: "Cancel an open count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				sess, err := a.counts.Cancel(cmd.Context(), actor, args[0])
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(sess, func(w io.Writer) {
					fmt.Fprintf(w, "Cancelled count %s\n", sess.ID)
				})
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List counts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), rootOpts, func(a *app, actor access.Actor) error {
				ctx := cmd.Context()
				f := store.SessionFilter{Status: ledger.CountStatus(opts.Status)}
				if opts.Location != "" {
					loc, err := a.inv.ResolveLocation(ctx, actor, opts.Location)
					if err != nil {
						return err
					}
					f.LocationID = loc.ID
				}
				sessions, err := a.counts.List(ctx, actor, f)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(sessions, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tSTATUS\tOPENED BY\tOPENED\tNOTE")
					for _, s := range sessions {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
							s.ID, s.Status, s.OpenedBy, s.OpenedAt.Format("2006-01-02 15:04"), s.Note)
					}
					tw.Flush()
				})
			})
		},
	}
	list.Flags().StringVar(&opts.Status, "status", "", "open, pending, approved, rejected or cancelled")
	list.Flags().StringVarP(&opts.Location, "location", "l", "", "location name or ID")

	cmd.AddCommand(open, record, submit, report, approve, reject, cancel, list)
	return cmd
}

// printReport renders a variance report for humans.
func printReport(w io.Writer, rep reconcile.Report) {
	fmt.Fprintf(w, "Count %s (%s), snapshot seq %d, tolerance %d bp\n",
		rep.SessionID, rep.Status, rep.SnapshotSeq, rep.ToleranceBP)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SKU\tEXPECTED\tCOUNTED\tVARIANCE\tVALUE\t")
	for _, l := range rep.Lines {
		flag := ""
		if l.Flagged {
			flag = "!"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			l.SKU, l.Expected, l.Counted, l.Variance, FormatMoney(l.ValueCents), flag)
	}
	for _, u := range rep.Uncounted {
		fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t\n", u.SKU, u.Expected)
	}
	tw.Flush()
	fmt.Fprintf(w, "Flagged %d, shrinkage %s, surplus %s, net %s\n",
		rep.Flagged, FormatMoney(rep.ShrinkageCents), FormatMoney(rep.SurplusCents), FormatMoney(rep.NetCents))
	fmt.Fprintf(w, "Digest %s\n", rep.Digest)
}
