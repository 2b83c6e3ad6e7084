package reconcile

import (
	"slices"
	"strings"

	"github.com/roach88/bakehouse/internal/canon"
	"github.com/roach88/bakehouse/internal/ledger"
)

// ReportLine is the variance of one counted item.
type ReportLine struct {
	ItemID        string          `json:"item_id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Unit          ledger.Unit     `json:"unit"`
	Expected      ledger.Quantity `json:"expected"`
	Counted       ledger.Quantity `json:"counted"`
	Variance      ledger.Quantity `json:"variance"`
	VarianceBP    int64           `json:"variance_bp"`
	UnitCostCents ledger.Money    `json:"unit_cost_cents"`
	ValueCents    ledger.Money    `json:"value_cents"`
	Flagged       bool            `json:"flagged"`
}

// UncountedLine is a snapshot item nobody counted. It is never adjusted.
type UncountedLine struct {
	ItemID   string          `json:"item_id"`
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Expected ledger.Quantity `json:"expected"`
}

// Report is the variance report of a count session.
type Report struct {
	SessionID      string             `json:"session_id"`
	TenantID       string             `json:"tenant_id"`
	LocationID     string             `json:"location_id"`
	Status         ledger.CountStatus `json:"status"`
	SnapshotSeq    int64              `json:"snapshot_seq"`
	ToleranceBP    int64              `json:"tolerance_bp"`
	Lines          []ReportLine       `json:"lines"`
	Uncounted      []UncountedLine    `json:"uncounted"`
	Flagged        int                `json:"flagged"`
	ShrinkageCents ledger.Money       `json:"shrinkage_cents"`
	SurplusCents   ledger.Money       `json:"surplus_cents"`
	NetCents       ledger.Money       `json:"net_cents"`
	Digest         string             `json:"digest"`
}

// Adjustable returns the lines that approval turns into movements.
func (r Report) Adjustable() []ReportLine {
	out := []ReportLine{}
	for _, l := range r.Lines {
		if l.Variance != 0 {
			out = append(out, l)
		}
	}
	return out
}

// BuildReport computes the variance report for a session.
//
// A line is flagged when |variance| exceeds toleranceBP basis points of the
// expected quantity, or when stock was found where none was expected.
// VarianceBP is 0 when expected is 0.
func BuildReport(sess ledger.CountSession, lines []ledger.CountLine, items map[string]ledger.Item, toleranceBP int64) (Report, error) {
	r := Report{
		SessionID:   sess.ID,
		TenantID:    sess.TenantID,
		LocationID:  sess.LocationID,
		Status:      sess.Status,
		SnapshotSeq: sess.SnapshotSeq,
		ToleranceBP: toleranceBP,
		Lines:       []ReportLine{},
		Uncounted:   []UncountedLine{},
	}

	for _, l := range lines {
		it := items[l.ItemID]
		if l.Counted == nil {
			r.Uncounted = append(r.Uncounted, UncountedLine{
				ItemID: l.ItemID, SKU: it.SKU, Name: it.Name, Expected: l.Expected,
			})
			continue
		}

		counted := *l.Counted
		line := ReportLine{
			ItemID:        l.ItemID,
			SKU:           it.SKU,
			Name:          it.Name,
			Unit:          it.Unit,
			Expected:      l.Expected,
			Counted:       counted,
			Variance:      counted - l.Expected,
			UnitCostCents: l.UnitCostCents,
		}
		line.ValueCents = line.Variance.Value(l.UnitCostCents)
		if l.Expected != 0 {
			line.VarianceBP = ledger.BasisPoints(line.Variance, l.Expected)
			line.Flagged = abs64(line.VarianceBP) > toleranceBP
		} else {
			line.Flagged = counted != 0
		}

		if line.Flagged {
			r.Flagged++
		}
		switch {
		case line.ValueCents < 0:
			r.ShrinkageCents -= line.ValueCents
		case line.ValueCents > 0:
			r.SurplusCents += line.ValueCents
		}
		r.Lines = append(r.Lines, line)
	}
	r.NetCents = r.SurplusCents - r.ShrinkageCents

	slices.SortFunc(r.Lines, func(a, b ReportLine) int {
		if c := strings.Compare(a.SKU, b.SKU); c != 0 {
			return c
		}
		return strings.Compare(a.ItemID, b.ItemID)
	})
	slices.SortFunc(r.Uncounted, func(a, b UncountedLine) int {
		if c := strings.Compare(a.SKU, b.SKU); c != 0 {
			return c
		}
		return strings.Compare(a.ItemID, b.ItemID)
	})

	digest, err := canon.Digest(canon.DomainVarianceReport, r)
	if err != nil {
		return Report{}, err
	}
	r.Digest = digest
	return r, nil
}

// Canonical is the digested form of the report. Status, display names and
// the digest itself are excluded: only what approval would write counts.
func (r Report) Canonical() map[string]any {
	lines := make([]any, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = map[string]any{
			"item_id":         l.ItemID,
			"expected":        int64(l.Expected),
			"counted":         int64(l.Counted),
			"variance":        int64(l.Variance),
			"variance_bp":     l.VarianceBP,
			"unit_cost_cents": int64(l.UnitCostCents),
			"value_cents":     int64(l.ValueCents),
			"flagged":         l.Flagged,
		}
	}
	uncounted := make([]any, len(r.Uncounted))
	for i, u := range r.Uncounted {
		uncounted[i] = map[string]any{
			"item_id":  u.ItemID,
			"expected": int64(u.Expected),
		}
	}
	return map[string]any{
		"session_id":      r.SessionID,
		"tenant_id":       r.TenantID,
		"location_id":     r.LocationID,
		"snapshot_seq":    r.SnapshotSeq,
		"tolerance_bp":    r.ToleranceBP,
		"lines":           lines,
		"uncounted":       uncounted,
		"shrinkage_cents": int64(r.ShrinkageCents),
		"surplus_cents":   int64(r.SurplusCents),
		"net_cents":       int64(r.NetCents),
	}
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
