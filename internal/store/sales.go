package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roach88/bakehouse/internal/ledger"
)

// InsertSale records a sale ticket and its lines.
// Stock movements for the lines are appended separately by the caller.
func (q *Queries) InsertSale(ctx context.Context, s ledger.Sale) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO sales (id, tenant_id, location_id, channel, total_cents, recorded_by, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ID, s.TenantID, s.LocationID, s.Channel, int64(s.TotalCents), s.RecordedBy,
		formatTime(s.OccurredAt), formatTime(s.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert sale: %w", conflictOr(err, fmt.Sprintf("sale %q already exists", s.ID)))
	}

	for i, l := range s.Lines {
		_, err := q.q.ExecContext(ctx, `
			INSERT INTO sale_lines (sale_id, line_no, item_id, quantity, unit_price_cents)
			VALUES (?, ?, ?, ?, ?)
		`, s.ID, i+1, l.ItemID, int64(l.Quantity), int64(l.UnitPriceCents))
		if err != nil {
			return fmt.Errorf("insert sale line %d: %w", i+1, err)
		}
	}
	return nil
}

// DailySales is one day's sales total for a tenant.
type DailySales struct {
	Day        string       `json:"day"`
	Tickets    int64        `json:"tickets"`
	TotalCents ledger.Money `json:"total_cents"`
}

// SalesSummary totals sales per UTC day in [from, to).
// Days without sales are omitted. Ordered by day ascending.
func (q *Queries) SalesSummary(ctx context.Context, tenantID string, from, to time.Time) ([]DailySales, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT substr(occurred_at, 1, 10) AS day, COUNT(*), SUM(total_cents)
		FROM sales
		WHERE tenant_id = ? AND occurred_at >= ? AND occurred_at < ?
		GROUP BY day
		ORDER BY day ASC
	`, tenantID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("sales summary: %w", err)
	}
	defer rows.Close()

	days := []DailySales{}
	for rows.Next() {
		var (
			d     DailySales
			total int64
		)
		if err := rows.Scan(&d.Day, &d.Tickets, &total); err != nil {
			return nil, fmt.Errorf("scan sales summary: %w", err)
		}
		d.TotalCents = ledger.Money(total)
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales summary: %w", err)
	}
	return days, nil
}

// ItemSales is the quantity and revenue of one item over a period.
type ItemSales struct {
	ItemID     string          `json:"item_id"`
	Quantity   ledger.Quantity `json:"quantity"`
	TotalCents ledger.Money    `json:"total_cents"`
}

// TopSellers ranks items by revenue in [from, to), highest first.
// Revenue is summed per line so rounding matches ledger.SaleLine.Total.
func (q *Queries) TopSellers(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]ItemSales, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT l.item_id, l.quantity, l.unit_price_cents
		FROM sale_lines l
		JOIN sales s ON s.id = l.sale_id
		WHERE s.tenant_id = ? AND s.occurred_at >= ? AND s.occurred_at < ?
	`, tenantID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("top sellers: %w", err)
	}
	defer rows.Close()

	byItem := map[string]*ItemSales{}
	order := []string{}
	for rows.Next() {
		var (
			itemID     string
			qty, price int64
		)
		if err := rows.Scan(&itemID, &qty, &price); err != nil {
			return nil, fmt.Errorf("scan top sellers: %w", err)
		}
		agg, ok := byItem[itemID]
		if !ok {
			agg = &ItemSales{ItemID: itemID}
			byItem[itemID] = agg
			order = append(order, itemID)
		}
		line := ledger.SaleLine{ItemID: itemID, Quantity: ledger.Quantity(qty), UnitPriceCents: ledger.Money(price)}
		agg.Quantity += line.Quantity
		agg.TotalCents += line.Total()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top sellers: %w", err)
	}

	out := make([]ItemSales, 0, len(order))
	for _, id := range order {
		out = append(out, *byItem[id])
	}
	sortItemSales(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortItemSales(s []ItemSales) {
	slices.SortFunc(s, func(a, b ItemSales) int {
		if a.TotalCents != b.TotalCents {
			if a.TotalCents > b.TotalCents {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ItemID, b.ItemID)
	})
}
