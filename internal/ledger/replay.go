package ledger

import "sort"

// StockKey identifies one running balance.
type StockKey struct {
	ItemID     string
	LocationID string
}

// Discrepancy is a movement whose recorded BalanceAfter disagrees with the
// fold of all earlier movements.
type Discrepancy struct {
	MovementID string   `json:"movement_id"`
	Seq        int64    `json:"seq"`
	ItemID     string   `json:"item_id"`
	LocationID string   `json:"location_id"`
	Recorded   Quantity `json:"recorded"`
	Expected   Quantity `json:"expected"`
}

// ReplayResult is the outcome of folding a ledger.
type ReplayResult struct {
	Balances      map[StockKey]Quantity
	LastSeq       int64
	Movements     int
	Discrepancies []Discrepancy
}

// Replay folds movements into balances in Seq order (ties broken by ID),
// checking each recorded BalanceAfter along the way.
//
// The input slice is not modified.
func Replay(movements []Movement) ReplayResult {
	ordered := make([]Movement, len(movements))
	copy(ordered, movements)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Seq != ordered[j].Seq {
			return ordered[i].Seq < ordered[j].Seq
		}
		return ordered[i].ID < ordered[j].ID
	})

	res := ReplayResult{
		Balances:      make(map[StockKey]Quantity),
		Discrepancies: []Discrepancy{},
	}
	for _, m := range ordered {
		key := StockKey{ItemID: m.ItemID, LocationID: m.LocationID}
		expected := res.Balances[key] + m.Delta
		res.Balances[key] = expected
		if m.BalanceAfter != expected {
			res.Discrepancies = append(res.Discrepancies, Discrepancy{
				MovementID: m.ID,
				Seq:        m.Seq,
				ItemID:     m.ItemID,
				LocationID: m.LocationID,
				Recorded:   m.BalanceAfter,
				Expected:   expected,
			})
		}
		if m.Seq > res.LastSeq {
			res.LastSeq = m.Seq
		}
		res.Movements++
	}
	return res
}

// Drift is a stored stock level that disagrees with the replayed ledger.
type Drift struct {
	ItemID     string   `json:"item_id"`
	LocationID string   `json:"location_id"`
	Stored     Quantity `json:"stored"`
	Replayed   Quantity `json:"replayed"`
}

// CompareLevels returns every stock level whose stored balance differs from
// the replayed balance, including replayed keys with no stored level.
// Results are sorted by item then location.
func CompareLevels(replayed map[StockKey]Quantity, levels []StockLevel) []Drift {
	drifts := []Drift{}
	seen := make(map[StockKey]bool, len(levels))
	for _, lvl := range levels {
		key := StockKey{ItemID: lvl.ItemID, LocationID: lvl.LocationID}
		seen[key] = true
		if want := replayed[key]; want != lvl.Balance {
			drifts = append(drifts, Drift{ItemID: lvl.ItemID, LocationID: lvl.LocationID, Stored: lvl.Balance, Replayed: want})
		}
	}
	for key, bal := range replayed {
		if !seen[key] && bal != 0 {
			drifts = append(drifts, Drift{ItemID: key.ItemID, LocationID: key.LocationID, Stored: 0, Replayed: bal})
		}
	}
	sort.Slice(drifts, func(i, j int) bool {
		if drifts[i].ItemID != drifts[j].ItemID {
			return drifts[i].ItemID < drifts[j].ItemID
		}
		return drifts[i].LocationID < drifts[j].LocationID
	})
	return drifts
}
