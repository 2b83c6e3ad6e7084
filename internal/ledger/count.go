package ledger

import "time"

// CountStatus is the state of a physical count session.
type CountStatus string

const (
	// CountOpen accepts counted quantities.
	CountOpen CountStatus = "open"

	// CountPending has been submitted and awaits a manager decision.
	CountPending CountStatus = "pending"

	// CountApproved applied its variances as adjustment movements.
	CountApproved CountStatus = "approved"

	// CountRejected was declined; no movements were written.
	CountRejected CountStatus = "rejected"

	// CountCancelled was abandoned before submission.
	CountCancelled CountStatus = "cancelled"
)

var countTransitions = map[CountStatus][]CountStatus{
	CountOpen:    {CountPending, CountCancelled},
	CountPending: {CountApproved, CountRejected},
}

// CanTransition reports whether a session may move from one status to another.
func CanTransition(from, to CountStatus) bool {
	for _, next := range countTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s CountStatus) Terminal() bool {
	return len(countTransitions[s]) == 0
}

// ParseCountStatus parses a status name.
func ParseCountStatus(s string) (CountStatus, error) {
	switch st := CountStatus(s); st {
	case CountOpen, CountPending, CountApproved, CountRejected, CountCancelled:
		return st, nil
	}
	return "", NewValidationError("unknown count status " + s)
}

// CountSession is one physical count of a location.
type CountSession struct {
	ID             string      `json:"id"`
	TenantID       string      `json:"tenant_id"`
	LocationID     string      `json:"location_id"`
	Status         CountStatus `json:"status"`
	Note           string      `json:"note,omitempty"`
	SnapshotSeq    int64       `json:"snapshot_seq"`
	OpenedBy       string      `json:"opened_by"`
	OpenedAt       time.Time   `json:"opened_at"`
	SubmittedBy    string      `json:"submitted_by,omitempty"`
	SubmittedAt    *time.Time  `json:"submitted_at,omitempty"`
	DecidedBy      string      `json:"decided_by,omitempty"`
	DecidedAt      *time.Time  `json:"decided_at,omitempty"`
	DecisionReason string      `json:"decision_reason,omitempty"`
	ReportDigest   string      `json:"report_digest,omitempty"`
}

// CountLine is the expected and counted quantity of one item in a session.
// Counted is nil until someone records it.
type CountLine struct {
	SessionID     string     `json:"session_id"`
	ItemID        string     `json:"item_id"`
	Expected      Quantity   `json:"expected"`
	Counted       *Quantity  `json:"counted,omitempty"`
	UnitCostCents Money      `json:"unit_cost_cents"`
	CountedBy     string     `json:"counted_by,omitempty"`
	CountedAt     *time.Time `json:"counted_at,omitempty"`
}
