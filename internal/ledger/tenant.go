package ledger

import "time"

// DefaultVarianceToleranceBP is the count variance (in basis points of the
// expected quantity) above which a report line is flagged.
const DefaultVarianceToleranceBP = 500

// Settings are per-tenant ledger policies.
type Settings struct {
	// AllowNegativeStock lets decreasing movements drive a balance below zero.
	AllowNegativeStock bool `json:"allow_negative_stock" yaml:"allow_negative_stock"`

	// VarianceToleranceBP flags count lines whose |variance| exceeds this
	// share of the expected quantity.
	VarianceToleranceBP int64 `json:"variance_tolerance_bp" yaml:"variance_tolerance_bp"`

	// RequireDistinctApprover forbids the submitter of a count from approving it.
	RequireDistinctApprover bool `json:"require_distinct_approver" yaml:"require_distinct_approver"`
}

// DefaultSettings returns the settings new tenants start with.
func DefaultSettings() Settings {
	return Settings{
		AllowNegativeStock:      false,
		VarianceToleranceBP:     DefaultVarianceToleranceBP,
		RequireDistinctApprover: true,
	}
}

// Tenant is an isolated bakery or restaurant.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Settings  Settings  `json:"settings"`
	LedgerSeq int64     `json:"ledger_seq"`
	CreatedAt time.Time `json:"created_at"`
}

// Member grants a user a role within a tenant.
type Member struct {
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
