package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/ledger"
)

// Scenario is a scripted day in a tenant's ledger.
// Steps run in order against a fresh database and the resulting trace and
// balances are checked by the assertions.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario demonstrates.
	Description string `yaml:"description"`

	// Tenant is created before any step runs, owned by user "owner".
	Tenant TenantSetup `yaml:"tenant"`

	// Members are added to the tenant by the owner.
	Members []MemberSetup `yaml:"members,omitempty"`

	// Catalog is a CUE file or directory imported by the owner before the
	// steps. Relative paths resolve against the scenario file.
	Catalog string `yaml:"catalog,omitempty"`

	// Steps are the ledger operations under test.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and balances.
	Assertions []Assertion `yaml:"assertions"`
}

// TenantSetup describes the scenario's tenant. Nil Settings uses the defaults.
type TenantSetup struct {
	ID       string           `yaml:"id"`
	Name     string           `yaml:"name,omitempty"`
	Settings *ledger.Settings `yaml:"settings,omitempty"`
}

// MemberSetup grants a user a role.
type MemberSetup struct {
	User string `yaml:"user"`
	Role string `yaml:"role"`
}

// Step is one ledger operation.
//
// Items are referenced by SKU and locations by name. Count steps after
// count_open act on the most recently opened session.
type Step struct {
	// Op is the operation, one of the Op* constants.
	Op string `yaml:"op"`

	// As is the acting user. Empty means "owner".
	As string `yaml:"as,omitempty"`

	Item      string          `yaml:"item,omitempty"`
	Location  string          `yaml:"location,omitempty"`
	From      string          `yaml:"from,omitempty"`
	To        string          `yaml:"to,omitempty"`
	Qty       ledger.Quantity `yaml:"qty,omitempty"`
	CostCents ledger.Money    `yaml:"cost_cents,omitempty"`
	Reason    string          `yaml:"reason,omitempty"`
	Channel   string          `yaml:"channel,omitempty"`
	Lines     []SaleStep      `yaml:"lines,omitempty"`
	Recipe    string          `yaml:"recipe,omitempty"`

	// Items restricts count_open to these SKUs.
	Items []string `yaml:"items,omitempty"`

	// Expect is the error code the step must fail with. Empty means success.
	Expect string `yaml:"expect,omitempty"`
}

// SaleStep is one line of a sale step.
type SaleStep struct {
	Item       string          `yaml:"item"`
	Qty        ledger.Quantity `yaml:"qty"`
	PriceCents ledger.Money    `yaml:"price_cents"`
}

// Step operations.
const (
	OpPurchase     = "purchase"
	OpUsage        = "usage"
	OpWaste        = "waste"
	OpAdjust       = "adjust"
	OpTransfer     = "transfer"
	OpSale         = "sale"
	OpProduce      = "produce"
	OpCountOpen    = "count_open"
	OpCountRecord  = "count_record"
	OpCountSubmit  = "count_submit"
	OpCountApprove = "count_approve"
	OpCountReject  = "count_reject"
	OpCountCancel  = "count_cancel"
)

var knownOps = map[string]bool{
	OpPurchase: true, OpUsage: true, OpWaste: true, OpAdjust: true,
	OpTransfer: true, OpSale: true, OpProduce: true,
	OpCountOpen: true, OpCountRecord: true, OpCountSubmit: true,
	OpCountApprove: true, OpCountReject: true, OpCountCancel: true,
}

// Assertion validates the trace or the final balances.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op and Outcome select trace events (trace_contains, trace_count).
	Op      string `yaml:"op,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`

	// Ops is the expected order of operations (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number of matching events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Item, Location and Qty describe an expected balance (balance).
	Item     string          `yaml:"item,omitempty"`
	Location string          `yaml:"location,omitempty"`
	Qty      ledger.Quantity `yaml:"qty,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertBalance       = "balance"
	AssertConsistent    = "ledger_consistent"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving the catalog path against
// baseDir before validation.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	// Strict field validation catches typos like "step:" vs "steps:".
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if sc.Catalog != "" && !filepath.IsAbs(sc.Catalog) && baseDir != "" {
		sc.Catalog = filepath.Join(baseDir, sc.Catalog)
	}

	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Tenant.ID == "" {
		return fmt.Errorf("tenant.id is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Catalog != "" {
		if _, err := os.Stat(s.Catalog); os.IsNotExist(err) {
			return fmt.Errorf("catalog not found: %s", s.Catalog)
		}
	}

	for i, m := range s.Members {
		if m.User == "" {
			return fmt.Errorf("members[%d]: user is required", i)
		}
		if _, err := access.ParseRole(m.Role); err != nil {
			return fmt.Errorf("members[%d]: %w", i, err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateStep checks the fields each operation needs.
func validateStep(index int, st *Step) error {
	if !knownOps[st.Op] {
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}
	need := func(ok bool, field string) error {
		if !ok {
			return fmt.Errorf("steps[%d]: %s is required for %s", index, field, st.Op)
		}
		return nil
	}

	var err error
	switch st.Op {
	case OpPurchase, OpUsage, OpWaste, OpAdjust:
		err = need(st.Item != "", "item")
	case OpTransfer:
		if err = need(st.Item != "", "item"); err == nil {
			err = need(st.From != "" && st.To != "", "from and to")
		}
	case OpSale:
		err = need(len(st.Lines) > 0, "lines")
	case OpProduce:
		err = need(st.Recipe != "", "recipe")
	case OpCountRecord:
		err = need(st.Item != "", "item")
	case OpCountReject:
		err = need(st.Reason != "", "reason")
	}
	if err != nil {
		return err
	}

	if st.Expect != "" {
		switch ledger.ErrorCode(st.Expect) {
		case ledger.ErrCodeNotFound, ledger.ErrCodeValidation, ledger.ErrCodeInsufficientStock,
			ledger.ErrCodeConflict, ledger.ErrCodeInvalidTransition, ledger.ErrCodeForbidden,
			ledger.ErrCodeStaleReport:
		default:
			return fmt.Errorf("steps[%d]: unknown error code %q", index, st.Expect)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertBalance:
		if a.Item == "" {
			return fmt.Errorf("assertions[%d]: item is required for balance", index)
		}
	case AssertConsistent:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
