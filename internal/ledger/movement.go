package ledger

import (
	"fmt"
	"strings"
	"time"
)

// MovementType identifies why stock changed.
type MovementType string

const (
	// MovementPurchase receives stock from a supplier. Always positive.
	MovementPurchase MovementType = "purchase"

	// MovementUsage consumes stock in the kitchen. Always negative.
	MovementUsage MovementType = "usage"

	// MovementWaste writes off spoiled or damaged stock. Always negative.
	MovementWaste MovementType = "waste"

	// MovementAdjustment corrects the balance in either direction.
	MovementAdjustment MovementType = "adjustment"

	// MovementTransfer moves stock between locations. Each transfer is a
	// negative leg at the source and a positive leg at the destination.
	MovementTransfer MovementType = "transfer"

	// MovementSale deducts sold goods. Always negative.
	MovementSale MovementType = "sale"

	// MovementProduction adds finished goods from a production batch. Always positive.
	MovementProduction MovementType = "production"
)

// MovementTypes lists every movement type in display order.
var MovementTypes = []MovementType{
	MovementPurchase,
	MovementUsage,
	MovementWaste,
	MovementAdjustment,
	MovementTransfer,
	MovementSale,
	MovementProduction,
}

// ParseMovementType parses a case-insensitive movement type name.
func ParseMovementType(s string) (MovementType, error) {
	t := MovementType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range MovementTypes {
		if t == known {
			return t, nil
		}
	}
	return "", NewValidationError(fmt.Sprintf("unknown movement type %q", s))
}

// sign returns +1 or -1 for directional types and 0 for types that carry
// their own sign.
func (t MovementType) sign() int {
	switch t {
	case MovementPurchase, MovementProduction:
		return 1
	case MovementUsage, MovementWaste, MovementSale:
		return -1
	default:
		return 0
	}
}

// RequiresReason reports whether movements of this type must explain themselves.
func (t MovementType) RequiresReason() bool {
	return t == MovementWaste || t == MovementAdjustment
}

// Movement is one append-only ledger entry.
type Movement struct {
	ID            string       `json:"id"`
	TenantID      string       `json:"tenant_id"`
	ItemID        string       `json:"item_id"`
	LocationID    string       `json:"location_id"`
	Type          MovementType `json:"type"`
	Delta         Quantity     `json:"delta"`
	BalanceAfter  Quantity     `json:"balance_after"`
	Seq           int64        `json:"seq"`
	Reason        string       `json:"reason,omitempty"`
	Reference     string       `json:"reference,omitempty"`
	TransferID    string       `json:"transfer_id,omitempty"`
	CountID       string       `json:"count_id,omitempty"`
	UnitCostCents Money        `json:"unit_cost_cents,omitempty"`
	CreatedBy     string       `json:"created_by"`
	CreatedAt     time.Time    `json:"created_at"`
}

// SignedDelta converts a user-entered quantity into the signed delta for t.
//
// Directional types take a positive magnitude. Adjustment keeps the sign it
// was given. Transfer deltas come from TransferLegs instead.
func SignedDelta(t MovementType, qty Quantity) (Quantity, error) {
	if qty == 0 {
		return 0, NewValidationError("quantity must be non-zero")
	}
	if !qty.InRange() {
		return 0, NewValidationError(fmt.Sprintf("quantity %s out of range (max %s)", qty, MaxQuantity))
	}
	switch t.sign() {
	case 1:
		if qty < 0 {
			return 0, NewValidationError(fmt.Sprintf("%s quantity must be positive", t))
		}
		return qty, nil
	case -1:
		if qty < 0 {
			return 0, NewValidationError(fmt.Sprintf("%s quantity must be positive", t))
		}
		return -qty, nil
	}
	if t == MovementTransfer {
		return 0, NewValidationError("transfers are recorded as a pair of legs")
	}
	return qty, nil
}

// TransferLegs builds the source (negative) and destination (positive)
// legs of a transfer. Both legs share transferID.
func TransferLegs(itemID, fromLocation, toLocation, transferID string, qty Quantity) (Movement, Movement, error) {
	if fromLocation == toLocation {
		return Movement{}, Movement{}, NewValidationError("transfer source and destination must differ")
	}
	if qty <= 0 {
		return Movement{}, Movement{}, NewValidationError("transfer quantity must be positive")
	}
	if transferID == "" {
		return Movement{}, Movement{}, NewValidationError("transfer id is required")
	}
	out := Movement{
		ItemID:     itemID,
		LocationID: fromLocation,
		Type:       MovementTransfer,
		Delta:      -qty,
		TransferID: transferID,
	}
	in := Movement{
		ItemID:     itemID,
		LocationID: toLocation,
		Type:       MovementTransfer,
		Delta:      qty,
		TransferID: transferID,
	}
	return out, in, nil
}

// ValidateMovement checks a movement before it is appended.
func ValidateMovement(m Movement) error {
	if m.ItemID == "" {
		return NewValidationError("item is required")
	}
	if m.LocationID == "" {
		return NewValidationError("location is required")
	}
	if m.Delta == 0 {
		return NewValidationError("delta must be non-zero")
	}
	switch m.Type.sign() {
	case 1:
		if m.Delta < 0 {
			return NewValidationError(fmt.Sprintf("%s delta must be positive", m.Type))
		}
	case -1:
		if m.Delta > 0 {
			return NewValidationError(fmt.Sprintf("%s delta must be negative", m.Type))
		}
	default:
		if _, err := ParseMovementType(string(m.Type)); err != nil {
			return err
		}
	}
	if m.Type.RequiresReason() && strings.TrimSpace(m.Reason) == "" {
		return NewValidationError(fmt.Sprintf("%s requires a reason", m.Type))
	}
	if m.Type == MovementTransfer && m.TransferID == "" {
		return NewValidationError("transfer leg requires a transfer id")
	}
	if m.UnitCostCents < 0 {
		return NewValidationError("unit cost must not be negative")
	}
	return nil
}

// Apply returns balance+delta, or INSUFFICIENT_STOCK when the result would
// be negative and allowNegative is false. Increases are always allowed.
// A result beyond MaxQuantity in either direction is a VALIDATION error,
// even when negative stock is allowed.
func Apply(itemID, locationID string, balance, delta Quantity, allowNegative bool) (Quantity, error) {
	if (delta > 0 && balance > MaxQuantity-delta) || (delta < 0 && balance < -MaxQuantity-delta) {
		return balance, &Error{
			Code:    ErrCodeValidation,
			Message: fmt.Sprintf("balance %s plus %s would exceed the limit of %s", balance, delta, MaxQuantity),
			Details: map[string]string{
				"item_id":     itemID,
				"location_id": locationID,
				"balance":     balance.String(),
				"delta":       delta.String(),
			},
		}
	}
	next := balance + delta
	if next < 0 && delta < 0 && !allowNegative {
		return balance, NewInsufficientStockError(itemID, locationID, balance, delta)
	}
	return next, nil
}
