package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/bakehouse/internal/ledger"
)

// quantityValue is a flag holding a decimal quantity such as "2.5".
type quantityValue struct {
	q *ledger.Quantity
}

func newQuantityValue(q *ledger.Quantity) *quantityValue {
	return &quantityValue{q: q}
}

func (v *quantityValue) String() string {
	if v.q == nil {
		return "0"
	}
	return v.q.String()
}

func (v *quantityValue) Set(s string) error {
	q, err := ledger.ParseQuantity(s)
	if err != nil {
		return err
	}
	*v.q = q
	return nil
}

func (v *quantityValue) Type() string { return "quantity" }

// parseQuantityArg parses a positional quantity argument.
func parseQuantityArg(name, s string) (ledger.Quantity, error) {
	q, err := ledger.ParseQuantity(s)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, fmt.Sprintf("invalid %s", name), err)
	}
	return q, nil
}

// parseSaleLine parses "SKU=QTY@PRICE_CENTS", e.g. "CROISSANT=6@350".
func parseSaleLine(s string) (sku string, qty ledger.Quantity, price ledger.Money, err error) {
	sku, rest, ok := strings.Cut(s, "=")
	if !ok || sku == "" {
		return "", 0, 0, NewExitError(ExitCommandError, fmt.Sprintf("sale line %q: want SKU=QTY@PRICE_CENTS", s))
	}
	qtyText, priceText, ok := strings.Cut(rest, "@")
	if !ok {
		return "", 0, 0, NewExitError(ExitCommandError, fmt.Sprintf("sale line %q: missing @PRICE_CENTS", s))
	}
	if qty, err = parseQuantityArg("sale quantity", qtyText); err != nil {
		return "", 0, 0, err
	}
	cents, err := strconv.ParseInt(strings.TrimSpace(priceText), 10, 64)
	if err != nil {
		return "", 0, 0, WrapExitError(ExitCommandError, fmt.Sprintf("sale line %q: invalid price", s), err)
	}
	return strings.TrimSpace(sku), qty, ledger.Money(cents), nil
}
