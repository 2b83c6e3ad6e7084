package ledger

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Unit is the unit of measure an item is stocked in.
type Unit string

const (
	UnitGram       Unit = "g"
	UnitKilogram   Unit = "kg"
	UnitMillilitre Unit = "ml"
	UnitLitre      Unit = "l"
	UnitPiece      Unit = "pcs"
)

// UnitsOfMeasure lists the supported units.
var UnitsOfMeasure = []Unit{UnitGram, UnitKilogram, UnitMillilitre, UnitLitre, UnitPiece}

// Category groups items for counts and reports.
type Category string

const (
	CategoryIngredient Category = "ingredient"
	CategoryPackaging  Category = "packaging"
	CategoryFinished   Category = "finished"
	CategoryOther      Category = "other"
)

// Categories lists the supported categories.
var Categories = []Category{CategoryIngredient, CategoryPackaging, CategoryFinished, CategoryOther}

var skuPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9._-]{0,39}$`)

// Item is a stocked inventory item.
type Item struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	Unit          Unit      `json:"unit"`
	Category      Category  `json:"category"`
	ReorderLevel  Quantity  `json:"reorder_level"`
	UnitCostCents Money     `json:"unit_cost_cents"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Location is a place stock is kept (kitchen, front shop, freezer).
type Location struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultLocationName is created for every new tenant.
const DefaultLocationName = "main"

// StockLevel is the running balance of one item at one location.
type StockLevel struct {
	ItemID     string    `json:"item_id"`
	LocationID string    `json:"location_id"`
	Balance    Quantity  `json:"balance"`
	LastSeq    int64     `json:"last_seq"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NormalizeSKU upper-cases and trims a SKU.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// NormalizeName trims, collapses inner whitespace and NFC-normalizes a
// display name so visually identical names compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.Join(strings.Fields(name), " "))
}

// Normalize applies SKU and name normalization in place.
func (it *Item) Normalize() {
	it.SKU = NormalizeSKU(it.SKU)
	it.Name = NormalizeName(it.Name)
	it.Unit = Unit(strings.ToLower(strings.TrimSpace(string(it.Unit))))
	it.Category = Category(strings.ToLower(strings.TrimSpace(string(it.Category))))
	if it.Category == "" {
		it.Category = CategoryIngredient
	}
}

// Validate checks a normalized item.
func (it Item) Validate() error {
	if !skuPattern.MatchString(it.SKU) {
		return NewValidationError(fmt.Sprintf("invalid sku %q", it.SKU))
	}
	if it.Name == "" {
		return NewValidationError("name is required")
	}
	if !containsUnit(it.Unit) {
		return NewValidationError(fmt.Sprintf("unknown unit %q", it.Unit))
	}
	if !containsCategory(it.Category) {
		return NewValidationError(fmt.Sprintf("unknown category %q", it.Category))
	}
	if it.ReorderLevel < 0 {
		return NewValidationError("reorder level must not be negative")
	}
	if it.UnitCostCents < 0 {
		return NewValidationError("unit cost must not be negative")
	}
	return nil
}

func containsUnit(u Unit) bool {
	for _, known := range UnitsOfMeasure {
		if u == known {
			return true
		}
	}
	return false
}

func containsCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
