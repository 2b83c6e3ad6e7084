package ledger

import "time"

// Ingredient is the quantity of an item consumed per recipe yield.
type Ingredient struct {
	ItemID   string   `json:"item_id"`
	Quantity Quantity `json:"quantity"`
}

// Recipe turns ingredients into Yield units of a product item.
type Recipe struct {
	ID            string       `json:"id"`
	TenantID      string       `json:"tenant_id"`
	Name          string       `json:"name"`
	ProductItemID string       `json:"product_item_id"`
	Yield         Quantity     `json:"yield"`
	Ingredients   []Ingredient `json:"ingredients"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Batch is one logged production run.
type Batch struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	RecipeID   string    `json:"recipe_id"`
	LocationID string    `json:"location_id"`
	Output     Quantity  `json:"output"`
	ProducedBy string    `json:"produced_by"`
	ProducedAt time.Time `json:"produced_at"`
}

// Sale is one recorded sale ticket.
type Sale struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	LocationID string     `json:"location_id"`
	Channel    string     `json:"channel"`
	Lines      []SaleLine `json:"lines"`
	TotalCents Money      `json:"total_cents"`
	RecordedBy string     `json:"recorded_by"`
	OccurredAt time.Time  `json:"occurred_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// SaleLine is one item on a sale ticket.
type SaleLine struct {
	ItemID         string   `json:"item_id"`
	Quantity       Quantity `json:"quantity"`
	UnitPriceCents Money    `json:"unit_price_cents"`
}

// Total returns quantity × unit price for the line.
func (l SaleLine) Total() Money {
	return l.Quantity.Value(l.UnitPriceCents)
}
