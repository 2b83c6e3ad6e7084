package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/bakehouse/internal/ledger"
)

// CreateRecipe inserts a recipe and its ingredients.
// A duplicate recipe name within the tenant is a CONFLICT.
func (q *Queries) CreateRecipe(ctx context.Context, r ledger.Recipe) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO recipes (id, tenant_id, name, product_item_id, yield, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.TenantID, r.Name, r.ProductItemID, int64(r.Yield), formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("create recipe: %w", conflictOr(err, fmt.Sprintf("recipe %q already exists", r.Name)))
	}

	for _, ing := range r.Ingredients {
		_, err := q.q.ExecContext(ctx, `
			INSERT INTO recipe_ingredients (recipe_id, item_id, quantity)
			VALUES (?, ?, ?)
		`, r.ID, ing.ItemID, int64(ing.Quantity))
		if err != nil {
			return fmt.Errorf("create recipe ingredient: %w",
				conflictOr(err, fmt.Sprintf("ingredient %q listed twice", ing.ItemID)))
		}
	}
	return nil
}

// GetRecipe retrieves a recipe with its ingredients ordered by item ID.
func (q *Queries) GetRecipe(ctx context.Context, tenantID, id string) (ledger.Recipe, error) {
	var (
		r         ledger.Recipe
		yield     int64
		createdAt string
	)
	err := q.q.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, product_item_id, yield, created_at
		FROM recipes
		WHERE tenant_id = ? AND id = ?
	`, tenantID, id).Scan(&r.ID, &r.TenantID, &r.Name, &r.ProductItemID, &yield, &createdAt)
	if err != nil {
		return ledger.Recipe{}, fmt.Errorf("get recipe: %w", notFound(err, "recipe", id))
	}
	r.Yield = ledger.Quantity(yield)
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return ledger.Recipe{}, fmt.Errorf("get recipe: %w", err)
	}

	rows, err := q.q.QueryContext(ctx, `
		SELECT item_id, quantity
		FROM recipe_ingredients
		WHERE recipe_id = ?
		ORDER BY item_id COLLATE BINARY ASC
	`, id)
	if err != nil {
		return ledger.Recipe{}, fmt.Errorf("get recipe ingredients: %w", err)
	}
	defer rows.Close()

	r.Ingredients = []ledger.Ingredient{}
	for rows.Next() {
		var (
			ing ledger.Ingredient
			qty int64
		)
		if err := rows.Scan(&ing.ItemID, &qty); err != nil {
			return ledger.Recipe{}, fmt.Errorf("scan recipe ingredient: %w", err)
		}
		ing.Quantity = ledger.Quantity(qty)
		r.Ingredients = append(r.Ingredients, ing)
	}
	if err := rows.Err(); err != nil {
		return ledger.Recipe{}, fmt.Errorf("iterate recipe ingredients: %w", err)
	}
	return r, nil
}

// ListRecipeIDs returns a tenant's recipe IDs ordered by recipe name.
func (q *Queries) ListRecipeIDs(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id FROM recipes
		WHERE tenant_id = ?
		ORDER BY name COLLATE BINARY ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipes: %w", err)
	}
	return ids, nil
}

// InsertBatch records a production run.
func (q *Queries) InsertBatch(ctx context.Context, b ledger.Batch) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO production_batches (id, tenant_id, recipe_id, location_id, output, produced_by, produced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.TenantID, b.RecipeID, b.LocationID, int64(b.Output), b.ProducedBy, formatTime(b.ProducedAt))
	if err != nil {
		return fmt.Errorf("insert batch: %w", conflictOr(err, fmt.Sprintf("batch %q already exists", b.ID)))
	}
	return nil
}

// RecipeIDByName looks up a recipe by its exact name.
func (q *Queries) RecipeIDByName(ctx context.Context, tenantID, name string) (id string, ok bool, err error) {
	err = q.q.QueryRowContext(ctx, `
		SELECT id FROM recipes WHERE tenant_id = ? AND name = ?
	`, tenantID, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("recipe by name: %w", err)
	}
	return id, true, nil
}
