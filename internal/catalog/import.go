package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/production"
	"github.com/roach88/bakehouse/internal/service"
	"github.com/roach88/bakehouse/internal/store"
)

// Result counts what an import changed.
type Result struct {
	LocationsCreated int `json:"locations_created"`
	ItemsCreated     int `json:"items_created"`
	ItemsUpdated     int `json:"items_updated"`
	ItemsUnchanged   int `json:"items_unchanged"`
	RecipesCreated   int `json:"recipes_created"`
	RecipesUnchanged int `json:"recipes_unchanged"`
}

// Importer applies catalogs to a tenant.
type Importer struct {
	env service.Env
}

// NewImporter creates an importer.
func NewImporter(env service.Env) *Importer {
	return &Importer{env: env.Named("catalog")}
}

// Import applies c in one transaction. Locations match by name, items by SKU
// and recipes by name, so importing the same catalog twice changes nothing.
// Existing recipes are never modified.
func (im *Importer) Import(ctx context.Context, actor access.Actor, c *Catalog) (Result, error) {
	if err := access.Require(actor, access.PermCatalogWrite); err != nil {
		return Result{}, err
	}

	var res Result
	now := im.env.Clock.Now()
	err := im.env.Store.WithTx(ctx, func(tx *store.Tx) error {
		for _, name := range c.Locations {
			_, err := tx.GetLocationByName(ctx, actor.TenantID, name)
			if err == nil {
				continue
			}
			if !ledger.IsCode(err, ledger.ErrCodeNotFound) {
				return err
			}
			loc := ledger.Location{ID: im.env.IDs.NewID(), TenantID: actor.TenantID, Name: name, CreatedAt: now}
			if err := tx.CreateLocation(ctx, loc); err != nil {
				return err
			}
			res.LocationsCreated++
		}

		ids := make(map[string]string, len(c.Items))
		for _, spec := range c.Items {
			id, changed, created, err := im.upsertItem(ctx, tx, actor.TenantID, spec)
			if err != nil {
				return fmt.Errorf("item %s: %w", spec.SKU, err)
			}
			ids[spec.SKU] = id
			switch {
			case created:
				res.ItemsCreated++
			case changed:
				res.ItemsUpdated++
			default:
				res.ItemsUnchanged++
			}
		}

		for _, spec := range c.Recipes {
			created, err := im.createRecipe(ctx, tx, actor.TenantID, spec, ids)
			if err != nil {
				return fmt.Errorf("recipe %q: %w", spec.Name, err)
			}
			if created {
				res.RecipesCreated++
			} else {
				res.RecipesUnchanged++
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	im.env.Log.Info("catalog imported",
		zap.String("tenant", actor.TenantID),
		zap.Int("locations_created", res.LocationsCreated),
		zap.Int("items_created", res.ItemsCreated),
		zap.Int("items_updated", res.ItemsUpdated),
		zap.Int("recipes_created", res.RecipesCreated),
	)
	return res, nil
}

func (im *Importer) upsertItem(ctx context.Context, tx *store.Tx, tenantID string, spec ItemSpec) (id string, changed, created bool, err error) {
	now := im.env.Clock.Now()
	it, err := tx.GetItemBySKU(ctx, tenantID, spec.SKU)
	if ledger.IsCode(err, ledger.ErrCodeNotFound) {
		it = ledger.Item{
			ID: im.env.IDs.NewID(), TenantID: tenantID, SKU: spec.SKU, Name: spec.Name,
			Unit: spec.Unit, Category: spec.Category, ReorderLevel: spec.ReorderLevel,
			UnitCostCents: spec.UnitCostCents, Active: true, CreatedAt: now, UpdatedAt: now,
		}
		it.Normalize()
		if err := it.Validate(); err != nil {
			return "", false, false, err
		}
		return it.ID, true, true, tx.CreateItem(ctx, it)
	}
	if err != nil {
		return "", false, false, err
	}

	next := it
	next.Name = spec.Name
	next.Unit = spec.Unit
	next.Category = spec.Category
	next.ReorderLevel = spec.ReorderLevel
	if spec.HasCost {
		next.UnitCostCents = spec.UnitCostCents
	}
	next.Normalize()
	if next == it {
		return it.ID, false, false, nil
	}
	if err := next.Validate(); err != nil {
		return "", false, false, err
	}
	next.UpdatedAt = now
	return it.ID, true, false, tx.UpdateItem(ctx, next)
}

func (im *Importer) createRecipe(ctx context.Context, tx *store.Tx, tenantID string, spec RecipeSpec, ids map[string]string) (bool, error) {
	if _, ok, err := tx.RecipeIDByName(ctx, tenantID, spec.Name); err != nil || ok {
		return false, err
	}

	resolve := func(sku string) (string, error) {
		if id, ok := ids[sku]; ok {
			return id, nil
		}
		it, err := tx.GetItemBySKU(ctx, tenantID, sku)
		if err != nil {
			return "", err
		}
		return it.ID, nil
	}

	in := production.RecipeInput{Name: spec.Name, Yield: spec.Yield}
	var err error
	if in.ProductItemID, err = resolve(spec.Product); err != nil {
		return false, &SchemaError{Field: "product", Message: err.Error(), Pos: spec.Pos}
	}
	for _, ing := range spec.Ingredients {
		id, err := resolve(ing.SKU)
		if err != nil {
			return false, &SchemaError{Field: "ingredients." + ing.SKU, Message: err.Error(), Pos: spec.Pos}
		}
		in.Ingredients = append(in.Ingredients, ledger.Ingredient{ItemID: id, Quantity: ing.Quantity})
	}
	if err := in.Validate(); err != nil {
		return false, err
	}

	return true, tx.CreateRecipe(ctx, ledger.Recipe{
		ID:            im.env.IDs.NewID(),
		TenantID:      tenantID,
		Name:          spec.Name,
		ProductItemID: in.ProductItemID,
		Yield:         in.Yield,
		Ingredients:   in.Ingredients,
		CreatedAt:     im.env.Clock.Now(),
	})
}
