// Package production manages recipes and logs production batches.
//
// A batch consumes scaled recipe ingredients and adds the finished product
// at one location. Either every movement of a batch lands or none does.
package production

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/inventory"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/service"
	"github.com/roach88/bakehouse/internal/store"
)

// Service manages recipes and batches for all tenants.
type Service struct {
	env service.Env
}

// New creates a production service.
func New(env service.Env) *Service {
	return &Service{env: env.Named("production")}
}

// RecipeInput describes a new recipe.
type RecipeInput struct {
	Name          string              `json:"name" yaml:"name"`
	ProductItemID string              `json:"product_item_id" yaml:"product"`
	Yield         ledger.Quantity     `json:"yield" yaml:"yield"`
	Ingredients   []ledger.Ingredient `json:"ingredients" yaml:"ingredients"`
}

// Validate checks the recipe shape without touching the store.
func (in RecipeInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ledger.NewValidationError("recipe name is required")
	}
	if in.ProductItemID == "" {
		return ledger.NewValidationError("recipe product is required")
	}
	if in.Yield <= 0 {
		return ledger.NewValidationError("recipe yield must be positive")
	}
	if len(in.Ingredients) == 0 {
		return ledger.NewValidationError("recipe needs at least one ingredient")
	}
	seen := make(map[string]bool, len(in.Ingredients))
	for _, ing := range in.Ingredients {
		switch {
		case ing.ItemID == in.ProductItemID:
			return ledger.NewValidationError("recipe product cannot be its own ingredient")
		case seen[ing.ItemID]:
			return ledger.NewValidationError(fmt.Sprintf("ingredient %q listed twice", ing.ItemID))
		case ing.Quantity <= 0:
			return ledger.NewValidationError(fmt.Sprintf("ingredient %q quantity must be positive", ing.ItemID))
		}
		seen[ing.ItemID] = true
	}
	return nil
}

// CreateRecipe stores a recipe after checking every referenced item is active.
func (s *Service) CreateRecipe(ctx context.Context, actor access.Actor, in RecipeInput) (ledger.Recipe, error) {
	if err := access.Require(actor, access.PermCatalogWrite); err != nil {
		return ledger.Recipe{}, err
	}
	if err := in.Validate(); err != nil {
		return ledger.Recipe{}, err
	}

	r := ledger.Recipe{
		ID:            s.env.IDs.NewID(),
		TenantID:      actor.TenantID,
		Name:          ledger.NormalizeName(in.Name),
		ProductItemID: in.ProductItemID,
		Yield:         in.Yield,
		Ingredients:   in.Ingredients,
		CreatedAt:     s.env.Clock.Now(),
	}
	err := s.env.Store.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := inventory.ActiveItem(ctx, tx, actor.TenantID, r.ProductItemID); err != nil {
			return err
		}
		for _, ing := range r.Ingredients {
			if _, err := inventory.ActiveItem(ctx, tx, actor.TenantID, ing.ItemID); err != nil {
				return err
			}
		}
		return tx.CreateRecipe(ctx, r)
	})
	if err != nil {
		return ledger.Recipe{}, err
	}

	s.env.Log.Info("recipe created",
		zap.String("tenant", actor.TenantID),
		zap.String("recipe", r.ID),
		zap.String("name", r.Name),
		zap.Int("ingredients", len(r.Ingredients)),
	)
	return s.env.Store.GetRecipe(ctx, actor.TenantID, r.ID)
}

// GetRecipe returns one recipe with its ingredients.
func (s *Service) GetRecipe(ctx context.Context, actor access.Actor, id string) (ledger.Recipe, error) {
	if err := access.Require(actor, access.PermStockRead); err != nil {
		return ledger.Recipe{}, err
	}
	return s.env.Store.GetRecipe(ctx, actor.TenantID, id)
}

// ResolveRecipe finds a recipe by ID, falling back to its name.
func (s *Service) ResolveRecipe(ctx context.Context, actor access.Actor, ref string) (ledger.Recipe, error) {
	if err := access.Require(actor, access.PermStockRead); err != nil {
		return ledger.Recipe{}, err
	}
	r, err := s.env.Store.GetRecipe(ctx, actor.TenantID, ref)
	if !ledger.IsCode(err, ledger.ErrCodeNotFound) {
		return r, err
	}
	name := ledger.NormalizeName(ref)
	id, ok, err := s.env.Store.RecipeIDByName(ctx, actor.TenantID, name)
	if err != nil {
		return ledger.Recipe{}, err
	}
	if !ok {
		return ledger.Recipe{}, ledger.NewNotFoundError("recipe", name)
	}
	return s.env.Store.GetRecipe(ctx, actor.TenantID, id)
}

// ListRecipes returns a tenant's recipes ordered by name.
func (s *Service) ListRecipes(ctx context.Context, actor access.Actor) ([]ledger.Recipe, error) {
	if err := access.Require(actor, access.PermStockRead); err != nil {
		return nil, err
	}
	ids, err := s.env.Store.ListRecipeIDs(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Recipe, 0, len(ids))
	for _, id := range ids {
		r, err := s.env.Store.GetRecipe(ctx, actor.TenantID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// BatchInput is one production run of a recipe.
type BatchInput struct {
	RecipeID   string          `json:"recipe_id"`
	LocationID string          `json:"location_id"`
	Output     ledger.Quantity `json:"output"`
}

// BatchResult is a logged batch and its movements. The product movement is last.
type BatchResult struct {
	Batch     ledger.Batch      `json:"batch"`
	Movements []ledger.Movement `json:"movements"`
}

// Plan returns the ingredient quantities consumed by producing output of r.
// Each is ingredient × output / yield rounded half away from zero.
func Plan(r ledger.Recipe, output ledger.Quantity) []ledger.Ingredient {
	out := make([]ledger.Ingredient, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		out = append(out, ledger.Ingredient{
			ItemID:   ing.ItemID,
			Quantity: ing.Quantity.Scale(output, r.Yield),
		})
	}
	return out
}

// LogBatch consumes the scaled ingredients and adds the product at the
// location in one transaction. Any ingredient short of stock aborts the batch.
func (s *Service) LogBatch(ctx context.Context, actor access.Actor, in BatchInput) (BatchResult, error) {
	if err := access.Require(actor, access.PermProductionWrite); err != nil {
		return BatchResult{}, err
	}
	if in.Output <= 0 {
		return BatchResult{}, ledger.NewValidationError("batch output must be positive")
	}

	now := s.env.Clock.Now()
	var res BatchResult
	err := s.env.Store.WithTx(ctx, func(tx *store.Tx) error {
		r, err := tx.GetRecipe(ctx, actor.TenantID, in.RecipeID)
		if err != nil {
			return err
		}
		if _, err := tx.GetLocation(ctx, actor.TenantID, in.LocationID); err != nil {
			return err
		}
		product, err := inventory.ActiveItem(ctx, tx, actor.TenantID, r.ProductItemID)
		if err != nil {
			return err
		}

		batch := ledger.Batch{
			ID:         s.env.IDs.NewID(),
			TenantID:   actor.TenantID,
			RecipeID:   r.ID,
			LocationID: in.LocationID,
			Output:     in.Output,
			ProducedBy: actor.UserID,
			ProducedAt: now,
		}
		if err := tx.InsertBatch(ctx, batch); err != nil {
			return err
		}

		movements := make([]ledger.Movement, 0, len(r.Ingredients)+1)
		for _, need := range Plan(r, in.Output) {
			if need.Quantity == 0 {
				return ledger.NewValidationError(fmt.Sprintf("batch output too small to consume ingredient %q", need.ItemID))
			}
			it, err := inventory.ActiveItem(ctx, tx, actor.TenantID, need.ItemID)
			if err != nil {
				return err
			}
			m := s.env.Stamp(ledger.Movement{
				ItemID:        it.ID,
				LocationID:    in.LocationID,
				Type:          ledger.MovementUsage,
				Delta:         -need.Quantity,
				Reason:        "production " + r.Name,
				Reference:     batch.ID,
				UnitCostCents: it.UnitCostCents,
			}, actor, now)
			out, err := tx.AppendMovement(ctx, m, store.AppendOptions{})
			if err != nil {
				return err
			}
			movements = append(movements, out)
		}

		m := s.env.Stamp(ledger.Movement{
			ItemID:        product.ID,
			LocationID:    in.LocationID,
			Type:          ledger.MovementProduction,
			Delta:         in.Output,
			Reference:     batch.ID,
			UnitCostCents: product.UnitCostCents,
		}, actor, now)
		out, err := tx.AppendMovement(ctx, m, store.AppendOptions{})
		if err != nil {
			return err
		}
		res = BatchResult{Batch: batch, Movements: append(movements, out)}
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}

	s.env.Committed("production movement", res.Movements...)
	s.env.Log.Info("batch logged",
		zap.String("tenant", actor.TenantID),
		zap.String("batch", res.Batch.ID),
		zap.String("recipe", res.Batch.RecipeID),
		zap.Stringer("output", res.Batch.Output),
	)
	return res, nil
}
