package inventory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/service"
	"github.com/roach88/bakehouse/internal/store"
)

// Service is the inventory service for all tenants.
type Service struct {
	env service.Env
}

// New creates an inventory service.
func New(env service.Env) *Service {
	return &Service{env: env.Named("inventory")}
}

// ItemInput is the editable part of an item.
type ItemInput struct {
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Unit          ledger.Unit     `json:"unit"`
	Category      ledger.Category `json:"category"`
	ReorderLevel  ledger.Quantity `json:"reorder_level"`
	UnitCostCents ledger.Money    `json:"unit_cost_cents"`
}

func (in ItemInput) apply(it *ledger.Item) error {
	it.SKU = in.SKU
	it.Name = in.Name
	it.Unit = in.Unit
	it.Category = in.Category
	it.ReorderLevel = in.ReorderLevel
	it.UnitCostCents = in.UnitCostCents
	it.Normalize()
	return it.Validate()
}

// CreateItem adds an active item. The SKU must be unique within the tenant.
func (s *Service) CreateItem(ctx context.Context, actor access.Actor, in ItemInput) (ledger.Item, error) {
	if err := access.Require(actor, access.PermCatalogWrite); err != nil {
		return ledger.Item{}, err
	}
	now := s.env.Clock.Now()
	it := ledger.Item{ID: s.env.IDs.NewID(), TenantID: actor.TenantID, Active: true, CreatedAt: now, UpdatedAt: now}
	if err := in.apply(&it); err != nil {
		return ledger.Item{}, err
	}
	if err := s.env.Store.CreateItem(ctx, it); err != nil {
		return ledger.Item{}, err
	}
	s.env.Log.Info("item created", zap.String("tenant", actor.TenantID), zap.String("item", it.ID), zap.String("sku", it.SKU))
	return it, nil
}

// UpdateItem replaces an item's editable fields. Balances are untouched.
func (s *Service) UpdateItem(ctx context.Context, actor access.Actor, id string, in ItemInput) (ledger.Item, error) {
	if err := access.Require(actor, access.PermCatalogWrite); err != nil {
		return ledger.Item{}, err
	}
	it, err := s.env.Store.GetItem(ctx, actor.TenantID, id)
	if err != nil {
		return ledger.Item{}, err
	}
	if err := in.apply(&it); err != nil {
		return ledger.Item{}, err
	}
	it.UpdatedAt = s.env.Clock.Now()
	if err := s.env.Store.UpdateItem(ctx, it); err != nil {
		return ledger.Item{}, err
	}
	return it, nil
}

// DeactivateItem hides an item from new movements, counts and sales.
// Its history and balances are kept.
func (s *Service) DeactivateItem(ctx context.Context, actor access.Actor, id string) (ledger.Item, error) {
	if err := access.Require(actor, access.PermCatalogWrite); err != nil {
		return ledger.Item{}, err
	}
	it, err := s.env.Store.GetItem(ctx, actor.TenantID, id)
	if err != nil {
		return ledger.Item{}, err
	}
	if !it.Active {
		return it, nil
	}
	it.Active = false
	it.UpdatedAt = s.env.Clock.Now()
	if err := s.env.Store.UpdateItem(ctx, it); err != nil {
		return ledger.Item{}, err
	}
	s.env.Log.Info("item deactivated", zap.String("tenant", actor.TenantID), zap.String("item", id))
	return it, nil
}

// GetItem returns one item.
func (s *Service) GetItem(ctx context.Context, actor access.Actor, id string) (ledger.Item, error) {
	if err := access.Require(actor, access.PermStockRead); err != nil {
		return ledger.Item{}, err
	}
	return s.env.Store.GetItem(ctx, actor.TenantID, id)
}

// ListItems returns the tenant's items ordered by SKU.
func (s *Service) ListItems(ctx context.Context, actor access.Actor, f store.ItemFilter) ([]ledger.Item, error) {
	if err := access.Require(actor, access.PermStockRead); err != nil {
		return nil, err
	}
	return s.env.Store.ListItems(ctx, actor.TenantID, f)
}

// ResolveItem finds an item by ID, falling back to SKU.
func (s *Service) ResolveItem(ctx context.Context, actor access.Actor, ref string) (ledger.Item, error) {
	if err := access.Require(actor, access.PermStockRead); err != nil {
		return ledger.Item{}, err
	}
	it, err := s.env.Store.GetItem(ctx, actor.TenantID, ref)
	if ledger.IsCode(err, ledger.ErrCodeNotFound) {
		return s.env.Store.GetItemBySKU(ctx, actor.TenantID, ledger.NormalizeSKU(ref))
	}
	return it, err
}

// CreateLocation adds a named location.
func (s *Service) CreateLocation(ctx context.Context, actor access.Actor, name string) (ledger.Location, error) {
	if err := access.Require(actor, access.PermCatalogWrite); err != nil {
		return ledger.Location{}, err
	}
	name = strings.ToLower(ledger.NormalizeName(name))
	if name == "" {
		return ledger.Location{}, ledger.NewValidationError("location name is required")
	}
	loc := ledger.Location{ID: s.env.IDs.NewID(), TenantID: actor.TenantID, Name: name, CreatedAt: s.env.Clock.Now()}
	if err := s.env.Store.CreateLocation(ctx, loc); err != nil {
		return ledger.Location{}, err
	}
	s.env.Log.Info("location created", zap.String("tenant", actor.TenantID), zap.String("location", loc.ID), zap.String("name", name))
	return loc, nil
}

// ListLocations returns the tenant's locations ordered by name.
func (s *Service) ListLocations(ctx context.Context, actor access.Actor) ([]ledger.Location, error) {
	if err := access.Require(actor, access.PermStockRead); err != nil {
		return nil, err
	}
	return s.env.Store.ListLocations(ctx, actor.TenantID)
}

// ResolveLocation finds a location by ID, falling back to name.
// An empty ref resolves to the default location.
func (s *Service) ResolveLocation(ctx context.Context, actor access.Actor, ref string) (ledger.Location, error) {
	if err := access.Require(actor, access.PermStockRead); err != nil {
		return ledger.Location{}, err
	}
	if ref == "" {
		ref = ledger.DefaultLocationName
	}
	loc, err := s.env.Store.GetLocation(ctx, actor.TenantID, ref)
	if ledger.IsCode(err, ledger.ErrCodeNotFound) {
		return s.env.Store.GetLocationByName(ctx, actor.TenantID, strings.ToLower(ledger.NormalizeName(ref)))
	}
	return loc, err
}

// ActiveItem loads an item inside tx and rejects inactive ones with VALIDATION.
func ActiveItem(ctx context.Context, tx *store.Tx, tenantID, itemID string) (ledger.Item, error) {
	it, err := tx.GetItem(ctx, tenantID, itemID)
	if err != nil {
		return ledger.Item{}, err
	}
	if !it.Active {
		return ledger.Item{}, ledger.NewValidationError(fmt.Sprintf("item %q is inactive", it.SKU))
	}
	return it, nil
}
