package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/service"
	"github.com/roach88/bakehouse/internal/store"
)

// NewEnv opens a fresh store in t.TempDir() and returns a deterministic
// service environment: StepClock from Epoch, SequentialIDs, test logger.
func NewEnv(t testing.TB) service.Env {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return service.New(s,
		service.WithClock(NewStepClock(Epoch, time.Second)),
		service.WithIDs(NewSequentialIDs("id")),
		service.WithLogger(zaptest.NewLogger(t)),
	)
}

// Tenant is a seeded tenant with one actor per role.
type Tenant struct {
	ID       string
	MainID   string
	Owner    access.Actor
	Manager  access.Actor
	Manager2 access.Actor
	Staff    access.Actor
}

// SeedTenant creates a tenant with a "main" location and members
// owner/manager/manager2/staff.
func SeedTenant(t testing.TB, env service.Env, tenantID string, settings ledger.Settings) Tenant {
	t.Helper()
	ctx := context.Background()
	now := env.Clock.Now()

	if err := env.Store.CreateTenant(ctx, ledger.Tenant{ID: tenantID, Name: tenantID, Settings: settings, CreatedAt: now}); err != nil {
		t.Fatalf("CreateTenant() failed: %v", err)
	}
	main := ledger.Location{ID: tenantID + "-main", TenantID: tenantID, Name: ledger.DefaultLocationName, CreatedAt: now}
	if err := env.Store.CreateLocation(ctx, main); err != nil {
		t.Fatalf("CreateLocation() failed: %v", err)
	}

	tn := Tenant{ID: tenantID, MainID: main.ID}
	members := []struct {
		actor *access.Actor
		user  string
		role  access.Role
	}{
		{&tn.Owner, "owner", access.RoleOwner},
		{&tn.Manager, "manager", access.RoleManager},
		{&tn.Manager2, "manager2", access.RoleManager},
		{&tn.Staff, "staff", access.RoleStaff},
	}
	for _, m := range members {
		if err := env.Store.UpsertMember(ctx, ledger.Member{TenantID: tenantID, UserID: m.user, Role: string(m.role), CreatedAt: now}); err != nil {
			t.Fatalf("UpsertMember(%s) failed: %v", m.user, err)
		}
		*m.actor = access.Actor{TenantID: tenantID, UserID: m.user, Role: m.role}
	}
	return tn
}

// SeedItem inserts an active item with SKU sku and ID "<tenant>-<sku>".
func SeedItem(t testing.TB, env service.Env, tenantID, sku string, unit ledger.Unit, reorder ledger.Quantity, costCents ledger.Money) ledger.Item {
	t.Helper()
	now := env.Clock.Now()
	it := ledger.Item{
		ID: tenantID + "-" + sku, TenantID: tenantID, SKU: sku, Name: sku, Unit: unit,
		Category: ledger.CategoryIngredient, ReorderLevel: reorder, UnitCostCents: costCents,
		Active: true, CreatedAt: now, UpdatedAt: now,
	}
	if err := env.Store.CreateItem(context.Background(), it); err != nil {
		t.Fatalf("CreateItem(%s) failed: %v", sku, err)
	}
	return it
}

// SeedLocation inserts a location with ID "<tenant>-<name>".
func SeedLocation(t testing.TB, env service.Env, tenantID, name string) ledger.Location {
	t.Helper()
	loc := ledger.Location{ID: tenantID + "-" + name, TenantID: tenantID, Name: name, CreatedAt: env.Clock.Now()}
	if err := env.Store.CreateLocation(context.Background(), loc); err != nil {
		t.Fatalf("CreateLocation(%s) failed: %v", name, err)
	}
	return loc
}
