package tenancy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/testutil"
)

func TestCreateTenant(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := New(env)
	ctx := context.Background()

	tn, err := svc.CreateTenant(ctx, CreateTenantInput{ID: "rosie", Name: "  Rosie's   Bakery ", Owner: "ana"})
	require.NoError(t, err)
	assert.Equal(t, "Rosie's Bakery", tn.Name)
	assert.Equal(t, ledger.DefaultSettings(), tn.Settings)

	locs, err := env.Store.ListLocations(ctx, "rosie")
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, ledger.DefaultLocationName, locs[0].Name)

	actor, err := svc.Resolve(ctx, "rosie", "ana")
	require.NoError(t, err)
	assert.Equal(t, access.RoleOwner, actor.Role)

	_, err = svc.CreateTenant(ctx, CreateTenantInput{ID: "rosie", Owner: "ana"})
	assert.True(t, ledger.IsCode(err, ledger.ErrCodeConflict))
}

func TestCreateTenant_Validation(t *testing.T) {
	svc := New(testutil.NewEnv(t))
	ctx := context.Background()

	_, err := svc.CreateTenant(ctx, CreateTenantInput{ID: "", Owner: "ana"})
	assert.True(t, ledger.IsCode(err, ledger.ErrCodeValidation))

	_, err = svc.CreateTenant(ctx, CreateTenantInput{ID: "x"})
	assert.True(t, ledger.IsCode(err, ledger.ErrCodeValidation))

	bad := ledger.DefaultSettings()
	bad.VarianceToleranceBP = -1
	_, err = svc.CreateTenant(ctx, CreateTenantInput{ID: "x", Owner: "ana", Settings: &bad})
	assert.True(t, ledger.IsCode(err, ledger.ErrCodeValidation))
}

func TestAddMember_OwnerOnly(t *testing.T) {
	env := testutil.NewEnv(t)
	tn := testutil.SeedTenant(t, env, "t1", ledger.DefaultSettings())
	svc := New(env)
	ctx := context.Background()

	_, err := svc.AddMember(ctx, tn.Manager, "bob", access.RoleStaff)
	assert.True(t, ledger.IsCode(err, ledger.ErrCodeForbidden))

	m, err := svc.AddMember(ctx, tn.Owner, "bob", access.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, "staff", m.Role)

	// Re-adding changes the role.
	_, err = svc.AddMember(ctx, tn.Owner, "bob", access.RoleManager)
	require.NoError(t, err)
	actor, err := svc.Resolve(ctx, "t1", "bob")
	require.NoError(t, err)
	assert.Equal(t, access.RoleManager, actor.Role)

	_, err = svc.AddMember(ctx, tn.Owner, "eve", access.RoleSystem)
	assert.True(t, ledger.IsCode(err, ledger.ErrCodeValidation))
}

func TestResolve_NonMemberForbidden(t *testing.T) {
	env := testutil.NewEnv(t)
	testutil.SeedTenant(t, env, "t1", ledger.DefaultSettings())
	svc := New(env)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, "t1", "stranger")
	assert.True(t, ledger.IsCode(err, ledger.ErrCodeForbidden))

	_, err = svc.Resolve(ctx, "no-such-tenant", "owner")
	assert.True(t, ledger.IsCode(err, ledger.ErrCodeForbidden))

	_, err = svc.Resolve(ctx, "", "owner")
	assert.True(t, ledger.IsCode(err, ledger.ErrCodeForbidden))
}

func TestUpdateSettings(t *testing.T) {
	env := testutil.NewEnv(t)
	tn := testutil.SeedTenant(t, env, "t1", ledger.DefaultSettings())
	svc := New(env)
	ctx := context.Background()

	st := ledger.Settings{AllowNegativeStock: true, VarianceToleranceBP: 250, RequireDistinctApprover: false}
	require.NoError(t, svc.UpdateSettings(ctx, tn.Owner, st))

	got, err := svc.Tenant(ctx, tn.Staff)
	require.NoError(t, err)
	assert.Equal(t, st, got.Settings)

	assert.True(t, ledger.IsCode(svc.UpdateSettings(ctx, tn.Manager, st), ledger.ErrCodeForbidden))
}
