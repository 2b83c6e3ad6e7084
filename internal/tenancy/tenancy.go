// Package tenancy creates tenants and resolves members into actors.
package tenancy

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

// Service manages tenants and their members.
type Service struct {
	env service.Env
}

// New creates a tenancy service.
func New(env service.Env) *Service {
	return &Service{env: env.Named("tenancy")}
}

// CreateTenantInput describes a new tenant.
type CreateTenantInput struct {
	ID       string
	Name     string
	Owner    string
	Settings *ledger.Settings
}

// CreateTenant creates a tenant with its default location and owner member
// in one transaction. Nil Settings uses ledger.DefaultSettings.
func (s *Service) CreateTenant(ctx context.Context, in CreateTenantInput) (ledger.Tenant, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return ledger.Tenant{}, ledger.NewValidationError("tenant id is required")
	}
	owner := strings.TrimSpace(in.Owner)
	if owner == "" {
		return ledger.Tenant{}, ledger.NewValidationError("owner is required")
	}
	settings := ledger.DefaultSettings()
	if in.Settings != nil {
		settings = *in.Settings
	}
	if err := ValidateSettings(settings); err != nil {
		return ledger.Tenant{}, err
	}

	now := s.env.Clock.Now()
	t := ledger.Tenant{
		ID:        id,
		Name:      ledger.NormalizeName(in.Name),
		Settings:  settings,
		CreatedAt: now,
	}
	if t.Name == "" {
		t.Name = id
	}

	err := s.env.Store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.CreateTenant(ctx, t); err != nil {
			return err
		}
		loc := ledger.Location{ID: s.env.IDs.NewID(), TenantID: id, Name: ledger.DefaultLocationName, CreatedAt: now}
		if err := tx.CreateLocation(ctx, loc); err != nil {
			return err
		}
		return tx.UpsertMember(ctx, ledger.Member{TenantID: id, UserID: owner, Role: string(access.RoleOwner), CreatedAt: now})
	})
	if err != nil {
		return ledger.Tenant{}, fmt.Errorf("create tenant: %w", err)
	}

	s.env.Log.Info("tenant created", zap.String("tenant", id), zap.String("owner", owner))
	return t, nil
}

// ValidateSettings checks tenant policy values.
func ValidateSettings(st ledger.Settings) error {
	if st.VarianceToleranceBP < 0 || st.VarianceToleranceBP > 10000 {
		return ledger.NewValidationError(fmt.Sprintf("variance tolerance %d bp out of range 0..10000", st.VarianceToleranceBP))
	}
	return nil
}

// UpdateSettings replaces a tenant's policies. Owner only.
func (s *Service) UpdateSettings(ctx context.Context, actor access.Actor, st ledger.Settings) error {
	if err := access.Require(actor, access.PermMembersWrite); err != nil {
		return err
	}
	if err := ValidateSettings(st); err != nil {
		return err
	}
	if err := s.env.Store.UpdateTenantSettings(ctx, actor.TenantID, st); err != nil {
		return err
	}
	s.env.Log.Info("tenant settings updated",
		zap.String("tenant", actor.TenantID),
		zap.Bool("allow_negative_stock", st.AllowNegativeStock),
		zap.Int64("variance_tolerance_bp", st.VarianceToleranceBP),
		zap.Bool("require_distinct_approver", st.RequireDistinctApprover),
	)
	return nil
}

// AddMember grants userID a role in the actor's tenant. Re-adding changes the role.
func (s *Service) AddMember(ctx context.Context, actor access.Actor, userID string, role access.Role) (ledger.Member, error) {
	if err := access.Require(actor, access.PermMembersWrite); err != nil {
		return ledger.Member{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ledger.Member{}, ledger.NewValidationError("user id is required")
	}
	if _, err := access.ParseRole(string(role)); err != nil {
		return ledger.Member{}, err
	}
	m := ledger.Member{TenantID: actor.TenantID, UserID: userID, Role: string(role), CreatedAt: s.env.Clock.Now()}
	if err := s.env.Store.UpsertMember(ctx, m); err != nil {
		return ledger.Member{}, err
	}
	s.env.Log.Info("member added", zap.String("tenant", actor.TenantID), zap.String("user", userID), zap.String("role", string(role)))
	return m, nil
}

// ListMembers returns the tenant's members.
func (s *Service) ListMembers(ctx context.Context, actor access.Actor) ([]ledger.Member, error) {
	if err := access.Require(actor, access.PermStockRead); err != nil {
		return nil, err
	}
	return s.env.Store.ListMembers(ctx, actor.TenantID)
}

// Resolve looks up userID in tenantID and returns the matching actor.
// Unknown tenants or non-members are FORBIDDEN, so callers cannot discover
// which tenants exist.
func (s *Service) Resolve(ctx context.Context, tenantID, userID string) (access.Actor, error) {
	if tenantID == "" || userID == "" {
		return access.Actor{}, ledger.NewForbiddenError(userID, "tenant access")
	}
	m, err := s.env.Store.GetMember(ctx, tenantID, userID)
	if ledger.IsCode(err, ledger.ErrCodeNotFound) {
		return access.Actor{}, ledger.NewForbiddenError(userID, "tenant access")
	}
	if err != nil {
		return access.Actor{}, err
	}
	role, err := access.ParseRole(m.Role)
	if err != nil {
		return access.Actor{}, err
	}
	return access.Actor{TenantID: tenantID, UserID: userID, Role: role}, nil
}

// Tenant returns the actor's tenant, including its current ledger seq.
func (s *Service) Tenant(ctx context.Context, actor access.Actor) (ledger.Tenant, error) {
	if err := access.Require(actor, access.PermStockRead); err != nil {
		return ledger.Tenant{}, err
	}
	return s.env.Store.GetTenant(ctx, actor.TenantID)
}
