// Package service holds the collaborators shared by the ledger services
// (inventory, reconcile, sales, production, tenancy).
package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/store"
)

// Env carries what every service needs to write the ledger.
type Env struct {
	Store *store.Store
	Log   *zap.Logger
	Clock ledger.Clock
	IDs   ledger.IDGenerator
	Hooks Hooks
}

// Hooks observe committed ledger changes. Nil hooks are skipped.
// They run after commit, on the caller's goroutine.
type Hooks struct {
	OnMovement      func(m ledger.Movement)
	OnCountDecision func(tenantID string, status ledger.CountStatus, adjustments int)
}

// Option configures an Env.
type Option func(*Env)

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(log *zap.Logger) Option {
	return func(e *Env) {
		if log != nil {
			e.Log = log
		}
	}
}

// WithClock sets the wall clock used for audit timestamps.
func WithClock(c ledger.Clock) Option {
	return func(e *Env) {
		if c != nil {
			e.Clock = c
		}
	}
}

// WithIDs sets the identifier generator.
func WithIDs(g ledger.IDGenerator) Option {
	return func(e *Env) {
		if g != nil {
			e.IDs = g
		}
	}
}

// WithHooks sets the commit observers.
func WithHooks(h Hooks) Option {
	return func(e *Env) {
		e.Hooks = h
	}
}

// New builds an Env over s with production defaults:
// UUIDv7 IDs, the system clock and a no-op logger.
func New(s *store.Store, opts ...Option) Env {
	e := Env{
		Store: s,
		Log:   zap.NewNop(),
		Clock: ledger.SystemClock{},
		IDs:   ledger.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Named returns a copy of e whose logger is named for a component.
func (e Env) Named(component string) Env {
	e.Log = e.Log.Named(component)
	return e
}

// Stamp fills the identity and audit fields of a movement for actor.
func (e Env) Stamp(m ledger.Movement, actor access.Actor, at time.Time) ledger.Movement {
	m.ID = e.IDs.NewID()
	m.TenantID = actor.TenantID
	m.CreatedBy = actor.UserID
	m.CreatedAt = at
	return m
}

// MovementFields returns the zap fields logged for every appended movement.
func MovementFields(m ledger.Movement) []zap.Field {
	return []zap.Field{
		zap.String("tenant", m.TenantID),
		zap.Int64("seq", m.Seq),
		zap.String("type", string(m.Type)),
		zap.String("item", m.ItemID),
		zap.String("location", m.LocationID),
		zap.Stringer("delta", m.Delta),
		zap.Stringer("balance", m.BalanceAfter),
	}
}

// Committed logs and observes movements after their transaction committed.
func (e Env) Committed(msg string, movements ...ledger.Movement) {
	for _, m := range movements {
		e.Log.Info(msg, MovementFields(m)...)
		if e.Hooks.OnMovement != nil {
			e.Hooks.OnMovement(m)
		}
	}
}

// Decided observes a count session reaching a decision.
func (e Env) Decided(tenantID string, status ledger.CountStatus, adjustments int) {
	if e.Hooks.OnCountDecision != nil {
		e.Hooks.OnCountDecision(tenantID, status, adjustments)
	}
}
