package reconcile

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/store"
)

// Decision is the outcome of approving or rejecting a session.
type Decision struct {
	Session     ledger.CountSession `json:"session"`
	Report      Report              `json:"report"`
	Adjustments []ledger.Movement   `json:"adjustments"`
}

// Approve accepts a pending count and applies its variances.
//
// digest, when non-empty, must equal the current report digest; otherwise
// STALE_REPORT is returned and nothing is written. Each non-zero variance
// becomes an Adjustment movement of exactly that variance. Adjustments are
// forced past the negative stock policy because the count is authoritative.
func (s *Service) Approve(ctx context.Context, actor access.Actor, sessionID, digest string) (Decision, error) {
	if err := access.Require(actor, access.PermCountApprove); err != nil {
		return Decision{}, err
	}

	now := s.env.Clock.Now()
	var d Decision
	err := s.env.Store.WithTx(ctx, func(tx *store.Tx) error {
		sess, err := tx.GetCountSession(ctx, actor.TenantID, sessionID)
		if err != nil {
			return err
		}
		if !ledger.CanTransition(sess.Status, ledger.CountApproved) {
			return ledger.NewTransitionError(string(sess.Status), string(ledger.CountApproved))
		}
		tenant, err := tx.GetTenant(ctx, actor.TenantID)
		if err != nil {
			return err
		}
		if tenant.Settings.RequireDistinctApprover && sess.SubmittedBy == actor.UserID {
			return &ledger.Error{
				Code:    ledger.ErrCodeForbidden,
				Message: "a count cannot be approved by the person who submitted it",
				Details: map[string]string{"user_id": actor.UserID, "permission": string(access.PermCountApprove)},
			}
		}

		report, err := buildReport(ctx, tx, sess)
		if err != nil {
			return err
		}
		if digest != "" && digest != report.Digest {
			return ledger.NewStaleReportError(report.Digest, digest)
		}

		adjustments := []ledger.Movement{}
		for _, line := range report.Adjustable() {
			m := s.env.Stamp(ledger.Movement{
				ItemID:        line.ItemID,
				LocationID:    sess.LocationID,
				Type:          ledger.MovementAdjustment,
				Delta:         line.Variance,
				Reason:        "physical count",
				Reference:     sess.ID,
				CountID:       sess.ID,
				UnitCostCents: line.UnitCostCents,
			}, actor, now)
			out, err := tx.AppendMovement(ctx, m, store.AppendOptions{Force: true})
			if err != nil {
				return err
			}
			if out.BalanceAfter < 0 {
				s.env.Log.Warn("count adjustment leaves negative balance",
					zap.String("count", sess.ID),
					zap.String("item", out.ItemID),
					zap.Stringer("balance", out.BalanceAfter),
				)
			}
			adjustments = append(adjustments, out)
		}

		next := sess
		next.Status = ledger.CountApproved
		next.DecidedBy = actor.UserID
		next.DecidedAt = &now
		next.ReportDigest = report.Digest
		if err := tx.TransitionCountSession(ctx, next, sess.Status); err != nil {
			return err
		}

		report.Status = next.Status
		d = Decision{Session: next, Report: report, Adjustments: adjustments}
		return nil
	})
	if err != nil {
		s.env.Log.Debug("count approval refused", zap.String("count", sessionID), zap.Error(err))
		return Decision{}, err
	}

	s.env.Committed("count adjustment", d.Adjustments...)
	s.env.Decided(actor.TenantID, ledger.CountApproved, len(d.Adjustments))
	s.env.Log.Info("count approved",
		zap.String("tenant", actor.TenantID),
		zap.String("count", sessionID),
		zap.String("by", actor.UserID),
		zap.Int("adjustments", len(d.Adjustments)),
		zap.Int64("net_cents", int64(d.Report.NetCents)),
	)
	return d, nil
}

// Reject declines a pending count. No movements are written.
func (s *Service) Reject(ctx context.Context, actor access.Actor, sessionID, reason string) (Decision, error) {
	if err := access.Require(actor, access.PermCountApprove); err != nil {
		return Decision{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Decision{}, ledger.NewValidationError("a rejection needs a reason")
	}

	now := s.env.Clock.Now()
	var d Decision
	err := s.env.Store.WithTx(ctx, func(tx *store.Tx) error {
		sess, err := tx.GetCountSession(ctx, actor.TenantID, sessionID)
		if err != nil {
			return err
		}
		if !ledger.CanTransition(sess.Status, ledger.CountRejected) {
			return ledger.NewTransitionError(string(sess.Status), string(ledger.CountRejected))
		}
		report, err := buildReport(ctx, tx, sess)
		if err != nil {
			return err
		}

		next := sess
		next.Status = ledger.CountRejected
		next.DecidedBy = actor.UserID
		next.DecidedAt = &now
		next.DecisionReason = reason
		if err := tx.TransitionCountSession(ctx, next, sess.Status); err != nil {
			return err
		}
		report.Status = next.Status
		d = Decision{Session: next, Report: report, Adjustments: []ledger.Movement{}}
		return nil
	})
	if err != nil {
		return Decision{}, err
	}

	s.env.Decided(actor.TenantID, ledger.CountRejected, 0)
	s.env.Log.Info("count rejected",
		zap.String("tenant", actor.TenantID),
		zap.String("count", sessionID),
		zap.String("by", actor.UserID),
		zap.String("reason", reason),
	)
	return d, nil
}

// Cancel abandons an open count.
func (s *Service) Cancel(ctx context.Context, actor access.Actor, sessionID string) (ledger.CountSession, error) {
	if err := access.Require(actor, access.PermCountWrite); err != nil {
		return ledger.CountSession{}, err
	}

	now := s.env.Clock.Now()
	var out ledger.CountSession
	err := s.env.Store.WithTx(ctx, func(tx *store.Tx) error {
		sess, err := tx.GetCountSession(ctx, actor.TenantID, sessionID)
		if err != nil {
			return err
		}
		next := sess
		next.Status = ledger.CountCancelled
		next.DecidedBy = actor.UserID
		next.DecidedAt = &now
		if err := tx.TransitionCountSession(ctx, next, sess.Status); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return ledger.CountSession{}, err
	}

	s.env.Decided(actor.TenantID, ledger.CountCancelled, 0)
	s.env.Log.Info("count cancelled", zap.String("tenant", actor.TenantID), zap.String("count", sessionID))
	return out, nil
}

// Get returns a session with its lines.
func (s *Service) Get(ctx context.Context, actor access.Actor, sessionID string) (Session, error) {
	if err := access.Require(actor, access.PermStockRead); err != nil {
		return Session{}, err
	}
	sess, err := s.env.Store.GetCountSession(ctx, actor.TenantID, sessionID)
	if err != nil {
		return Session{}, err
	}
	lines, err := s.env.Store.ListCountLines(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	return Session{CountSession: sess, Lines: lines}, nil
}

// List returns the tenant's sessions, newest first.
func (s *Service) List(ctx context.Context, actor access.Actor, f store.SessionFilter) ([]ledger.CountSession, error) {
	if err := access.Require(actor, access.PermStockRead); err != nil {
		return nil, err
	}
	if f.Status != "" {
		if _, err := ledger.ParseCountStatus(string(f.Status)); err != nil {
			return nil, err
		}
	}
	return s.env.Store.ListCountSessions(ctx, actor.TenantID, f)
}

// OpenFor is Open for the scheduler: a location that already has an active
// count is reported with ok=false instead of an error.
func (s *Service) OpenFor(ctx context.Context, actor access.Actor, locationID, note string) (sess Session, ok bool, err error) {
	sess, err = s.Open(ctx, actor, OpenInput{LocationID: locationID, Note: note})
	if ledger.IsCode(err, ledger.ErrCodeConflict) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("scheduled count: %w", err)
	}
	return sess, true, nil
}
