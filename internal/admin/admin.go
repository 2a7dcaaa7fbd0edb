// Package admin implements set-based moderation: bulk status transitions,
// bulk enhancement, and trust statistics.
package admin

import (
	"context"

	"go.uber.org/zap"

	"github.com/harvestmap/trust-cli/internal/apperr"
	"github.com/harvestmap/trust-cli/internal/model"
	"github.com/harvestmap/trust-cli/internal/store"
)

const (
	maxBulkEnhance    = 20
	maxBulkTransition = 100
)

// BulkEnhancer is the admin-trusted enhancement entry point.
type BulkEnhancer interface {
	BulkEnhance(ctx context.Context, adminID string, ids []string) (*model.BulkEnhanceResult, error)
}

type Service struct {
	store    store.Store
	enhancer BulkEnhancer
	log      *zap.Logger
}

func New(st store.Store, enhancer BulkEnhancer) *Service {
	return &Service{store: st, enhancer: enhancer, log: zap.L().Named("admin")}
}

// BulkOutcome is the result of one bulk operation; exactly one of the typed
// results is set depending on the action.
type BulkOutcome struct {
	Action     model.BulkAction         `json:"action"`
	Transition *model.BulkResult        `json:"transition,omitempty"`
	Enhance    *model.BulkEnhanceResult `json:"enhance,omitempty"`
}

// Bulk validates and dispatches a bulk action. Validation failures happen
// before any write; missing ids inside a valid request are silent no-ops.
func (s *Service) Bulk(ctx context.Context, adminID string, ids []string, action model.BulkAction, params model.BulkParams) (*BulkOutcome, error) {
	if adminID == "" {
		return nil, apperr.Unauthorized("a verified admin is required")
	}
	if len(ids) == 0 {
		return nil, apperr.Validation("resource ids are required")
	}

	switch action {
	case model.BulkEnhance:
		// Size is re-checked by the enhancer; checking here keeps all
		// cap errors ahead of any work.
		if len(ids) > maxBulkEnhance {
			return nil, apperr.Validation("at most %d resources per bulk enhance, got %d", maxBulkEnhance, len(ids))
		}
		result, err := s.enhancer.BulkEnhance(ctx, adminID, ids)
		if err != nil {
			return nil, err
		}
		return &BulkOutcome{Action: action, Enhance: result}, nil

	case model.BulkVerify, model.BulkReject, model.BulkFlag:
		if len(ids) > maxBulkTransition {
			return nil, apperr.Validation("at most %d resources per bulk %s, got %d", maxBulkTransition, action, len(ids))
		}
		update, err := transitionFor(adminID, ids, action, params)
		if err != nil {
			return nil, err
		}
		result, err := s.store.BulkTransition(ctx, *update)
		if err != nil {
			return nil, apperr.Classify(err)
		}
		s.log.Info("bulk transition applied",
			zap.String("action", string(action)),
			zap.String("new_status", string(update.NewStatus)),
			zap.Int("requested", len(ids)),
			zap.Int64("affected", result.AffectedCount))
		return &BulkOutcome{Action: action, Transition: result}, nil

	default:
		return nil, apperr.Validation("invalid bulk action %q", action)
	}
}

// transitionFor maps a bulk action to its store-level update. verify is the
// only path that reaches official, and it stamps the reviewing admin.
func transitionFor(adminID string, ids []string, action model.BulkAction, params model.BulkParams) (*model.BulkUpdate, error) {
	update := &model.BulkUpdate{
		ResourceIDs: ids,
		AdminID:     adminID,
		Action:      "bulk_" + string(action),
		Reason:      params.Reason,
	}

	switch action {
	case model.BulkVerify:
		update.NewStatus = model.StatusOfficial
		update.StampAdminVerified = true
	case model.BulkReject:
		update.NewStatus = model.StatusRejected
	case model.BulkFlag:
		switch params.Kind {
		case "", "flagged":
			update.NewStatus = model.StatusFlagged
		case "duplicate":
			update.NewStatus = model.StatusDuplicate
		default:
			return nil, apperr.Validation("invalid flag kind %q", params.Kind)
		}
	}
	return update, nil
}

// TrustStats summarizes the registry by verification status.
type TrustStats struct {
	Counts map[model.VerificationStatus]int64 `json:"counts"`
	Total  int64                              `json:"total"`
}

func (s *Service) TrustStats(ctx context.Context) (*TrustStats, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	stats := &TrustStats{Counts: counts}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

// RecentAudit returns the newest audit entries, most recent first.
func (s *Service) RecentAudit(ctx context.Context, limit int) ([]model.AuditLogEntry, error) {
	entries, err := s.store.ListAuditEntries(ctx, limit)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return entries, nil
}
