// Package points is the reputation ledger service: fixed point deltas per
// action, level recomputation, badge awards.
package points

import (
	"context"

	"go.uber.org/zap"

	"github.com/harvestmap/trust-cli/internal/apperr"
	"github.com/harvestmap/trust-cli/internal/model"
	"github.com/harvestmap/trust-cli/internal/policy"
	"github.com/harvestmap/trust-cli/internal/store"
)

type Service struct {
	store store.Store
	log   *zap.Logger
}

func New(st store.Store) *Service {
	return &Service{store: st, log: zap.L().Named("points")}
}

// Award applies the fixed delta for action to the user's profile and appends
// one history row. Users without a profile are skipped silently; the caller
// cannot distinguish that from a normal award, which is intended.
func (s *Service) Award(ctx context.Context, userID string, action model.PointAction, metadata map[string]any) error {
	if userID == "" {
		return apperr.Validation("user id is required")
	}
	delta, ok := policy.DeltaForAction(action)
	if !ok {
		return apperr.Validation("unknown point action %q", action)
	}
	if err := s.store.AwardPoints(ctx, userID, action, delta, metadata); err != nil {
		return apperr.Storage(err)
	}
	return nil
}

// AwardBadge grants a badge once. Re-awards are no-ops.
func (s *Service) AwardBadge(ctx context.Context, userID, badgeID string) error {
	if userID == "" || badgeID == "" {
		return apperr.Validation("user id and badge id are required")
	}
	added, err := s.store.AwardBadge(ctx, userID, badgeID)
	if err != nil {
		return apperr.Storage(err)
	}
	if added {
		s.log.Info("badge awarded",
			zap.String("user_id", userID), zap.String("badge", badgeID))
	}
	return nil
}

// Profile returns the user's reputation record.
func (s *Service) Profile(ctx context.Context, userID string) (*model.UserProfile, error) {
	if userID == "" {
		return nil, apperr.Validation("user id is required")
	}
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if p == nil {
		return nil, apperr.NotFound("profile", userID)
	}
	return p, nil
}
