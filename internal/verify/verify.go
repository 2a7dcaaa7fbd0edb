// Package verify implements community verification voting.
package verify

import (
	"context"

	"go.uber.org/zap"

	"github.com/harvestmap/trust-cli/internal/apperr"
	"github.com/harvestmap/trust-cli/internal/model"
	"github.com/harvestmap/trust-cli/internal/policy"
	"github.com/harvestmap/trust-cli/internal/store"
)

// Service records verification votes and applies the promotion threshold.
type Service struct {
	store store.Store
	log   *zap.Logger
}

func New(st store.Store) *Service {
	return &Service{store: st, log: zap.L().Named("verify")}
}

// CastVote validates the request, confirms the resource exists, and records
// the vote. A repeat vote by the same user is an idempotent success; the
// outcome reports Duplicate and awards nothing.
func (s *Service) CastVote(ctx context.Context, userID, resourceID string, vote model.VoteType, field string) (*model.VoteOutcome, error) {
	if userID == "" {
		return nil, apperr.Unauthorized("a verified user is required to vote")
	}
	if resourceID == "" {
		return nil, apperr.Validation("resource id is required")
	}
	if !vote.Valid() {
		return nil, apperr.Validation("invalid vote type %q", vote)
	}

	r, err := s.store.GetResource(ctx, resourceID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if r == nil {
		return nil, apperr.NotFound("resource", resourceID)
	}

	outcome, err := s.store.CastVote(ctx, model.VerificationVote{
		UserID:     userID,
		ResourceID: resourceID,
		Vote:       vote,
		Field:      field,
	}, policy.VoteThreshold, policy.VoteKarma)
	if err != nil {
		return nil, apperr.Classify(err)
	}

	if outcome.Promoted {
		s.log.Info("resource promoted by community votes",
			zap.String("resource_id", resourceID),
			zap.Int("threshold", policy.VoteThreshold))
	}
	return outcome, nil
}
