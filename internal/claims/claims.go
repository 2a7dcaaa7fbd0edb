// Package claims implements the provider ownership claim workflow: submit,
// admin review, withdraw.
package claims

import (
	"context"

	"go.uber.org/zap"

	"github.com/harvestmap/trust-cli/internal/apperr"
	"github.com/harvestmap/trust-cli/internal/model"
	"github.com/harvestmap/trust-cli/internal/policy"
	"github.com/harvestmap/trust-cli/internal/store"
)

// Service manages provider claims. Approval side effects on the claimant's
// reputation run after the transactional review commits.
type Service struct {
	store store.Store
	log   *zap.Logger
}

func New(st store.Store) *Service {
	return &Service{store: st, log: zap.L().Named("claims")}
}

// SubmitRequest is a provider's claim submission.
type SubmitRequest struct {
	ResourceID       string                 `json:"resource_id"`
	ClaimReason      string                 `json:"claim_reason"`
	VerificationInfo model.VerificationInfo `json:"verification_info"`
}

// Submit files a pending ownership claim. The store re-checks the unclaimed
// and no-pending-claim conditions inside the transaction, so a pre-check race
// cannot slip a duplicate through.
func (s *Service) Submit(ctx context.Context, userID string, req SubmitRequest) (*model.ProviderClaim, error) {
	if userID == "" {
		return nil, apperr.Unauthorized("a verified user is required to claim a resource")
	}
	if req.ResourceID == "" {
		return nil, apperr.Validation("resource id is required")
	}
	if req.ClaimReason == "" {
		return nil, apperr.Validation("claim reason is required")
	}

	claim, err := s.store.CreateClaim(ctx, model.ProviderClaim{
		ResourceID:       req.ResourceID,
		UserID:           userID,
		ClaimReason:      req.ClaimReason,
		VerificationInfo: req.VerificationInfo,
	})
	if err != nil {
		return nil, apperr.Classify(err)
	}

	s.log.Info("provider claim submitted",
		zap.String("claim_id", claim.ID),
		zap.String("resource_id", claim.ResourceID))
	return claim, nil
}

// Review applies an admin verdict to a pending claim. Approval transfers
// ownership transactionally; rejection requires a non-empty reason and leaves
// the resource untouched. Competing pending claims are never auto-rejected.
func (s *Service) Review(ctx context.Context, adminID, claimID string, decision model.ClaimDecision, notes string) (*model.ProviderClaim, error) {
	if adminID == "" {
		return nil, apperr.Unauthorized("a verified admin is required to review claims")
	}
	if claimID == "" {
		return nil, apperr.Validation("claim id is required")
	}

	switch decision {
	case model.DecisionApprove:
		return s.approve(ctx, adminID, claimID, notes)
	case model.DecisionReject:
		if notes == "" {
			return nil, apperr.Validation("a rejection reason is required")
		}
		if err := s.store.RejectClaim(ctx, claimID, adminID, notes); err != nil {
			return nil, apperr.Classify(err)
		}
		claim, err := s.store.GetClaim(ctx, claimID)
		if err != nil {
			return nil, apperr.Storage(err)
		}
		return claim, nil
	default:
		return nil, apperr.Validation("invalid decision %q", decision)
	}
}

func (s *Service) approve(ctx context.Context, adminID, claimID, notes string) (*model.ProviderClaim, error) {
	claim, err := s.store.ApproveClaim(ctx, claimID, adminID, notes)
	if err != nil {
		return nil, apperr.Classify(err)
	}

	s.log.Info("provider claim approved",
		zap.String("claim_id", claim.ID),
		zap.String("resource_id", claim.ResourceID),
		zap.String("claimed_by", claim.UserID))

	// Reputation rewards run after the ownership transaction committed; a
	// failure here must not undo the approval.
	s.rewardClaimant(ctx, claim)
	return claim, nil
}

func (s *Service) rewardClaimant(ctx context.Context, claim *model.ProviderClaim) {
	delta, _ := policy.DeltaForAction(model.ActionClaimApproved)
	err := s.store.AwardPoints(ctx, claim.UserID, model.ActionClaimApproved, delta,
		map[string]any{"claim_id": claim.ID, "resource_id": claim.ResourceID})
	if err != nil {
		s.log.Warn("failed to award claim points",
			zap.String("user_id", claim.UserID), zap.Error(err))
	}

	if _, err := s.store.AwardBadge(ctx, claim.UserID, model.BadgeVerifiedProvider); err != nil {
		s.log.Warn("failed to award provider badge",
			zap.String("user_id", claim.UserID), zap.Error(err))
	}
}

// Withdraw retracts the caller's own pending claim.
func (s *Service) Withdraw(ctx context.Context, userID, claimID string) error {
	if userID == "" {
		return apperr.Unauthorized("a verified user is required to withdraw a claim")
	}
	if claimID == "" {
		return apperr.Validation("claim id is required")
	}
	if err := s.store.WithdrawClaim(ctx, claimID, userID); err != nil {
		return apperr.Classify(err)
	}
	return nil
}

// Get returns one claim. Admins may inspect any claim; other callers only
// their own.
func (s *Service) Get(ctx context.Context, userID string, isAdmin bool, claimID string) (*model.ProviderClaim, error) {
	if userID == "" {
		return nil, apperr.Unauthorized("a verified user is required")
	}
	claim, err := s.store.GetClaim(ctx, claimID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if claim == nil {
		return nil, apperr.NotFound("claim", claimID)
	}
	if !isAdmin && claim.UserID != userID {
		return nil, apperr.Forbidden("you may only view your own claims")
	}
	return claim, nil
}
