package claims

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestmap/trust-cli/internal/apperr"
	"github.com/harvestmap/trust-cli/internal/model"
	"github.com/harvestmap/trust-cli/internal/store"
)

type stubStore struct {
	store.Store

	claim      *model.ProviderClaim
	createErr  error
	approveErr error
	rejectErr  error

	pointsAwarded   []model.PointAction
	pointsErr       error
	badgesAwarded   []string
	withdrawnClaims []string
}

func (s *stubStore) CreateClaim(ctx context.Context, claim model.ProviderClaim) (*model.ProviderClaim, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	claim.ID = "claim-1"
	claim.Status = model.ClaimPending
	return &claim, nil
}

func (s *stubStore) GetClaim(ctx context.Context, claimID string) (*model.ProviderClaim, error) {
	return s.claim, nil
}

func (s *stubStore) ApproveClaim(ctx context.Context, claimID, adminID, notes string) (*model.ProviderClaim, error) {
	if s.approveErr != nil {
		return nil, s.approveErr
	}
	return &model.ProviderClaim{
		ID: claimID, ResourceID: "res-1", UserID: "provider-1",
		Status: model.ClaimApproved, ReviewedBy: &adminID, ReviewNotes: notes,
	}, nil
}

func (s *stubStore) RejectClaim(ctx context.Context, claimID, adminID, notes string) error {
	return s.rejectErr
}

func (s *stubStore) WithdrawClaim(ctx context.Context, claimID, userID string) error {
	s.withdrawnClaims = append(s.withdrawnClaims, claimID)
	return nil
}

func (s *stubStore) AwardPoints(ctx context.Context, userID string, action model.PointAction, delta int64, metadata map[string]any) error {
	if s.pointsErr != nil {
		return s.pointsErr
	}
	s.pointsAwarded = append(s.pointsAwarded, action)
	return nil
}

func (s *stubStore) AwardBadge(ctx context.Context, userID, badgeID string) (bool, error) {
	s.badgesAwarded = append(s.badgesAwarded, badgeID)
	return true, nil
}

func TestSubmit_Validation(t *testing.T) {
	svc := New(&stubStore{})
	ctx := context.Background()

	_, err := svc.Submit(ctx, "", SubmitRequest{ResourceID: "res-1", ClaimReason: "mine"})
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))

	_, err = svc.Submit(ctx, "user-1", SubmitRequest{ClaimReason: "mine"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = svc.Submit(ctx, "user-1", SubmitRequest{ResourceID: "res-1"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestSubmit_ConflictPassesThrough(t *testing.T) {
	svc := New(&stubStore{createErr: apperr.Conflict("resource is already claimed")})

	_, err := svc.Submit(context.Background(), "user-1",
		SubmitRequest{ResourceID: "res-1", ClaimReason: "mine"})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestSubmit_StorageErrorOpaque(t *testing.T) {
	svc := New(&stubStore{createErr: eris.New("pq: connection refused")})

	_, err := svc.Submit(context.Background(), "user-1",
		SubmitRequest{ResourceID: "res-1", ClaimReason: "mine"})
	assert.True(t, apperr.IsKind(err, apperr.KindStorage))
	assert.Equal(t, "internal storage error", apperr.UserMessage(err))
}

func TestReview_ApproveAwardsReputation(t *testing.T) {
	st := &stubStore{}
	svc := New(st)

	claim, err := svc.Review(context.Background(), "admin-1", "claim-1", model.DecisionApprove, "checked")
	require.NoError(t, err)
	assert.Equal(t, model.ClaimApproved, claim.Status)

	assert.Equal(t, []model.PointAction{model.ActionClaimApproved}, st.pointsAwarded)
	assert.Equal(t, []string{model.BadgeVerifiedProvider}, st.badgesAwarded)
}

func TestReview_ApproveSucceedsWhenRewardFails(t *testing.T) {
	st := &stubStore{pointsErr: eris.New("profile table locked")}
	svc := New(st)

	claim, err := svc.Review(context.Background(), "admin-1", "claim-1", model.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, model.ClaimApproved, claim.Status)
	// The badge attempt still runs after the points failure.
	assert.Equal(t, []string{model.BadgeVerifiedProvider}, st.badgesAwarded)
}

func TestReview_RejectRequiresReason(t *testing.T) {
	svc := New(&stubStore{})

	_, err := svc.Review(context.Background(), "admin-1", "claim-1", model.DecisionReject, "")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestReview_Reject(t *testing.T) {
	st := &stubStore{claim: &model.ProviderClaim{ID: "claim-1", Status: model.ClaimRejected}}
	svc := New(st)

	claim, err := svc.Review(context.Background(), "admin-1", "claim-1", model.DecisionReject, "no evidence")
	require.NoError(t, err)
	assert.Equal(t, model.ClaimRejected, claim.Status)
	assert.Empty(t, st.pointsAwarded)
}

func TestReview_InvalidDecision(t *testing.T) {
	svc := New(&stubStore{})

	_, err := svc.Review(context.Background(), "admin-1", "claim-1", model.ClaimDecision("maybe"), "")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestReview_ApproveConflictPassesThrough(t *testing.T) {
	st := &stubStore{approveErr: apperr.Conflict("resource was claimed by another provider")}
	svc := New(st)

	_, err := svc.Review(context.Background(), "admin-1", "claim-1", model.DecisionApprove, "")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	assert.Empty(t, st.pointsAwarded)
}

func TestWithdraw(t *testing.T) {
	st := &stubStore{}
	svc := New(st)

	require.NoError(t, svc.Withdraw(context.Background(), "user-1", "claim-1"))
	assert.Equal(t, []string{"claim-1"}, st.withdrawnClaims)

	err := svc.Withdraw(context.Background(), "", "claim-1")
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestGet_OwnershipEnforced(t *testing.T) {
	st := &stubStore{claim: &model.ProviderClaim{ID: "claim-1", UserID: "provider-1"}}
	svc := New(st)
	ctx := context.Background()

	got, err := svc.Get(ctx, "provider-1", false, "claim-1")
	require.NoError(t, err)
	assert.Equal(t, "claim-1", got.ID)

	_, err = svc.Get(ctx, "someone-else", false, "claim-1")
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	// Admins may inspect any claim.
	_, err = svc.Get(ctx, "admin-1", true, "claim-1")
	assert.NoError(t, err)
}

func TestGet_NotFound(t *testing.T) {
	svc := New(&stubStore{claim: nil})

	_, err := svc.Get(context.Background(), "user-1", false, "ghost")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
