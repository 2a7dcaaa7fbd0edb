package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestmap/trust-cli/internal/apperr"
	"github.com/harvestmap/trust-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "trust.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedResource(t *testing.T, s *SQLiteStore, id, name string) {
	t.Helper()
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO resources (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, name, now, now,
	)
	require.NoError(t, err)
}

func seedProfile(t *testing.T, s *SQLiteStore, userID string, points int64, level int) {
	t.Helper()
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO user_profiles (user_id, points, level, karma, badges, created_at, updated_at)
		 VALUES (?, ?, ?, 0, '[]', ?, ?)`,
		userID, points, level, now, now,
	)
	require.NoError(t, err)
}

func TestSQLite_GetResource_Absent(t *testing.T) {
	s := newTestSQLiteStore(t)

	r, err := s.GetResource(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestSQLite_VoteFlow_PromotesAtThreshold(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	seedResource(t, s, "res-1", "Eastside Pantry")
	seedProfile(t, s, "voter-1", 0, 1)

	vote := func(userID string) *model.VoteOutcome {
		out, err := s.CastVote(ctx, model.VerificationVote{
			UserID: userID, ResourceID: "res-1", Vote: model.VoteUp,
		}, 3, 5)
		require.NoError(t, err)
		return out
	}

	out := vote("voter-1")
	assert.True(t, out.Accepted)
	assert.False(t, out.Promoted)
	assert.Equal(t, 5, out.KarmaAwarded)

	out = vote("voter-2")
	assert.False(t, out.Promoted)
	// voter-2 has no profile: karma skipped silently.
	assert.Zero(t, out.KarmaAwarded)

	out = vote("voter-3")
	assert.True(t, out.Promoted)

	r, err := s.GetResource(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCommunityVerified, r.Status)
	assert.NotNil(t, r.CommunityVerifiedAt)

	// Repeat vote is an idempotent no-op: no error, no second karma award.
	out = vote("voter-1")
	assert.True(t, out.Duplicate)
	assert.Zero(t, out.KarmaAwarded)

	p, err := s.GetProfile(ctx, "voter-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Karma)
}

func TestSQLite_VoteFlow_DownVotesDoNotPromote(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	seedResource(t, s, "res-1", "Eastside Pantry")

	for _, userID := range []string{"u1", "u2", "u3"} {
		out, err := s.CastVote(ctx, model.VerificationVote{
			UserID: userID, ResourceID: "res-1", Vote: model.VoteDown,
		}, 3, 5)
		require.NoError(t, err)
		assert.False(t, out.Promoted)
	}

	r, err := s.GetResource(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnverified, r.Status)
}

func TestSQLite_ClaimLifecycle_Approve(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	seedResource(t, s, "res-1", "Eastside Pantry")

	claim, err := s.CreateClaim(ctx, model.ProviderClaim{
		ResourceID:  "res-1",
		UserID:      "provider-1",
		ClaimReason: "I manage this pantry",
		VerificationInfo: model.VerificationInfo{
			JobTitle: "Director", ContactEmail: "dir@example.org",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ClaimPending, claim.Status)

	// Second pending claim by the same user is rejected up front.
	_, err = s.CreateClaim(ctx, model.ProviderClaim{
		ResourceID: "res-1", UserID: "provider-1", ClaimReason: "again",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	// A competing claim by another user is allowed while unclaimed.
	rival, err := s.CreateClaim(ctx, model.ProviderClaim{
		ResourceID: "res-1", UserID: "provider-2", ClaimReason: "mine actually",
	})
	require.NoError(t, err)

	approved, err := s.ApproveClaim(ctx, claim.ID, "admin-1", "verified by phone")
	require.NoError(t, err)
	assert.Equal(t, model.ClaimApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, "admin-1", *approved.ReviewedBy)

	r, err := s.GetResource(ctx, "res-1")
	require.NoError(t, err)
	require.NotNil(t, r.ClaimedBy)
	assert.Equal(t, "provider-1", *r.ClaimedBy)
	assert.NotNil(t, r.ClaimedAt)
	assert.True(t, r.ProviderVerified)
	assert.True(t, r.ProviderCanEdit)
	assert.Equal(t, model.StatusCommunityVerified, r.Status)

	// The rival claim stays pending; approving it now fails the claimed_by
	// guard and nothing is written.
	_, err = s.ApproveClaim(ctx, rival.ID, "admin-1", "")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	got, err := s.GetClaim(ctx, rival.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimPending, got.Status)

	// New claims on a claimed resource conflict.
	_, err = s.CreateClaim(ctx, model.ProviderClaim{
		ResourceID: "res-1", UserID: "provider-3", ClaimReason: "late",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	entries, err := s.ListAuditEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "claim_approved", entries[0].Action)
	require.NotNil(t, entries[0].ResourceID)
	assert.Equal(t, "res-1", *entries[0].ResourceID)
}

func TestSQLite_ClaimLifecycle_Reject(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	seedResource(t, s, "res-1", "Eastside Pantry")

	claim, err := s.CreateClaim(ctx, model.ProviderClaim{
		ResourceID: "res-1", UserID: "provider-1", ClaimReason: "mine",
	})
	require.NoError(t, err)

	require.NoError(t, s.RejectClaim(ctx, claim.ID, "admin-1", "insufficient evidence"))

	// Rejection leaves the resource untouched and re-claimable.
	r, err := s.GetResource(ctx, "res-1")
	require.NoError(t, err)
	assert.Nil(t, r.ClaimedBy)
	assert.Equal(t, model.StatusUnverified, r.Status)

	_, err = s.CreateClaim(ctx, model.ProviderClaim{
		ResourceID: "res-1", UserID: "provider-1", ClaimReason: "with better evidence",
	})
	require.NoError(t, err)

	// Double review conflicts.
	err = s.RejectClaim(ctx, claim.ID, "admin-2", "again")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestSQLite_WithdrawClaim(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	seedResource(t, s, "res-1", "Eastside Pantry")

	claim, err := s.CreateClaim(ctx, model.ProviderClaim{
		ResourceID: "res-1", UserID: "provider-1", ClaimReason: "mine",
	})
	require.NoError(t, err)

	err = s.WithdrawClaim(ctx, claim.ID, "someone-else")
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	require.NoError(t, s.WithdrawClaim(ctx, claim.ID, "provider-1"))

	got, err := s.GetClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimWithdrawn, got.Status)
}

func TestSQLite_ApplyProposal(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	seedResource(t, s, "res-1", "Eastside Pantry")

	hours := &model.WeeklyHours{
		"monday": {{Open: "09:00", Close: "17:00"}},
		"friday": {{Open: "09:00", Close: "13:00"}},
	}
	promoted, err := s.ApplyProposal(ctx, "res-1", model.ProposalUpdate{
		Confidence: 0.93,
		Summary:    "Food pantry serving the east side, ID not required.",
		SourceURL:  "https://feedingamerica.org/pantry/eastside",
		Hours:      hours,
		Promote:    true,
	})
	require.NoError(t, err)
	assert.True(t, promoted)

	r, err := s.GetResource(ctx, "res-1")
	require.NoError(t, err)
	require.NotNil(t, r.ConfidenceScore)
	assert.InDelta(t, 0.93, *r.ConfidenceScore, 1e-9)
	assert.Equal(t, "Food pantry serving the east side, ID not required.", r.AISummary)
	require.NotNil(t, r.Hours)
	assert.Equal(t, "09:00", (*r.Hours)["monday"][0].Open)
	assert.Equal(t, model.StatusCommunityVerified, r.Status)

	// A later low-confidence pass updates columns without demoting.
	promoted, err = s.ApplyProposal(ctx, "res-1", model.ProposalUpdate{
		Confidence: 0.4,
		Summary:    "Could not confirm current hours.",
	})
	require.NoError(t, err)
	assert.False(t, promoted)

	r, err = s.GetResource(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCommunityVerified, r.Status)
	// COALESCE keeps the stored hours when none are proposed.
	require.NotNil(t, r.Hours)
}

func TestSQLite_ApplyProposal_WithFields(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	seedResource(t, s, "res-1", "Estside Pantr")

	_, err := s.ApplyProposal(ctx, "res-1", model.ProposalUpdate{
		Confidence: 0.8,
		Fields: &model.ProposedFields{
			Name:  "Eastside Pantry",
			Phone: "555-0123",
		},
	})
	require.NoError(t, err)

	r, err := s.GetResource(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, "Eastside Pantry", r.Name)
	assert.Equal(t, "555-0123", r.Phone)
	// Empty proposed values leave existing columns alone.
	assert.Equal(t, "", r.Website)
}

func TestSQLite_ApplyProposal_NotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.ApplyProposal(context.Background(), "ghost", model.ProposalUpdate{Confidence: 0.5})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestSQLite_AwardPoints(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	seedProfile(t, s, "user-1", 90, 1)

	require.NoError(t, s.AwardPoints(ctx, "user-1", model.ActionResourceVerified, 25, nil))

	p, err := s.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(115), p.Points)
	assert.Equal(t, 2, p.Level)

	// Negative deltas reduce points but never the level.
	require.NoError(t, s.AwardPoints(ctx, "user-1", model.ActionFalseReport, -10,
		map[string]any{"report_id": "rep-7"}))

	p, err = s.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(105), p.Points)
	assert.Equal(t, 2, p.Level)

	var historyRows int
	require.NoError(t, s.db.QueryRow(
		`SELECT COUNT(*) FROM points_history WHERE user_id = ?`, "user-1",
	).Scan(&historyRows))
	assert.Equal(t, 2, historyRows)
}

func TestSQLite_AwardPoints_NoProfileSkipsSilently(t *testing.T) {
	s := newTestSQLiteStore(t)

	err := s.AwardPoints(context.Background(), "ghost", model.ActionClaimApproved, 50, nil)
	require.NoError(t, err)

	var historyRows int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM points_history`).Scan(&historyRows))
	assert.Zero(t, historyRows)
}

func TestSQLite_AwardBadge_Idempotent(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	seedProfile(t, s, "user-1", 0, 1)

	added, err := s.AwardBadge(ctx, "user-1", model.BadgeVerifiedProvider)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AwardBadge(ctx, "user-1", model.BadgeVerifiedProvider)
	require.NoError(t, err)
	assert.False(t, added)

	p, err := s.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{model.BadgeVerifiedProvider}, p.Badges)
}

func TestSQLite_BulkTransition_StampsAndAudits(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	seedResource(t, s, "res-1", "A")
	seedResource(t, s, "res-2", "B")
	seedResource(t, s, "res-3", "C")

	result, err := s.BulkTransition(ctx, model.BulkUpdate{
		ResourceIDs:        []string{"res-1", "res-2", "missing"},
		NewStatus:          model.StatusOfficial,
		AdminID:            "admin-1",
		StampAdminVerified: true,
		Action:             "bulk_verify",
		Reason:             "quarterly review",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.AffectedCount)

	r, err := s.GetResource(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOfficial, r.Status)
	require.NotNil(t, r.AdminVerifiedBy)
	assert.Equal(t, "admin-1", *r.AdminVerifiedBy)
	assert.NotNil(t, r.AdminVerifiedAt)

	r, err = s.GetResource(ctx, "res-3")
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnverified, r.Status)

	entries, err := s.ListAuditEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bulk_verify", entries[0].Action)
	assert.Equal(t, "quarterly review", entries[0].Reason)
	assert.EqualValues(t, 2, entries[0].Changes["affected"])
}

func TestSQLite_ListEnhancementCandidates(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	seedResource(t, s, "res-1", "No confidence yet")
	seedResource(t, s, "res-2", "Already scored")
	seedResource(t, s, "res-3", "Already verified")

	_, err := s.db.Exec(`UPDATE resources SET confidence_score = 0.7 WHERE id = 'res-2'`)
	require.NoError(t, err)
	_, err = s.db.Exec(`UPDATE resources SET status = 'community_verified' WHERE id = 'res-3'`)
	require.NoError(t, err)

	got, err := s.ListEnhancementCandidates(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "res-1", got[0].ID)
}

func TestSQLite_CountByStatus(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	seedResource(t, s, "res-1", "A")
	seedResource(t, s, "res-2", "B")
	_, err := s.db.Exec(`UPDATE resources SET status = 'official' WHERE id = 'res-2'`)
	require.NoError(t, err)

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[model.StatusUnverified])
	assert.Equal(t, int64(1), counts[model.StatusOfficial])
}

func TestSQLite_GetProfile_Absent(t *testing.T) {
	s := newTestSQLiteStore(t)

	p, err := s.GetProfile(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, p)
}
