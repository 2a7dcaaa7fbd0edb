// Package store persists resources, votes, claims, profiles, and audit
// entries. All multi-step mutations run inside a single transaction and
// express check-then-act as conditional SQL so concurrent callers race
// harmlessly.
package store

import (
	"context"

	"github.com/harvestmap/trust-cli/internal/model"
)

// Store defines the persistence interface for the trust pipeline.
type Store interface {
	// Registry
	GetResource(ctx context.Context, id string) (*model.Resource, error)
	GetResources(ctx context.Context, ids []string) ([]model.Resource, error)
	ListEnhancementCandidates(ctx context.Context, limit int) ([]model.Resource, error)
	CountByStatus(ctx context.Context) (map[model.VerificationStatus]int64, error)

	// Verification ledger
	CastVote(ctx context.Context, vote model.VerificationVote, threshold int, karma int64) (*model.VoteOutcome, error)

	// Claims
	CreateClaim(ctx context.Context, claim model.ProviderClaim) (*model.ProviderClaim, error)
	GetClaim(ctx context.Context, claimID string) (*model.ProviderClaim, error)
	ApproveClaim(ctx context.Context, claimID, adminID, notes string) (*model.ProviderClaim, error)
	RejectClaim(ctx context.Context, claimID, adminID, notes string) error
	WithdrawClaim(ctx context.Context, claimID, userID string) error

	// Enhancement
	ApplyProposal(ctx context.Context, resourceID string, update model.ProposalUpdate) (promoted bool, err error)

	// Points ledger
	AwardPoints(ctx context.Context, userID string, action model.PointAction, delta int64, metadata map[string]any) error
	AwardBadge(ctx context.Context, userID, badgeID string) (bool, error)
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)

	// Admin batch and audit
	BulkTransition(ctx context.Context, update model.BulkUpdate) (*model.BulkResult, error)
	AppendAudit(ctx context.Context, entry model.AuditLogEntry) error
	ListAuditEntries(ctx context.Context, limit int) ([]model.AuditLogEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
