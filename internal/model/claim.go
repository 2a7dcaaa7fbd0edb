package model

import "time"

// ClaimStatus represents the review state of a provider claim.
type ClaimStatus string

const (
	ClaimPending   ClaimStatus = "pending"
	ClaimApproved  ClaimStatus = "approved"
	ClaimRejected  ClaimStatus = "rejected"
	ClaimWithdrawn ClaimStatus = "withdrawn"
)

// VerificationInfo is the claimant's supporting evidence.
type VerificationInfo struct {
	JobTitle     string `json:"job_title,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
	Method       string `json:"method,omitempty"`
}

// ProviderClaim is a request by a purported real-world operator to take
// ownership of a resource. At most one claim per resource may ever reach
// approved.
type ProviderClaim struct {
	ID               string           `json:"id"`
	ResourceID       string           `json:"resource_id"`
	UserID           string           `json:"user_id"`
	Status           ClaimStatus      `json:"status"`
	ClaimReason      string           `json:"claim_reason"`
	VerificationInfo VerificationInfo `json:"verification_info"`
	ReviewedBy       *string          `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time       `json:"reviewed_at,omitempty"`
	ReviewNotes      string           `json:"review_notes,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// ClaimDecision is an admin review verdict.
type ClaimDecision string

const (
	DecisionApprove ClaimDecision = "approve"
	DecisionReject  ClaimDecision = "reject"
)
