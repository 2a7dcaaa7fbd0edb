package model

import "time"

// VoteType is the kind of verification signal a user can record.
type VoteType string

const (
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
	VoteFlag VoteType = "flag"
)

// Valid reports whether v is a recognized vote type.
func (v VoteType) Valid() bool {
	switch v {
	case VoteUp, VoteDown, VoteFlag:
		return true
	}
	return false
}

// VerificationVote is one user's recorded signal against a resource.
// Rows are append-only and unique per (user_id, resource_id).
type VerificationVote struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ResourceID string    `json:"resource_id"`
	Vote       VoteType  `json:"vote"`
	Field      string    `json:"field,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// VoteOutcome is the result of a cast-vote operation.
type VoteOutcome struct {
	Accepted bool `json:"accepted"`
	// Duplicate is set when the (user, resource) pair already voted; the call
	// still succeeds but records nothing and awards nothing.
	Duplicate    bool `json:"duplicate,omitempty"`
	Promoted     bool `json:"promoted"`
	KarmaAwarded int  `json:"karma_awarded"`
}
