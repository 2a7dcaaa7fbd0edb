package model

import "time"

// PointAction identifies a reputation-affecting event in the points ledger.
type PointAction string

const (
	ActionResourceSubmitted PointAction = "resource_submitted"
	ActionResourceVerified  PointAction = "resource_verified"
	ActionClaimApproved     PointAction = "claim_approved"
	ActionHelpfulFlag       PointAction = "helpful_flag"
	ActionFalseReport       PointAction = "false_report"
)

// UserProfile is the reputation record for one user. Level is always a pure
// function of points; karma is a separate counter awarded for voting.
type UserProfile struct {
	UserID    string    `json:"user_id"`
	Points    int64     `json:"points"`
	Level     int       `json:"level"`
	Karma     int64     `json:"karma"`
	Badges    []string  `json:"badges"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasBadge reports whether the profile already holds badgeID.
func (p *UserProfile) HasBadge(badgeID string) bool {
	for _, b := range p.Badges {
		if b == badgeID {
			return true
		}
	}
	return false
}

// PointsHistoryEntry is one immutable row of the points ledger.
type PointsHistoryEntry struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Action    PointAction    `json:"action"`
	Delta     int64          `json:"delta"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Badge identifiers awarded by the pipeline.
const (
	BadgeVerifiedProvider = "verified_provider"
	BadgeTrustedReporter  = "trusted_reporter"
)
