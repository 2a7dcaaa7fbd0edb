// Package policy holds the pure trust-policy decisions: the status transition
// table, vote and promotion thresholds, point deltas, level breakpoints, and
// the trusted-source check. No I/O lives here so every rule is independently
// testable.
package policy

import (
	"net/url"
	"strings"

	"github.com/harvestmap/trust-cli/internal/model"
)

const (
	// VoteThreshold is the number of up votes that promotes an unverified
	// resource to community_verified.
	VoteThreshold = 3

	// VoteKarma is the karma awarded once per accepted vote.
	VoteKarma = 5

	// AutoPromoteConfidence is the minimum AI confidence for auto-promotion
	// from a trusted source.
	AutoPromoteConfidence = 0.9
)

// adminTargets are the statuses an administrator may transition any resource
// into. official is reachable only through this path.
var adminTargets = map[model.VerificationStatus]bool{
	model.StatusCommunityVerified: true,
	model.StatusOfficial:          true,
	model.StatusRejected:          true,
	model.StatusDuplicate:         true,
	model.StatusFlagged:           true,
}

// ValidTransition reports whether the status change is allowed. System
// transitions are limited to unverified → community_verified; admins may move
// any state into any non-initial status. There is no downgrade path out of
// official except an explicit admin action.
func ValidTransition(from, to model.VerificationStatus, byAdmin bool) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if byAdmin {
		return adminTargets[to]
	}
	return from == model.StatusUnverified && to == model.StatusCommunityVerified
}

// LevelForPoints maps a points total to a level. Fixed breakpoints; monotone
// non-decreasing in points.
func LevelForPoints(points int64) int {
	switch {
	case points >= 1000:
		return 5
	case points >= 500:
		return 4
	case points >= 250:
		return 3
	case points >= 100:
		return 2
	default:
		return 1
	}
}

// actionDeltas is the fixed action → points table. Negative deltas are
// penalties.
var actionDeltas = map[model.PointAction]int64{
	model.ActionResourceSubmitted: 10,
	model.ActionResourceVerified:  25,
	model.ActionClaimApproved:     50,
	model.ActionHelpfulFlag:       5,
	model.ActionFalseReport:       -10,
}

// DeltaForAction returns the points delta for an action, and whether the
// action is known.
func DeltaForAction(action model.PointAction) (int64, bool) {
	d, ok := actionDeltas[action]
	return d, ok
}

// ShouldAutoPromote decides whether an enhancement proposal promotes the
// resource without community votes.
func ShouldAutoPromote(confidence float64, trustedSource bool) bool {
	return trustedSource && confidence >= AutoPromoteConfidence
}

// IsTrustedSource reports whether rawURL's host is on, or a subdomain of, a
// domain in the allow-list. Entries are compared case-insensitively and may
// be given with or without a scheme.
func IsTrustedSource(rawURL string, allowlist []string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	for _, entry := range allowlist {
		domain := hostOf(entry)
		if domain == "" {
			domain = strings.ToLower(strings.TrimSpace(entry))
		}
		if domain == "" {
			continue
		}
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func hostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	if h, _, found := strings.Cut(host, ":"); found {
		host = h
	}
	return strings.TrimPrefix(host, "www.")
}
