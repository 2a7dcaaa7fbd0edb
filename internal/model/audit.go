package model

import "time"

// AuditLogEntry is one append-only record of an administrative or system
// decision affecting trust or ownership. Batch operations write exactly one
// entry summarizing the batch.
type AuditLogEntry struct {
	ID         string         `json:"id"`
	AdminID    string         `json:"admin_id"`
	Action     string         `json:"action"`
	ResourceID *string        `json:"resource_id,omitempty"`
	Changes    map[string]any `json:"changes,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// BulkAction is a set-based admin transition kind.
type BulkAction string

const (
	BulkVerify  BulkAction = "verify"
	BulkReject  BulkAction = "reject"
	BulkFlag    BulkAction = "flag"
	BulkEnhance BulkAction = "enhance"
)

// BulkParams carries optional metadata for a bulk operation.
type BulkParams struct {
	Reason string `json:"reason,omitempty"`
	Note   string `json:"note,omitempty"`
	// Kind selects the target status for flag operations:
	// "flagged" (default) or "duplicate".
	Kind string `json:"kind,omitempty"`
}

// BulkUpdate is the store-level instruction for one set-based transition.
// The store applies it as a single UPDATE plus one audit row in one
// transaction.
type BulkUpdate struct {
	ResourceIDs []string
	NewStatus   VerificationStatus
	AdminID     string
	// StampAdminVerified records admin_verified_by/at on affected rows.
	StampAdminVerified bool
	Action             string
	Reason             string
}

// BulkResult reports how many existing resources a bulk transition touched.
type BulkResult struct {
	AffectedCount int64 `json:"affected_count"`
}
