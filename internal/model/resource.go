package model

import "time"

// VerificationStatus represents the trust tier of a resource.
type VerificationStatus string

const (
	StatusUnverified        VerificationStatus = "unverified"
	StatusCommunityVerified VerificationStatus = "community_verified"
	StatusOfficial          VerificationStatus = "official"
	StatusRejected          VerificationStatus = "rejected"
	StatusDuplicate         VerificationStatus = "duplicate"
	StatusFlagged           VerificationStatus = "flagged"
)

// AllStatuses lists every valid verification status.
var AllStatuses = []VerificationStatus{
	StatusUnverified,
	StatusCommunityVerified,
	StatusOfficial,
	StatusRejected,
	StatusDuplicate,
	StatusFlagged,
}

// Valid reports whether s is a member of the closed status set.
func (s VerificationStatus) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Resource is a community-submitted food-assistance location record.
// Resources are never deleted, only status-transitioned.
type Resource struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	ZipCode     string `json:"zip_code,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Website     string `json:"website,omitempty"`
	Description string `json:"description,omitempty"`

	Status          VerificationStatus `json:"status"`
	ConfidenceScore *float64           `json:"confidence_score,omitempty"`

	ClaimedBy        *string    `json:"claimed_by,omitempty"`
	ClaimedAt        *time.Time `json:"claimed_at,omitempty"`
	ProviderRole     string     `json:"provider_role,omitempty"`
	ProviderVerified bool       `json:"provider_verified"`
	ProviderCanEdit  bool       `json:"provider_can_edit"`

	CommunityVerifiedAt *time.Time `json:"community_verified_at,omitempty"`
	AdminVerifiedBy     *string    `json:"admin_verified_by,omitempty"`
	AdminVerifiedAt     *time.Time `json:"admin_verified_at,omitempty"`

	AISummary string       `json:"ai_summary,omitempty"`
	SourceURL string       `json:"source_url,omitempty"`
	RawHours  string       `json:"raw_hours,omitempty"`
	Hours     *WeeklyHours `json:"hours,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OpenSpan is a single open/close interval in "HH:MM" 24-hour form.
type OpenSpan struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// WeeklyHours is the normalized opening-hours structure keyed by lowercase
// weekday name ("monday" .. "sunday"). A missing day means closed.
type WeeklyHours map[string][]OpenSpan

// Proposal is the structured output of the AI collaborator for one resource.
type Proposal struct {
	Confidence float64        `json:"confidence"`
	Summary    string         `json:"summary"`
	Sources    []string       `json:"sources"`
	Hours      *WeeklyHours   `json:"hours,omitempty"`
	Fields     ProposedFields `json:"fields"`
}

// PrimarySource returns the first candidate source, or "" when none.
func (p *Proposal) PrimarySource() string {
	if len(p.Sources) == 0 {
		return ""
	}
	return p.Sources[0]
}

// ProposedFields carries optional field values proposed by the AI. Only the
// admin-trusted bulk path applies these; the autonomous batch persists just
// the enhancement columns.
type ProposedFields struct {
	Name        string `json:"name,omitempty"`
	Address     string `json:"address,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Website     string `json:"website,omitempty"`
	Description string `json:"description,omitempty"`
}

// ProposalUpdate is the persistence instruction derived from a Proposal.
type ProposalUpdate struct {
	Confidence float64
	Summary    string
	SourceURL  string
	Hours      *WeeklyHours
	// Promote requests the conditional unverified → community_verified write.
	Promote bool
	// Fields is non-nil only on the admin-trusted bulk path.
	Fields *ProposedFields
}

// EnhanceItemStatus is the per-item outcome of an enhancement batch.
type EnhanceItemStatus string

const (
	EnhanceItemSuccess EnhanceItemStatus = "success"
	EnhanceItemError   EnhanceItemStatus = "error"
)

// EnhanceItemResult reports one resource's outcome within a batch run.
type EnhanceItemResult struct {
	ID         string            `json:"id"`
	Status     EnhanceItemStatus `json:"status"`
	Confidence *float64          `json:"confidence,omitempty"`
	Promoted   bool              `json:"promoted,omitempty"`
	Error      string            `json:"error,omitempty"`
	// Transient marks errors that are likely to succeed on a later run.
	Transient bool `json:"transient,omitempty"`
}

// BulkEnhanceResult summarizes the admin bulk-enhance operation.
type BulkEnhanceResult struct {
	Enhanced int               `json:"enhanced"`
	Failed   int               `json:"failed"`
	Errors   map[string]string `json:"errors,omitempty"`
}
