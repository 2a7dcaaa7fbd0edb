package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/harvestmap/trust-cli/internal/apperr"
	"github.com/harvestmap/trust-cli/internal/model"
	"github.com/harvestmap/trust-cli/internal/policy"
)

// SQLiteStore implements Store using modernc.org/sqlite. It mirrors the
// Postgres semantics for single-node and dev deployments; conditional writes
// are expressed identically.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS resources (
	id                    TEXT PRIMARY KEY,
	name                  TEXT NOT NULL,
	address               TEXT NOT NULL DEFAULT '',
	city                  TEXT NOT NULL DEFAULT '',
	state                 TEXT NOT NULL DEFAULT '',
	zip_code              TEXT NOT NULL DEFAULT '',
	phone                 TEXT NOT NULL DEFAULT '',
	website               TEXT NOT NULL DEFAULT '',
	description           TEXT NOT NULL DEFAULT '',
	status                TEXT NOT NULL DEFAULT 'unverified',
	confidence_score      REAL,
	claimed_by            TEXT,
	claimed_at            DATETIME,
	provider_role         TEXT NOT NULL DEFAULT '',
	provider_verified     INTEGER NOT NULL DEFAULT 0,
	provider_can_edit     INTEGER NOT NULL DEFAULT 0,
	community_verified_at DATETIME,
	admin_verified_by     TEXT,
	admin_verified_at     DATETIME,
	ai_summary            TEXT NOT NULL DEFAULT '',
	source_url            TEXT NOT NULL DEFAULT '',
	raw_hours             TEXT NOT NULL DEFAULT '',
	hours                 TEXT,
	created_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_resources_status ON resources(status);

CREATE TABLE IF NOT EXISTS verification_votes (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	resource_id TEXT NOT NULL REFERENCES resources(id),
	vote        TEXT NOT NULL,
	field       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (user_id, resource_id)
);

CREATE INDEX IF NOT EXISTS idx_votes_resource ON verification_votes(resource_id, vote);

CREATE TABLE IF NOT EXISTS provider_claims (
	id                TEXT PRIMARY KEY,
	resource_id       TEXT NOT NULL REFERENCES resources(id),
	user_id           TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'pending',
	claim_reason      TEXT NOT NULL DEFAULT '',
	verification_info TEXT NOT NULL DEFAULT '{}',
	reviewed_by       TEXT,
	reviewed_at       DATETIME,
	review_notes      TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_claims_resource ON provider_claims(resource_id, status);

CREATE TABLE IF NOT EXISTS audit_log (
	id          TEXT PRIMARY KEY,
	admin_id    TEXT NOT NULL,
	action      TEXT NOT NULL,
	resource_id TEXT,
	changes     TEXT,
	reason      TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS user_profiles (
	user_id    TEXT PRIMARY KEY,
	points     INTEGER NOT NULL DEFAULT 0,
	level      INTEGER NOT NULL DEFAULT 1,
	karma      INTEGER NOT NULL DEFAULT 0,
	badges     TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS points_history (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	action     TEXT NOT NULL,
	delta      INTEGER NOT NULL,
	metadata   TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withTx mirrors db.WithTx for database/sql.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit tx")
	}
	return nil
}

// placeholders returns "?, ?, ..." for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func idArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func scanResourceSQLite(row rowScanner) (*model.Resource, error) {
	var r model.Resource
	var hoursJSON sql.NullString

	err := row.Scan(
		&r.ID, &r.Name, &r.Address, &r.City, &r.State, &r.ZipCode, &r.Phone,
		&r.Website, &r.Description, &r.Status, &r.ConfidenceScore, &r.ClaimedBy,
		&r.ClaimedAt, &r.ProviderRole, &r.ProviderVerified, &r.ProviderCanEdit,
		&r.CommunityVerifiedAt, &r.AdminVerifiedBy, &r.AdminVerifiedAt,
		&r.AISummary, &r.SourceURL, &r.RawHours, &hoursJSON,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if hoursJSON.Valid && hoursJSON.String != "" {
		r.Hours = &model.WeeklyHours{}
		if err := json.Unmarshal([]byte(hoursJSON.String), r.Hours); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal hours")
		}
	}
	return &r, nil
}

func (s *SQLiteStore) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id)
	r, err := scanResourceSQLite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get resource %s", id)
	}
	return r, nil
}

func (s *SQLiteStore) GetResources(ctx context.Context, ids []string) ([]model.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE id IN (`+placeholders(len(ids))+`) ORDER BY created_at`,
		idArgs(ids)...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get resources")
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		r, err := scanResourceSQLite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan resource")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: get resources iterate")
}

func (s *SQLiteStore) ListEnhancementCandidates(ctx context.Context, limit int) ([]model.Resource, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+resourceColumns+` FROM resources
		 WHERE status = 'unverified' AND (confidence_score IS NULL OR confidence_score = 0)
		 ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list enhancement candidates")
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		r, err := scanResourceSQLite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list candidates iterate")
}

func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[model.VerificationStatus]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM resources GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by status")
	}
	defer rows.Close()

	counts := make(map[model.VerificationStatus]int64)
	for rows.Next() {
		var status model.VerificationStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		counts[status] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count by status iterate")
}

func (s *SQLiteStore) CastVote(ctx context.Context, vote model.VerificationVote, threshold int, karma int64) (*model.VoteOutcome, error) {
	outcome := &model.VoteOutcome{Accepted: true}
	now := time.Now().UTC()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id := vote.ID
		if id == "" {
			id = uuid.New().String()
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO verification_votes (id, user_id, resource_id, vote, field, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (user_id, resource_id) DO NOTHING`,
			id, vote.UserID, vote.ResourceID, string(vote.Vote), vote.Field, now,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert vote")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return eris.Wrap(err, "sqlite: rows affected")
		}
		if n == 0 {
			outcome.Duplicate = true
			return nil
		}

		if vote.Vote == model.VoteUp {
			var upVotes int
			err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM verification_votes WHERE resource_id = ? AND vote = 'up'`,
				vote.ResourceID,
			).Scan(&upVotes)
			if err != nil {
				return eris.Wrap(err, "sqlite: count up votes")
			}

			if upVotes >= threshold {
				res, err := tx.ExecContext(ctx,
					`UPDATE resources
					 SET status = 'community_verified', community_verified_at = ?, updated_at = ?
					 WHERE id = ? AND status = 'unverified'`,
					now, now, vote.ResourceID,
				)
				if err != nil {
					return eris.Wrap(err, "sqlite: promote resource")
				}
				n, err := res.RowsAffected()
				if err != nil {
					return eris.Wrap(err, "sqlite: rows affected")
				}
				outcome.Promoted = n > 0
			}
		}

		res, err = tx.ExecContext(ctx,
			`UPDATE user_profiles SET karma = karma + ?, updated_at = ? WHERE user_id = ?`,
			karma, now, vote.UserID,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: award karma")
		}
		n, err = res.RowsAffected()
		if err != nil {
			return eris.Wrap(err, "sqlite: rows affected")
		}
		if n > 0 {
			outcome.KarmaAwarded = int(karma)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *SQLiteStore) CreateClaim(ctx context.Context, claim model.ProviderClaim) (*model.ProviderClaim, error) {
	if claim.ID == "" {
		claim.ID = uuid.New().String()
	}
	claim.Status = model.ClaimPending
	claim.CreatedAt = time.Now().UTC()

	infoJSON, err := json.Marshal(claim.VerificationInfo)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal verification info")
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var claimedBy *string
		err := tx.QueryRowContext(ctx,
			`SELECT claimed_by FROM resources WHERE id = ?`, claim.ResourceID,
		).Scan(&claimedBy)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("resource", claim.ResourceID)
			}
			return eris.Wrap(err, "sqlite: check resource")
		}
		if claimedBy != nil {
			return apperr.Conflict("resource is already claimed")
		}

		var pending int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM provider_claims
			 WHERE resource_id = ? AND user_id = ? AND status = 'pending'`,
			claim.ResourceID, claim.UserID,
		).Scan(&pending)
		if err != nil {
			return eris.Wrap(err, "sqlite: check pending claims")
		}
		if pending > 0 {
			return apperr.Conflict("you already have a pending claim on this resource")
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO provider_claims
			 (id, resource_id, user_id, status, claim_reason, verification_info, review_notes, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			claim.ID, claim.ResourceID, claim.UserID, string(claim.Status),
			claim.ClaimReason, string(infoJSON), claim.ReviewNotes, claim.CreatedAt,
		)
		return eris.Wrap(err, "sqlite: insert claim")
	})
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func scanClaimSQLite(row rowScanner) (*model.ProviderClaim, error) {
	var c model.ProviderClaim
	var infoJSON sql.NullString
	err := row.Scan(
		&c.ID, &c.ResourceID, &c.UserID, &c.Status, &c.ClaimReason, &infoJSON,
		&c.ReviewedBy, &c.ReviewedAt, &c.ReviewNotes, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if infoJSON.Valid && infoJSON.String != "" {
		if err := json.Unmarshal([]byte(infoJSON.String), &c.VerificationInfo); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal verification info")
		}
	}
	return &c, nil
}

func (s *SQLiteStore) GetClaim(ctx context.Context, claimID string) (*model.ProviderClaim, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM provider_claims WHERE id = ?`, claimID)
	c, err := scanClaimSQLite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get claim %s", claimID)
	}
	return c, nil
}

func (s *SQLiteStore) ApproveClaim(ctx context.Context, claimID, adminID, notes string) (*model.ProviderClaim, error) {
	now := time.Now().UTC()
	var approved *model.ProviderClaim

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+claimColumns+` FROM provider_claims WHERE id = ?`, claimID)
		c, err := scanClaimSQLite(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("claim", claimID)
			}
			return eris.Wrapf(err, "sqlite: load claim %s", claimID)
		}
		if c.Status != model.ClaimPending {
			return apperr.Conflict("claim already reviewed")
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE provider_claims
			 SET status = 'approved', reviewed_by = ?, reviewed_at = ?, review_notes = ?
			 WHERE id = ? AND status = 'pending'`,
			adminID, now, notes, claimID,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: approve claim")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.Conflict("claim already reviewed")
		}

		res, err = tx.ExecContext(ctx,
			`UPDATE resources
			 SET claimed_by = ?, claimed_at = ?, provider_role = 'owner',
			     provider_verified = 1, provider_can_edit = 1,
			     status = 'community_verified', updated_at = ?
			 WHERE id = ? AND claimed_by IS NULL`,
			c.UserID, now, now, c.ResourceID,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: claim resource")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.Conflict("resource was claimed by another provider")
		}

		err = appendAuditSQLite(ctx, tx, model.AuditLogEntry{
			AdminID:    adminID,
			Action:     "claim_approved",
			ResourceID: &c.ResourceID,
			Changes: map[string]any{
				"claim_id":   claimID,
				"claimed_by": c.UserID,
				"status":     string(model.StatusCommunityVerified),
			},
			Reason: notes,
		})
		if err != nil {
			return err
		}

		c.Status = model.ClaimApproved
		c.ReviewedBy = &adminID
		c.ReviewedAt = &now
		c.ReviewNotes = notes
		approved = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

func (s *SQLiteStore) RejectClaim(ctx context.Context, claimID, adminID, notes string) error {
	now := time.Now().UTC()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var resourceID string
		var status model.ClaimStatus
		err := tx.QueryRowContext(ctx,
			`SELECT resource_id, status FROM provider_claims WHERE id = ?`, claimID,
		).Scan(&resourceID, &status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("claim", claimID)
			}
			return eris.Wrapf(err, "sqlite: load claim %s", claimID)
		}
		if status != model.ClaimPending {
			return apperr.Conflict("claim already reviewed")
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE provider_claims
			 SET status = 'rejected', reviewed_by = ?, reviewed_at = ?, review_notes = ?
			 WHERE id = ? AND status = 'pending'`,
			adminID, now, notes, claimID,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: reject claim")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.Conflict("claim already reviewed")
		}

		return appendAuditSQLite(ctx, tx, model.AuditLogEntry{
			AdminID:    adminID,
			Action:     "claim_rejected",
			ResourceID: &resourceID,
			Changes:    map[string]any{"claim_id": claimID},
			Reason:     notes,
		})
	})
}

func (s *SQLiteStore) WithdrawClaim(ctx context.Context, claimID, userID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var ownerID string
		var status model.ClaimStatus
		err := tx.QueryRowContext(ctx,
			`SELECT user_id, status FROM provider_claims WHERE id = ?`, claimID,
		).Scan(&ownerID, &status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("claim", claimID)
			}
			return eris.Wrapf(err, "sqlite: load claim %s", claimID)
		}
		if ownerID != userID {
			return apperr.Forbidden("only the claimant can withdraw a claim")
		}
		if status != model.ClaimPending {
			return apperr.Conflict("claim already reviewed")
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE provider_claims SET status = 'withdrawn' WHERE id = ? AND status = 'pending'`,
			claimID,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: withdraw claim")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.Conflict("claim already reviewed")
		}
		return nil
	})
}

func (s *SQLiteStore) ApplyProposal(ctx context.Context, resourceID string, update model.ProposalUpdate) (bool, error) {
	now := time.Now().UTC()

	var hoursJSON any
	if update.Hours != nil {
		b, err := json.Marshal(update.Hours)
		if err != nil {
			return false, eris.Wrap(err, "sqlite: marshal hours")
		}
		hoursJSON = string(b)
	}

	var promoted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE resources
			 SET confidence_score = ?, ai_summary = ?, source_url = ?,
			     hours = COALESCE(?, hours), updated_at = ?
			 WHERE id = ?`,
			update.Confidence, update.Summary, update.SourceURL, hoursJSON, now, resourceID,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: apply proposal")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("resource", resourceID)
		}

		if update.Fields != nil {
			f := update.Fields
			_, err := tx.ExecContext(ctx,
				`UPDATE resources
				 SET name = COALESCE(NULLIF(?, ''), name),
				     address = COALESCE(NULLIF(?, ''), address),
				     phone = COALESCE(NULLIF(?, ''), phone),
				     website = COALESCE(NULLIF(?, ''), website),
				     description = COALESCE(NULLIF(?, ''), description)
				 WHERE id = ?`,
				f.Name, f.Address, f.Phone, f.Website, f.Description, resourceID,
			)
			if err != nil {
				return eris.Wrap(err, "sqlite: apply proposed fields")
			}
		}

		if update.Promote {
			res, err := tx.ExecContext(ctx,
				`UPDATE resources
				 SET status = 'community_verified', community_verified_at = ?, updated_at = ?
				 WHERE id = ? AND status = 'unverified'`,
				now, now, resourceID,
			)
			if err != nil {
				return eris.Wrap(err, "sqlite: auto-promote resource")
			}
			n, _ := res.RowsAffected()
			promoted = n > 0
		}
		return nil
	})
	return promoted, err
}

func (s *SQLiteStore) AwardPoints(ctx context.Context, userID string, action model.PointAction, delta int64, metadata map[string]any) error {
	now := time.Now().UTC()

	var metaJSON any
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal points metadata")
		}
		metaJSON = string(b)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var points int64
		var level int
		err := tx.QueryRowContext(ctx,
			`SELECT points, level FROM user_profiles WHERE user_id = ?`, userID,
		).Scan(&points, &level)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Profile creation is a collaborator concern.
				return nil
			}
			return eris.Wrap(err, "sqlite: load profile")
		}

		points += delta
		newLevel := level
		if l := policy.LevelForPoints(points); l > level {
			newLevel = l
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE user_profiles SET points = ?, level = ?, updated_at = ? WHERE user_id = ?`,
			points, newLevel, now, userID,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: update points")
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO points_history (id, user_id, action, delta, metadata, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), userID, string(action), delta, metaJSON, now,
		)
		return eris.Wrap(err, "sqlite: insert points history")
	})
}

func (s *SQLiteStore) AwardBadge(ctx context.Context, userID, badgeID string) (bool, error) {
	var added bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var badgesJSON string
		err := tx.QueryRowContext(ctx,
			`SELECT badges FROM user_profiles WHERE user_id = ?`, userID,
		).Scan(&badgesJSON)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return eris.Wrap(err, "sqlite: load badges")
		}

		var badges []string
		if err := json.Unmarshal([]byte(badgesJSON), &badges); err != nil {
			return eris.Wrap(err, "sqlite: unmarshal badges")
		}
		if slices.Contains(badges, badgeID) {
			return nil
		}
		badges = append(badges, badgeID)

		b, err := json.Marshal(badges)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal badges")
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE user_profiles SET badges = ?, updated_at = ? WHERE user_id = ?`,
			string(b), time.Now().UTC(), userID,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: award badge")
		}
		added = true
		return nil
	})
	return added, err
}

func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	var p model.UserProfile
	var badgesJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, points, level, karma, badges, created_at, updated_at
		 FROM user_profiles WHERE user_id = ?`,
		userID,
	).Scan(&p.UserID, &p.Points, &p.Level, &p.Karma, &badgesJSON, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get profile %s", userID)
	}
	if badgesJSON != "" {
		if err := json.Unmarshal([]byte(badgesJSON), &p.Badges); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal badges")
		}
	}
	return &p, nil
}

func (s *SQLiteStore) BulkTransition(ctx context.Context, update model.BulkUpdate) (*model.BulkResult, error) {
	now := time.Now().UTC()
	var result model.BulkResult

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var res sql.Result
		var err error
		if update.StampAdminVerified {
			args := append([]any{string(update.NewStatus), update.AdminID, now, now}, idArgs(update.ResourceIDs)...)
			res, err = tx.ExecContext(ctx,
				`UPDATE resources
				 SET status = ?, admin_verified_by = ?, admin_verified_at = ?, updated_at = ?
				 WHERE id IN (`+placeholders(len(update.ResourceIDs))+`)`,
				args...,
			)
		} else {
			args := append([]any{string(update.NewStatus), now}, idArgs(update.ResourceIDs)...)
			res, err = tx.ExecContext(ctx,
				`UPDATE resources SET status = ?, updated_at = ?
				 WHERE id IN (`+placeholders(len(update.ResourceIDs))+`)`,
				args...,
			)
		}
		if err != nil {
			return eris.Wrap(err, "sqlite: bulk transition")
		}
		result.AffectedCount, err = res.RowsAffected()
		if err != nil {
			return eris.Wrap(err, "sqlite: rows affected")
		}

		return appendAuditSQLite(ctx, tx, model.AuditLogEntry{
			AdminID: update.AdminID,
			Action:  update.Action,
			Changes: map[string]any{
				"new_status": string(update.NewStatus),
				"requested":  len(update.ResourceIDs),
				"affected":   result.AffectedCount,
			},
			Reason: update.Reason,
		})
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func appendAuditSQLite(ctx context.Context, tx *sql.Tx, entry model.AuditLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var changesJSON any
	if entry.Changes != nil {
		b, err := json.Marshal(entry.Changes)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal audit changes")
		}
		changesJSON = string(b)
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (id, admin_id, action, resource_id, changes, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.AdminID, entry.Action, entry.ResourceID, changesJSON,
		entry.Reason, entry.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert audit entry")
}

func (s *SQLiteStore) AppendAudit(ctx context.Context, entry model.AuditLogEntry) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return appendAuditSQLite(ctx, tx, entry)
	})
}

func (s *SQLiteStore) ListAuditEntries(ctx context.Context, limit int) ([]model.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, admin_id, action, resource_id, changes, reason, created_at
		 FROM audit_log ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit entries")
	}
	defer rows.Close()

	var out []model.AuditLogEntry
	for rows.Next() {
		var e model.AuditLogEntry
		var changesJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.AdminID, &e.Action, &e.ResourceID, &changesJSON, &e.Reason, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit entry")
		}
		if changesJSON.Valid && changesJSON.String != "" {
			if err := json.Unmarshal([]byte(changesJSON.String), &e.Changes); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal audit changes")
			}
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list audit iterate")
}
