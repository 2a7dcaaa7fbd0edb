package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/harvestmap/trust-cli/internal/apperr"
	"github.com/harvestmap/trust-cli/internal/db"
	"github.com/harvestmap/trust-cli/internal/model"
	"github.com/harvestmap/trust-cli/internal/policy"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests use it with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS resources (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name                  TEXT NOT NULL,
	address               TEXT NOT NULL DEFAULT '',
	city                  TEXT NOT NULL DEFAULT '',
	state                 TEXT NOT NULL DEFAULT '',
	zip_code              TEXT NOT NULL DEFAULT '',
	phone                 TEXT NOT NULL DEFAULT '',
	website               TEXT NOT NULL DEFAULT '',
	description           TEXT NOT NULL DEFAULT '',
	status                TEXT NOT NULL DEFAULT 'unverified',
	confidence_score      DOUBLE PRECISION,
	claimed_by            TEXT,
	claimed_at            TIMESTAMPTZ,
	provider_role         TEXT NOT NULL DEFAULT '',
	provider_verified     BOOLEAN NOT NULL DEFAULT false,
	provider_can_edit     BOOLEAN NOT NULL DEFAULT false,
	community_verified_at TIMESTAMPTZ,
	admin_verified_by     TEXT,
	admin_verified_at     TIMESTAMPTZ,
	ai_summary            TEXT NOT NULL DEFAULT '',
	source_url            TEXT NOT NULL DEFAULT '',
	raw_hours             TEXT NOT NULL DEFAULT '',
	hours                 JSONB,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_resources_status ON resources(status);
CREATE INDEX IF NOT EXISTS idx_resources_claimed_by ON resources(claimed_by);

CREATE TABLE IF NOT EXISTS verification_votes (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id     TEXT NOT NULL,
	resource_id TEXT NOT NULL REFERENCES resources(id),
	vote        TEXT NOT NULL,
	field       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, resource_id)
);

CREATE INDEX IF NOT EXISTS idx_votes_resource ON verification_votes(resource_id, vote);

CREATE TABLE IF NOT EXISTS provider_claims (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	resource_id       TEXT NOT NULL REFERENCES resources(id),
	user_id           TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'pending',
	claim_reason      TEXT NOT NULL DEFAULT '',
	verification_info JSONB NOT NULL DEFAULT '{}',
	reviewed_by       TEXT,
	reviewed_at       TIMESTAMPTZ,
	review_notes      TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_claims_resource ON provider_claims(resource_id, status);
CREATE INDEX IF NOT EXISTS idx_claims_user ON provider_claims(user_id, status);

CREATE TABLE IF NOT EXISTS audit_log (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	admin_id    TEXT NOT NULL,
	action      TEXT NOT NULL,
	resource_id TEXT,
	changes     JSONB,
	reason      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at DESC);

CREATE TABLE IF NOT EXISTS user_profiles (
	user_id    TEXT PRIMARY KEY,
	points     BIGINT NOT NULL DEFAULT 0,
	level      INTEGER NOT NULL DEFAULT 1,
	karma      BIGINT NOT NULL DEFAULT 0,
	badges     JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS points_history (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id    TEXT NOT NULL,
	action     TEXT NOT NULL,
	delta      BIGINT NOT NULL,
	metadata   JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_points_history_user ON points_history(user_id, created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const resourceColumns = `id, name, address, city, state, zip_code, phone, website, description,
	status, confidence_score, claimed_by, claimed_at, provider_role, provider_verified,
	provider_can_edit, community_verified_at, admin_verified_by, admin_verified_at,
	ai_summary, source_url, raw_hours, hours, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (*model.Resource, error) {
	var r model.Resource
	var hoursJSON []byte

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
	if len(hoursJSON) > 0 {
		r.Hours = &model.WeeklyHours{}
		if err := json.Unmarshal(hoursJSON, r.Hours); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal hours")
		}
	}
	return &r, nil
}

func (s *PostgresStore) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id)
	r, err := scanResource(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get resource %s", id)
	}
	return r, nil
}

func (s *PostgresStore) GetResources(ctx context.Context, ids []string) ([]model.Resource, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE id = ANY($1) ORDER BY created_at`, ids)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get resources")
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan resource")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: get resources iterate")
}

func (s *PostgresStore) ListEnhancementCandidates(ctx context.Context, limit int) ([]model.Resource, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+resourceColumns+` FROM resources
		 WHERE status = 'unverified' AND (confidence_score IS NULL OR confidence_score = 0)
		 ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list enhancement candidates")
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list candidates iterate")
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[model.VerificationStatus]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM resources GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by status")
	}
	defer rows.Close()

	counts := make(map[model.VerificationStatus]int64)
	for rows.Next() {
		var status model.VerificationStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		counts[status] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count by status iterate")
}

// CastVote records a vote, conditionally promotes the resource, and awards
// karma, all in one transaction. A duplicate (user, resource) pair is an
// idempotent success: no new row, no karma, no promotion attempt.
func (s *PostgresStore) CastVote(ctx context.Context, vote model.VerificationVote, threshold int, karma int64) (*model.VoteOutcome, error) {
	outcome := &model.VoteOutcome{Accepted: true}
	now := time.Now().UTC()

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		id := vote.ID
		if id == "" {
			id = uuid.New().String()
		}
		tag, err := tx.Exec(ctx,
			`INSERT INTO verification_votes (id, user_id, resource_id, vote, field, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (user_id, resource_id) DO NOTHING`,
			id, vote.UserID, vote.ResourceID, string(vote.Vote), vote.Field, now,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: insert vote")
		}
		if tag.RowsAffected() == 0 {
			outcome.Duplicate = true
			return nil
		}

		if vote.Vote == model.VoteUp {
			var upVotes int
			err := tx.QueryRow(ctx,
				`SELECT COUNT(*) FROM verification_votes WHERE resource_id = $1 AND vote = 'up'`,
				vote.ResourceID,
			).Scan(&upVotes)
			if err != nil {
				return eris.Wrap(err, "postgres: count up votes")
			}

			if upVotes >= threshold {
				// Promote only if still unverified so concurrent threshold
				// crossings perform the side effects at most once.
				tag, err := tx.Exec(ctx,
					`UPDATE resources
					 SET status = 'community_verified', community_verified_at = $1, updated_at = $1
					 WHERE id = $2 AND status = 'unverified'`,
					now, vote.ResourceID,
				)
				if err != nil {
					return eris.Wrap(err, "postgres: promote resource")
				}
				outcome.Promoted = tag.RowsAffected() > 0
			}
		}

		// Karma is awarded once per accepted vote regardless of promotion.
		// Users without a profile are skipped silently.
		tag, err = tx.Exec(ctx,
			`UPDATE user_profiles SET karma = karma + $1, updated_at = $2 WHERE user_id = $3`,
			karma, now, vote.UserID,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: award karma")
		}
		if tag.RowsAffected() > 0 {
			outcome.KarmaAwarded = int(karma)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// CreateClaim inserts a pending claim after re-checking, inside the
// transaction, that the resource is unclaimed and the user has no pending
// claim on it.
func (s *PostgresStore) CreateClaim(ctx context.Context, claim model.ProviderClaim) (*model.ProviderClaim, error) {
	if claim.ID == "" {
		claim.ID = uuid.New().String()
	}
	claim.Status = model.ClaimPending
	claim.CreatedAt = time.Now().UTC()

	infoJSON, err := json.Marshal(claim.VerificationInfo)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal verification info")
	}

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var claimedBy *string
		err := tx.QueryRow(ctx,
			`SELECT claimed_by FROM resources WHERE id = $1`, claim.ResourceID,
		).Scan(&claimedBy)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("resource", claim.ResourceID)
			}
			return eris.Wrap(err, "postgres: check resource")
		}
		if claimedBy != nil {
			return apperr.Conflict("resource is already claimed")
		}

		var pending int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM provider_claims
			 WHERE resource_id = $1 AND user_id = $2 AND status = 'pending'`,
			claim.ResourceID, claim.UserID,
		).Scan(&pending)
		if err != nil {
			return eris.Wrap(err, "postgres: check pending claims")
		}
		if pending > 0 {
			return apperr.Conflict("you already have a pending claim on this resource")
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO provider_claims
			 (id, resource_id, user_id, status, claim_reason, verification_info, review_notes, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			claim.ID, claim.ResourceID, claim.UserID, string(claim.Status),
			claim.ClaimReason, infoJSON, claim.ReviewNotes, claim.CreatedAt,
		)
		return eris.Wrap(err, "postgres: insert claim")
	})
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

const claimColumns = `id, resource_id, user_id, status, claim_reason, verification_info,
	reviewed_by, reviewed_at, review_notes, created_at`

func scanClaim(row rowScanner) (*model.ProviderClaim, error) {
	var c model.ProviderClaim
	var infoJSON []byte
	err := row.Scan(
		&c.ID, &c.ResourceID, &c.UserID, &c.Status, &c.ClaimReason, &infoJSON,
		&c.ReviewedBy, &c.ReviewedAt, &c.ReviewNotes, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(infoJSON) > 0 {
		if err := json.Unmarshal(infoJSON, &c.VerificationInfo); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal verification info")
		}
	}
	return &c, nil
}

func (s *PostgresStore) GetClaim(ctx context.Context, claimID string) (*model.ProviderClaim, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+claimColumns+` FROM provider_claims WHERE id = $1`, claimID)
	c, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get claim %s", claimID)
	}
	return c, nil
}

// ApproveClaim performs the full approval in one transaction: claim to
// approved, resource ownership and trust upgrade, one audit row. The resource
// write is guarded by claimed_by IS NULL; if another claim won the race the
// transaction fails with Conflict and nothing is written.
func (s *PostgresStore) ApproveClaim(ctx context.Context, claimID, adminID, notes string) (*model.ProviderClaim, error) {
	now := time.Now().UTC()
	var approved *model.ProviderClaim

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT `+claimColumns+` FROM provider_claims WHERE id = $1`, claimID)
		c, err := scanClaim(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("claim", claimID)
			}
			return eris.Wrapf(err, "postgres: load claim %s", claimID)
		}
		if c.Status != model.ClaimPending {
			return apperr.Conflict("claim already reviewed")
		}

		tag, err := tx.Exec(ctx,
			`UPDATE provider_claims
			 SET status = 'approved', reviewed_by = $1, reviewed_at = $2, review_notes = $3
			 WHERE id = $4 AND status = 'pending'`,
			adminID, now, notes, claimID,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: approve claim")
		}
		if tag.RowsAffected() == 0 {
			return apperr.Conflict("claim already reviewed")
		}

		tag, err = tx.Exec(ctx,
			`UPDATE resources
			 SET claimed_by = $1, claimed_at = $2, provider_role = 'owner',
			     provider_verified = true, provider_can_edit = true,
			     status = 'community_verified', updated_at = $2
			 WHERE id = $3 AND claimed_by IS NULL`,
			c.UserID, now, c.ResourceID,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: claim resource")
		}
		if tag.RowsAffected() == 0 {
			return apperr.Conflict("resource was claimed by another provider")
		}

		err = appendAuditTx(ctx, tx, model.AuditLogEntry{
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

// RejectClaim marks a pending claim rejected and writes one audit row. The
// resource is not touched.
func (s *PostgresStore) RejectClaim(ctx context.Context, claimID, adminID, notes string) error {
	now := time.Now().UTC()

	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var resourceID string
		var status model.ClaimStatus
		err := tx.QueryRow(ctx,
			`SELECT resource_id, status FROM provider_claims WHERE id = $1`, claimID,
		).Scan(&resourceID, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("claim", claimID)
			}
			return eris.Wrapf(err, "postgres: load claim %s", claimID)
		}
		if status != model.ClaimPending {
			return apperr.Conflict("claim already reviewed")
		}

		tag, err := tx.Exec(ctx,
			`UPDATE provider_claims
			 SET status = 'rejected', reviewed_by = $1, reviewed_at = $2, review_notes = $3
			 WHERE id = $4 AND status = 'pending'`,
			adminID, now, notes, claimID,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: reject claim")
		}
		if tag.RowsAffected() == 0 {
			return apperr.Conflict("claim already reviewed")
		}

		return appendAuditTx(ctx, tx, model.AuditLogEntry{
			AdminID:    adminID,
			Action:     "claim_rejected",
			ResourceID: &resourceID,
			Changes:    map[string]any{"claim_id": claimID},
			Reason:     notes,
		})
	})
}

// WithdrawClaim lets a claimant retract their own pending claim.
func (s *PostgresStore) WithdrawClaim(ctx context.Context, claimID, userID string) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var ownerID string
		var status model.ClaimStatus
		err := tx.QueryRow(ctx,
			`SELECT user_id, status FROM provider_claims WHERE id = $1`, claimID,
		).Scan(&ownerID, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("claim", claimID)
			}
			return eris.Wrapf(err, "postgres: load claim %s", claimID)
		}
		if ownerID != userID {
			return apperr.Forbidden("only the claimant can withdraw a claim")
		}
		if status != model.ClaimPending {
			return apperr.Conflict("claim already reviewed")
		}

		tag, err := tx.Exec(ctx,
			`UPDATE provider_claims SET status = 'withdrawn' WHERE id = $1 AND status = 'pending'`,
			claimID,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: withdraw claim")
		}
		if tag.RowsAffected() == 0 {
			return apperr.Conflict("claim already reviewed")
		}
		return nil
	})
}

// ApplyProposal persists the enhancement columns and, when requested,
// conditionally promotes the resource. Proposed field values are written only
// when update.Fields is set (the admin-trusted bulk path).
func (s *PostgresStore) ApplyProposal(ctx context.Context, resourceID string, update model.ProposalUpdate) (bool, error) {
	now := time.Now().UTC()

	var hoursJSON []byte
	if update.Hours != nil {
		var err error
		hoursJSON, err = json.Marshal(update.Hours)
		if err != nil {
			return false, eris.Wrap(err, "postgres: marshal hours")
		}
	}

	var promoted bool
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE resources
			 SET confidence_score = $1, ai_summary = $2, source_url = $3,
			     hours = COALESCE($4, hours), updated_at = $5
			 WHERE id = $6`,
			update.Confidence, update.Summary, update.SourceURL, hoursJSON, now, resourceID,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: apply proposal")
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("resource", resourceID)
		}

		if update.Fields != nil {
			f := update.Fields
			_, err := tx.Exec(ctx,
				`UPDATE resources
				 SET name = COALESCE(NULLIF($1, ''), name),
				     address = COALESCE(NULLIF($2, ''), address),
				     phone = COALESCE(NULLIF($3, ''), phone),
				     website = COALESCE(NULLIF($4, ''), website),
				     description = COALESCE(NULLIF($5, ''), description)
				 WHERE id = $6`,
				f.Name, f.Address, f.Phone, f.Website, f.Description, resourceID,
			)
			if err != nil {
				return eris.Wrap(err, "postgres: apply proposed fields")
			}
		}

		if update.Promote {
			tag, err := tx.Exec(ctx,
				`UPDATE resources
				 SET status = 'community_verified', community_verified_at = $1, updated_at = $1
				 WHERE id = $2 AND status = 'unverified'`,
				now, resourceID,
			)
			if err != nil {
				return eris.Wrap(err, "postgres: auto-promote resource")
			}
			promoted = tag.RowsAffected() > 0
		}
		return nil
	})
	return promoted, err
}

// AwardPoints applies a delta to the user's points, recomputes the level
// (written only if it increased), and appends one history row, all in one
// transaction. Users without a profile are skipped silently.
func (s *PostgresStore) AwardPoints(ctx context.Context, userID string, action model.PointAction, delta int64, metadata map[string]any) error {
	now := time.Now().UTC()

	var metaJSON []byte
	if metadata != nil {
		var err error
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal points metadata")
		}
	}

	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var points int64
		var level int
		err := tx.QueryRow(ctx,
			`UPDATE user_profiles SET points = points + $1, updated_at = $2
			 WHERE user_id = $3
			 RETURNING points, level`,
			delta, now, userID,
		).Scan(&points, &level)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Profile creation is a collaborator concern.
				return nil
			}
			return eris.Wrap(err, "postgres: update points")
		}

		if newLevel := policy.LevelForPoints(points); newLevel > level {
			_, err := tx.Exec(ctx,
				`UPDATE user_profiles SET level = $1 WHERE user_id = $2`,
				newLevel, userID,
			)
			if err != nil {
				return eris.Wrap(err, "postgres: update level")
			}
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO points_history (id, user_id, action, delta, metadata, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New().String(), userID, string(action), delta, metaJSON, now,
		)
		return eris.Wrap(err, "postgres: insert points history")
	})
}

// AwardBadge adds badgeID to the user's badge set. Returns false without
// error when the badge is already held or the profile does not exist.
func (s *PostgresStore) AwardBadge(ctx context.Context, userID, badgeID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE user_profiles
		 SET badges = badges || to_jsonb($1::text), updated_at = $2
		 WHERE user_id = $3 AND NOT badges ? $1`,
		badgeID, time.Now().UTC(), userID,
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: award badge")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	var p model.UserProfile
	var badgesJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, points, level, karma, badges, created_at, updated_at
		 FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.Points, &p.Level, &p.Karma, &badgesJSON, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get profile %s", userID)
	}
	if len(badgesJSON) > 0 {
		if err := json.Unmarshal(badgesJSON, &p.Badges); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal badges")
		}
	}
	return &p, nil
}

// BulkTransition applies one set-based status update and writes exactly one
// audit row summarizing the batch, in one transaction. Missing ids no-op.
func (s *PostgresStore) BulkTransition(ctx context.Context, update model.BulkUpdate) (*model.BulkResult, error) {
	now := time.Now().UTC()
	var result model.BulkResult

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var tag pgconnCommandTag
		var err error
		if update.StampAdminVerified {
			tag, err = tx.Exec(ctx,
				`UPDATE resources
				 SET status = $1, admin_verified_by = $2, admin_verified_at = $3, updated_at = $3
				 WHERE id = ANY($4)`,
				string(update.NewStatus), update.AdminID, now, update.ResourceIDs,
			)
		} else {
			tag, err = tx.Exec(ctx,
				`UPDATE resources SET status = $1, updated_at = $2 WHERE id = ANY($3)`,
				string(update.NewStatus), now, update.ResourceIDs,
			)
		}
		if err != nil {
			return eris.Wrap(err, "postgres: bulk transition")
		}
		result.AffectedCount = tag.RowsAffected()

		return appendAuditTx(ctx, tx, model.AuditLogEntry{
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

// pgconnCommandTag narrows the Exec result so both branches above share one
// variable.
type pgconnCommandTag interface {
	RowsAffected() int64
}

func appendAuditTx(ctx context.Context, tx pgx.Tx, entry model.AuditLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var changesJSON []byte
	if entry.Changes != nil {
		var err error
		changesJSON, err = json.Marshal(entry.Changes)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal audit changes")
		}
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO audit_log (id, admin_id, action, resource_id, changes, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.AdminID, entry.Action, entry.ResourceID, changesJSON,
		entry.Reason, entry.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert audit entry")
}

func (s *PostgresStore) AppendAudit(ctx context.Context, entry model.AuditLogEntry) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return appendAuditTx(ctx, tx, entry)
	})
}

func (s *PostgresStore) ListAuditEntries(ctx context.Context, limit int) ([]model.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, admin_id, action, resource_id, changes, reason, created_at
		 FROM audit_log ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit entries")
	}
	defer rows.Close()

	var out []model.AuditLogEntry
	for rows.Next() {
		var e model.AuditLogEntry
		var changesJSON []byte
		if err := rows.Scan(&e.ID, &e.AdminID, &e.Action, &e.ResourceID, &changesJSON, &e.Reason, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit entry")
		}
		if len(changesJSON) > 0 {
			if err := json.Unmarshal(changesJSON, &e.Changes); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal audit changes")
			}
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list audit iterate")
}
