// Package api exposes the trust pipeline over HTTP. Authentication is
// delegated to an upstream gateway that forwards verified identity in
// X-User-ID and X-User-Role headers.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/harvestmap/trust-cli/internal/admin"
	"github.com/harvestmap/trust-cli/internal/claims"
	"github.com/harvestmap/trust-cli/internal/enhance"
	"github.com/harvestmap/trust-cli/internal/model"
)

// VoteService records community verification votes.
type VoteService interface {
	CastVote(ctx context.Context, userID, resourceID string, vote model.VoteType, field string) (*model.VoteOutcome, error)
}

// ClaimService manages provider ownership claims.
type ClaimService interface {
	Submit(ctx context.Context, userID string, req claims.SubmitRequest) (*model.ProviderClaim, error)
	Review(ctx context.Context, adminID, claimID string, decision model.ClaimDecision, notes string) (*model.ProviderClaim, error)
	Withdraw(ctx context.Context, userID, claimID string) error
	Get(ctx context.Context, userID string, isAdmin bool, claimID string) (*model.ProviderClaim, error)
}

// EnhanceService runs the AI enhancement pipeline.
type EnhanceService interface {
	RunBatch(ctx context.Context, batchSize int) (*enhance.BatchResult, error)
	BulkEnhance(ctx context.Context, adminID string, ids []string) (*model.BulkEnhanceResult, error)
}

// AdminService performs bulk moderation and reports statistics.
type AdminService interface {
	Bulk(ctx context.Context, adminID string, ids []string, action model.BulkAction, params model.BulkParams) (*admin.BulkOutcome, error)
	TrustStats(ctx context.Context) (*admin.TrustStats, error)
}

// Server holds the service dependencies behind the HTTP handlers.
type Server struct {
	votes   VoteService
	claims  ClaimService
	enhance EnhanceService
	admin   AdminService
}

// Options tunes router construction.
type Options struct {
	AllowedOrigins []string
}

// NewRouter wires the full route tree.
func NewRouter(votes VoteService, claimSvc ClaimService, enhanceSvc EnhanceService, adminSvc AdminService, opts Options) http.Handler {
	s := &Server{votes: votes, claims: claimSvc, enhance: enhanceSvc, admin: adminSvc}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(identity)

	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-User-ID", "X-User-Role"},
		}))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats/trust", s.handleTrustStats)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Post("/resources/{id}/votes", s.handleCastVote)
			r.Post("/resources/{id}/claims", s.handleSubmitClaim)
			r.Get("/claims/{id}", s.handleGetClaim)
			r.Post("/claims/{id}/withdraw", s.handleWithdrawClaim)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Post("/claims/{id}/review", s.handleReviewClaim)
			r.Post("/enhance/batch", s.handleEnhanceBatch)
			r.Post("/enhance/bulk", s.handleBulkEnhance)
			r.Post("/admin/bulk", s.handleAdminBulk)
		})
	})

	return r
}
