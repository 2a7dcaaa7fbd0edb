package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/harvestmap/trust-cli/internal/apperr"
	"github.com/harvestmap/trust-cli/internal/claims"
	"github.com/harvestmap/trust-cli/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindStorage || kind == apperr.KindUpstream {
		zap.L().Error("request failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	writeJSON(w, apperr.HTTPStatus(kind), map[string]string{"error": apperr.UserMessage(err)})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Vote  model.VoteType `json:"vote"`
		Field string         `json:"field"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	outcome, err := s.votes.CastVote(r.Context(), userID(r.Context()),
		chi.URLParam(r, "id"), req.Vote, req.Field)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	var req claims.SubmitRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.ResourceID = chi.URLParam(r, "id")

	claim, err := s.claims.Submit(r.Context(), userID(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}

func (s *Server) handleReviewClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Decision model.ClaimDecision `json:"decision"`
		Notes    string              `json:"notes"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	claim, err := s.claims.Review(r.Context(), userID(r.Context()),
		chi.URLParam(r, "id"), req.Decision, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := s.claims.Get(r.Context(), userID(r.Context()),
		isAdmin(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

func (s *Server) handleWithdrawClaim(w http.ResponseWriter, r *http.Request) {
	err := s.claims.Withdraw(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

func (s *Server) handleEnhanceBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BatchSize int `json:"batch_size"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.enhance.RunBatch(r.Context(), req.BatchSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBulkEnhance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ResourceIDs []string `json:"resource_ids"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.enhance.BulkEnhance(r.Context(), userID(r.Context()), req.ResourceIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAdminBulk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ResourceIDs []string         `json:"resource_ids"`
		Action      model.BulkAction `json:"action"`
		Params      model.BulkParams `json:"params"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	outcome, err := s.admin.Bulk(r.Context(), userID(r.Context()),
		req.ResourceIDs, req.Action, req.Params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleTrustStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.admin.TrustStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
