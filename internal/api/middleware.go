package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/harvestmap/trust-cli/internal/apperr"
)

type ctxKey int

const (
	ctxKeyUserID ctxKey = iota
	ctxKeyRole
)

const roleAdmin = "admin"

// identity copies the gateway-verified identity headers into the request
// context. The upstream gateway owns authentication; these headers are
// trusted as-is.
func identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if userID := r.Header.Get("X-User-ID"); userID != "" {
			ctx = context.WithValue(ctx, ctxKeyUserID, userID)
		}
		if role := r.Header.Get("X-User-Role"); role != "" {
			ctx = context.WithValue(ctx, ctxKeyRole, role)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyUserID).(string)
	return id
}

func isAdmin(ctx context.Context) bool {
	role, _ := ctx.Value(ctxKeyRole).(string)
	return role == roleAdmin
}

// requireUser rejects requests without a verified user identity.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID(r.Context()) == "" {
			writeError(w, apperr.Unauthorized("a verified user is required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin rejects requests lacking the admin role.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID(r.Context()) == "" {
			writeError(w, apperr.Unauthorized("a verified user is required"))
			return
		}
		if !isAdmin(r.Context()) {
			writeError(w, apperr.Forbidden("admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger emits one structured log line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
