// Package httpapi exposes the settlement core's operations over HTTP,
// following services/escrow-gateway/server.go's shape: authenticate by
// wallet signature, dedupe mutating calls by idempotency key, call the
// domain engine, persist the response, and audit the exchange.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bountyvault/core/internal/adjudication"
	"github.com/bountyvault/core/internal/challenge"
	"github.com/bountyvault/core/internal/gatewaystore"
	"github.com/bountyvault/core/internal/httpapi/middleware"
	"github.com/bountyvault/core/internal/kernel"
	"github.com/bountyvault/core/internal/reputation"
	"github.com/bountyvault/core/internal/vault"
)

const headerIdempotencyKey = "Idempotency-Key"
const maxRequestBody = 1 << 20 // 1 MiB, mirrors the gateway's own cap

// Server wires every settlement engine to its HTTP surface.
type Server struct {
	vault        *vault.Vault
	challenges   *challenge.Engine
	adjudication *adjudication.Engine
	reputation   *reputation.Engine
	store        *gatewaystore.Store
	auth         *middleware.Authenticator
	limiter      *middleware.RateLimiter
	logger       *slog.Logger
}

// Config bundles the Server's constructor dependencies.
type Config struct {
	Vault        *vault.Vault
	Challenges   *challenge.Engine
	Adjudication *adjudication.Engine
	Reputation   *reputation.Engine
	Store        *gatewaystore.Store
	Auth         *middleware.Authenticator
	Limiter      *middleware.RateLimiter
	Logger       *slog.Logger
}

// New constructs a Server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		vault:        cfg.Vault,
		challenges:   cfg.Challenges,
		adjudication: cfg.Adjudication,
		reputation:   cfg.Reputation,
		store:        cfg.Store,
		auth:         cfg.Auth,
		limiter:      cfg.Limiter,
		logger:       logger,
	}
}

// Router builds the chi mux exposing every settlement operation.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(api chi.Router) {
		api.Post("/vault/deposit", s.handleDeposit)
		api.Get("/vault/balance/{principal}/{token}", s.handleGetBalance)
		api.Get("/vault/locks/{challengeId}", s.handleGetLockInfo)
		api.Get("/vault/transactions/{principal}", s.handleGetTransactionHistory)
		api.Get("/vault/stats", s.handleGetVaultStats)

		api.Post("/challenges", s.handleCreateChallenge)
		api.Get("/challenges", s.handleListChallenges)
		api.Get("/challenges/{challengeId}", s.handleGetChallenge)
		api.Post("/challenges/{challengeId}/deploy", s.handleDeployTarget)
		api.Post("/challenges/{challengeId}/cancel", s.handleCancelChallenge)
		api.Get("/challenges/stats", s.handleGetChallengeStats)
		api.Get("/companies/{principal}/challenges", s.handleGetCompanyChallenges)

		api.Post("/challenges/{challengeId}/attacks", s.handleEvaluateAttack)
		api.Get("/challenges/{challengeId}/monitoring", s.handleGetMonitoringState)
		api.Post("/disputes", s.handleCreateDispute)
		api.Get("/disputes/{disputeId}", s.handleGetDispute)

		api.Post("/users/register", s.handleRegisterUser)
		api.Get("/users/{principal}", s.handleGetProfile)
		api.Get("/leaderboard", s.handleLeaderboard)
		api.Get("/platform/counters", s.handleGetPlatformCounters)

		if s.auth != nil {
			api.Group(func(admin chi.Router) {
				admin.Use(s.auth.RequireScope("bountyd.admin"))
				admin.Post("/admin/vault/authorized-callers", s.handleAddAuthorizedCaller)
				admin.Post("/admin/vault/pause", s.handleSetPauseStatus)
				admin.Post("/admin/vault/fee-recipient", s.handleSetFeeRecipient)
				admin.Post("/admin/disputes/{disputeId}/resolve", s.handleResolveDispute)
			})
		}
	})

	return r
}

func parseUintParam(r *http.Request, name string) (uint64, error) {
	raw := chi.URLParam(r, name)
	return strconv.ParseUint(raw, 10, 64)
}

func parsePaginationQuery(r *http.Request) (offset, limit uint64) {
	limit = kernel.MaxPaginationLimit
	q := r.URL.Query()
	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			offset = parsed
		}
	}
	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			limit = parsed
		}
	}
	return offset, limit
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, dst any) ([]byte, bool) {
	body, err := readLimitedBody(r)
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "reading request body: %v", err))
		return nil, false
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			s.writeError(w, kernel.NewError(kernel.InvalidInput, "decoding request body: %v", err))
			return nil, false
		}
	}
	return body, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := kernel.KindOf(err)
	s.writeJSON(w, statusForKind(kind), map[string]string{
		"error": err.Error(),
		"kind":  kind.String(),
	})
}

// statusForKind maps a kernel.ErrorKind to an HTTP status, following
// services/lending/server/errors.go's toStatus sentinel-mapping pattern.
func statusForKind(kind kernel.ErrorKind) int {
	switch kind {
	case kernel.NotFound:
		return http.StatusNotFound
	case kernel.Unauthorized, kernel.PermissionDenied:
		return http.StatusForbidden
	case kernel.InvalidInput, kernel.PaginationError, kernel.TimeRangeError, kernel.WasmSizeExceeded:
		return http.StatusBadRequest
	case kernel.InvalidState, kernel.AlreadyExists:
		return http.StatusConflict
	case kernel.InsufficientFunds:
		return http.StatusPaymentRequired
	case kernel.ResourceLimit, kernel.RateLimitExceeded:
		return http.StatusTooManyRequests
	case kernel.NetworkError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// authenticate recovers the caller's principal from the X-Principal /
// X-Signature headers, verifying the signature over the raw request body.
// Endpoints that accept anonymous callers skip this and pass
// kernel.AnonymousPrincipal through directly.
func (s *Server) authenticate(r *http.Request, body []byte) (kernel.Principal, error) {
	return authenticateRequest(r, body)
}

// withIdempotency runs fn at most once per (principal, Idempotency-Key),
// replaying the cached response on retry. fn's status/body are persisted for
// any status below 500, so 4xx rejections are replayed as well. Absent a
// header or store, fn runs unconditionally.
func (s *Server) withIdempotency(w http.ResponseWriter, r *http.Request, principal kernel.Principal, body []byte, fn func() (int, []byte)) {
	key := r.Header.Get(headerIdempotencyKey)
	if s.store == nil || key == "" {
		status, respBody := fn()
		s.writeRaw(w, status, respBody)
		s.audit(r, principal, body, status, respBody)
		return
	}

	requestHash := hashRequest(r.Method, r.URL.Path, body)
	cached, err := s.store.LookupIdempotency(r.Context(), principal.String(), key, requestHash)
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "idempotency key reused with a different request"))
		return
	}
	if cached != nil {
		s.writeRaw(w, cached.Status, cached.Body)
		return
	}

	status, respBody := fn()
	if status < http.StatusInternalServerError {
		_ = s.store.SaveIdempotency(r.Context(), principal.String(), key, requestHash, status, respBody)
	}
	s.writeRaw(w, status, respBody)
	s.audit(r, principal, body, status, respBody)
}

func (s *Server) writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) audit(r *http.Request, principal kernel.Principal, body []byte, status int, respBody []byte) {
	if s.store == nil {
		return
	}
	entry := gatewaystore.AuditEntry{
		Principal:      principal.String(),
		Method:         r.Method,
		Path:           r.URL.Path,
		RequestBody:    body,
		ResponseBody:   respBody,
		ResponseStatus: status,
		Timestamp:      time.Now().UTC(),
	}
	if err := s.store.InsertAuditLog(r.Context(), entry); err != nil {
		s.logger.Warn("httpapi: audit log insert failed", "error", err)
	}
}

func encodeOK(v any) (int, []byte) {
	body, _ := json.Marshal(v)
	return http.StatusOK, body
}

func encodeCreated(v any) (int, []byte) {
	body, _ := json.Marshal(v)
	return http.StatusCreated, body
}

func encodeErr(err error) (int, []byte) {
	kind := kernel.KindOf(err)
	body, _ := json.Marshal(map[string]string{"error": err.Error(), "kind": kind.String()})
	return statusForKind(kind), body
}
