package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bountyvault/core/internal/kernel"
)

type registerUserRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	body, ok := s.readJSON(w, r, &req)
	if !ok {
		return
	}
	caller, err := s.authenticate(r, body)
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.Unauthorized, "%v", err))
		return
	}
	role, err := parseUserRole(req.Role)
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "%v", err))
		return
	}
	s.withIdempotency(w, r, caller, body, func() (int, []byte) {
		if err := s.reputation.RecordUserRegistration(r.Context(), caller, role); err != nil {
			return encodeErr(err)
		}
		return encodeOK(map[string]bool{"ok": true})
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	principal, err := decodePrincipalParam(chi.URLParam(r, "principal"))
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "%v", err))
		return
	}
	profile, err := s.reputation.GetProfile(principal)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := uint64(kernel.MaxPaginationLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			limit = parsed
		}
	}
	s.writeJSON(w, http.StatusOK, s.reputation.Leaderboard(limit))
}

func (s *Server) handleGetPlatformCounters(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.reputation.GetPlatformCounters())
}

func parseUserRole(raw string) (kernel.UserRole, error) {
	switch raw {
	case "Company":
		return kernel.RoleCompany, nil
	case "Hacker":
		return kernel.RoleHacker, nil
	case "Admin":
		return kernel.RoleAdmin, nil
	default:
		return 0, kernel.NewError(kernel.InvalidInput, "unknown role %q", raw)
	}
}
