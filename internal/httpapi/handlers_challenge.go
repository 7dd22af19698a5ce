package httpapi

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bountyvault/core/internal/challenge"
	"github.com/bountyvault/core/internal/identity"
	"github.com/bountyvault/core/internal/kernel"
)

type createChallengeRequest struct {
	WasmImage            string   `json:"wasmImage"` // base64
	InterfaceDescription string   `json:"interfaceDescription"`
	BountyAmount         uint64   `json:"bountyAmount"`
	DurationSeconds      int64    `json:"durationSeconds"`
	Token                tokenDTO `json:"token"`
	Description          string   `json:"description"`
	Difficulty           int      `json:"difficulty"`
}

func (s *Server) handleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	var req createChallengeRequest
	body, ok := s.readJSON(w, r, &req)
	if !ok {
		return
	}
	caller, err := s.authenticate(r, body)
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.Unauthorized, "%v", err))
		return
	}
	image, err := base64.StdEncoding.DecodeString(req.WasmImage)
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "invalid wasmImage encoding: %v", err))
		return
	}
	token, err := req.Token.toToken()
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "%v", err))
		return
	}
	s.withIdempotency(w, r, caller, body, func() (int, []byte) {
		id, err := s.challenges.CreateChallenge(r.Context(), caller, challenge.CreateRequest{
			WasmImage:            image,
			InterfaceDescription: req.InterfaceDescription,
			BountyAmount:         req.BountyAmount,
			Duration:             time.Duration(req.DurationSeconds) * time.Second,
			Token:                token,
			Description:          req.Description,
			Difficulty:           req.Difficulty,
		})
		if err != nil {
			return encodeErr(err)
		}
		return encodeCreated(map[string]uint64{"challengeId": id})
	})
}

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	offset, limit := parsePaginationQuery(r)
	var filter *kernel.ChallengeStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := parseChallengeStatus(raw)
		if err != nil {
			s.writeError(w, kernel.NewError(kernel.InvalidInput, "%v", err))
			return
		}
		filter = &st
	}
	page, err := s.challenges.ListChallenges(filter, offset, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetChallenge(w http.ResponseWriter, r *http.Request) {
	id, err := parseUintParam(r, "challengeId")
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "invalid challenge id"))
		return
	}
	ch, err := s.challenges.GetChallenge(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ch)
}

func (s *Server) handleDeployTarget(w http.ResponseWriter, r *http.Request) {
	var req struct{}
	body, ok := s.readJSON(w, r, &req)
	if !ok {
		return
	}
	caller, err := s.authenticate(r, body)
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.Unauthorized, "%v", err))
		return
	}
	id, err := parseUintParam(r, "challengeId")
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "invalid challenge id"))
		return
	}
	s.withIdempotency(w, r, caller, body, func() (int, []byte) {
		target, err := s.challenges.DeployTarget(r.Context(), caller, id)
		if err != nil {
			return encodeErr(err)
		}
		targetStr, encErr := identity.Encode(target)
		if encErr != nil {
			targetStr = target.String()
		}
		return encodeOK(map[string]string{"target": targetStr})
	})
}

func (s *Server) handleCancelChallenge(w http.ResponseWriter, r *http.Request) {
	var req struct{}
	body, ok := s.readJSON(w, r, &req)
	if !ok {
		return
	}
	caller, err := s.authenticate(r, body)
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.Unauthorized, "%v", err))
		return
	}
	id, err := parseUintParam(r, "challengeId")
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "invalid challenge id"))
		return
	}
	s.withIdempotency(w, r, caller, body, func() (int, []byte) {
		if err := s.challenges.Cancel(r.Context(), caller, id); err != nil {
			return encodeErr(err)
		}
		return encodeOK(map[string]bool{"ok": true})
	})
}

func (s *Server) handleGetChallengeStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.challenges.GetChallengeStats())
}

func (s *Server) handleGetCompanyChallenges(w http.ResponseWriter, r *http.Request) {
	company, err := decodePrincipalParam(chi.URLParam(r, "principal"))
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "%v", err))
		return
	}
	offset, limit := parsePaginationQuery(r)
	page, err := s.challenges.GetCompanyChallenges(company, offset, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func parseChallengeStatus(raw string) (kernel.ChallengeStatus, error) {
	switch raw {
	case "Created":
		return kernel.ChallengeCreated, nil
	case "Active":
		return kernel.ChallengeActive, nil
	case "Completed":
		return kernel.ChallengeCompleted, nil
	case "Expired":
		return kernel.ChallengeExpired, nil
	case "Cancelled":
		return kernel.ChallengeCancelled, nil
	default:
		return 0, kernel.NewError(kernel.InvalidInput, "unknown challenge status %q", raw)
	}
}
