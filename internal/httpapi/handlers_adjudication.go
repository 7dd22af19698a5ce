package httpapi

import (
	"net/http"

	"github.com/bountyvault/core/internal/adjudication"
	"github.com/bountyvault/core/internal/kernel"
)

type evaluateAttackRequest struct {
	AttemptID uint64 `json:"attemptId"`
}

func (s *Server) handleEvaluateAttack(w http.ResponseWriter, r *http.Request) {
	var req evaluateAttackRequest
	body, ok := s.readJSON(w, r, &req)
	if !ok {
		return
	}
	caller, err := s.authenticate(r, body)
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.Unauthorized, "%v", err))
		return
	}
	if err := kernel.CheckCallerNotAnonymous(caller); err != nil {
		s.writeError(w, err)
		return
	}
	challengeID, err := parseUintParam(r, "challengeId")
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "invalid challenge id"))
		return
	}
	s.withIdempotency(w, r, caller, body, func() (int, []byte) {
		eval, err := s.adjudication.EvaluateAttack(r.Context(), challengeID, adjudication.AttackAttempt{
			ID:     req.AttemptID,
			Hacker: caller,
		})
		if err != nil {
			return encodeErr(err)
		}
		return encodeOK(eval)
	})
}

func (s *Server) handleGetMonitoringState(w http.ResponseWriter, r *http.Request) {
	challengeID, err := parseUintParam(r, "challengeId")
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "invalid challenge id"))
		return
	}
	state, found := s.adjudication.GetMonitoringState(challengeID)
	if !found {
		s.writeError(w, kernel.NewError(kernel.NotFound, "no monitoring state for challenge %d", challengeID))
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

type createDisputeRequest struct {
	ChallengeID uint64   `json:"challengeId"`
	AttemptID   uint64   `json:"attemptId"`
	Reason      string   `json:"reason"`
	Evidence    []string `json:"evidence"` // base64-encoded blobs
}

func (s *Server) handleCreateDispute(w http.ResponseWriter, r *http.Request) {
	var req createDisputeRequest
	body, ok := s.readJSON(w, r, &req)
	if !ok {
		return
	}
	caller, err := s.authenticate(r, body)
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.Unauthorized, "%v", err))
		return
	}
	evidence, err := decodeBase64Slices(req.Evidence)
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "%v", err))
		return
	}
	s.withIdempotency(w, r, caller, body, func() (int, []byte) {
		id, err := s.adjudication.CreateDispute(caller, req.ChallengeID, req.AttemptID, req.Reason, evidence)
		if err != nil {
			return encodeErr(err)
		}
		return encodeCreated(map[string]uint64{"disputeId": id})
	})
}

func (s *Server) handleGetDispute(w http.ResponseWriter, r *http.Request) {
	id, err := parseUintParam(r, "disputeId")
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "invalid dispute id"))
		return
	}
	dispute, err := s.adjudication.GetDispute(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, dispute)
}

type resolveDisputeRequest struct {
	Status     string `json:"status"`
	Resolution string `json:"resolution"`
}

func (s *Server) handleResolveDispute(w http.ResponseWriter, r *http.Request) {
	var req resolveDisputeRequest
	body, ok := s.readJSON(w, r, &req)
	if !ok {
		return
	}
	admin, err := s.authenticate(r, body)
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.Unauthorized, "%v", err))
		return
	}
	id, err := parseUintParam(r, "disputeId")
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "invalid dispute id"))
		return
	}
	var status kernel.DisputeStatus
	switch req.Status {
	case "Resolved":
		status = kernel.DisputeResolved
	case "Rejected":
		status = kernel.DisputeRejected
	default:
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "status must be Resolved or Rejected"))
		return
	}
	s.withIdempotency(w, r, admin, body, func() (int, []byte) {
		if err := s.adjudication.ResolveDispute(admin, id, status, req.Resolution); err != nil {
			return encodeErr(err)
		}
		return encodeOK(map[string]bool{"ok": true})
	})
}
