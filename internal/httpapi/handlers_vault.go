package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bountyvault/core/internal/kernel"
)

type depositRequest struct {
	Token  tokenDTO `json:"token"`
	Amount uint64   `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	body, ok := s.readJSON(w, r, &req)
	if !ok {
		return
	}
	caller, err := s.authenticate(r, body)
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.Unauthorized, "%v", err))
		return
	}
	token, err := req.Token.toToken()
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "%v", err))
		return
	}
	s.withIdempotency(w, r, caller, body, func() (int, []byte) {
		txID, err := s.vault.Deposit(r.Context(), caller, token, req.Amount)
		if err != nil {
			return encodeErr(err)
		}
		return encodeCreated(map[string]uint64{"transactionId": txID})
	})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	principal, err := decodePrincipalParam(chi.URLParam(r, "principal"))
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "%v", err))
		return
	}
	tokenStr := chi.URLParam(r, "token")
	var token kernel.Token
	if tokenStr == "native" {
		token = kernel.NativeToken()
	} else {
		issuer, err := decodePrincipalParam(tokenStr)
		if err != nil {
			s.writeError(w, kernel.NewError(kernel.InvalidInput, "invalid token path segment: %v", err))
			return
		}
		token = kernel.FungibleToken(issuer)
	}
	row := s.vault.GetBalance(principal, token)
	s.writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleGetLockInfo(w http.ResponseWriter, r *http.Request) {
	challengeID, err := parseUintParam(r, "challengeId")
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "invalid challenge id"))
		return
	}
	lock, found := s.vault.GetLockInfo(challengeID)
	if !found {
		s.writeError(w, kernel.NewError(kernel.NotFound, "no lock for challenge %d", challengeID))
		return
	}
	s.writeJSON(w, http.StatusOK, lock)
}

func (s *Server) handleGetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	principal, err := decodePrincipalParam(chi.URLParam(r, "principal"))
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "%v", err))
		return
	}
	offset, limit := parsePaginationQuery(r)
	page, err := s.vault.GetTransactionHistory(principal, offset, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetVaultStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.vault.GetVaultStats())
}

type addAuthorizedCallerRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handleAddAuthorizedCaller(w http.ResponseWriter, r *http.Request) {
	var req addAuthorizedCallerRequest
	body, ok := s.readJSON(w, r, &req)
	if !ok {
		return
	}
	admin, err := s.authenticate(r, body)
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.Unauthorized, "%v", err))
		return
	}
	caller, err := decodePrincipalParam(req.Caller)
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "%v", err))
		return
	}
	if err := s.vault.AddAuthorizedCaller(admin, caller); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type setPauseStatusRequest struct {
	Paused bool `json:"paused"`
}

func (s *Server) handleSetPauseStatus(w http.ResponseWriter, r *http.Request) {
	var req setPauseStatusRequest
	body, ok := s.readJSON(w, r, &req)
	if !ok {
		return
	}
	admin, err := s.authenticate(r, body)
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.Unauthorized, "%v", err))
		return
	}
	if err := s.vault.SetPauseStatus(admin, req.Paused); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type setFeeRecipientRequest struct {
	Recipient string `json:"recipient"`
}

func (s *Server) handleSetFeeRecipient(w http.ResponseWriter, r *http.Request) {
	var req setFeeRecipientRequest
	body, ok := s.readJSON(w, r, &req)
	if !ok {
		return
	}
	admin, err := s.authenticate(r, body)
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.Unauthorized, "%v", err))
		return
	}
	recipient, err := decodePrincipalParam(req.Recipient)
	if err != nil {
		s.writeError(w, kernel.NewError(kernel.InvalidInput, "%v", err))
		return
	}
	if err := s.vault.SetPlatformFeeRecipient(admin, recipient); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
