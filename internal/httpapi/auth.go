package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bountyvault/core/internal/identity"
	"github.com/bountyvault/core/internal/kernel"
)

const (
	headerPrincipal = "X-Principal"
	headerSignature = "X-Signature"
)

// authenticateRequest recovers the caller's principal by verifying
// X-Signature over the raw request body against the bech32 principal named
// in X-Principal, following services/escrow-gateway's wallet-signature
// authentication. A request with neither header authenticates as anonymous;
// callers that require a real principal reject that downstream via
// kernel.CheckCallerNotAnonymous.
func authenticateRequest(r *http.Request, body []byte) (kernel.Principal, error) {
	principalHeader := strings.TrimSpace(r.Header.Get(headerPrincipal))
	sigHeader := strings.TrimSpace(r.Header.Get(headerSignature))
	if principalHeader == "" && sigHeader == "" {
		return kernel.AnonymousPrincipal, nil
	}
	if principalHeader == "" || sigHeader == "" {
		return kernel.Principal{}, errors.New("both X-Principal and X-Signature are required")
	}
	claimant, err := identity.Decode(principalHeader)
	if err != nil {
		return kernel.Principal{}, err
	}
	if err := identity.VerifySignature(claimant, body, sigHeader); err != nil {
		return kernel.Principal{}, err
	}
	return claimant, nil
}

func readLimitedBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
}

func hashRequest(method, path string, body []byte) string {
	h := sha256.New()
	_, _ = h.Write([]byte(method))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(path))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
