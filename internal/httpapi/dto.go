package httpapi

import (
	"encoding/base64"
	"fmt"

	"github.com/bountyvault/core/internal/identity"
	"github.com/bountyvault/core/internal/kernel"
)

// tokenDTO is the wire shape of a kernel.Token: {"kind":"native"} or
// {"kind":"fungible","issuer":"bv1..."}.
type tokenDTO struct {
	Kind   string `json:"kind"`
	Issuer string `json:"issuer,omitempty"`
}

func (t tokenDTO) toToken() (kernel.Token, error) {
	switch t.Kind {
	case "", "native":
		return kernel.NativeToken(), nil
	case "fungible":
		issuer, err := identity.Decode(t.Issuer)
		if err != nil {
			return kernel.Token{}, fmt.Errorf("invalid fungible token issuer: %w", err)
		}
		return kernel.FungibleToken(issuer), nil
	default:
		return kernel.Token{}, fmt.Errorf("unknown token kind %q", t.Kind)
	}
}

func tokenToDTO(t kernel.Token) tokenDTO {
	if t.Kind == kernel.TokenFungible {
		issuer, _ := identity.Encode(t.Issuer)
		return tokenDTO{Kind: "fungible", Issuer: issuer}
	}
	return tokenDTO{Kind: "native"}
}

func decodePrincipalParam(raw string) (kernel.Principal, error) {
	return identity.Decode(raw)
}

func decodeBase64Slices(encoded []string) ([][]byte, error) {
	out := make([][]byte, len(encoded))
	for i, e := range encoded {
		blob, err := base64.StdEncoding.DecodeString(e)
		if err != nil {
			return nil, fmt.Errorf("evidence[%d]: %w", i, err)
		}
		out[i] = blob
	}
	return out, nil
}
