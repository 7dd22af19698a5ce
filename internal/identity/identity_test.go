package identity

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/bountyvault/core/internal/kernel"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var p kernel.Principal
	p[0], p[19] = 0xDE, 0xAD

	encoded, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if encoded == "" {
		t.Fatal("expected a non-empty bech32 string")
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded != p {
		t.Fatalf("round trip mismatch: got %v, want %v", decoded, p)
	}
}

func TestDecodeRejectsWrongHRP(t *testing.T) {
	// bc1q... is a standard bitcoin bech32 string with an unrelated HRP.
	if _, err := Decode("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"); err == nil {
		t.Fatal("expected an error decoding a foreign human-readable part")
	}
}

func TestDecodeRejectsMalformedString(t *testing.T) {
	if _, err := Decode("not-bech32-at-all"); err == nil {
		t.Fatal("expected an error decoding a non-bech32 string")
	}
}

func newKeyPair(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return priv, ethcrypto.PubkeyToAddress(priv.PublicKey)
}

// sign produces a 65-byte [R || S || V] signature hex-string over message in
// the legacy 27/28 recovery-id convention VerifySignature/
// PrincipalFromSignature expect on the wire.
func sign(t *testing.T, priv *ecdsa.PrivateKey, message []byte) string {
	t.Helper()
	digest := accounts.TextHash(message)
	sig, err := ethcrypto.Sign(digest, priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sig[64] += 27
	return hexutil.Encode(sig)
}

func TestVerifySignatureAcceptsGenuineSignature(t *testing.T) {
	priv, addr := newKeyPair(t)
	var claimant kernel.Principal
	copy(claimant[:], addr.Bytes())

	message := []byte("create_challenge:1234")
	sigHex := sign(t, priv, message)

	if err := VerifySignature(claimant, message, sigHex); err != nil {
		t.Fatalf("expected a genuine signature to verify: %v", err)
	}
}

func TestVerifySignatureRejectsWrongClaimant(t *testing.T) {
	priv, _ := newKeyPair(t)
	message := []byte("create_challenge:1234")
	sigHex := sign(t, priv, message)

	var wrongClaimant kernel.Principal
	wrongClaimant[0] = 0xFF
	if err := VerifySignature(wrongClaimant, message, sigHex); err == nil {
		t.Fatal("expected verification to fail for a mismatched claimant")
	}
}

func TestVerifySignatureRejectsMalformedHex(t *testing.T) {
	var claimant kernel.Principal
	if err := VerifySignature(claimant, []byte("msg"), "not-hex"); err == nil {
		t.Fatal("expected an error for malformed signature encoding")
	}
}

func TestVerifySignatureRejectsWrongLength(t *testing.T) {
	var claimant kernel.Principal
	if err := VerifySignature(claimant, []byte("msg"), "0x1234"); err == nil {
		t.Fatal("expected an error for a signature shorter than 65 bytes")
	}
}

func TestPrincipalFromSignatureRecoversSigner(t *testing.T) {
	priv, addr := newKeyPair(t)
	var want kernel.Principal
	copy(want[:], addr.Bytes())

	message := []byte("submit_attack:42")
	sigHex := sign(t, priv, message)

	got, err := PrincipalFromSignature(message, sigHex)
	if err != nil {
		t.Fatalf("PrincipalFromSignature: %v", err)
	}
	if got != want {
		t.Fatalf("recovered principal mismatch: got %v want %v", got, want)
	}
}
