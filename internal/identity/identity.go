// Package identity turns the opaque byte-string principals of the kernel
// into two concrete external representations: a human-readable bech32
// encoding, and ECDSA-signature-recovered caller authentication for the
// HTTP gateway, following services/escrow-gateway's wallet-signature
// verification and native/escrow's bech32 account validation.
package identity

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/accounts"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/bountyvault/core/internal/kernel"
)

// HRP is the bech32 human-readable part for principal addresses.
const HRP = "bv"

// Encode renders a principal as a bech32 string, e.g. "bv1...".
func Encode(p kernel.Principal) (string, error) {
	converted, err := bech32.ConvertBits(p[:], 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("identity: convert bits: %w", err)
	}
	encoded, err := bech32.Encode(HRP, converted)
	if err != nil {
		return "", fmt.Errorf("identity: bech32 encode: %w", err)
	}
	return encoded, nil
}

// Decode parses a bech32 principal string back into a Principal.
func Decode(s string) (kernel.Principal, error) {
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return kernel.Principal{}, fmt.Errorf("identity: bech32 decode: %w", err)
	}
	if !strings.EqualFold(hrp, HRP) {
		return kernel.Principal{}, fmt.Errorf("identity: unexpected hrp %q", hrp)
	}
	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return kernel.Principal{}, fmt.Errorf("identity: convert bits: %w", err)
	}
	if len(converted) != 20 {
		return kernel.Principal{}, fmt.Errorf("identity: decoded principal must be 20 bytes, got %d", len(converted))
	}
	var p kernel.Principal
	copy(p[:], converted)
	return p, nil
}

// VerifySignature checks that sigHex is a valid ECDSA signature by claimant
// over message, following the EIP-191 personal-sign digest used by
// services/escrow-gateway's wallet verification. sigHex may be 0x-prefixed.
func VerifySignature(claimant kernel.Principal, message []byte, sigHex string) error {
	digest := accounts.TextHash(message)

	cleaned := strings.TrimPrefix(strings.TrimPrefix(sigHex, "0x"), "0X")
	sigBytes, err := hexutil.Decode("0x" + cleaned)
	if err != nil {
		return fmt.Errorf("identity: invalid signature encoding: %w", err)
	}
	if len(sigBytes) != 65 {
		return fmt.Errorf("identity: signature must be 65 bytes, got %d", len(sigBytes))
	}
	if sigBytes[64] >= 27 {
		sigBytes[64] -= 27
	}

	pubKey, err := ethcrypto.SigToPub(digest, sigBytes)
	if err != nil {
		return fmt.Errorf("identity: signature recovery failed: %w", err)
	}
	recovered := ethcrypto.PubkeyToAddress(*pubKey).Bytes()
	if subtle.ConstantTimeCompare(recovered, claimant[:]) != 1 {
		return errors.New("identity: signature does not match claimed principal")
	}
	return nil
}

// PrincipalFromSignature recovers the signing principal directly, for
// endpoints that authenticate by signature alone rather than verifying
// against a claimed address.
func PrincipalFromSignature(message []byte, sigHex string) (kernel.Principal, error) {
	digest := accounts.TextHash(message)

	cleaned := strings.TrimPrefix(strings.TrimPrefix(sigHex, "0x"), "0X")
	sigBytes, err := hexutil.Decode("0x" + cleaned)
	if err != nil {
		return kernel.Principal{}, fmt.Errorf("identity: invalid signature encoding: %w", err)
	}
	if len(sigBytes) != 65 {
		return kernel.Principal{}, fmt.Errorf("identity: signature must be 65 bytes, got %d", len(sigBytes))
	}
	if sigBytes[64] >= 27 {
		sigBytes[64] -= 27
	}

	pubKey, err := ethcrypto.SigToPub(digest, sigBytes)
	if err != nil {
		return kernel.Principal{}, fmt.Errorf("identity: signature recovery failed: %w", err)
	}
	var p kernel.Principal
	copy(p[:], ethcrypto.PubkeyToAddress(*pubKey).Bytes())
	return p, nil
}
