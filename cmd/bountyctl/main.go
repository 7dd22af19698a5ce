// Command bountyctl is the operator CLI for the admin-only settlement
// operations exposed by bountyd: pausing the vault, authorizing a new
// caller, changing the fee recipient, and resolving disputes, following
// cmd/nhb-cli/main.go's os.Args-switch-plus-http.Post shape.
package main

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/bountyvault/core/internal/identity"
)

func endpoint() string {
	if e := os.Getenv("BOUNTYCTL_ENDPOINT"); e != "" {
		return e
	}
	return "http://localhost:8080"
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "generate-key":
		generateKey()
	case "pause":
		if len(os.Args) < 4 {
			fmt.Println("Error: pause requires <true|false> <key_file>")
			printUsage()
			os.Exit(1)
		}
		setPauseStatus(os.Args[2], os.Args[3])
	case "authorize":
		if len(os.Args) < 4 {
			fmt.Println("Error: authorize requires <caller_principal> <key_file>")
			printUsage()
			os.Exit(1)
		}
		addAuthorizedCaller(os.Args[2], os.Args[3])
	case "fee-recipient":
		if len(os.Args) < 4 {
			fmt.Println("Error: fee-recipient requires <recipient_principal> <key_file>")
			printUsage()
			os.Exit(1)
		}
		setFeeRecipient(os.Args[2], os.Args[3])
	case "resolve-dispute":
		if len(os.Args) < 5 {
			fmt.Println("Error: resolve-dispute requires <dispute_id> <Resolved|Rejected> <key_file> [resolution text]")
			printUsage()
			os.Exit(1)
		}
		resolution := ""
		if len(os.Args) > 5 {
			resolution = os.Args[5]
		}
		resolveDispute(os.Args[2], os.Args[3], os.Args[4], resolution)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func generateKey() {
	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		fmt.Printf("Error generating key: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile("admin.key", []byte(hexutil.Encode(ethcrypto.FromECDSA(priv))), 0o600); err != nil {
		fmt.Printf("Error writing admin.key: %v\n", err)
		os.Exit(1)
	}

	var principal [20]byte
	copy(principal[:], ethcrypto.PubkeyToAddress(priv.PublicKey).Bytes())
	encoded, err := identity.Encode(principal)
	if err != nil {
		fmt.Printf("Error encoding principal: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote admin.key. Principal: %s\n", encoded)
}

func setPauseStatus(paused, keyFile string) {
	body := map[string]bool{"paused": paused == "true"}
	if _, err := adminPost(keyFile, "/v1/admin/vault/pause", body); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Vault paused=%s\n", paused)
}

func addAuthorizedCaller(caller, keyFile string) {
	body := map[string]string{"caller": caller}
	if _, err := adminPost(keyFile, "/v1/admin/vault/authorized-callers", body); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Authorized caller %s\n", caller)
}

func setFeeRecipient(recipient, keyFile string) {
	body := map[string]string{"recipient": recipient}
	if _, err := adminPost(keyFile, "/v1/admin/vault/fee-recipient", body); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Fee recipient set to %s\n", recipient)
}

func resolveDispute(disputeID, status, keyFile, resolution string) {
	body := map[string]string{"status": status, "resolution": resolution}
	path := fmt.Sprintf("/v1/admin/disputes/%s/resolve", disputeID)
	if _, err := adminPost(keyFile, path, body); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Dispute %s marked %s\n", disputeID, status)
}

// adminPost signs payload's JSON encoding with the admin key loaded from
// keyFile and POSTs it to path, following the EIP-191 wallet-signature
// scheme internal/identity.VerifySignature expects on the wire.
func adminPost(keyFile, path string, payload any) ([]byte, error) {
	priv, principal, err := loadKey(keyFile)
	if err != nil {
		return nil, fmt.Errorf("loading key: %w", err)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, endpoint()+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Principal", principal)
	req.Header.Set("X-Signature", sign(priv, raw))
	if token := os.Getenv("BOUNTYCTL_TOKEN"); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", endpoint(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func sign(priv *ecdsa.PrivateKey, message []byte) string {
	digest := accounts.TextHash(message)
	sig, err := ethcrypto.Sign(digest, priv)
	if err != nil {
		panic(fmt.Sprintf("signing request: %v", err))
	}
	sig[64] += 27
	return hexutil.Encode(sig)
}

func loadKey(path string) (*ecdsa.PrivateKey, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	decoded, err := hexutil.Decode(string(bytes.TrimSpace(raw)))
	if err != nil {
		return nil, "", fmt.Errorf("decoding key file: %w", err)
	}
	priv, err := ethcrypto.ToECDSA(decoded)
	if err != nil {
		return nil, "", fmt.Errorf("parsing key: %w", err)
	}
	var principal [20]byte
	copy(principal[:], ethcrypto.PubkeyToAddress(priv.PublicKey).Bytes())
	encoded, err := identity.Encode(principal)
	if err != nil {
		return nil, "", err
	}
	return priv, encoded, nil
}

func printUsage() {
	fmt.Println("Usage: bountyctl <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  generate-key                                        - generates an admin key, writes admin.key")
	fmt.Println("  pause <true|false> <key_file>                       - pauses or unpauses the vault")
	fmt.Println("  authorize <caller_principal> <key_file>             - authorizes a caller against the vault")
	fmt.Println("  fee-recipient <recipient_principal> <key_file>      - sets the platform fee recipient")
	fmt.Println("  resolve-dispute <id> <Resolved|Rejected> <key_file> [resolution] - resolves a dispute")
	fmt.Println()
	fmt.Println("Set BOUNTYCTL_ENDPOINT to point at a non-default bountyd (default http://localhost:8080).")
	fmt.Println("Set BOUNTYCTL_TOKEN to supply a bearer token when bountyd has JWT admin auth enabled.")
}
