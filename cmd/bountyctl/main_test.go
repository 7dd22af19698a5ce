package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bountyvault/core/internal/identity"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func stubClient(t *testing.T, fn roundTripperFunc) {
	t.Helper()
	original := http.DefaultClient
	http.DefaultClient = &http.Client{Transport: fn}
	t.Cleanup(func() { http.DefaultClient = original })
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w
	resultCh := make(chan string)
	go func() {
		data, _ := io.ReadAll(r)
		resultCh <- string(data)
	}()
	fn()
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	os.Stdout = old
	result := <-resultCh
	if err := r.Close(); err != nil {
		t.Fatalf("failed to close reader: %v", err)
	}
	return result
}

func jsonResponse(status int, body any) *http.Response {
	raw, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(raw)),
		Header:     make(http.Header),
	}
}

func writeTestKey(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "admin.key")
	captureStdout(t, func() {
		wd, _ := os.Getwd()
		if err := os.Chdir(dir); err != nil {
			t.Fatalf("Chdir: %v", err)
		}
		defer os.Chdir(wd)
		generateKey()
	})
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected generateKey to write %s: %v", path, err)
	}
	return path
}

func TestGenerateKeyWritesKeyFileAndPrintsPrincipal(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	output := captureStdout(t, generateKey)
	if !strings.Contains(output, "Principal: bv1") {
		t.Fatalf("expected output to include a bech32 principal, got %q", output)
	}
	if _, err := os.Stat(filepath.Join(dir, "admin.key")); err != nil {
		t.Fatalf("expected admin.key to be written: %v", err)
	}
}

func TestLoadKeyRoundTripsGeneratedKey(t *testing.T) {
	keyPath := writeTestKey(t)
	priv, principal, err := loadKey(keyPath)
	if err != nil {
		t.Fatalf("loadKey: %v", err)
	}
	if priv == nil {
		t.Fatal("expected a non-nil private key")
	}
	if !strings.HasPrefix(principal, "bv1") {
		t.Fatalf("expected a bech32-encoded principal, got %q", principal)
	}
}

func TestAdminPostSignsRequestOverJSONBody(t *testing.T) {
	keyPath := writeTestKey(t)
	_, principal, err := loadKey(keyPath)
	if err != nil {
		t.Fatalf("loadKey: %v", err)
	}

	var capturedPrincipal, capturedSig, capturedPath string
	var capturedBody []byte
	stubClient(t, func(req *http.Request) (*http.Response, error) {
		capturedPrincipal = req.Header.Get("X-Principal")
		capturedSig = req.Header.Get("X-Signature")
		capturedPath = req.URL.Path
		capturedBody, _ = io.ReadAll(req.Body)
		return jsonResponse(http.StatusOK, map[string]bool{"ok": true}), nil
	})

	if _, err := adminPost(keyPath, "/v1/admin/vault/pause", map[string]bool{"paused": true}); err != nil {
		t.Fatalf("adminPost: %v", err)
	}

	if capturedPrincipal != principal {
		t.Fatalf("expected X-Principal %q, got %q", principal, capturedPrincipal)
	}
	if capturedPath != "/v1/admin/vault/pause" {
		t.Fatalf("unexpected request path %q", capturedPath)
	}
	claimant, err := identity.Decode(capturedPrincipal)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := identity.VerifySignature(claimant, capturedBody, capturedSig); err != nil {
		t.Fatalf("expected a genuine signature over the request body, got: %v", err)
	}
}

func TestAdminPostAttachesBearerTokenWhenEnvSet(t *testing.T) {
	keyPath := writeTestKey(t)
	t.Setenv("BOUNTYCTL_TOKEN", "test-jwt")

	var gotAuth string
	stubClient(t, func(req *http.Request) (*http.Response, error) {
		gotAuth = req.Header.Get("Authorization")
		return jsonResponse(http.StatusOK, map[string]bool{"ok": true}), nil
	})

	if _, err := adminPost(keyPath, "/v1/admin/vault/pause", map[string]bool{"paused": false}); err != nil {
		t.Fatalf("adminPost: %v", err)
	}
	if gotAuth != "Bearer test-jwt" {
		t.Fatalf("expected the bearer token to be attached, got %q", gotAuth)
	}
}

func TestAdminPostPropagatesServerError(t *testing.T) {
	keyPath := writeTestKey(t)
	stubClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusForbidden, map[string]string{"error": "admin only", "kind": "PermissionDenied"}), nil
	})

	_, err := adminPost(keyPath, "/v1/admin/vault/pause", map[string]bool{"paused": true})
	if err == nil {
		t.Fatal("expected an error for a 403 response")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "admin only") {
		t.Fatalf("expected the error to surface the status and body, got: %v", err)
	}
}

func TestAdminPostPropagatesDialError(t *testing.T) {
	keyPath := writeTestKey(t)
	stubClient(t, func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connect: connection refused (test stub)")
	})

	_, err := adminPost(keyPath, "/v1/admin/vault/pause", map[string]bool{"paused": true})
	if err == nil || !strings.Contains(err.Error(), "connection refused (test stub)") {
		t.Fatalf("expected the dial error to propagate, got: %v", err)
	}
}

func TestResolveDisputeBuildsExpectedPath(t *testing.T) {
	keyPath := writeTestKey(t)
	var capturedPath string
	var capturedBody map[string]string
	stubClient(t, func(req *http.Request) (*http.Response, error) {
		capturedPath = req.URL.Path
		raw, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(raw, &capturedBody)
		return jsonResponse(http.StatusOK, map[string]bool{"ok": true}), nil
	})

	output := captureStdout(t, func() {
		resolveDispute("42", "Resolved", keyPath, "confirmed valid exploit")
	})

	if capturedPath != "/v1/admin/disputes/42/resolve" {
		t.Fatalf("unexpected dispute resolve path: %q", capturedPath)
	}
	if capturedBody["status"] != "Resolved" || capturedBody["resolution"] != "confirmed valid exploit" {
		t.Fatalf("unexpected resolve dispute body: %+v", capturedBody)
	}
	if !strings.Contains(output, "Dispute 42 marked Resolved") {
		t.Fatalf("expected confirmation output, got %q", output)
	}
}
