package gatewaystore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLookupIdempotencyMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	resp, err := s.LookupIdempotency(context.Background(), "bv1alice", "key-1", "hash-a")
	require.NoError(t, err)
	require.Nil(t, resp)
}

func TestSaveThenLookupIdempotencyReturnsCachedResponse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveIdempotency(ctx, "bv1alice", "key-1", "hash-a", 201, []byte(`{"id":1}`)))

	resp, err := s.LookupIdempotency(ctx, "bv1alice", "key-1", "hash-a")
	require.NoError(t, err)
	require.NotNil(t, resp)
	require.Equal(t, 201, resp.Status)
	require.Equal(t, `{"id":1}`, string(resp.Body))
}

func TestLookupIdempotencyMismatchedBodyErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveIdempotency(ctx, "bv1alice", "key-1", "hash-a", 201, []byte("body-a")))

	_, err := s.LookupIdempotency(ctx, "bv1alice", "key-1", "hash-b")
	require.ErrorIs(t, err, ErrIdempotencyMismatch)
}

func TestIdempotencyKeysAreScopedPerPrincipal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveIdempotency(ctx, "bv1alice", "key-1", "hash-a", 200, []byte("a")))

	resp, err := s.LookupIdempotency(ctx, "bv1bob", "key-1", "hash-a")
	require.NoError(t, err)
	require.Nil(t, resp, "the same idempotency key under a different principal should be a cache miss")
}

func TestInsertAuditLogSucceeds(t *testing.T) {
	s := newTestStore(t)
	entry := AuditEntry{
		Principal:      "bv1alice",
		Method:         "POST",
		Path:           "/v1/challenges",
		RequestBody:    []byte(`{"bounty":500000000}`),
		ResponseStatus: 201,
		ResponseBody:   []byte(`{"id":1}`),
		Timestamp:      time.Now().UTC(),
	}
	require.NoError(t, s.InsertAuditLog(context.Background(), entry))
}
