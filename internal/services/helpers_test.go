package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/config"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/identity"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/store"
)

// countingStore wraps a PushStore and counts every mutating or reading
// call, so tests can prove a denied operation never reached the store.
type countingStore struct {
	*store.PushStore
	calls atomic.Int64
}

func newCountingStore(t *testing.T) *countingStore {
	t.Helper()
	s := &countingStore{PushStore: store.NewMemory()}
	t.Cleanup(func() { s.PushStore.Close() })
	return s
}

func (s *countingStore) Append(ctx context.Context, path string, fields map[string]any) (string, error) {
	s.calls.Add(1)
	return s.PushStore.Append(ctx, path, fields)
}

func (s *countingStore) Overwrite(ctx context.Context, path, key string, fields map[string]any) error {
	s.calls.Add(1)
	return s.PushStore.Overwrite(ctx, path, key, fields)
}

func (s *countingStore) Delete(ctx context.Context, path, key string) error {
	s.calls.Add(1)
	return s.PushStore.Delete(ctx, path, key)
}

func (s *countingStore) Read(ctx context.Context, path, key string) (store.Record, bool, error) {
	s.calls.Add(1)
	return s.PushStore.Read(ctx, path, key)
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:       "test-secret",
		JWTAccessExpiry: time.Hour,
		AdminEmails:     "admin@example.com",
		WindowDefault:   5,
		WindowStep:      5,
		WindowMax:       50,
	}
}

// putUser writes a user record directly, bypassing registration.
func putUser(t *testing.T, a store.Adapter, u identity.User) {
	t.Helper()
	fields := u.Fields()
	fields["createdAt"] = store.ServerTimestamp
	if err := a.Overwrite(context.Background(), UsersPath, u.UID, fields); err != nil {
		t.Fatalf("put user %s: %v", u.UID, err)
	}
}

func member(uid string, roles identity.Roles) *identity.User {
	return &identity.User{UID: uid, Username: uid, Email: uid + "@example.com", Roles: roles}
}
