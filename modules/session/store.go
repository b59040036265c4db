package session

import (
	"context"
	"fmt"
	"sync"

	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
)

// TokenKey is the fixed storage key of the bearer token.
const TokenKey = "access_token"

// TokenStore persists the bearer token across restarts.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// BucketTokenStore keeps the token as one object in an fs-jetstream bucket.
type BucketTokenStore struct {
	bucket fsjetstream.FileStoragePort
}

// NewBucketTokenStore creates a store over bucket.
func NewBucketTokenStore(bucket fsjetstream.FileStoragePort) *BucketTokenStore {
	return &BucketTokenStore{bucket: bucket}
}

// Load returns the stored token, or "" when none is stored.
func (s *BucketTokenStore) Load(_ context.Context) (string, error) {
	data, err := s.bucket.Get(TokenKey)
	if err == nil {
		return string(data), nil
	}
	if !s.exists() {
		return "", nil
	}
	return "", fmt.Errorf("failed to read token: %w", err)
}

// Save replaces the stored token.
func (s *BucketTokenStore) Save(ctx context.Context, token string) error {
	if _, err := s.bucket.Put(ctx, TokenKey, []byte(token),
		fsjetstream.WithHeaders(map[string]string{
			"Content-Type": "text/plain",
		}),
	); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Clear removes the stored token. Clearing an empty store is not an error.
func (s *BucketTokenStore) Clear(_ context.Context) error {
	if !s.exists() {
		return nil
	}
	if err := s.bucket.Delete(TokenKey); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

func (s *BucketTokenStore) exists() bool {
	objects, err := s.bucket.List(fsjetstream.WithPrefix(TokenKey))
	if err != nil {
		return false
	}
	for _, obj := range objects {
		if obj.Name == TokenKey {
			return true
		}
	}
	return false
}

// MemoryTokenStore keeps the token in process memory.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryTokenStore creates a store, optionally pre-seeded with a token.
func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

// Load implements TokenStore.
func (s *MemoryTokenStore) Load(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

// Save implements TokenStore.
func (s *MemoryTokenStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// Clear implements TokenStore.
func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}
