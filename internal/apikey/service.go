// ABOUTME: API key issuance and revocation service over the key store
// ABOUTME: Issue returns the raw secret exactly once; afterwards only the hash exists

package apikey

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/repgate/repgate/internal/store"
)

// KeyStore is the slice of the store the service needs.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, key *store.APIKey) error
	RevokeAPIKey(ctx context.Context, id string) error
	ListAPIKeys(ctx context.Context, userID string) ([]*store.APIKey, error)
}

// Service issues and revokes API keys.
type Service struct {
	keys   KeyStore
	logger *slog.Logger
}

// NewService creates a key service backed by the given store.
func NewService(keys KeyStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{keys: keys, logger: logger.With("component", "apikey")}
}

// Issue generates a fresh secret, persists its hash with the key metadata,
// and returns the record together with the raw secret. The raw secret is
// not retrievable again: callers must surface it to the user immediately.
func (s *Service) Issue(ctx context.Context, userID, name string) (*store.APIKey, string, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return nil, "", fmt.Errorf("generating secret: %w", err)
	}

	key := &store.APIKey{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		KeyHash:   HashSecret(secret),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.keys.CreateAPIKey(ctx, key); err != nil {
		return nil, "", fmt.Errorf("persisting key: %w", err)
	}

	s.logger.Info("issued api key", "key_id", key.ID, "user_id", userID, "name", name)
	return key, secret, nil
}

// Revoke marks a key revoked. Revoking an already-revoked key is a no-op.
func (s *Service) Revoke(ctx context.Context, keyID string) error {
	if err := s.keys.RevokeAPIKey(ctx, keyID); err != nil {
		return err
	}
	s.logger.Info("revoked api key", "key_id", keyID)
	return nil
}

// List returns all of a user's keys, revoked included.
func (s *Service) List(ctx context.Context, userID string) ([]*store.APIKey, error) {
	return s.keys.ListAPIKeys(ctx, userID)
}
