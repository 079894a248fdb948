// ABOUTME: API key authenticator resolving presented secrets to user identities
// ABOUTME: All failure modes collapse into a single uniform ErrUnauthorized

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/repgate/repgate/internal/apikey"
	"github.com/repgate/repgate/internal/store"
)

// ErrUnauthorized is returned for every authentication failure: missing,
// malformed, unknown, and revoked credentials are deliberately
// indistinguishable to the caller.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the result of successful authentication.
type Identity struct {
	User *store.User
	Key  *store.APIKey
}

// Lookup is the slice of the store the authenticator needs.
type Lookup interface {
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*store.APIKey, error)
	GetUser(ctx context.Context, id string) (*store.User, error)
}

// Authenticator resolves presented API key secrets to identities.
// It performs no writes; audit logging is the dispatcher's job so each
// tool call is logged exactly once with full context.
type Authenticator struct {
	lookup Lookup
	logger *slog.Logger
}

// NewAuthenticator creates an authenticator over the given store.
func NewAuthenticator(lookup Lookup, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{lookup: lookup, logger: logger.With("component", "auth")}
}

// Authenticate hashes the presented secret and resolves it to an active
// key and its owning user. Every failure returns ErrUnauthorized.
func (a *Authenticator) Authenticate(ctx context.Context, presented string) (*Identity, error) {
	if !apikey.WellFormed(presented) {
		return nil, ErrUnauthorized
	}

	key, err := a.lookup.GetAPIKeyByHash(ctx, apikey.HashSecret(presented))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.Error("key lookup failed", "error", err)
		}
		return nil, ErrUnauthorized
	}

	user, err := a.lookup.GetUser(ctx, key.UserID)
	if err != nil {
		// A key without its user is a data integrity problem; the caller
		// still only sees ErrUnauthorized.
		a.logger.Error("user lookup failed for active key", "key_id", key.ID, "error", err)
		return nil, ErrUnauthorized
	}

	return &Identity{User: user, Key: key}, nil
}
