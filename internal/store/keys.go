// ABOUTME: API key store methods for issuing, looking up, and revoking keys
// ABOUTME: Keys are stored hash-only and revoked in place, never deleted

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const apiKeyColumns = `id, user_id, name, key_hash, created_at, revoked_at`

// CreateAPIKey persists a new API key record. The record carries only the
// hash of the secret; raw secrets never reach the store.
func (s *SQLiteStore) CreateAPIKey(ctx context.Context, key *APIKey) error {
	query := `
		INSERT INTO api_keys (id, user_id, name, key_hash, created_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		key.ID,
		key.UserID,
		key.Name,
		key.KeyHash,
		key.CreatedAt.UTC().Format(time.RFC3339),
		nullTime(key.RevokedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting api key: %w", err)
	}

	s.logger.Debug("created api key", "id", key.ID, "user_id", key.UserID, "name", key.Name)
	return nil
}

func scanAPIKey(scanner interface{ Scan(dest ...any) error }) (*APIKey, error) {
	var key APIKey
	var createdAtStr string
	var revokedAtStr sql.NullString

	err := scanner.Scan(
		&key.ID,
		&key.UserID,
		&key.Name,
		&key.KeyHash,
		&createdAtStr,
		&revokedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning api key: %w", err)
	}

	key.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if revokedAtStr.Valid {
		t, err := time.Parse(time.RFC3339, revokedAtStr.String)
		if err != nil {
			return nil, fmt.Errorf("parsing revoked_at: %w", err)
		}
		key.RevokedAt = &t
	}
	return &key, nil
}

// GetAPIKey retrieves an API key by ID, revoked or not.
// Returns ErrNotFound if the key doesn't exist.
func (s *SQLiteStore) GetAPIKey(ctx context.Context, id string) (*APIKey, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = ?`, id)
	return scanAPIKey(row)
}

// GetAPIKeyByHash retrieves an active API key by its secret hash.
// Revoked and nonexistent keys both return ErrNotFound so that callers
// cannot distinguish the two cases.
func (s *SQLiteStore) GetAPIKeyByHash(ctx context.Context, keyHash string) (*APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = ? AND revoked_at IS NULL`
	row := s.db.QueryRowContext(ctx, query, keyHash)
	return scanAPIKey(row)
}

// RevokeAPIKey sets the key's revocation timestamp if not already set.
// Revoking an already-revoked key is a no-op. Returns ErrNotFound only
// if no key with the given ID exists.
func (s *SQLiteStore) RevokeAPIKey(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL
	`, now, id)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either the key doesn't exist or it's already revoked.
		// Already-revoked is a no-op; missing is an error.
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM api_keys WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("checking api key existence: %w", err)
		}
		return nil
	}

	s.logger.Info("revoked api key", "id", id)
	return nil
}

// ListAPIKeys returns all keys for a user, newest first, including revoked ones.
func (s *SQLiteStore) ListAPIKeys(ctx context.Context, userID string) ([]*APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE user_id = ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying api keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []*APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating api key rows: %w", err)
	}
	return keys, nil
}
