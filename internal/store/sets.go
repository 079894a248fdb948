// ABOUTME: Set entry store methods for logging and querying workout sets
// ABOUTME: Entries are scoped to their owning user and ordered by performance time

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const setEntryColumns = `id, user_id, exercise, weight_kg, reps, rpe, notes, performed_at, created_at`

// CreateSetEntry persists a new set entry.
// Generates ID, CreatedAt, and PerformedAt if not set.
func (s *SQLiteStore) CreateSetEntry(ctx context.Context, entry *SetEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.PerformedAt.IsZero() {
		entry.PerformedAt = now
	}

	query := `
		INSERT INTO set_entries (id, user_id, exercise, weight_kg, reps, rpe, notes, performed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Exercise,
		entry.WeightKg,
		entry.Reps,
		entry.RPE,
		entry.Notes,
		entry.PerformedAt.UTC().Format(time.RFC3339),
		entry.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting set entry: %w", err)
	}

	s.logger.Debug("created set entry", "id", entry.ID, "user_id", entry.UserID, "exercise", entry.Exercise)
	return nil
}

func scanSetEntry(scanner interface{ Scan(dest ...any) error }) (*SetEntry, error) {
	var entry SetEntry
	var rpe sql.NullFloat64
	var performedAtStr, createdAtStr string

	err := scanner.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Exercise,
		&entry.WeightKg,
		&entry.Reps,
		&rpe,
		&entry.Notes,
		&performedAtStr,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning set entry: %w", err)
	}

	if rpe.Valid {
		entry.RPE = &rpe.Float64
	}
	entry.PerformedAt, err = time.Parse(time.RFC3339, performedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing performed_at: %w", err)
	}
	entry.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &entry, nil
}

// GetSetEntry retrieves a set entry by ID.
// Returns ErrNotFound if the entry doesn't exist.
func (s *SQLiteStore) GetSetEntry(ctx context.Context, id string) (*SetEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+setEntryColumns+` FROM set_entries WHERE id = ?`, id)
	return scanSetEntry(row)
}

// ListSetEntries returns a user's set entries matching the filter,
// newest performance first.
func (s *SQLiteStore) ListSetEntries(ctx context.Context, userID string, filter SetEntryFilter) ([]*SetEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	var sinceStr *string
	if filter.Since != nil {
		v := filter.Since.UTC().Format(time.RFC3339)
		sinceStr = &v
	}

	query := `
		SELECT ` + setEntryColumns + `
		FROM set_entries
		WHERE user_id = ?
		  AND (? IS NULL OR exercise = ?)
		  AND (? IS NULL OR performed_at >= ?)
		ORDER BY performed_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query,
		userID,
		nullString(filter.Exercise), nullString(filter.Exercise),
		sinceStr, sinceStr,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying set entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*SetEntry
	for rows.Next() {
		entry, err := scanSetEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating set entry rows: %w", err)
	}
	return entries, nil
}

// DeleteSetEntry removes a set entry by ID.
// Returns ErrNotFound if the entry doesn't exist.
func (s *SQLiteStore) DeleteSetEntry(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM set_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting set entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted set entry", "id", id)
	return nil
}
