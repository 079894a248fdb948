// ABOUTME: Workout assignment store methods for agent-assigned workouts
// ABOUTME: Assignments track who assigned them, an optional due date, and completion

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const assignmentColumns = `id, user_id, title, description, assigned_by, due_date, completed_at, created_at`

// CreateAssignment persists a new workout assignment.
// Generates ID and CreatedAt if not set.
func (s *SQLiteStore) CreateAssignment(ctx context.Context, a *WorkoutAssignment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO workout_assignments (id, user_id, title, description, assigned_by, due_date, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		a.ID,
		a.UserID,
		a.Title,
		a.Description,
		a.AssignedBy,
		nullTime(a.DueDate),
		nullTime(a.CompletedAt),
		a.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting assignment: %w", err)
	}

	s.logger.Debug("created assignment", "id", a.ID, "user_id", a.UserID, "title", a.Title)
	return nil
}

func scanAssignment(scanner interface{ Scan(dest ...any) error }) (*WorkoutAssignment, error) {
	var a WorkoutAssignment
	var dueDateStr, completedAtStr sql.NullString
	var createdAtStr string

	err := scanner.Scan(
		&a.ID,
		&a.UserID,
		&a.Title,
		&a.Description,
		&a.AssignedBy,
		&dueDateStr,
		&completedAtStr,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning assignment: %w", err)
	}

	if dueDateStr.Valid {
		t, err := time.Parse(time.RFC3339, dueDateStr.String)
		if err != nil {
			return nil, fmt.Errorf("parsing due_date: %w", err)
		}
		a.DueDate = &t
	}
	if completedAtStr.Valid {
		t, err := time.Parse(time.RFC3339, completedAtStr.String)
		if err != nil {
			return nil, fmt.Errorf("parsing completed_at: %w", err)
		}
		a.CompletedAt = &t
	}
	a.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &a, nil
}

// GetAssignment retrieves an assignment by ID.
// Returns ErrNotFound if the assignment doesn't exist.
func (s *SQLiteStore) GetAssignment(ctx context.Context, id string) (*WorkoutAssignment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM workout_assignments WHERE id = ?`, id)
	return scanAssignment(row)
}

// ListAssignments returns a user's assignments, newest first.
// When openOnly is true, completed assignments are excluded.
func (s *SQLiteStore) ListAssignments(ctx context.Context, userID string, openOnly bool) ([]*WorkoutAssignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM workout_assignments
		WHERE user_id = ? AND (? = 0 OR completed_at IS NULL)
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, boolToInt(openOnly))
	if err != nil {
		return nil, fmt.Errorf("querying assignments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var assignments []*WorkoutAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assignment rows: %w", err)
	}
	return assignments, nil
}

// CompleteAssignment marks an assignment completed if not already.
// Completing twice is a no-op. Returns ErrNotFound if the assignment
// doesn't exist.
func (s *SQLiteStore) CompleteAssignment(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `
		UPDATE workout_assignments SET completed_at = ? WHERE id = ? AND completed_at IS NULL
	`, now, id)
	if err != nil {
		return fmt.Errorf("completing assignment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM workout_assignments WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("checking assignment existence: %w", err)
		}
		return nil
	}

	s.logger.Debug("completed assignment", "id", id)
	return nil
}
