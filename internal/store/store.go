// ABOUTME: Store interface and data types for repgate persistence
// ABOUTME: Defines User, APIKey, SetEntry, WorkoutAssignment and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when registering a user with an email that already exists
var ErrDuplicateEmail = errors.New("email already registered")

// User represents a registered account. Users own API keys, set entries,
// workout assignments, and audit entries. Never hard-deleted.
type User struct {
	ID           string
	Email        string
	PasswordHash string // bcrypt hash
	DisplayName  string
	CreatedAt    time.Time
}

// APIKey represents one issued bearer credential. Only the SHA-256 hash of
// the secret is stored; the raw value is surfaced exactly once at issuance.
// Keys are revoked, never deleted, so audit rows keep a valid reference.
type APIKey struct {
	ID        string
	UserID    string
	Name      string
	KeyHash   string
	CreatedAt time.Time
	RevokedAt *time.Time // nil = active
}

// Active reports whether the key has not been revoked.
func (k *APIKey) Active() bool {
	return k.RevokedAt == nil
}

// SetEntry represents one logged workout set. Serialized as-is in API and
// tool responses.
type SetEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Exercise    string    `json:"exercise"`
	WeightKg    float64   `json:"weight_kg"`
	Reps        int       `json:"reps"`
	RPE         *float64  `json:"rpe,omitempty"` // rate of perceived exertion, optional
	Notes       string    `json:"notes,omitempty"`
	PerformedAt time.Time `json:"performed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// WorkoutAssignment represents a workout assigned to a user, typically by
// an agent through the tool surface.
type WorkoutAssignment struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	AssignedBy  string     `json:"assigned_by"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SetEntryFilter specifies filtering options for listing set entries.
type SetEntryFilter struct {
	Exercise string     // exact match, empty = all
	Since    *time.Time // entries performed at or after this time
	Limit    int        // max results (default 50, max 500)
}

// Store defines the interface for repgate persistence.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// API keys
	CreateAPIKey(ctx context.Context, key *APIKey) error
	GetAPIKey(ctx context.Context, id string) (*APIKey, error)
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
	ListAPIKeys(ctx context.Context, userID string) ([]*APIKey, error)

	// Set entries
	CreateSetEntry(ctx context.Context, entry *SetEntry) error
	GetSetEntry(ctx context.Context, id string) (*SetEntry, error)
	ListSetEntries(ctx context.Context, userID string, filter SetEntryFilter) ([]*SetEntry, error)
	DeleteSetEntry(ctx context.Context, id string) error

	// Workout assignments
	CreateAssignment(ctx context.Context, a *WorkoutAssignment) error
	GetAssignment(ctx context.Context, id string) (*WorkoutAssignment, error)
	ListAssignments(ctx context.Context, userID string, openOnly bool) ([]*WorkoutAssignment, error)
	CompleteAssignment(ctx context.Context, id string) error

	// Tool audit log
	AppendToolAudit(ctx context.Context, e *ToolAuditEntry) error
	ListToolAudit(ctx context.Context, f ToolAuditFilter) ([]ToolAuditEntry, error)

	// Close releases any resources held by the store
	Close() error
}
