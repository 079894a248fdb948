// Package store provides persistent storage for repgate using SQLite.
//
// # Data Models
//
//   - User: Registered account with bcrypt-hashed password
//   - APIKey: Issued bearer credential, stored hash-only, revoked in place
//   - SetEntry: One logged workout set
//   - WorkoutAssignment: Workout assigned through the tool surface
//   - ToolAuditEntry: Immutable record of one tool invocation
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Per-row atomicity is the only coordination the system relies on: a
// committed key revocation is visible to the next lookup, and concurrent
// audit appends are independent single-row writes ordered by their
// timestamp field, not by commit order.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist (also returned for
//     revoked keys on hash lookup, indistinguishable from nonexistent)
//   - ErrDuplicateEmail: Email already registered
//
// All methods accept context.Context for cancellation support.
package store
