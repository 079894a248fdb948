// ABOUTME: Tool audit log entity and store methods for recording tool invocations
// ABOUTME: Every dispatched tool call produces exactly one immutable entry

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ToolAuditEntry is an immutable record of one tool invocation. User and
// key references are nil for unauthenticated attempts recorded under the
// auth-failure logging policy. The Success flag, not row presence, carries
// the outcome: failed invocations are recorded too.
type ToolAuditEntry struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"user_id,omitempty"`     // nil when the invocation never resolved a user
	APIKeyID  *string   `json:"api_key_id,omitempty"`  // nil when the invocation never resolved a key
	ToolName  string    `json:"tool_name"`
	ArgsJSON  string    `json:"args_json"` // opaque serialized arguments, shape varies per tool
	Success   bool      `json:"success"`
	Origin    string    `json:"origin,omitempty"` // caller network address
	Timestamp time.Time `json:"timestamp"`
}

// ToolAuditFilter specifies filtering options for listing audit entries.
type ToolAuditFilter struct {
	UserID   *string    // filter by owning user
	APIKeyID *string    // filter by key used
	Since    *time.Time // entries at or after this time
	Until    *time.Time // entries at or before this time
	Limit    int        // max results (default 100, max 1000)
}

// AppendToolAudit appends a new entry to the tool audit log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendToolAudit(ctx context.Context, e *ToolAuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.ArgsJSON == "" {
		e.ArgsJSON = "{}"
	}

	query := `
		INSERT INTO tool_audit (audit_id, user_id, api_key_id, tool_name, args_json, success, origin, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.UserID,
		e.APIKeyID,
		e.ToolName,
		e.ArgsJSON,
		boolToInt(e.Success),
		e.Origin,
		e.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting tool audit entry: %w", err)
	}

	s.logger.Debug("appended tool audit",
		"id", e.ID,
		"tool", e.ToolName,
		"success", e.Success,
	)
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// normalizeAuditLimit applies default (100) and cap (1000) to audit limit.
func normalizeAuditLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const toolAuditQuery = `
	SELECT audit_id, user_id, api_key_id, tool_name, args_json, success, origin, ts
	FROM tool_audit
	WHERE (? IS NULL OR user_id = ?)
	  AND (? IS NULL OR api_key_id = ?)
	  AND (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR ts <= ?)
	ORDER BY ts DESC
	LIMIT ?
`

// scanToolAuditEntry scans a row into a ToolAuditEntry.
func scanToolAuditEntry(scanner interface{ Scan(dest ...any) error }) (ToolAuditEntry, error) {
	var e ToolAuditEntry
	var success int
	var tsStr string

	if err := scanner.Scan(
		&e.ID,
		&e.UserID,
		&e.APIKeyID,
		&e.ToolName,
		&e.ArgsJSON,
		&success,
		&e.Origin,
		&tsStr,
	); err != nil {
		return e, fmt.Errorf("scanning tool audit entry: %w", err)
	}

	e.Success = success != 0
	var err error
	e.Timestamp, err = time.Parse(time.RFC3339, tsStr)
	if err != nil {
		return e, fmt.Errorf("parsing timestamp: %w", err)
	}
	return e, nil
}

// ListToolAudit returns audit entries matching the filter criteria.
// Results are returned newest first (DESC by timestamp).
func (s *SQLiteStore) ListToolAudit(ctx context.Context, f ToolAuditFilter) ([]ToolAuditEntry, error) {
	limit := normalizeAuditLimit(f.Limit)

	var sinceStr, untilStr *string
	if f.Since != nil {
		v := f.Since.UTC().Format(time.RFC3339)
		sinceStr = &v
	}
	if f.Until != nil {
		v := f.Until.UTC().Format(time.RFC3339)
		untilStr = &v
	}

	rows, err := s.db.QueryContext(ctx, toolAuditQuery,
		f.UserID, f.UserID,
		f.APIKeyID, f.APIKeyID,
		sinceStr, sinceStr,
		untilStr, untilStr,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying tool audit: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []ToolAuditEntry
	for rows.Next() {
		e, err := scanToolAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tool audit entries: %w", err)
	}

	if entries == nil {
		entries = []ToolAuditEntry{}
	}
	return entries, nil
}
