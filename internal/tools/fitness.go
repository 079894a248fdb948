// ABOUTME: Fitness tool pack: log sets, query history, manage workout assignments
// ABOUTME: Handlers decode their own JSON payloads and operate as the injected user

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/repgate/repgate/internal/store"
)

// FitnessStore is the slice of the store the fitness tools need.
type FitnessStore interface {
	CreateSetEntry(ctx context.Context, entry *store.SetEntry) error
	ListSetEntries(ctx context.Context, userID string, filter store.SetEntryFilter) ([]*store.SetEntry, error)
	CreateAssignment(ctx context.Context, a *store.WorkoutAssignment) error
	GetAssignment(ctx context.Context, id string) (*store.WorkoutAssignment, error)
	ListAssignments(ctx context.Context, userID string, openOnly bool) ([]*store.WorkoutAssignment, error)
	CompleteAssignment(ctx context.Context, id string) error
}

// FitnessPack creates the fitness tools backed by the given store.
func FitnessPack(s FitnessStore) []*Tool {
	h := &fitnessHandlers{store: s}
	return []*Tool{
		{
			Name:        "log_set",
			Description: "Log a workout set for the user",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"exercise":{"type":"string"},"weight_kg":{"type":"number"},"reps":{"type":"integer"},"rpe":{"type":"number"},"notes":{"type":"string"},"performed_at":{"type":"string","format":"date-time"}},"required":["exercise","reps"]}`),
			Handler:     h.LogSet,
		},
		{
			Name:        "get_history",
			Description: "Query the user's logged sets",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"exercise":{"type":"string"},"since":{"type":"string","format":"date-time"},"limit":{"type":"integer"}}}`),
			Handler:     h.GetHistory,
		},
		{
			Name:        "assign_workout",
			Description: "Assign a workout to the user",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"title":{"type":"string"},"description":{"type":"string"},"assigned_by":{"type":"string"},"due_date":{"type":"string","format":"date-time"}},"required":["title"]}`),
			Handler:     h.AssignWorkout,
		},
		{
			Name:        "list_assignments",
			Description: "List the user's workout assignments",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"open_only":{"type":"boolean"}}}`),
			Handler:     h.ListAssignments,
		},
		{
			Name:        "complete_assignment",
			Description: "Mark a workout assignment as completed",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
			Handler:     h.CompleteAssignment,
		},
	}
}

type fitnessHandlers struct {
	store FitnessStore
}

type logSetInput struct {
	Exercise    string   `json:"exercise"`
	WeightKg    float64  `json:"weight_kg"`
	Reps        int      `json:"reps"`
	RPE         *float64 `json:"rpe"`
	Notes       string   `json:"notes"`
	PerformedAt string   `json:"performed_at"`
}

func (h *fitnessHandlers) LogSet(ctx context.Context, userID string, input json.RawMessage) (json.RawMessage, error) {
	var in logSetInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if in.Exercise == "" {
		return nil, fmt.Errorf("exercise is required")
	}
	if in.Reps <= 0 {
		return nil, fmt.Errorf("reps must be positive")
	}

	entry := &store.SetEntry{
		UserID:   userID,
		Exercise: in.Exercise,
		WeightKg: in.WeightKg,
		Reps:     in.Reps,
		RPE:      in.RPE,
		Notes:    in.Notes,
	}
	if in.PerformedAt != "" {
		t, err := time.Parse(time.RFC3339, in.PerformedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid performed_at: %w", err)
		}
		entry.PerformedAt = t
	}

	if err := h.store.CreateSetEntry(ctx, entry); err != nil {
		return nil, err
	}

	return json.Marshal(map[string]string{"id": entry.ID, "status": "logged"})
}

type getHistoryInput struct {
	Exercise string `json:"exercise"`
	Since    string `json:"since"`
	Limit    int    `json:"limit"`
}

func (h *fitnessHandlers) GetHistory(ctx context.Context, userID string, input json.RawMessage) (json.RawMessage, error) {
	var in getHistoryInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	filter := store.SetEntryFilter{
		Exercise: in.Exercise,
		Limit:    in.Limit,
	}
	if in.Since != "" {
		t, err := time.Parse(time.RFC3339, in.Since)
		if err != nil {
			return nil, fmt.Errorf("invalid since date: %w", err)
		}
		filter.Since = &t
	}

	entries, err := h.store.ListSetEntries(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]any{"sets": entries, "count": len(entries)})
}

type assignWorkoutInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AssignedBy  string `json:"assigned_by"`
	DueDate     string `json:"due_date"`
}

func (h *fitnessHandlers) AssignWorkout(ctx context.Context, userID string, input json.RawMessage) (json.RawMessage, error) {
	var in assignWorkoutInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if in.Title == "" {
		return nil, fmt.Errorf("title is required")
	}

	assignedBy := in.AssignedBy
	if assignedBy == "" {
		assignedBy = "agent"
	}

	a := &store.WorkoutAssignment{
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		AssignedBy:  assignedBy,
	}
	if in.DueDate != "" {
		t, err := time.Parse(time.RFC3339, in.DueDate)
		if err != nil {
			return nil, fmt.Errorf("invalid due_date: %w", err)
		}
		a.DueDate = &t
	}

	if err := h.store.CreateAssignment(ctx, a); err != nil {
		return nil, err
	}

	return json.Marshal(map[string]string{"id": a.ID, "status": "assigned"})
}

type listAssignmentsInput struct {
	OpenOnly bool `json:"open_only"`
}

func (h *fitnessHandlers) ListAssignments(ctx context.Context, userID string, input json.RawMessage) (json.RawMessage, error) {
	var in listAssignmentsInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	assignments, err := h.store.ListAssignments(ctx, userID, in.OpenOnly)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]any{"assignments": assignments, "count": len(assignments)})
}

type completeAssignmentInput struct {
	ID string `json:"id"`
}

func (h *fitnessHandlers) CompleteAssignment(ctx context.Context, userID string, input json.RawMessage) (json.RawMessage, error) {
	var in completeAssignmentInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	// Fetch and verify ownership before completing
	a, err := h.store.GetAssignment(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, fmt.Errorf("assignment not found")
	}

	if err := h.store.CompleteAssignment(ctx, in.ID); err != nil {
		return nil, err
	}

	return json.Marshal(map[string]string{"status": "completed"})
}
