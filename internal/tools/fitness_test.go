// ABOUTME: Tests for the fitness tool handlers
// ABOUTME: Exercises handlers end to end against a real SQLite store

package tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repgate/repgate/internal/store"
)

func setupFitness(t *testing.T) (*fitnessHandlers, *store.SQLiteStore, string) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	user := &store.User{
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		DisplayName:  "Test User",
	}
	require.NoError(t, s.CreateUser(context.Background(), user))

	return &fitnessHandlers{store: s}, s, user.ID
}

func TestLogSetAndHistory(t *testing.T) {
	h, _, userID := setupFitness(t)
	ctx := context.Background()

	out, err := h.LogSet(ctx, userID, json.RawMessage(`{"exercise":"squat","weight_kg":100,"reps":5,"rpe":8.5}`))
	require.NoError(t, err)

	var logged map[string]string
	require.NoError(t, json.Unmarshal(out, &logged))
	assert.NotEmpty(t, logged["id"])
	assert.Equal(t, "logged", logged["status"])

	out, err = h.GetHistory(ctx, userID, json.RawMessage(`{"exercise":"squat"}`))
	require.NoError(t, err)

	var hist struct {
		Sets  []*store.SetEntry `json:"sets"`
		Count int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(out, &hist))
	require.Equal(t, 1, hist.Count)
	assert.Equal(t, "squat", hist.Sets[0].Exercise)
	assert.Equal(t, 100.0, hist.Sets[0].WeightKg)
	require.NotNil(t, hist.Sets[0].RPE)
	assert.Equal(t, 8.5, *hist.Sets[0].RPE)
}

func TestLogSetValidation(t *testing.T) {
	h, _, userID := setupFitness(t)
	ctx := context.Background()

	_, err := h.LogSet(ctx, userID, json.RawMessage(`{"reps":5}`))
	assert.ErrorContains(t, err, "exercise is required")

	_, err = h.LogSet(ctx, userID, json.RawMessage(`{"exercise":"squat","reps":0}`))
	assert.ErrorContains(t, err, "reps must be positive")

	_, err = h.LogSet(ctx, userID, json.RawMessage(`not json`))
	assert.ErrorContains(t, err, "invalid input")
}

func TestHistoryScopedToUser(t *testing.T) {
	h, s, userID := setupFitness(t)
	ctx := context.Background()

	other := &store.User{Email: uuid.NewString() + "@example.com", PasswordHash: "x"}
	require.NoError(t, s.CreateUser(ctx, other))

	_, err := h.LogSet(ctx, other.ID, json.RawMessage(`{"exercise":"bench","reps":3}`))
	require.NoError(t, err)

	out, err := h.GetHistory(ctx, userID, json.RawMessage(`{}`))
	require.NoError(t, err)

	var hist struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(out, &hist))
	assert.Equal(t, 0, hist.Count)
}

func TestAssignmentLifecycle(t *testing.T) {
	h, _, userID := setupFitness(t)
	ctx := context.Background()

	out, err := h.AssignWorkout(ctx, userID, json.RawMessage(`{"title":"Leg day","description":"5x5 squats"}`))
	require.NoError(t, err)

	var assigned map[string]string
	require.NoError(t, json.Unmarshal(out, &assigned))
	id := assigned["id"]
	require.NotEmpty(t, id)

	out, err = h.ListAssignments(ctx, userID, json.RawMessage(`{"open_only":true}`))
	require.NoError(t, err)

	var listed struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(out, &listed))
	assert.Equal(t, 1, listed.Count)

	payload, _ := json.Marshal(map[string]string{"id": id})
	_, err = h.CompleteAssignment(ctx, userID, payload)
	require.NoError(t, err)

	out, err = h.ListAssignments(ctx, userID, json.RawMessage(`{"open_only":true}`))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(out, &listed))
	assert.Equal(t, 0, listed.Count)
}

func TestCompleteAssignmentOwnership(t *testing.T) {
	h, s, userID := setupFitness(t)
	ctx := context.Background()

	out, err := h.AssignWorkout(ctx, userID, json.RawMessage(`{"title":"Push day"}`))
	require.NoError(t, err)
	var assigned map[string]string
	require.NoError(t, json.Unmarshal(out, &assigned))

	other := &store.User{Email: uuid.NewString() + "@example.com", PasswordHash: "x"}
	require.NoError(t, s.CreateUser(ctx, other))

	payload, _ := json.Marshal(map[string]string{"id": assigned["id"]})
	_, err = h.CompleteAssignment(ctx, other.ID, payload)
	assert.ErrorContains(t, err, "assignment not found")
}

func TestFitnessPackRegisters(t *testing.T) {
	_, s, _ := setupFitness(t)

	r := NewRegistry()
	require.NoError(t, r.Register(FitnessPack(s)...))

	tools := r.List()
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
	}
	assert.Equal(t, []string{"assign_workout", "complete_assignment", "get_history", "list_assignments", "log_set"}, names)
}
