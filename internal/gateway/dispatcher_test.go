// ABOUTME: Tests for the dispatch pipeline
// ABOUTME: Covers the full authenticate-resolve-execute-audit sequence

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repgate/repgate/internal/apikey"
	"github.com/repgate/repgate/internal/auth"
	"github.com/repgate/repgate/internal/store"
	"github.com/repgate/repgate/internal/tools"
)

type fixture struct {
	store      *store.SQLiteStore
	dispatcher *Dispatcher
	userID     string
	keyID      string
	secret     string
	keys       *apikey.Service
}

func setupDispatcher(t *testing.T, logAuthFailures bool) *fixture {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	user := &store.User{Email: uuid.NewString() + "@example.com", PasswordHash: "x"}
	require.NoError(t, s.CreateUser(ctx, user))

	keys := apikey.NewService(s, nil)
	key, secret, err := keys.Issue(ctx, user.ID, "test key")
	require.NoError(t, err)

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(
		&tools.Tool{
			Name: "echo",
			Handler: func(ctx context.Context, userID string, input json.RawMessage) (json.RawMessage, error) {
				return json.Marshal(map[string]string{"user_id": userID})
			},
		},
		&tools.Tool{
			Name: "boom",
			Handler: func(ctx context.Context, userID string, input json.RawMessage) (json.RawMessage, error) {
				return nil, errors.New("handler exploded")
			},
		},
	))

	d := NewDispatcher(DispatcherConfig{
		Auth:            auth.NewAuthenticator(s, nil),
		Registry:        registry,
		Audit:           s,
		LogAuthFailures: logAuthFailures,
	})

	return &fixture{store: s, dispatcher: d, userID: user.ID, keyID: key.ID, secret: secret, keys: keys}
}

func (f *fixture) auditEntries(t *testing.T) []store.ToolAuditEntry {
	t.Helper()
	entries, err := f.store.ListToolAudit(context.Background(), store.ToolAuditFilter{})
	require.NoError(t, err)
	return entries
}

func TestDispatchSuccess(t *testing.T) {
	f := setupDispatcher(t, false)

	result, err := f.dispatcher.Dispatch(context.Background(), &Request{
		Tool:       "echo",
		Arguments:  json.RawMessage(`{"hello":"world"}`),
		Credential: f.secret,
		Origin:     "test",
	})
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, json.Unmarshal(result, &out))
	assert.Equal(t, f.userID, out["user_id"])

	entries := f.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "echo", entries[0].ToolName)
	assert.True(t, entries[0].Success)
	require.NotNil(t, entries[0].UserID)
	assert.Equal(t, f.userID, *entries[0].UserID)
	require.NotNil(t, entries[0].APIKeyID)
	assert.Equal(t, f.keyID, *entries[0].APIKeyID)
	assert.Equal(t, "test", entries[0].Origin)
	assert.JSONEq(t, `{"hello":"world"}`, entries[0].ArgsJSON)
}

func TestDispatchHandlerFailureAudited(t *testing.T) {
	f := setupDispatcher(t, false)

	_, err := f.dispatcher.Dispatch(context.Background(), &Request{
		Tool:       "boom",
		Credential: f.secret,
	})
	require.ErrorContains(t, err, "handler exploded")

	entries := f.auditEntries(t)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
	require.NotNil(t, entries[0].UserID)
	assert.Equal(t, f.userID, *entries[0].UserID)
}

func TestDispatchUnknownToolAudited(t *testing.T) {
	f := setupDispatcher(t, false)

	_, err := f.dispatcher.Dispatch(context.Background(), &Request{
		Tool:       "delete_everything",
		Credential: f.secret,
	})
	require.ErrorIs(t, err, tools.ErrToolNotFound)

	entries := f.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "delete_everything", entries[0].ToolName)
	assert.False(t, entries[0].Success)
	require.NotNil(t, entries[0].UserID)
	assert.Equal(t, f.userID, *entries[0].UserID)
}

func TestDispatchUnauthorized(t *testing.T) {
	f := setupDispatcher(t, false)

	for _, cred := range []string{"", "garbage", "rg_neverissued"} {
		_, err := f.dispatcher.Dispatch(context.Background(), &Request{
			Tool:       "echo",
			Credential: cred,
		})
		assert.ErrorIs(t, err, auth.ErrUnauthorized, "credential %q", cred)
	}

	// Policy off: rejected calls leave no trace.
	assert.Empty(t, f.auditEntries(t))
}

func TestDispatchAuthFailurePolicy(t *testing.T) {
	f := setupDispatcher(t, true)

	_, err := f.dispatcher.Dispatch(context.Background(), &Request{
		Tool:       "echo",
		Credential: "rg_neverissued",
		Origin:     "10.0.0.1:5000",
	})
	require.ErrorIs(t, err, auth.ErrUnauthorized)

	entries := f.auditEntries(t)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
	assert.Nil(t, entries[0].UserID)
	assert.Nil(t, entries[0].APIKeyID)
	assert.Equal(t, "10.0.0.1:5000", entries[0].Origin)
}

func TestDispatchRevokedKey(t *testing.T) {
	f := setupDispatcher(t, false)
	ctx := context.Background()

	_, err := f.dispatcher.Dispatch(ctx, &Request{Tool: "echo", Credential: f.secret})
	require.NoError(t, err)

	require.NoError(t, f.keys.Revoke(ctx, f.keyID))

	_, err = f.dispatcher.Dispatch(ctx, &Request{Tool: "echo", Credential: f.secret})
	assert.ErrorIs(t, err, auth.ErrUnauthorized)

	// Only the pre-revocation call is in the trail.
	entries := f.auditEntries(t)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Success)
}

func TestDispatchCancelledContextStillAudits(t *testing.T) {
	f := setupDispatcher(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handler cancels the caller's context mid-execution.
	require.NoError(t, f.dispatcher.registry.Register(&tools.Tool{
		Name: "wait",
		Handler: func(ctx context.Context, userID string, input json.RawMessage) (json.RawMessage, error) {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}))

	_, err := f.dispatcher.Dispatch(ctx, &Request{Tool: "wait", Credential: f.secret})
	require.Error(t, err)

	entries := f.auditEntries(t)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
}

type failingAudit struct{}

func (failingAudit) AppendToolAudit(ctx context.Context, entry *store.ToolAuditEntry) error {
	return errors.New("disk full")
}

func TestAuditFailureDoesNotFailCall(t *testing.T) {
	f := setupDispatcher(t, false)

	d := NewDispatcher(DispatcherConfig{
		Auth:     f.dispatcher.auth,
		Registry: f.dispatcher.registry,
		Audit:    failingAudit{},
	})

	result, err := d.Dispatch(context.Background(), &Request{Tool: "echo", Credential: f.secret})
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestIdentityInjectedIntoContext(t *testing.T) {
	f := setupDispatcher(t, false)

	require.NoError(t, f.dispatcher.registry.Register(&tools.Tool{
		Name: "whoami",
		Handler: func(ctx context.Context, userID string, input json.RawMessage) (json.RawMessage, error) {
			identity := auth.IdentityFromContext(ctx)
			if identity == nil {
				return nil, errors.New("no identity in context")
			}
			return json.Marshal(map[string]string{"key_id": identity.Key.ID})
		},
	}))

	result, err := f.dispatcher.Dispatch(context.Background(), &Request{Tool: "whoami", Credential: f.secret})
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, json.Unmarshal(result, &out))
	assert.Equal(t, f.keyID, out["key_id"])
}
