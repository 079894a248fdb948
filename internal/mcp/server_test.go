// ABOUTME: Tests for the MCP HTTP server
// ABOUTME: Covers the initialize handshake, sessions, tools/list, and tools/call

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repgate/repgate/internal/apikey"
	"github.com/repgate/repgate/internal/auth"
	"github.com/repgate/repgate/internal/gateway"
	"github.com/repgate/repgate/internal/store"
	"github.com/repgate/repgate/internal/tools"
)

type testEnv struct {
	server *Server
	store  *store.SQLiteStore
	secret string
	userID string
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	user := &store.User{Email: uuid.NewString() + "@example.com", PasswordHash: "x"}
	require.NoError(t, s.CreateUser(ctx, user))

	keys := apikey.NewService(s, nil)
	_, secret, err := keys.Issue(ctx, user.ID, "test key")
	require.NoError(t, err)

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(&tools.Tool{
		Name:        "echo",
		Description: "Echo the authenticated user",
		Handler: func(ctx context.Context, userID string, input json.RawMessage) (json.RawMessage, error) {
			return json.Marshal(map[string]string{"user_id": userID})
		},
	}))

	dispatcher := gateway.NewDispatcher(gateway.DispatcherConfig{
		Auth:     auth.NewAuthenticator(s, nil),
		Registry: registry,
		Audit:    s,
	})

	srv, err := NewServer(Config{Registry: registry, Dispatcher: dispatcher})
	require.NoError(t, err)

	return &testEnv{server: srv, store: s, secret: secret, userID: user.ID}
}

func rpcRequest(t *testing.T, method string, id int, params any) []byte {
	t.Helper()
	req := map[string]any{"jsonrpc": "2.0", "id": id, "method": method}
	if params != nil {
		req["params"] = params
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)
	return body
}

// initialize performs the handshake and returns the session ID.
func initialize(t *testing.T, env *testEnv, path string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(rpcRequest(t, "initialize", 1, nil)))
	w := httptest.NewRecorder()
	env.server.handleMCP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	sessionID := w.Header().Get("Mcp-Session-Id")
	require.NotEmpty(t, sessionID)
	return sessionID
}

func TestInitializeHandshake(t *testing.T) {
	env := setupServer(t)

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(rpcRequest(t, "initialize", 1, nil)))
	w := httptest.NewRecorder()
	env.server.handleMCP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("Mcp-Session-Id"))

	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Nil(t, resp.Error)

	result := resp.Result.(map[string]any)
	assert.Equal(t, latestProtocolVersion, result["protocolVersion"])
}

func TestToolsListRequiresSession(t *testing.T) {
	env := setupServer(t)

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(rpcRequest(t, "tools/list", 2, nil)))
	w := httptest.NewRecorder()
	env.server.handleMCP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToolsList(t *testing.T) {
	env := setupServer(t)
	sessionID := initialize(t, env, "/mcp")

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(rpcRequest(t, "tools/list", 2, nil)))
	req.Header.Set("Mcp-Session-Id", sessionID)
	w := httptest.NewRecorder()
	env.server.handleMCP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Result MCPListToolsResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Result.Tools, 1)
	assert.Equal(t, "echo", resp.Result.Tools[0].Name)
	assert.NotEmpty(t, resp.Result.Tools[0].InputSchema)
}

func TestToolsCallWithPathKey(t *testing.T) {
	env := setupServer(t)
	path := "/mcp/" + env.secret
	sessionID := initialize(t, env, path)

	params := MCPCallToolParams{Name: "echo", Arguments: json.RawMessage(`{}`)}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(rpcRequest(t, "tools/call", 3, params)))
	req.Header.Set("Mcp-Session-Id", sessionID)
	w := httptest.NewRecorder()
	env.server.handleMCP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Result MCPCallToolResult `json:"result"`
		Error  *JSONRPCError     `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Nil(t, resp.Error)
	require.Len(t, resp.Result.Content, 1)
	assert.False(t, resp.Result.IsError)
	assert.Contains(t, resp.Result.Content[0].Text, env.userID)
}

func TestToolsCallWithBearerKey(t *testing.T) {
	env := setupServer(t)
	sessionID := initialize(t, env, "/mcp")

	params := MCPCallToolParams{Name: "echo"}
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(rpcRequest(t, "tools/call", 3, params)))
	req.Header.Set("Mcp-Session-Id", sessionID)
	req.Header.Set("Authorization", "Bearer "+env.secret)
	w := httptest.NewRecorder()
	env.server.handleMCP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Error)
}

func TestToolsCallUnauthorized(t *testing.T) {
	env := setupServer(t)
	sessionID := initialize(t, env, "/mcp")

	params := MCPCallToolParams{Name: "echo"}
	req := httptest.NewRequest(http.MethodPost, "/mcp/rg_neverissued", bytes.NewReader(rpcRequest(t, "tools/call", 3, params)))
	req.Header.Set("Mcp-Session-Id", sessionID)
	w := httptest.NewRecorder()
	env.server.handleMCP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, JSONRPCInvalidRequest, resp.Error.Code)
	assert.Equal(t, "unauthorized", resp.Error.Message)
}

func TestToolsCallUnknownTool(t *testing.T) {
	env := setupServer(t)
	path := "/mcp/" + env.secret
	sessionID := initialize(t, env, path)

	params := MCPCallToolParams{Name: "delete_everything"}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(rpcRequest(t, "tools/call", 3, params)))
	req.Header.Set("Mcp-Session-Id", sessionID)
	w := httptest.NewRecorder()
	env.server.handleMCP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, JSONRPCInvalidParams, resp.Error.Code)
	assert.Equal(t, "tool not found", resp.Error.Message)

	// Even the rejected name lands in the audit trail.
	entries, err := env.store.ListToolAudit(context.Background(), store.ToolAuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "delete_everything", entries[0].ToolName)
	assert.False(t, entries[0].Success)
}

func TestHandlerFailureIsToolResult(t *testing.T) {
	env := setupServer(t)
	require.NoError(t, env.server.registry.Register(&tools.Tool{
		Name: "boom",
		Handler: func(ctx context.Context, userID string, input json.RawMessage) (json.RawMessage, error) {
			return nil, assert.AnError
		},
	}))

	path := "/mcp/" + env.secret
	sessionID := initialize(t, env, path)

	params := MCPCallToolParams{Name: "boom"}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(rpcRequest(t, "tools/call", 3, params)))
	req.Header.Set("Mcp-Session-Id", sessionID)
	w := httptest.NewRecorder()
	env.server.handleMCP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Result MCPCallToolResult `json:"result"`
		Error  *JSONRPCError     `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Nil(t, resp.Error)
	assert.True(t, resp.Result.IsError)
}

func TestNotificationAccepted(t *testing.T) {
	env := setupServer(t)
	sessionID := initialize(t, env, "/mcp")

	body := []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	req.Header.Set("Mcp-Session-Id", sessionID)
	w := httptest.NewRecorder()
	env.server.handleMCP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestRequestBodyTooLarge(t *testing.T) {
	env := setupServer(t)

	big := strings.Repeat("x", MaxRequestBodySize+1)
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(big))
	w := httptest.NewRecorder()
	env.server.handleMCP(w, req)

	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, JSONRPCInvalidRequest, resp.Error.Code)
}

func TestUnsupportedProtocolVersion(t *testing.T) {
	env := setupServer(t)
	sessionID := initialize(t, env, "/mcp")

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(rpcRequest(t, "tools/list", 2, nil)))
	req.Header.Set("Mcp-Session-Id", sessionID)
	req.Header.Set("Mcp-Protocol-Version", "1999-01-01")
	w := httptest.NewRecorder()
	env.server.handleMCP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteSessionOwnership(t *testing.T) {
	env := setupServer(t)
	path := "/mcp/" + env.secret
	sessionID := initialize(t, env, path)

	// A caller without the owning key cannot terminate the session.
	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	req.Header.Set("Mcp-Session-Id", sessionID)
	w := httptest.NewRecorder()
	env.server.handleMCP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The owner can.
	req = httptest.NewRequest(http.MethodDelete, path, nil)
	req.Header.Set("Mcp-Session-Id", sessionID)
	w = httptest.NewRecorder()
	env.server.handleMCP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// Terminated sessions are gone.
	req = httptest.NewRequest(http.MethodDelete, path, nil)
	req.Header.Set("Mcp-Session-Id", sessionID)
	w = httptest.NewRecorder()
	env.server.handleMCP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMethodNotFound(t *testing.T) {
	env := setupServer(t)
	sessionID := initialize(t, env, "/mcp")

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(rpcRequest(t, "resources/list", 2, nil)))
	req.Header.Set("Mcp-Session-Id", sessionID)
	w := httptest.NewRecorder()
	env.server.handleMCP(w, req)

	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, JSONRPCMethodNotFound, resp.Error.Code)
}
