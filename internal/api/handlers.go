// ABOUTME: JSON web API for account management, key issuance, and history.
// ABOUTME: Session-token protected; the audit endpoint is scoped to the caller.

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/repgate/repgate/internal/apikey"
	"github.com/repgate/repgate/internal/auth"
	"github.com/repgate/repgate/internal/store"
)

// dummyHash keeps login timing constant when the account doesn't exist.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Handlers serves the JSON web API.
type Handlers struct {
	store    store.Store
	keys     *apikey.Service
	sessions *auth.JWTSessions
	logger   *slog.Logger
}

// Config contains configuration for the API handlers.
type Config struct {
	Store    store.Store
	Keys     *apikey.Service
	Sessions *auth.JWTSessions
	Logger   *slog.Logger
}

// NewHandlers creates the API handler set.
func NewHandlers(cfg Config) *Handlers {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "api")
	}
	return &Handlers{
		store:    cfg.Store,
		keys:     cfg.Keys,
		sessions: cfg.Sessions,
		logger:   logger,
	}
}

// RegisterRoutes registers the API endpoints on the given ServeMux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	// Public routes
	mux.HandleFunc("POST /api/register", h.handleRegister)
	mux.HandleFunc("POST /api/login", h.handleLogin)

	// Session-protected routes
	protect := auth.SessionMiddleware(h.store, h.sessions)
	mux.Handle("POST /api/keys", protect(http.HandlerFunc(h.handleCreateKey)))
	mux.Handle("GET /api/keys", protect(http.HandlerFunc(h.handleListKeys)))
	mux.Handle("DELETE /api/keys/{id}", protect(http.HandlerFunc(h.handleRevokeKey)))
	mux.Handle("POST /api/sets", protect(http.HandlerFunc(h.handleCreateSet)))
	mux.Handle("GET /api/sets", protect(http.HandlerFunc(h.handleListSets)))
	mux.Handle("DELETE /api/sets/{id}", protect(http.HandlerFunc(h.handleDeleteSet)))
	mux.Handle("GET /api/audit", protect(http.HandlerFunc(h.handleListAudit)))

	h.logger.Info("api routes registered")
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

func (h *Handlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "email and password required")
		return
	}
	if len(req.Password) < 8 {
		h.writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("failed to hash password", "error", err)
		h.writeError(w, http.StatusInternalServerError, "an error occurred")
		return
	}

	user := &store.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		DisplayName:  req.DisplayName,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			h.writeError(w, http.StatusConflict, "email already registered")
			return
		}
		h.logger.Error("failed to create user", "error", err)
		h.writeError(w, http.StatusInternalServerError, "an error occurred")
		return
	}

	h.logger.Info("user registered", "user_id", user.ID)
	h.writeJSON(w, http.StatusCreated, map[string]string{
		"id":    user.ID,
		"email": user.Email,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Dummy comparison to keep timing constant for unknown emails
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(req.Password))
			h.writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.logger.Error("failed to get user", "error", err)
		h.writeError(w, http.StatusInternalServerError, "an error occurred")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := h.sessions.Generate(user.ID, auth.DefaultSessionTTL)
	if err != nil {
		h.logger.Error("failed to generate session token", "error", err)
		h.writeError(w, http.StatusInternalServerError, "an error occurred")
		return
	}

	h.logger.Info("login successful", "user_id", user.ID)
	h.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type createKeyRequest struct {
	Name string `json:"name"`
}

func (h *Handlers) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name required")
		return
	}

	key, secret, err := h.keys.Issue(r.Context(), user.ID, req.Name)
	if err != nil {
		h.logger.Error("failed to issue key", "error", err)
		h.writeError(w, http.StatusInternalServerError, "an error occurred")
		return
	}

	// The secret is returned exactly once; only its hash is stored.
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"id":         key.ID,
		"name":       key.Name,
		"key":        secret,
		"created_at": key.CreatedAt,
	})
}

func (h *Handlers) handleListKeys(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	keys, err := h.keys.List(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to list keys", "error", err)
		h.writeError(w, http.StatusInternalServerError, "an error occurred")
		return
	}

	out := make([]map[string]any, len(keys))
	for i, k := range keys {
		out[i] = map[string]any{
			"id":         k.ID,
			"name":       k.Name,
			"active":     k.Active(),
			"created_at": k.CreatedAt,
			"revoked_at": k.RevokedAt,
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"keys": out})
}

func (h *Handlers) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	keyID := r.PathValue("id")

	// Verify ownership before revoking
	key, err := h.store.GetAPIKey(r.Context(), keyID)
	if err != nil || key.UserID != user.ID {
		h.writeError(w, http.StatusNotFound, "key not found")
		return
	}

	if err := h.keys.Revoke(r.Context(), keyID); err != nil {
		h.logger.Error("failed to revoke key", "key_id", keyID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "an error occurred")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

type createSetRequest struct {
	Exercise    string   `json:"exercise"`
	WeightKg    float64  `json:"weight_kg"`
	Reps        int      `json:"reps"`
	RPE         *float64 `json:"rpe"`
	Notes       string   `json:"notes"`
	PerformedAt string   `json:"performed_at"`
}

func (h *Handlers) handleCreateSet(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req createSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Exercise == "" || req.Reps <= 0 {
		h.writeError(w, http.StatusBadRequest, "exercise and positive reps required")
		return
	}

	entry := &store.SetEntry{
		UserID:   user.ID,
		Exercise: req.Exercise,
		WeightKg: req.WeightKg,
		Reps:     req.Reps,
		RPE:      req.RPE,
		Notes:    req.Notes,
	}
	if req.PerformedAt != "" {
		t, err := time.Parse(time.RFC3339, req.PerformedAt)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid performed_at")
			return
		}
		entry.PerformedAt = t
	}

	if err := h.store.CreateSetEntry(r.Context(), entry); err != nil {
		h.logger.Error("failed to create set", "error", err)
		h.writeError(w, http.StatusInternalServerError, "an error occurred")
		return
	}

	h.writeJSON(w, http.StatusCreated, entry)
}

func (h *Handlers) handleListSets(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	filter := store.SetEntryFilter{
		Exercise: r.URL.Query().Get("exercise"),
	}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
		filter.Since = &t
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	entries, err := h.store.ListSetEntries(r.Context(), user.ID, filter)
	if err != nil {
		h.logger.Error("failed to list sets", "error", err)
		h.writeError(w, http.StatusInternalServerError, "an error occurred")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"sets": entries})
}

func (h *Handlers) handleDeleteSet(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	setID := r.PathValue("id")

	entry, err := h.store.GetSetEntry(r.Context(), setID)
	if err != nil || entry.UserID != user.ID {
		h.writeError(w, http.StatusNotFound, "set not found")
		return
	}

	if err := h.store.DeleteSetEntry(r.Context(), setID); err != nil {
		h.logger.Error("failed to delete set", "set_id", setID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "an error occurred")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleListAudit returns the caller's own tool invocation history, newest
// first. Entries belonging to other users are never visible here.
func (h *Handlers) handleListAudit(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	filter := store.ToolAuditFilter{UserID: &user.ID}
	if keyID := r.URL.Query().Get("api_key"); keyID != "" {
		filter.APIKeyID = &keyID
	}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
		filter.Since = &t
	}
	if until := r.URL.Query().Get("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid until")
			return
		}
		filter.Until = &t
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	entries, err := h.store.ListToolAudit(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list audit entries", "error", err)
		h.writeError(w, http.StatusInternalServerError, "an error occurred")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
