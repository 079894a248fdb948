// ABOUTME: Dispatches tool invocations: authenticate, resolve, execute, audit.
// ABOUTME: Every invocation is recorded, including rejected and failed ones.

package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/repgate/repgate/internal/auth"
	"github.com/repgate/repgate/internal/store"
	"github.com/repgate/repgate/internal/tools"
)

// DefaultTimeout is the default timeout for tool execution.
const DefaultTimeout = 30 * time.Second

// AuditStore records tool invocation outcomes.
type AuditStore interface {
	AppendToolAudit(ctx context.Context, entry *store.ToolAuditEntry) error
}

// Request describes a single tool invocation from a caller.
type Request struct {
	Tool       string
	Arguments  json.RawMessage
	Credential string
	Origin     string
}

// Dispatcher authenticates callers, routes tool calls to their handlers, and
// records every invocation in the audit trail.
type Dispatcher struct {
	auth     *auth.Authenticator
	registry *tools.Registry
	audit    AuditStore
	logger   *slog.Logger
	timeout  time.Duration

	// logAuthFailures controls whether rejected invocations leave
	// unattributed audit rows.
	logAuthFailures bool
}

// DispatcherConfig contains configuration options for the Dispatcher.
type DispatcherConfig struct {
	Auth            *auth.Authenticator
	Registry        *tools.Registry
	Audit           AuditStore
	Logger          *slog.Logger
	Timeout         time.Duration
	LogAuthFailures bool
}

// NewDispatcher creates a new Dispatcher with the given configuration.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "gateway")
	}

	return &Dispatcher{
		auth:            cfg.Auth,
		registry:        cfg.Registry,
		audit:           cfg.Audit,
		logger:          logger,
		timeout:         timeout,
		logAuthFailures: cfg.LogAuthFailures,
	}
}

// Dispatch runs a single tool invocation end to end. It authenticates the
// credential, resolves the tool, executes the handler as the authenticated
// user, and records the outcome. The audit write happens regardless of how
// the invocation ends; an audit failure is logged but never surfaces to the
// caller.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (json.RawMessage, error) {
	identity, err := d.auth.Authenticate(ctx, req.Credential)
	if err != nil {
		d.logger.Warn("unauthorized tool call",
			"tool_name", req.Tool,
			"origin", req.Origin,
		)
		if d.logAuthFailures {
			d.record(ctx, nil, req, false)
		}
		return nil, auth.ErrUnauthorized
	}

	tool, err := d.registry.Get(req.Tool)
	if err != nil {
		d.logger.Warn("unknown tool requested",
			"tool_name", req.Tool,
			"user_id", identity.User.ID,
		)
		d.record(ctx, identity, req, false)
		return nil, err
	}

	d.logger.Info("→ dispatching tool call",
		"tool_name", req.Tool,
		"user_id", identity.User.ID,
		"origin", req.Origin,
	)

	execCtx, cancel := context.WithTimeout(auth.WithIdentity(ctx, identity), d.timeout)
	defer cancel()

	args := req.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	result, err := tool.Handler(execCtx, identity.User.ID, args)
	if err != nil {
		d.logger.Warn("tool execution failed",
			"tool_name", req.Tool,
			"user_id", identity.User.ID,
			"error", err,
		)
		d.record(ctx, identity, req, false)
		return nil, err
	}

	d.record(ctx, identity, req, true)
	return result, nil
}

// record appends an audit entry for the invocation. The write uses a detached
// context so a cancelled invocation still leaves its trace.
func (d *Dispatcher) record(ctx context.Context, identity *auth.Identity, req *Request, success bool) {
	entry := &store.ToolAuditEntry{
		ToolName: req.Tool,
		ArgsJSON: string(req.Arguments),
		Success:  success,
		Origin:   req.Origin,
	}
	if identity != nil {
		entry.UserID = &identity.User.ID
		entry.APIKeyID = &identity.Key.ID
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := d.audit.AppendToolAudit(auditCtx, entry); err != nil {
		d.logger.Error("audit write failed",
			"tool_name", req.Tool,
			"success", success,
			"error", err,
		)
	}
}
