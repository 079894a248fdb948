// Package auth provides authentication for repgate.
//
// # Authentication Methods
//
// Two credential mechanisms exist, deliberately kept apart:
//
//   - API Keys: Long-lived bearer credentials for the tool dispatch
//     surface. Presented secrets are hashed and resolved against the
//     store; every failure mode returns the same ErrUnauthorized so
//     callers cannot enumerate keys or distinguish revoked from unknown.
//
//   - Session Tokens: Short-lived HS256 JWTs issued after a password
//     login, used by the web API only. Signed with the configured
//     auth.jwt_secret.
//
// # Identity Propagation
//
// Successful API key authentication yields an Identity{User, Key} which
// travels via WithIdentity/IdentityFromContext. The web API session user
// travels separately via WithUser/UserFromContext.
//
// The authenticator never writes audit entries; the dispatch gateway does
// so exactly once per tool call, failed authentication included when the
// audit policy enables it.
package auth
