// ABOUTME: Package gateway is the choke point for all tool invocations
// ABOUTME: Authentication, tool resolution, execution, and auditing live here

// Package gateway dispatches tool invocations. Every call passes through the
// same sequence: authenticate the presented credential, resolve the tool,
// execute the handler as the authenticated user, and record the outcome.
// Callers outside this package never see which step of authentication failed.
package gateway
