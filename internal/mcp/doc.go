// ABOUTME: Package mcp serves the Model Context Protocol over Streamable HTTP
// ABOUTME: Agents connect here; every tool call is forwarded to the gateway

// Package mcp implements an MCP-compatible HTTP server so external agents can
// list and invoke the fitness tools.
//
// The transport follows the MCP Streamable HTTP specification: a single
// endpoint accepting JSON-RPC 2.0 over POST, with sessions issued on
// initialize via the Mcp-Session-Id header and terminated via DELETE.
//
// Credentials travel with each request, either in the URL path (/mcp/<key>),
// the ?key= query parameter, or an Authorization bearer header. This layer
// never validates them itself: validation, identity resolution, and audit all
// happen in the gateway dispatcher, so a request with a bad key still leaves
// the trace the dispatcher's policy calls for.
package mcp
