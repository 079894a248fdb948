// ABOUTME: Package tools defines the tool registry and the fitness tool pack
// ABOUTME: Tools are registered explicitly at startup and looked up by name at dispatch

// Package tools provides the registry of invocable tools and the built-in
// fitness handlers. A handler receives the authenticated user's ID along with
// its raw JSON arguments; handlers never resolve credentials themselves.
package tools
