// Package tools provides the protected tool surface: a registry of named
// tools, the mock weather tools, a result cache, and the JSON HTTP
// handlers that invoke them.
//
// Tool names double as authorization operations, so the scope required to
// call a tool is looked up in the auth.ScopeAuthorizer under its name.
// DefaultOperationScopes returns the mapping for the weather tools.
package tools
