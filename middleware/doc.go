// Package middleware provides a net/http guard that validates access
// tokens on protected routes.
//
// # Architecture boundaries
//
// The guard only consumes the opaque signed token string from the
// Authorization header. Cookie handling, CSRF, and any other delivery
// policy belong to the host application.
//
// # What this package must NOT do
//
//   - Issue, refresh, or revoke tokens.
//   - Touch Redis directly; all state access goes through the Service.
package middleware
