// Package middleware exposes HTTP middleware that enforces access token
// authentication via goRefresh.Engine.Authenticate and injects the resulting
// principal into the request context.
//
// # What this package must NOT do
//
//   - Parse tokens directly (delegates to Engine).
//   - Touch the refresh token store.
//   - Make authorization decisions beyond pass/reject.
package middleware
