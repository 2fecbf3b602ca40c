// Package goRefresh provides a token-session engine built around short-lived
// JWT access tokens and long-lived, single-use, rotating refresh tokens.
//
// Refresh tokens are organized into families: every token descends from the
// original login that started the family, and rotation consumes the presented
// token atomically while issuing its successor in the same family. Presenting
// an already-consumed token is treated as a breach signal and revokes the
// whole family.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. Rotation correctness does not rely on in-process locking —
// it is delegated to the backing store (a Redis Lua compare-and-swap or a
// Postgres transaction), so multiple processes may share one store.
//
// # Architecture boundaries
//
// goRefresh is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (TokenPair, Session, AuthenticatedPrincipal, ...). Secret
// generation, token encoding, and hashing live under internal/ and are never
// exported. Persistence lives in the refresh sub-package behind the
// [refresh.Store] interface.
//
// # What this package must NOT do
//
//   - Persist or log raw refresh token secrets; only keyed hashes are stored.
//   - Decide transport details (cookie names, headers) — see the transport
//     sub-package for the boundary adapter.
//   - Distinguish "unknown token" from "replayed token" in any caller-visible
//     way; both surface as [ErrRefreshInvalidOrReused].
package goRefresh
