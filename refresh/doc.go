// Package refresh persists hashed refresh token records and implements the
// single atomic primitive the rotation protocol depends on: consume-and-link,
// which revokes exactly one live record and installs its successor in the
// same step.
//
// Two backends are provided. RedisStore keeps records as hashes with
// TTL-based retention and performs the consume step in a Lua script.
// PostgresStore uses a transaction, with a compare-and-swap fallback for
// pools that cannot open transactions.
//
// # Architecture boundaries
//
//   - No token generation or hashing happens here; callers hand in
//     precomputed hashes.
//   - Reuse handling policy (family revocation) lives in the engine. The
//     store only reports that a presented hash belongs to a dead record.
package refresh
