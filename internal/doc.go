// Package internal contains helper utilities that are intentionally private
// to goRefresh: secure random generation, refresh token wire encoding, and
// keyed hashing.
//
// # What this package must NOT do
//
//   - Export types that appear in the public goRefresh API.
//   - Be imported by any package outside the goRefresh module.
package internal
