// Package jwt implements the stateless access token codec: signing and
// verification of short-lived bearer tokens with HS256 or Ed25519 keys.
// It performs no I/O and keeps no state beyond its immutable configuration.
package jwt
