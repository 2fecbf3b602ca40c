package goRefresh

import "errors"

var (
	// ErrMissingToken is returned when no token was presented at all.
	ErrMissingToken = errors.New("missing token")
	// ErrTokenInvalid is returned for a bad signature, malformed structure,
	// or an issuer/audience mismatch on an access token.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned when an access token's signature is valid
	// but its expiry has passed. Clients should attempt a refresh.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenVerification is returned when the cryptographic layer accepted
	// a token but its claims are unusable (e.g. missing subject).
	ErrTokenVerification = errors.New("token verification failed")
	// ErrRefreshInvalidOrReused is returned when a refresh token is unknown,
	// expired, already revoked, or detected as reused. The message is uniform
	// on purpose: callers must not learn whether the family ever existed.
	ErrRefreshInvalidOrReused = errors.New("invalid or reused refresh token")
	// ErrTokenIssuanceFailed is returned when the hash-collision retry budget
	// is exhausted. Safe to retry the whole operation once.
	ErrTokenIssuanceFailed = errors.New("token issuance failed")
	// ErrConfiguration marks weak or missing configuration detected at
	// construction time. Fatal, never a per-request condition.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrInvalidArgument marks a malformed call, such as a revoke with no
	// selector. Programmer error, not user-facing.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrRateLimited is returned when the rotation throttle rejected the call.
	// The presented token was not consumed; retry after the window passes.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransactionFailed is returned when a rotation could not complete and
	// was rolled back cleanly. Retryable, unlike ErrRefreshInvalidOrReused.
	ErrTransactionFailed = errors.New("token rotation transaction failed")
	// ErrInternal wraps unrecognized persistence failures so backend details
	// never leak to callers.
	ErrInternal = errors.New("internal token store error")
	// ErrEngineNotReady is returned when an Engine method is called on an
	// engine that was not built through Builder.Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)
