package goRefresh

import "time"

// DeviceMetadata is optional client context captured at token issuance and
// surfaced on session summaries.
type DeviceMetadata struct {
	IPAddress   string
	UserAgent   string
	Fingerprint string
}

// TokenPair is the result of Login and Refresh: one access token and one raw
// refresh token. The refresh token value exists nowhere else and is never
// retrievable again.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	UserID           string
	FamilyID         string
}

// AuthenticatedPrincipal is the minimal identity returned by
// [Engine.Authenticate]. It deliberately carries no store-backed state.
type AuthenticatedPrincipal struct {
	UserID    string
	Roles     []string
	TokenID   string
	ExpiresAt time.Time
}

// Session is the derived, user-facing view of one refresh token family.
type Session struct {
	FamilyID   string
	UserID     string
	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time
	Active     bool
	TokenCount int
	IPAddress  string
	UserAgent  string
}

// RefreshTokenInfo is the safe introspection view of a persisted refresh
// token record. It intentionally excludes the token hash.
type RefreshTokenInfo struct {
	TokenID     string
	UserID      string
	FamilyID    string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	LastUsedAt  time.Time
	Revoked     bool
	ReplacedBy  string
	IPAddress   string
	UserAgent   string
	Fingerprint string
}

// CreateRefreshInput parameterizes [Engine.CreateRefreshToken].
type CreateRefreshInput struct {
	UserID string

	// FamilyID joins an existing family; empty starts a new one (a new
	// session). Rotation is the only path that should extend a family —
	// callers passing an existing FamilyID own the single-live-token
	// invariant themselves.
	FamilyID string

	// TTL overrides the configured default, clamped to Refresh.MaxTTL.
	TTL time.Duration

	Device DeviceMetadata

	// Now overrides the issuance clock; zero means time.Now(). Used by
	// callers that need deterministic timestamps.
	Now time.Time
}

// RefreshIssue is the result of [Engine.CreateRefreshToken]. Token is the raw
// secret handed to the client.
type RefreshIssue struct {
	Token     string
	TokenID   string
	FamilyID  string
	ExpiresAt time.Time
}

// RotateInput parameterizes [Engine.RotateRefreshToken].
type RotateInput struct {
	Token  string
	TTL    time.Duration
	Device DeviceMetadata
	Now    time.Time
}

// RotateResult is the outcome of a successful rotation: the successor token
// plus the identity recovered from the consumed record.
type RotateResult struct {
	Token     string
	TokenID   string
	UserID    string
	FamilyID  string
	ExpiresAt time.Time
}

// RevokeSelector targets tokens for bulk revocation. Exactly one field must
// be set.
type RevokeSelector struct {
	TokenID  string
	FamilyID string
	UserID   string
}

// ListSessionsOptions tunes [Engine.ListUserSessions].
type ListSessionsOptions struct {
	// IncludeRevoked also returns families with no currently active token.
	IncludeRevoked bool

	// Limit is clamped to [1, Sessions.MaxPageSize]; zero selects the
	// configured default page size.
	Limit int

	// Now overrides the activity clock; zero means time.Now().
	Now time.Time
}

// SecretSource produces raw refresh token secrets. The default reads
// crypto/rand; tests inject deterministic sources to force hash collisions.
type SecretSource func() ([32]byte, error)
