package refresh

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrHashExists is returned by Insert when the token hash is already
	// present, and by Consume when the successor's hash collides. The caller
	// regenerates the secret and retries.
	ErrHashExists = errors.New("token hash already exists")
	// ErrTokenMissing is returned by Consume when no record carries the
	// presented hash.
	ErrTokenMissing = errors.New("token not found")
	// ErrTokenDead is returned by Consume when the record exists but is
	// revoked or expired. The record is returned alongside so the caller can
	// apply its reuse policy.
	ErrTokenDead = errors.New("token revoked or expired")
	// ErrStoreUnavailable wraps backend connectivity and consistency
	// failures.
	ErrStoreUnavailable = errors.New("refresh store unavailable")
)

// Record is one persisted refresh token. TokenHash is the only credential
// material stored; the raw token is never written anywhere.
type Record struct {
	ID          string
	TokenHash   [32]byte
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

// Live reports whether the record can still be consumed at the given time.
func (r *Record) Live(now time.Time) bool {
	return !r.Revoked && now.Before(r.ExpiresAt)
}

// Selector targets records for Revoke. Exactly one field must be set;
// stores reject anything else.
type Selector struct {
	TokenID  string
	FamilyID string
	UserID   string
}

func (s Selector) valid() bool {
	n := 0
	if s.TokenID != "" {
		n++
	}
	if s.FamilyID != "" {
		n++
	}
	if s.UserID != "" {
		n++
	}
	return n == 1
}

// Store is the persistence contract for refresh token records.
//
// Consume is the rotation primitive. Given the hash of a presented token and
// a successor record, it must atomically verify the presented record is
// live, mark it revoked with ReplacedBy set to the successor, and insert the
// successor. The successor's UserID and FamilyID may be left empty; the
// store fills them from the consumed record. On success it returns the
// consumed record. Failure modes: (nil, ErrTokenMissing) when the hash is
// unknown, (record, ErrTokenDead) when the record exists but is revoked or
// expired, and (nil, ErrHashExists) when the successor's hash collides, in
// which case no state may have changed.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	Consume(ctx context.Context, tokenHash [32]byte, successor Record, now time.Time) (*Record, error)
	Revoke(ctx context.Context, sel Selector, now time.Time) (int, error)
	ListByUser(ctx context.Context, userID string) ([]Record, error)
	GetByID(ctx context.Context, tokenID string) (*Record, error)
	Ping(ctx context.Context) error
}
