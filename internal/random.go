package internal

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

// RefreshSecretSize is the length of the random half of a raw refresh token.
const RefreshSecretSize = 32

const refreshTokenRawSize = 16 + RefreshSecretSize

// TokenSecret is the random component of a raw refresh token.
type TokenSecret [RefreshSecretSize]byte

// NewTokenSecret reads a fresh secret from crypto/rand.
func NewTokenSecret() (TokenSecret, error) {
	var secret TokenSecret
	_, err := rand.Read(secret[:])
	return secret, err
}

// EncodeRefreshToken packs the record ID and secret into the opaque wire
// form: base64url, no padding, compact.
func EncodeRefreshToken(id uuid.UUID, secret TokenSecret) string {
	var raw [refreshTokenRawSize]byte
	copy(raw[:len(id)], id[:])
	copy(raw[len(id):], secret[:])
	return base64.RawURLEncoding.EncodeToString(raw[:])
}

// DecodeRefreshToken is the inverse of EncodeRefreshToken. Any structural
// problem yields an error; callers must map it to their uniform invalid-token
// response.
func DecodeRefreshToken(token string) (uuid.UUID, TokenSecret, error) {
	var (
		id     uuid.UUID
		secret TokenSecret
	)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return id, secret, err
	}
	if len(raw) != refreshTokenRawSize {
		return id, secret, errors.New("invalid refresh token size")
	}

	copy(id[:], raw[:len(id)])
	copy(secret[:], raw[len(id):])
	return id, secret, nil
}

// HashRefreshToken computes the keyed hash persisted in place of the raw
// token. The key must be the dedicated refresh hash secret, never the JWT
// signing key.
func HashRefreshToken(key []byte, id uuid.UUID, secret TokenSecret) [32]byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(id[:])
	mac.Write(secret[:])

	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}
