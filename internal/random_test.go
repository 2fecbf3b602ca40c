package internal

import (
	"testing"

	"github.com/google/uuid"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	id := uuid.New()
	secret, err := NewTokenSecret()
	if err != nil {
		t.Fatalf("NewTokenSecret failed: %v", err)
	}

	token := EncodeRefreshToken(id, secret)

	gotID, gotSecret, err := DecodeRefreshToken(token)
	if err != nil {
		t.Fatalf("DecodeRefreshToken failed: %v", err)
	}
	if gotID != id {
		t.Fatalf("ID changed across round trip: %s != %s", gotID, id)
	}
	if gotSecret != secret {
		t.Fatal("secret changed across round trip")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "!!!", "dG9vLXNob3J0", "with spaces"} {
		if _, _, err := DecodeRefreshToken(token); err == nil {
			t.Fatalf("expected decode of %q to fail", token)
		}
	}
}

func TestHashIsKeyed(t *testing.T) {
	id := uuid.New()
	secret, err := NewTokenSecret()
	if err != nil {
		t.Fatalf("NewTokenSecret failed: %v", err)
	}

	key1 := []byte("0123456789abcdef0123456789abcdef")
	key2 := []byte("fedcba9876543210fedcba9876543210")

	h1 := HashRefreshToken(key1, id, secret)
	h2 := HashRefreshToken(key1, id, secret)
	h3 := HashRefreshToken(key2, id, secret)

	if h1 != h2 {
		t.Fatal("hash is not deterministic")
	}
	if h1 == h3 {
		t.Fatal("hash does not depend on the key")
	}
}

func TestHashCoversID(t *testing.T) {
	secret, err := NewTokenSecret()
	if err != nil {
		t.Fatalf("NewTokenSecret failed: %v", err)
	}
	key := []byte("0123456789abcdef0123456789abcdef")

	if HashRefreshToken(key, uuid.New(), secret) == HashRefreshToken(key, uuid.New(), secret) {
		t.Fatal("hash does not depend on the token ID")
	}
}
