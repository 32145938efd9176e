package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptRoundTrip(t *testing.T) {
	h, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt: %v", err)
	}

	encoded, err := h.Hash("secret")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$2") {
		t.Fatalf("unexpected encoding %q", encoded)
	}
	if !h.Verify("secret", encoded) {
		t.Fatal("expected match")
	}
	if h.Verify("Secret", encoded) {
		t.Fatal("expected mismatch")
	}
	if h.Verify("", encoded) {
		t.Fatal("empty password must never match")
	}
	if h.Verify("secret", "not-a-hash") {
		t.Fatal("malformed hash must never match")
	}
}

func TestBcryptRejectsBadCost(t *testing.T) {
	if _, err := NewBcrypt(bcrypt.MaxCost + 1); err == nil {
		t.Fatal("expected error for cost above max")
	}
	if _, err := NewBcrypt(1); err == nil {
		t.Fatal("expected error for cost below min")
	}
}

func TestBcryptTooLong(t *testing.T) {
	h, _ := NewBcrypt(bcrypt.MinCost)
	if _, err := h.Hash(strings.Repeat("a", MaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestBcryptNeedsRehash(t *testing.T) {
	low, _ := NewBcrypt(bcrypt.MinCost)
	high, _ := NewBcrypt(bcrypt.MinCost + 1)

	encoded, err := low.Hash("secret")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if low.NeedsRehash(encoded) {
		t.Fatal("same cost should not need rehash")
	}
	if !high.NeedsRehash(encoded) {
		t.Fatal("lower cost should need rehash")
	}
	if !high.NeedsRehash("garbage") {
		t.Fatal("malformed hash should need rehash")
	}
}
