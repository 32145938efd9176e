package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the session does not exist or has expired.
	ErrNotFound = errors.New("session not found")
	// ErrHashMismatch is returned by UpdateHash when the stored hash no longer
	// equals the expected one.
	ErrHashMismatch = errors.New("session hash mismatch")
	// ErrRedisUnavailable wraps transport failures from the Redis backend.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Session is a server-side record binding a user to a rotating secret.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Hash      string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewHash returns a fresh, unpredictable session hash: the hex encoded SHA-256
// digest of 32 random bytes.
func NewHash() (string, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return "", fmt.Errorf("generate session hash: %w", err)
	}
	sum := sha256.Sum256(seed[:])
	return hex.EncodeToString(sum[:]), nil
}
