package storage

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// NewID returns a random UUID. If the crypto source is unavailable it falls
// back to a time+random composite, which is unique enough for one user's
// collection but not cryptographically strong.
func NewID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fallbackID(time.Now())
	}
	return id.String()
}

func fallbackID(now time.Time) string {
	return fmt.Sprintf("id_%d_%x", now.UnixMilli(), rand.Uint64())
}
