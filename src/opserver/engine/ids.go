package engine

import (
	"crypto/rand"

	"github.com/mr-tron/base58"
)

// NewAgentID generates an opaque agent identity: 9 random bytes, base58
// encoded. Assigned once at first registration and kept across operations.
func NewAgentID() (string, error) {
	b := make([]byte, 9)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base58.Encode(b), nil
}
