package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a URL-safe hex identifier for chat records.
func NewID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return "chat-" + hex.EncodeToString(b)
}
