package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// sessionTokenBytes yields a 64-character hex token. Tokens are the only
// credential anonymous participants hold, so they come from crypto/rand.
const sessionTokenBytes = 32

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
