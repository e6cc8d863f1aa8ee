package webhooks

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// secretBytes is the entropy of a signing secret. 32 random bytes
// encode to 64 hex characters.
const secretBytes = 32

// GenerateSecret creates a new signing secret from the system CSPRNG
func GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// TruncateSecret renders a secret for display after creation: the
// first 8 characters followed by an ellipsis. The full value is shown
// exactly once, in the creation response.
func TruncateSecret(secret string) string {
	if len(secret) <= 8 {
		return secret
	}
	return secret[:8] + "..."
}
