package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/soroforge/soroforge/pkg/events"
)

// SignaturePrefix precedes the hex HMAC digest in the signature header
const SignaturePrefix = "sha256="

// signedEnvelope is the wire payload for JSON-format deliveries. Field
// order is fixed by the struct, and encoding/json sorts map keys, so
// the same envelope always serializes to the same bytes.
type signedEnvelope struct {
	Event     events.EventType       `json:"event"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// SignedPayload is a serialized payload plus the signature computed
// over exactly those bytes.
type SignedPayload struct {
	Body      []byte
	Signature string
}

// Sign serializes the envelope and signs the resulting bytes with the
// subscription secret. Consumers verify against the raw request body,
// so the body must be sent unmodified.
func Sign(env events.Envelope, secret string) (SignedPayload, error) {
	body, err := json.Marshal(signedEnvelope{
		Event:     env.Event,
		Data:      env.Data,
		Timestamp: env.Timestamp,
	})
	if err != nil {
		return SignedPayload{}, fmt.Errorf("failed to serialize payload: %w", err)
	}

	return SignedPayload{
		Body:      body,
		Signature: SignBytes(body, secret),
	}, nil
}

// SignBytes computes the signature header value for an arbitrary body
func SignBytes(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body under secret. The
// comparison is constant-time, and any malformed input verifies false.
func Verify(body []byte, signature, secret string) bool {
	expected := SignBytes(body, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// PayloadDigest returns the SHA-256 hex digest of the delivered body,
// recorded on delivery log rows for correlation.
func PayloadDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
