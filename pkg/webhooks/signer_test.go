package webhooks

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/soroforge/soroforge/pkg/events"
)

func testEnvelope() events.Envelope {
	env := events.NewEnvelope(events.EventTokenCreated, map[string]interface{}{
		"token_address": "CTOKEN123",
		"creator":       "GCREATOR",
		"name":          "Test Token",
		"symbol":        "TST",
	})
	env.Timestamp = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return env
}

func TestSign(t *testing.T) {
	secret := "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"
	env := testEnvelope()

	payload, err := Sign(env, secret)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if !strings.HasPrefix(payload.Signature, "sha256=") {
		t.Errorf("Expected signature to carry sha256= prefix, got %q", payload.Signature)
	}
	if len(payload.Signature) != len("sha256=")+64 {
		t.Errorf("Expected 64 hex digest characters, got %d", len(payload.Signature)-len("sha256="))
	}

	t.Run("serialization is deterministic", func(t *testing.T) {
		again, err := Sign(env, secret)
		if err != nil {
			t.Fatalf("Sign failed: %v", err)
		}
		if !bytes.Equal(payload.Body, again.Body) {
			t.Error("Expected identical envelopes to serialize to identical bytes")
		}
		if payload.Signature != again.Signature {
			t.Error("Expected identical envelopes to produce identical signatures")
		}
	})

	t.Run("body carries the envelope fields", func(t *testing.T) {
		body := string(payload.Body)
		for _, want := range []string{`"event":"TOKEN_CREATED"`, `"token_address":"CTOKEN123"`, `"timestamp"`} {
			if !strings.Contains(body, want) {
				t.Errorf("Expected body to contain %s, got %s", want, body)
			}
		}
	})
}

func TestVerify(t *testing.T) {
	secret := "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"
	payload, err := Sign(testEnvelope(), secret)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	t.Run("round trip verifies", func(t *testing.T) {
		if !Verify(payload.Body, payload.Signature, secret) {
			t.Error("Expected signature to verify against the signed bytes")
		}
	})

	t.Run("mutated body fails", func(t *testing.T) {
		mutated := append([]byte(nil), payload.Body...)
		mutated[0] ^= 0x01
		if Verify(mutated, payload.Signature, secret) {
			t.Error("Expected mutated body to fail verification")
		}
	})

	t.Run("mutated signature fails", func(t *testing.T) {
		sig := []byte(payload.Signature)
		last := len(sig) - 1
		if sig[last] == 'a' {
			sig[last] = 'b'
		} else {
			sig[last] = 'a'
		}
		if Verify(payload.Body, string(sig), secret) {
			t.Error("Expected mutated signature to fail verification")
		}
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		if Verify(payload.Body, payload.Signature, "0000000000000000000000000000000000000000000000000000000000000000") {
			t.Error("Expected wrong secret to fail verification")
		}
	})

	t.Run("malformed inputs fail closed", func(t *testing.T) {
		if Verify(payload.Body, "", secret) {
			t.Error("Expected empty signature to fail verification")
		}
		if Verify(payload.Body, "not-a-signature", secret) {
			t.Error("Expected garbage signature to fail verification")
		}
		if Verify(nil, payload.Signature, secret) {
			t.Error("Expected nil body to fail verification")
		}
	})
}

func TestSignBytes(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	secret := "secret"

	sig := SignBytes(body, secret)
	if !Verify(body, sig, secret) {
		t.Error("Expected SignBytes output to verify")
	}
	if Verify([]byte(`{"hello":"world!"}`), sig, secret) {
		t.Error("Expected different bytes to fail verification")
	}
}

func TestPayloadDigest(t *testing.T) {
	digest := PayloadDigest([]byte("payload"))

	if len(digest) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(digest))
	}
	if digest == PayloadDigest([]byte("other")) {
		t.Error("Expected different payloads to produce different digests")
	}
	if digest != PayloadDigest([]byte("payload")) {
		t.Error("Expected the digest to be deterministic")
	}
}
