package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
)

// MaxAssetSize bounds a single asset (logo image or metadata document).
const MaxAssetSize = 5 << 20

var (
	// ErrNotFound is returned when no object exists under a key
	ErrNotFound = errors.New("asset not found")

	// ErrTooLarge is returned when content exceeds MaxAssetSize
	ErrTooLarge = errors.New("asset exceeds size limit")

	// ErrInvalidKey is returned for keys that are not content-addressed
	ErrInvalidKey = errors.New("invalid asset key")
)

// keyPattern matches content-addressed keys: sha256/<2 hex>/<62 hex>.
var keyPattern = regexp.MustCompile(`^sha256/[0-9a-f]{2}/[0-9a-f]{62}$`)

// Object describes a stored asset
type Object struct {
	Key         string `json:"key"`
	SHA256      string `json:"sha256"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	URL         string `json:"url"`
}

// Store persists token asset bundles (logos, metadata documents) under
// content-addressed keys. Identical content maps to the same key, so
// uploads deduplicate naturally and stored objects are immutable.
type Store interface {
	// Put stores content and returns its object descriptor.
	// Re-uploading identical content is a no-op returning the same key.
	Put(ctx context.Context, content []byte, contentType string) (*Object, error)

	// Get opens the content stored under key
	Get(ctx context.Context, key string) (io.ReadCloser, *Object, error)

	// Exists reports whether key holds content
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the content under key
	Delete(ctx context.Context, key string) error

	// URL returns the public URL for a stored key, suitable for a token's
	// metadata URI
	URL(key string) string

	// HealthCheck verifies the backend is reachable
	HealthCheck(ctx context.Context) error
}

// HashKey returns the content-addressed key for a sha256 hex digest:
// sha256/ab/cd123...
func HashKey(digest string) string {
	return fmt.Sprintf("sha256/%s/%s", digest[:2], digest[2:])
}

// ContentKey hashes content and returns its key and digest
func ContentKey(content []byte) (key, digest string) {
	hash := sha256.Sum256(content)
	digest = hex.EncodeToString(hash[:])
	return HashKey(digest), digest
}

// ValidKey reports whether key has the content-addressed shape
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}
