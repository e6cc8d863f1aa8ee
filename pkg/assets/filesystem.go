package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStore stores assets under a local directory. Content lives at
// <root>/<key> and a sidecar <key>.json holds the object descriptor.
// Default backend when S3 is not configured.
type FilesystemStore struct {
	root    string
	baseURL string
}

var _ Store = (*FilesystemStore)(nil)

// NewFilesystemStore creates a filesystem-backed asset store rooted at root.
// baseURL is the externally visible server base used to build asset URLs.
func NewFilesystemStore(root, baseURL string) (*FilesystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create asset root: %w", err)
	}
	return &FilesystemStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Put stores content under its content-addressed key
func (s *FilesystemStore) Put(ctx context.Context, content []byte, contentType string) (*Object, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("empty content")
	}
	if len(content) > MaxAssetSize {
		return nil, ErrTooLarge
	}

	key, digest := ContentKey(content)
	obj := &Object{
		Key:         key,
		SHA256:      digest,
		Size:        int64(len(content)),
		ContentType: contentType,
		URL:         s.URL(key),
	}

	contentPath := filepath.Join(s.root, filepath.FromSlash(key))

	// Content-addressed keys make re-uploads no-ops.
	if _, err := os.Stat(contentPath); err == nil {
		return obj, nil
	}

	if err := os.MkdirAll(filepath.Dir(contentPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}

	if err := os.WriteFile(contentPath, content, 0644); err != nil {
		return nil, fmt.Errorf("failed to write asset: %w", err)
	}

	meta, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal asset metadata: %w", err)
	}
	if err := os.WriteFile(contentPath+".json", meta, 0644); err != nil {
		return nil, fmt.Errorf("failed to write asset metadata: %w", err)
	}

	return obj, nil
}

// Get opens the content stored under key
func (s *FilesystemStore) Get(ctx context.Context, key string) (io.ReadCloser, *Object, error) {
	if !ValidKey(key) {
		return nil, nil, ErrInvalidKey
	}

	contentPath := filepath.Join(s.root, filepath.FromSlash(key))

	f, err := os.Open(contentPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to open asset: %w", err)
	}

	obj := &Object{Key: key, URL: s.URL(key)}
	if meta, err := os.ReadFile(contentPath + ".json"); err == nil {
		if err := json.Unmarshal(meta, obj); err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("failed to unmarshal asset metadata: %w", err)
		}
	}

	return f, obj, nil
}

// Exists reports whether key holds content
func (s *FilesystemStore) Exists(ctx context.Context, key string) (bool, error) {
	if !ValidKey(key) {
		return false, ErrInvalidKey
	}

	_, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(key)))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat asset: %w", err)
}

// Delete removes the content and its metadata sidecar
func (s *FilesystemStore) Delete(ctx context.Context, key string) error {
	if !ValidKey(key) {
		return ErrInvalidKey
	}

	contentPath := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.Remove(contentPath); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete asset: %w", err)
	}

	// The sidecar is best-effort cleanup.
	os.Remove(contentPath + ".json")
	return nil
}

// URL returns the asset URL served by the API
func (s *FilesystemStore) URL(key string) string {
	return fmt.Sprintf("%s/api/v1/assets/%s", s.baseURL, key)
}

// HealthCheck verifies the root directory is writable
func (s *FilesystemStore) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("asset root unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("asset root %s is not a directory", s.root)
	}
	return nil
}
