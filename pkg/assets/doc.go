// Package assets stores token asset bundles: logo images and metadata
// documents referenced by a token's metadata URI.
//
// Content is addressed by SHA256 (keys look like sha256/ab/cd123...), so
// identical uploads deduplicate and stored objects are immutable. Two
// backends implement the Store interface: S3Store for S3 or MinIO, and
// FilesystemStore for local development. The upload endpoint returns an
// Object whose URL is what the factory records as the token's metadata
// URI; in filesystem mode the same API serves the bytes back under
// /api/v1/assets/{key}.
package assets
