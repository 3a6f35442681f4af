// Package docstore persists rendered print documents and exposes them to
// the print partner through time-limited signed URLs. The partner only ever
// receives URLs, never raw bytes.
package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrMissingKey     = errors.New("missing_document_key")
	ErrMissingSecret  = errors.New("missing_sign_secret")
	ErrExpiredURL     = errors.New("expired_signed_url")
	ErrInvalidURLSig  = errors.New("invalid_url_signature")
	ErrDocumentNotFound = errors.New("document_not_found")
)

// Store holds rendered documents. Each submission attempt overwrites the
// previous documents for the same key; last write wins.
type Store interface {
	// Put writes a document and returns its storage path.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// SignedURL returns an externally resolvable URL for a stored
	// document, valid for the given duration.
	SignedURL(key string, expiry time.Duration) (string, error)
	// Open reads a stored document back. Used by the download endpoint
	// after signature verification.
	Open(ctx context.Context, key string) ([]byte, string, error)
}
