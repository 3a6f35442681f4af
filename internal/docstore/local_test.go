package docstore

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	return NewLocalStore(t.TempDir(), "https://books.example.com", "sign-secret")
}

func TestPutAndOpenRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	path, err := store.Put(ctx, "orders/42/interior.pdf", []byte("%PDF-1.4"), "application/pdf")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if path != "orders/42/interior.pdf" {
		t.Fatalf("unexpected path %q", path)
	}

	data, contentType, err := store.Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(data) != "%PDF-1.4" {
		t.Fatalf("unexpected data %q", data)
	}
	if contentType != "application/pdf" {
		t.Fatalf("unexpected content type %q", contentType)
	}
}

func TestPutOverwritesPreviousAttempt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, "orders/42/cover.pdf", []byte("first"), "application/pdf"); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := store.Put(ctx, "orders/42/cover.pdf", []byte("second"), "application/pdf"); err != nil {
		t.Fatalf("second put: %v", err)
	}

	data, _, err := store.Open(ctx, "orders/42/cover.pdf")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("expected last write to win, got %q", data)
	}
}

func TestSignedURLVerifies(t *testing.T) {
	store := newTestStore(t)

	signed, err := store.SignedURL("orders/42/interior.pdf", 2*time.Hour)
	if err != nil {
		t.Fatalf("signed url: %v", err)
	}
	if !strings.HasPrefix(signed, "https://books.example.com/documents/orders/42/interior.pdf?") {
		t.Fatalf("unexpected url %q", signed)
	}

	parsed, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if err := store.VerifySignedQuery("orders/42/interior.pdf", parsed.Query().Get("exp"), parsed.Query().Get("sig")); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestSignedURLRejectsTamperedKey(t *testing.T) {
	store := newTestStore(t)

	signed, err := store.SignedURL("orders/42/interior.pdf", time.Hour)
	if err != nil {
		t.Fatalf("signed url: %v", err)
	}
	parsed, _ := url.Parse(signed)

	err = store.VerifySignedQuery("orders/43/interior.pdf", parsed.Query().Get("exp"), parsed.Query().Get("sig"))
	if !errors.Is(err, ErrInvalidURLSig) {
		t.Fatalf("expected ErrInvalidURLSig, got %v", err)
	}
}

func TestSignedURLRejectsExpired(t *testing.T) {
	store := newTestStore(t)

	expired := time.Now().UTC().Add(-time.Minute).Unix()
	err := store.VerifySignedQuery("orders/42/interior.pdf", strconv.FormatInt(expired, 10), "00")
	if !errors.Is(err, ErrExpiredURL) {
		t.Fatalf("expected ErrExpiredURL, got %v", err)
	}
}

func TestSignedURLRequiresSecret(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "https://books.example.com", "")
	if _, err := store.SignedURL("orders/42/interior.pdf", time.Hour); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestCleanKeyRejectsTraversal(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Put(context.Background(), "../outside.pdf", []byte("x"), ""); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
}

func TestOpenMissingDocument(t *testing.T) {
	store := newTestStore(t)
	if _, _, err := store.Open(context.Background(), "orders/404/interior.pdf"); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}
