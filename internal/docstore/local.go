package docstore

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/boilermanc/onceuponadrawing/internal/webhook"
)

// LocalStore keeps documents on the local filesystem behind a public base
// URL. Signed URLs embed an expiry and an HMAC over "key|expiry" so the
// download endpoint can verify them without any stored state.
type LocalStore struct {
	baseDir    string
	baseURL    string
	signSecret string
}

func NewLocalStore(baseDir, baseURL, signSecret string) *LocalStore {
	if baseDir == "" {
		baseDir = "_documents"
	}
	return &LocalStore{
		baseDir:    baseDir,
		baseURL:    strings.TrimRight(baseURL, "/"),
		signSecret: signSecret,
	}
}

func (s *LocalStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(cleaned))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("create document directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}

	metaPath := fullPath + ".content-type"
	if contentType != "" {
		if err := os.WriteFile(metaPath, []byte(contentType), 0o644); err != nil {
			return "", fmt.Errorf("write document metadata: %w", err)
		}
	}
	return cleaned, nil
}

func (s *LocalStore) SignedURL(key string, expiry time.Duration) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s.signSecret) == "" {
		return "", ErrMissingSecret
	}
	if expiry <= 0 {
		expiry = time.Hour
	}

	expires := time.Now().UTC().Add(expiry).Unix()
	signature := signKey(cleaned, expires, s.signSecret)

	query := url.Values{}
	query.Set("exp", strconv.FormatInt(expires, 10))
	query.Set("sig", signature)
	return fmt.Sprintf("%s/documents/%s?%s", s.baseURL, cleaned, query.Encode()), nil
}

func (s *LocalStore) Open(ctx context.Context, key string) ([]byte, string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return nil, "", err
	}

	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(cleaned))
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrDocumentNotFound
		}
		return nil, "", err
	}

	contentType := "application/octet-stream"
	if meta, err := os.ReadFile(fullPath + ".content-type"); err == nil {
		contentType = strings.TrimSpace(string(meta))
	}
	return data, contentType, nil
}

// VerifySignedQuery validates the exp/sig parameters attached to a signed
// URL for the given key.
func (s *LocalStore) VerifySignedQuery(key, expParam, sigParam string) error {
	cleaned, err := cleanKey(key)
	if err != nil {
		return err
	}

	expires, err := strconv.ParseInt(strings.TrimSpace(expParam), 10, 64)
	if err != nil {
		return ErrInvalidURLSig
	}
	if time.Now().UTC().Unix() > expires {
		return ErrExpiredURL
	}

	if err := webhook.Verify([]byte(signPayload(cleaned, expires)), strings.TrimSpace(sigParam), s.signSecret); err != nil {
		return ErrInvalidURLSig
	}
	return nil
}

func signKey(key string, expires int64, secret string) string {
	return webhook.Sign([]byte(signPayload(key, expires)), secret)
}

func signPayload(key string, expires int64) string {
	return key + "|" + strconv.FormatInt(expires, 10)
}

func cleanKey(key string) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", ErrMissingKey
	}
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if strings.HasPrefix(cleaned, "..") || strings.Contains(cleaned, "../") {
		return "", ErrMissingKey
	}
	return cleaned, nil
}
