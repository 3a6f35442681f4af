// Package webhook verifies inbound webhook signatures. Verification always
// operates on the untouched request bytes; re-serializing a parsed payload
// can change byte-for-byte content and invalidate the signature.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrMissingSecret    = errors.New("missing_webhook_secret")
	ErrMalformedHeader  = errors.New("malformed_signature_header")
	ErrStaleTimestamp   = errors.New("stale_webhook_timestamp")
)

// Verify checks an HMAC-SHA256 hex signature computed over rawBody.
// The comparison is constant-time.
func Verify(rawBody []byte, signature string, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return ErrMissingSecret
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrInvalidSignature
	}

	expected := computeHMAC(rawBody, secret)
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(provided, expected) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyTimestamped checks a payment-gateway style header of the form
// "t=<unix>,v1=<hex>" where the signature covers "<unix>.<rawBody>".
// A non-positive tolerance disables the replay window check.
func VerifyTimestamped(rawBody []byte, header string, secret string, tolerance time.Duration) error {
	if strings.TrimSpace(secret) == "" {
		return ErrMissingSecret
	}

	timestamp, signatures, err := parseTimestampedHeader(header)
	if err != nil {
		return err
	}

	if tolerance > 0 {
		issued := time.Unix(timestamp, 0)
		if time.Since(issued) > tolerance {
			return ErrStaleTimestamp
		}
	}

	signed := make([]byte, 0, len(rawBody)+24)
	signed = append(signed, []byte(strconv.FormatInt(timestamp, 10))...)
	signed = append(signed, '.')
	signed = append(signed, rawBody...)
	expected := computeHMAC(signed, secret)

	for _, candidate := range signatures {
		provided, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(provided, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func parseTimestampedHeader(header string) (int64, []string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, nil, ErrMalformedHeader
	}

	var timestamp int64
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ErrMalformedHeader
			}
			timestamp = parsed
		case "v1":
			if value != "" {
				signatures = append(signatures, value)
			}
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return 0, nil, ErrMalformedHeader
	}
	return timestamp, signatures, nil
}

// Sign computes the hex HMAC-SHA256 of rawBody. Exposed for tests and for
// generating signed URLs.
func Sign(rawBody []byte, secret string) string {
	return hex.EncodeToString(computeHMAC(rawBody, secret))
}

func computeHMAC(rawBody []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return mac.Sum(nil)
}
