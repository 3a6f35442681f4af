package webhook

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestVerifyAcceptsValidSignature(t *testing.T) {
	body := []byte(`{"topic":"PRINT_JOB_STATUS_CHANGED"}`)
	sig := Sign(body, "secret")

	if err := Verify(body, sig, "secret"); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	body := []byte(`{"topic":"PRINT_JOB_STATUS_CHANGED"}`)
	sig := Sign(body, "secret")

	tampered := []byte(`{"topic":"PRINT_JOB_STATUS_CHANGED" }`)
	if err := Verify(tampered, sig, "secret"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	body := []byte(`{}`)
	sig := Sign(body, "secret")

	if err := Verify(body, sig, "other"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRequiresSecret(t *testing.T) {
	if err := Verify([]byte(`{}`), "abc", ""); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestVerifyRejectsNonHexSignature(t *testing.T) {
	if err := Verify([]byte(`{}`), "not-hex!", "secret"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func signTimestamped(t *testing.T, body []byte, secret string, at time.Time) string {
	t.Helper()
	signed := fmt.Sprintf("%d.%s", at.Unix(), body)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), Sign([]byte(signed), secret))
}

func TestVerifyTimestampedAcceptsValidHeader(t *testing.T) {
	body := []byte(`{"type":"checkout.session.completed"}`)
	header := signTimestamped(t, body, "whsec", time.Now())

	if err := VerifyTimestamped(body, header, "whsec", 5*time.Minute); err != nil {
		t.Fatalf("expected valid header, got %v", err)
	}
}

func TestVerifyTimestampedRejectsStaleTimestamp(t *testing.T) {
	body := []byte(`{}`)
	header := signTimestamped(t, body, "whsec", time.Now().Add(-time.Hour))

	if err := VerifyTimestamped(body, header, "whsec", 5*time.Minute); !errors.Is(err, ErrStaleTimestamp) {
		t.Fatalf("expected ErrStaleTimestamp, got %v", err)
	}
}

func TestVerifyTimestampedIgnoresToleranceWhenDisabled(t *testing.T) {
	body := []byte(`{}`)
	header := signTimestamped(t, body, "whsec", time.Now().Add(-time.Hour))

	if err := VerifyTimestamped(body, header, "whsec", 0); err != nil {
		t.Fatalf("expected signature to pass without tolerance, got %v", err)
	}
}

func TestVerifyTimestampedRejectsMalformedHeaders(t *testing.T) {
	cases := []string{"", "t=abc,v1=00", "v1=00", "t=123", "garbage"}
	for _, header := range cases {
		if err := VerifyTimestamped([]byte(`{}`), header, "whsec", 0); !errors.Is(err, ErrMalformedHeader) {
			t.Fatalf("header %q: expected ErrMalformedHeader, got %v", header, err)
		}
	}
}

func TestVerifyTimestampedChecksSignatureOverTimestampAndBody(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	// Signature over the body alone must not validate under the
	// timestamped scheme.
	header := fmt.Sprintf("t=%d,v1=%s", time.Now().Unix(), Sign(body, "whsec"))

	if err := VerifyTimestamped(body, header, "whsec", 0); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}
