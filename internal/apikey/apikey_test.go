package apikey

import (
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("op_live_abc123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$") {
		t.Fatalf("unexpected encoding %q", encoded)
	}
	if !Verify("op_live_abc123", encoded) {
		t.Fatal("expected key to verify")
	}
	if Verify("op_live_wrong", encoded) {
		t.Fatal("wrong key must not verify")
	}
}

func TestVerifyRejectsMalformedEncoding(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=1$c2FsdA$aGFzaA",
	} {
		if Verify("key", encoded) {
			t.Fatalf("encoding %q must not verify", encoded)
		}
	}
}

func TestHashIsSalted(t *testing.T) {
	first, err := Hash("op_live_abc123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := Hash("op_live_abc123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first == second {
		t.Fatal("hashes must use fresh salts")
	}
}
