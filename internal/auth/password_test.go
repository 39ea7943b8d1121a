package auth

import (
	"strings"
	"testing"
)

// All tests use cost 4 (bcrypt minimum) — cost 12 would add ~250ms per hash.

func TestHashAndVerify(t *testing.T) {
	ps := NewPasswordServiceForTest(4)

	hash, err := ps.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("hash %q doesn't look like a bcrypt hash", hash)
	}
	if strings.Contains(hash, "correct horse") {
		t.Error("hash contains the plaintext")
	}

	if err := ps.Verify(hash, "correct horse battery staple"); err != nil {
		t.Errorf("Verify with correct password: %v", err)
	}
	if err := ps.Verify(hash, "wrong password"); err == nil {
		t.Error("Verify accepted the wrong password")
	}
}

func TestHash_SaltIsRandom(t *testing.T) {
	ps := NewPasswordServiceForTest(4)

	h1, err := ps.Hash("same password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, err := ps.Hash("same password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	// bcrypt embeds a random salt, so two hashes of the same input differ
	if h1 == h2 {
		t.Error("two hashes of the same password are identical — salt not applied")
	}
}

func TestHash_RejectsOverlongPassword(t *testing.T) {
	ps := NewPasswordServiceForTest(4)

	// bcrypt silently truncates at 72 bytes; we reject instead
	if _, err := ps.Hash(strings.Repeat("x", 73)); err == nil {
		t.Error("Hash accepted a 73-byte password")
	}
}

func TestVerify_RejectsMalformedHash(t *testing.T) {
	ps := NewPasswordServiceForTest(4)

	if err := ps.Verify("not-a-bcrypt-hash", "whatever"); err == nil {
		t.Error("Verify accepted a malformed hash")
	}
}
