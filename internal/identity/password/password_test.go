package password

import (
	"errors"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("correct horse battery")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !Verify("correct horse battery", encoded) {
		t.Fatalf("expected password to verify")
	}
	if Verify("wrong password", encoded) {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestHashRejectsShortPassword(t *testing.T) {
	if _, err := Hash("short"); !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
}

func TestVerifyRejectsMalformedEncoding(t *testing.T) {
	if Verify("anything", "$bcrypt$whatever") {
		t.Fatalf("expected malformed hash to fail")
	}
}
