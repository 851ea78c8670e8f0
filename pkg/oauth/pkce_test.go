package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"golang.org/x/oauth2"
)

func TestGeneratePKCERaw(t *testing.T) {
	verifier, challenge := GeneratePKCERaw()

	if len(verifier) < 43 {
		t.Errorf("verifier length = %d, want >= 43", len(verifier))
	}

	hash := sha256.Sum256([]byte(verifier))
	expectedChallenge := base64.RawURLEncoding.EncodeToString(hash[:])
	if challenge != expectedChallenge {
		t.Errorf("challenge = %q, want %q", challenge, expectedChallenge)
	}

	if stdlib := oauth2.S256ChallengeFromVerifier(verifier); challenge != stdlib {
		t.Errorf("challenge = %q, want oauth2 result %q", challenge, stdlib)
	}
}

func TestGeneratePKCE_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		verifier, _ := GeneratePKCERaw()
		if seen[verifier] {
			t.Fatalf("duplicate verifier generated at iteration %d", i)
		}
		seen[verifier] = true
	}
}

func TestGenerateState(t *testing.T) {
	state, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	if len(state) != 43 {
		t.Errorf("state length = %d, want 43", len(state))
	}

	other, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	if state == other {
		t.Error("two generated states should differ")
	}
}
