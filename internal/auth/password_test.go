package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("pw1", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := VerifyPassword(hash, "pw1"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "pw2"); err == nil {
		t.Fatalf("expected mismatch for wrong password")
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := HashPassword("", 0); err == nil {
		t.Fatalf("expected error for empty password")
	}
	if err := VerifyPassword("", "pw"); err == nil {
		t.Fatalf("expected error for empty hash")
	}
}

func TestVerifySurvivesCostChange(t *testing.T) {
	// Hashes issued under an older, lower cost must keep verifying after
	// the operator raises the work factor.
	old, err := HashPassword("pw1", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := VerifyPassword(old, "pw1"); err != nil {
		t.Fatalf("old-cost hash no longer verifies: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(old))
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if cost != bcrypt.MinCost {
		t.Fatalf("expected embedded cost %d, got %d", bcrypt.MinCost, cost)
	}
}
