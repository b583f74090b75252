package token

import (
	"path/filepath"
	"testing"
	"time"
)

func TestIssueThenVerify(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "tokens.json"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	plaintext, expiresAt, err := s.IssueToken("http://localhost:3000", 30)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if plaintext == "" {
		t.Fatal("IssueToken() returned empty plaintext")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expiresAt = %v; want future time", expiresAt)
	}

	if !s.VerifyToken("http://localhost:3000", plaintext) {
		t.Error("VerifyToken() = false immediately after issue; want true")
	}
	if s.VerifyToken("http://localhost:3000", plaintext+"x") {
		t.Error("VerifyToken() = true for wrong token; want false")
	}
	if s.VerifyToken("http://other.example", plaintext) {
		t.Error("VerifyToken() = true for wrong origin; want false")
	}
}

func TestIssueReplacesPreviousToken(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "tokens.json"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	first, _, err := s.IssueToken("http://localhost:3000", 30)
	if err != nil {
		t.Fatalf("first IssueToken() error = %v", err)
	}
	second, _, err := s.IssueToken("http://localhost:3000", 30)
	if err != nil {
		t.Fatalf("second IssueToken() error = %v", err)
	}

	if s.VerifyToken("http://localhost:3000", first) {
		t.Error("old token still verifies after reissue; want false")
	}
	if !s.VerifyToken("http://localhost:3000", second) {
		t.Error("new token does not verify after reissue; want true")
	}
}

func TestRevoke(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "tokens.json"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	plaintext, _, err := s.IssueToken("http://localhost:3000", 30)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if err := s.Revoke("http://localhost:3000"); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if s.VerifyToken("http://localhost:3000", plaintext) {
		t.Error("VerifyToken() = true after revoke; want false")
	}
	if _, ok := s.GetActive("http://localhost:3000"); ok {
		t.Error("GetActive() = ok after revoke; want not found")
	}
}

func TestExpiredTokenFailsVerification(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "tokens.json"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	plaintext, _, err := s.IssueToken("http://localhost:3000", 30)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	// Force expiry directly, simulating time passing beyond the TTL.
	s.mu.Lock()
	rec := s.records["http://localhost:3000"]
	rec.ExpiresAt = time.Now().Add(-time.Minute)
	s.records["http://localhost:3000"] = rec
	s.mu.Unlock()

	if s.VerifyToken("http://localhost:3000", plaintext) {
		t.Error("VerifyToken() = true for expired token; want false")
	}
	if _, ok := s.GetActive("http://localhost:3000"); ok {
		t.Error("GetActive() = ok for expired token; want pruned")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	plaintext, _, err := s.IssueToken("http://localhost:3000", 30)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	if !reopened.VerifyToken("http://localhost:3000", plaintext) {
		t.Error("token does not verify after reload from disk")
	}
}
