package pairing

import (
	"testing"
	"time"
)

func TestStartThenConfirm(t *testing.T) {
	m := New()
	res, err := m.Start("http://localhost:3000")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res.Code == "" {
		t.Fatal("Start() returned empty code")
	}

	if !m.Confirm("http://localhost:3000", res.Code) {
		t.Fatal("Confirm() = false for a fresh, correct code; want true")
	}
}

func TestConfirmIsSingleUse(t *testing.T) {
	m := New()
	res, _ := m.Start("http://localhost:3000")

	if !m.Confirm("http://localhost:3000", res.Code) {
		t.Fatal("first Confirm() = false; want true")
	}
	if m.Confirm("http://localhost:3000", res.Code) {
		t.Fatal("replayed Confirm() = true; want false (single-use)")
	}
}

func TestConfirmWrongCodeFails(t *testing.T) {
	m := New()
	m.Start("http://localhost:3000")

	if m.Confirm("http://localhost:3000", "deadbeef") {
		t.Fatal("Confirm() with wrong code = true; want false")
	}
}

func TestConfirmUnknownOriginFails(t *testing.T) {
	m := New()
	if m.Confirm("http://localhost:3000", "deadbeef") {
		t.Fatal("Confirm() with no pending code = true; want false")
	}
}

func TestConfirmExpiredCodeFails(t *testing.T) {
	m := New()
	res, _ := m.Start("http://localhost:3000")

	m.mu.Lock()
	e := m.pending["http://localhost:3000"]
	e.expiresAt = time.Now().Add(-time.Minute)
	m.pending["http://localhost:3000"] = e
	m.mu.Unlock()

	if m.Confirm("http://localhost:3000", res.Code) {
		t.Fatal("Confirm() with expired code = true; want false")
	}
}

func TestStartReplacesPendingCode(t *testing.T) {
	m := New()
	first, _ := m.Start("http://localhost:3000")
	second, _ := m.Start("http://localhost:3000")

	if first.Code == second.Code {
		t.Fatal("two Start() calls returned the same code; want distinct codes")
	}
	if m.Confirm("http://localhost:3000", first.Code) {
		t.Fatal("Confirm() with superseded code = true; want false")
	}
	if !m.Confirm("http://localhost:3000", second.Code) {
		t.Fatal("Confirm() with current code = false; want true")
	}
}
