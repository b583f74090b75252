// Package pairing implements the ephemeral origin-to-code handshake of
// spec.md §4.3: a short-lived, single-use code that an approved confirm
// trades for a token minted by internal/token.
package pairing

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

const (
	codeTTL      = 10 * time.Minute
	codeBytes    = 4 // 8 hex characters, per spec.md §4.3
	instructions = "enter this code in the git-daemon pairing prompt to link this browser"
)

type entry struct {
	code      string
	expiresAt time.Time
}

// Manager holds one pending pairing code per origin. All state is volatile
// (spec.md §5: "pairing codes live only in memory").
type Manager struct {
	mu      sync.Mutex
	pending map[string]entry
}

// New returns an empty pairing manager.
func New() *Manager {
	return &Manager{pending: map[string]entry{}}
}

// StartResult is returned from Start.
type StartResult struct {
	Code         string
	ExpiresAt    time.Time
	Instructions string
}

// Start issues a new pairing code for origin, replacing any code already
// pending for that origin.
func (m *Manager) Start(origin string) (StartResult, error) {
	buf := make([]byte, codeBytes)
	if _, err := rand.Read(buf); err != nil {
		return StartResult{}, fmt.Errorf("pairing: generate code: %w", err)
	}
	code := hex.EncodeToString(buf)
	expiresAt := time.Now().Add(codeTTL)

	m.mu.Lock()
	m.pending[origin] = entry{code: code, expiresAt: expiresAt}
	m.mu.Unlock()

	return StartResult{Code: code, ExpiresAt: expiresAt, Instructions: instructions}, nil
}

// Confirm atomically consumes the pending code for origin if it matches and
// has not expired. A code can only ever be confirmed once (spec.md §8,
// "pairing single-use"): a successful confirm removes the pending entry.
// A mismatched code leaves the pending entry in place; an expired entry is
// dropped.
func (m *Manager) Confirm(origin, code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending, ok := m.pending[origin]
	if !ok {
		return false
	}
	if time.Now().After(pending.expiresAt) {
		delete(m.pending, origin)
		return false
	}
	if pending.code != code {
		return false
	}
	delete(m.pending, origin)
	return true
}
