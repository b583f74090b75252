// Package token implements the bearer-token store described in spec.md
// §4.2: one live, scrypt-hashed token per origin, persisted to tokens.json.
package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/scrypt"
)

const (
	tokenBytes = 32
	saltBytes  = 16
	hashBytes  = 32

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Record is a persisted, salted-hash token record for one origin. The
// plaintext token is never stored (spec.md §3 invariant).
type Record struct {
	Origin    string    `json:"origin"`
	TokenHash []byte    `json:"tokenHash"`
	Salt      []byte    `json:"salt"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type fileFormat struct {
	Entries []Record `json:"entries"`
}

// Store is the in-memory, file-persisted token table. One Store instance is
// shared process-wide; every mutation is serialised through mu, and every
// issue or revoke is written to disk before the call returns (spec.md §4.2,
// §5). Expired records pruned on read are dropped from memory only.
type Store struct {
	mu      sync.Mutex
	path    string
	records map[string]Record // by origin
}

// Open loads tokens.json at path if present, tolerating an absent file.
func Open(path string) (*Store, error) {
	s := &Store{path: path, records: map[string]Record{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("token: read %s: %w", path, err)
	}
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("token: parse %s: %w", path, err)
	}
	for _, r := range ff.Entries {
		s.records[r.Origin] = r
	}
	return s, nil
}

// IssueToken generates a fresh token for origin, replacing any existing
// live record, persists it, and returns the plaintext once (spec.md §4.2).
func (s *Store) IssueToken(origin string, ttlDays int) (plaintext string, expiresAt time.Time, err error) {
	raw := make([]byte, tokenBytes)
	if _, err = rand.Read(raw); err != nil {
		return "", time.Time{}, fmt.Errorf("token: generate: %w", err)
	}
	plaintext = base64.RawURLEncoding.EncodeToString(raw)

	salt := make([]byte, saltBytes)
	if _, err = rand.Read(salt); err != nil {
		return "", time.Time{}, fmt.Errorf("token: generate salt: %w", err)
	}

	hash, err := deriveHash(plaintext, salt)
	if err != nil {
		return "", time.Time{}, err
	}

	now := time.Now().UTC()
	expiresAt = now.AddDate(0, 0, ttlDays)

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, hadPrevious := s.records[origin]
	s.records[origin] = Record{
		Origin:    origin,
		TokenHash: hash,
		Salt:      salt,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
	if err := s.persistLocked(); err != nil {
		if hadPrevious {
			s.records[origin] = previous
		} else {
			delete(s.records, origin)
		}
		return "", time.Time{}, err
	}

	return plaintext, expiresAt, nil
}

// VerifyToken reports whether presented is the live token for origin. A
// missing record, an expired record, and a hash mismatch are all
// indistinguishable false results, per spec.md §4.2.
func (s *Store) VerifyToken(origin, presented string) bool {
	if presented == "" {
		return false
	}

	s.mu.Lock()
	rec, ok := s.pruneAndGetLocked(origin)
	s.mu.Unlock()
	if !ok {
		return false
	}

	candidate, err := deriveHash(presented, rec.Salt)
	if err != nil {
		return false
	}
	if len(candidate) != len(rec.TokenHash) {
		return false
	}
	return subtle.ConstantTimeCompare(candidate, rec.TokenHash) == 1
}

// GetActive returns the live, unexpired record for origin, if any.
func (s *Store) GetActive(origin string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneAndGetLocked(origin)
}

// List returns every unexpired record, sorted by origin, pruning expired
// entries as a side effect. Used by the tokens CLI subcommand.
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.records))
	for origin := range s.records {
		if rec, ok := s.pruneAndGetLocked(origin); ok {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Origin < out[j].Origin })
	return out
}

// Revoke deletes the record for origin, persisting the change.
func (s *Store) Revoke(origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[origin]; !ok {
		return nil
	}
	saved := s.records[origin]
	delete(s.records, origin)
	if err := s.persistLocked(); err != nil {
		s.records[origin] = saved
		return err
	}
	return nil
}

// pruneAndGetLocked removes origin's record if expired and returns the
// remaining live record, if any. Callers must hold s.mu.
func (s *Store) pruneAndGetLocked(origin string) (Record, bool) {
	rec, ok := s.records[origin]
	if !ok {
		return Record{}, false
	}
	if time.Now().After(rec.ExpiresAt) {
		delete(s.records, origin)
		return Record{}, false
	}
	return rec, true
}

func deriveHash(plaintext string, salt []byte) ([]byte, error) {
	hash, err := scrypt.Key([]byte(plaintext), salt, scryptN, scryptR, scryptP, hashBytes)
	if err != nil {
		return nil, fmt.Errorf("token: derive hash: %w", err)
	}
	return hash, nil
}

// persistLocked writes the current record set to disk atomically. Callers
// must hold s.mu.
func (s *Store) persistLocked() error {
	entries := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		entries = append(entries, r)
	}
	data, err := json.MarshalIndent(fileFormat{Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("token: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("token: ensure dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens.json.tmp.*")
	if err != nil {
		return fmt.Errorf("token: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("token: write temp: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("token: chmod temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("token: close temp: %w", err)
	}

	return os.Rename(tmpPath, s.path)
}
