package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Approval is a persisted grant of a capability to an origin, optionally
// scoped to a single repository path (spec.md §3, §4.5).
type Approval struct {
	Origin     string   `json:"origin"`
	RepoPath   string   `json:"repoPath,omitempty"` // empty or "*" == wildcard
	Capability []string `json:"capabilities"`
	ApprovedAt string   `json:"approvedAt"`
}

// Config is the process-wide, persisted configuration described in
// spec.md §3.
type Config struct {
	ServerHost      string     `json:"serverHost"`
	ServerPort      int        `json:"serverPort"`
	TLSCertPath     string     `json:"tlsCertPath,omitempty"`
	TLSKeyPath      string     `json:"tlsKeyPath,omitempty"`
	OriginAllowlist []string   `json:"originAllowlist"`
	WorkspaceRoot   string     `json:"workspaceRoot,omitempty"`
	PairingTTLDays  int        `json:"pairingTokenTtlDays"`
	JobsMaxConcur   int        `json:"jobsMaxConcurrent"`
	JobsTimeoutSecs int        `json:"jobsTimeoutSeconds"`
	DepsSafer       bool       `json:"depsDefaultSafer"`
	Approvals       []Approval `json:"approvals"`
}

// Default returns the configuration the daemon ships with before any
// persisted file exists.
func Default() Config {
	return Config{
		ServerHost:      "127.0.0.1",
		ServerPort:      47850,
		OriginAllowlist: nil,
		PairingTTLDays:  30,
		JobsMaxConcur:   1,
		JobsTimeoutSecs: 3600,
		DepsSafer:       true,
	}
}

// Store guards the single in-memory Config value and serialises every
// read-modify-write cycle through Update, per spec.md §9 ("the config is
// a single in-memory value ... accessed through narrow, serialised update
// paths").
type Store struct {
	mu   sync.Mutex
	path string
	cfg  Config
}

// Open loads the config file at path if present, otherwise starts from
// Default(). Readers tolerate an absent file (spec.md §5).
func Open(path string) (*Store, error) {
	s := &Store{path: path, cfg: Default()}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	s.cfg = cfg
	return s, nil
}

// Get returns a copy of the current configuration.
func (s *Store) Get() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Update applies fn to the current config under lock and persists the
// result. Any I/O error during persistence is returned to the caller and
// the in-memory value is rolled back, per spec.md §4.2's "any I/O error
// during persistence is fatal to the operation" (applied generally to every
// config mutation, not only token issuance).
func (s *Store) Update(fn func(cfg *Config)) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.cfg
	next := s.cfg
	fn(&next)
	if err := save(s.path, next); err != nil {
		return previous, err
	}
	s.cfg = next
	return next, nil
}

// save writes cfg to path atomically: fully written to a temp file in the
// same directory, then renamed into place, so a concurrent reader never
// observes a partially-written config.json.
func save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: ensure dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config.json.tmp.*")
	if err != nil {
		return fmt.Errorf("config: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("config: write temp: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("config: chmod temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: close temp: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("config: rename into place: %w", err)
	}
	return nil
}

// HasApprovalWildcard reports whether origin already holds a wildcard entry
// covering capability (the entry GrantWildcard keeps single per origin,
// spec.md §9, "concurrent approval grants for the same origin must be
// idempotent").
func (c *Config) HasApprovalWildcard(origin, capability string) bool {
	for _, a := range c.Approvals {
		if a.Origin != origin {
			continue
		}
		if a.RepoPath != "" && a.RepoPath != "*" {
			continue
		}
		for _, cap := range a.Capability {
			if cap == capability {
				return true
			}
		}
	}
	return false
}

// GrantWildcard inserts or extends the single wildcard approval entry for
// origin with capability, unioning capability sets rather than creating
// duplicate entries (spec.md §9).
func (c *Config) GrantWildcard(origin, capability, approvedAt string) {
	for i := range c.Approvals {
		a := &c.Approvals[i]
		if a.Origin != origin || (a.RepoPath != "" && a.RepoPath != "*") {
			continue
		}
		for _, cap := range a.Capability {
			if cap == capability {
				return
			}
		}
		a.Capability = append(a.Capability, capability)
		a.ApprovedAt = approvedAt
		return
	}
	c.Approvals = append(c.Approvals, Approval{
		Origin:     origin,
		RepoPath:   "*",
		Capability: []string{capability},
		ApprovedAt: approvedAt,
	})
}
