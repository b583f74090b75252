package config

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestOpenMissingFileReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	got := s.Get()
	want := Default()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Get() = %+v; want default %+v", got, want)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	updated, err := s.Update(func(cfg *Config) {
		cfg.OriginAllowlist = []string{"http://localhost:3000"}
		cfg.WorkspaceRoot = "/home/user/workspace"
		cfg.JobsMaxConcur = 2
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	got := reopened.Get()
	if !reflect.DeepEqual(got, updated) {
		t.Errorf("reloaded config = %+v; want %+v", got, updated)
	}
}

func TestGrantWildcardUnionsCapabilities(t *testing.T) {
	var cfg Config
	cfg.GrantWildcard("http://localhost:3000", "open-terminal", "2024-01-01T00:00:00Z")
	cfg.GrantWildcard("http://localhost:3000", "deps/install", "2024-01-01T00:00:01Z")

	if len(cfg.Approvals) != 1 {
		t.Fatalf("len(Approvals) = %d; want 1 (single wildcard entry per origin)", len(cfg.Approvals))
	}
	caps := cfg.Approvals[0].Capability
	if len(caps) != 2 {
		t.Fatalf("capabilities = %v; want 2 entries", caps)
	}

	if !cfg.HasApprovalWildcard("http://localhost:3000", "open-terminal") {
		t.Error("HasApprovalWildcard(open-terminal) = false; want true")
	}
	if !cfg.HasApprovalWildcard("http://localhost:3000", "deps/install") {
		t.Error("HasApprovalWildcard(deps/install) = false; want true")
	}
	if cfg.HasApprovalWildcard("http://localhost:3000", "open-vscode") {
		t.Error("HasApprovalWildcard(open-vscode) = true; want false (never granted)")
	}
}

func TestGrantWildcardIsIdempotent(t *testing.T) {
	var cfg Config
	cfg.GrantWildcard("http://localhost:3000", "open-terminal", "2024-01-01T00:00:00Z")
	cfg.GrantWildcard("http://localhost:3000", "open-terminal", "2024-01-01T00:00:02Z")

	if len(cfg.Approvals) != 1 || len(cfg.Approvals[0].Capability) != 1 {
		t.Fatalf("Approvals = %+v; want single entry with one capability", cfg.Approvals)
	}
}
