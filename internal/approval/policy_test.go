package approval

import (
	"testing"

	"github.com/nupi-ai/gitdaemon/internal/config"
)

func TestHasApprovalWildcard(t *testing.T) {
	approvals := []config.Approval{
		{Origin: "http://localhost:5173", RepoPath: "*", Capability: []string{CapOpenTerminal}},
	}
	if !HasApproval(approvals, "http://localhost:5173", "/ws", "/ws/repo", CapOpenTerminal) {
		t.Fatalf("wildcard entry should grant any repo path")
	}
	if HasApproval(approvals, "http://localhost:5173", "/ws", "/ws/repo", CapDepsInstall) {
		t.Fatalf("wildcard entry must not grant a capability it doesn't list")
	}
	if HasApproval(approvals, "http://evil.example", "/ws", "/ws/repo", CapOpenTerminal) {
		t.Fatalf("approval must not cross origins")
	}
}

func TestHasApprovalExactPath(t *testing.T) {
	approvals := []config.Approval{
		{Origin: "http://localhost:5173", RepoPath: "/ws/repo", Capability: []string{CapDepsInstall}},
	}
	if !HasApproval(approvals, "http://localhost:5173", "/ws", "/ws/repo", CapDepsInstall) {
		t.Fatalf("exact absolute repoPath should match")
	}
	if HasApproval(approvals, "http://localhost:5173", "/ws", "/ws/other", CapDepsInstall) {
		t.Fatalf("a different repo path must not match")
	}
}

func TestHasApprovalRelativePath(t *testing.T) {
	approvals := []config.Approval{
		{Origin: "http://localhost:5173", RepoPath: "repo", Capability: []string{CapOpenVSCode}},
	}
	if !HasApproval(approvals, "http://localhost:5173", "/ws", "/ws/repo", CapOpenVSCode) {
		t.Fatalf("relative repoPath should resolve against workspace root")
	}
}
