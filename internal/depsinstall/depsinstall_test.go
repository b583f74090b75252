package depsinstall

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveFallsBackToNPM(t *testing.T) {
	dir := t.TempDir()
	if got := Resolve(dir, ManagerAuto); got != ManagerNPM {
		t.Fatalf("got %s, want npm", got)
	}
}

func TestResolveLockfilePreference(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "pnpm-lock.yaml", "")
	write(t, dir, "yarn.lock", "")
	if got := Resolve(dir, ManagerAuto); got != ManagerPNPM {
		t.Fatalf("got %s, want pnpm to win over yarn", got)
	}
}

func TestResolveExplicitOverridesAuto(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "pnpm-lock.yaml", "")
	if got := Resolve(dir, ManagerYarn); got != ManagerYarn {
		t.Fatalf("explicit manager should not be overridden by lockfile, got %s", got)
	}
}

func TestBuildCommandNPMUsesCIWhenLockfilePresent(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "package-lock.json", "")
	cmd, args := BuildCommand(dir, ManagerNPM, ModeAuto, true)
	if cmd != "npm" || args[0] != "ci" {
		t.Fatalf("got %s %v", cmd, args)
	}
	if args[len(args)-1] != "--ignore-scripts" {
		t.Fatalf("safer should append --ignore-scripts, got %v", args)
	}
}

func TestBuildCommandNPMInstallModeForcesInstall(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "package-lock.json", "")
	cmd, args := BuildCommand(dir, ManagerNPM, ModeInstall, false)
	if cmd != "npm" || args[0] != "install" {
		t.Fatalf("got %s %v", cmd, args)
	}
}

func TestBuildCommandPNPMFrozenLockfile(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "pnpm-lock.yaml", "")
	cmd, args := BuildCommand(dir, ManagerPNPM, ModeAuto, false)
	if cmd != "pnpm" {
		t.Fatalf("got %s", cmd)
	}
	if !contains(args, "--frozen-lockfile") {
		t.Fatalf("expected --frozen-lockfile, got %v", args)
	}
}

func TestBuildCommandYarnBerryImmutable(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, ".yarnrc.yml", "")
	cmd, args := BuildCommand(dir, ManagerYarn, ModeAuto, false)
	if cmd != "yarn" {
		t.Fatalf("got %s", cmd)
	}
	if !contains(args, "--immutable") {
		t.Fatalf("berry repo should get --immutable, got %v", args)
	}
}

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
