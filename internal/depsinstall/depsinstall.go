// Package depsinstall implements the package-manager auto-detection and
// command-line construction described in spec.md §6, consuming lockfile
// presence from a sandboxed repo path.
package depsinstall

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
)

// Manager identifies a JS package manager.
type Manager string

const (
	ManagerAuto Manager = "auto"
	ManagerNPM  Manager = "npm"
	ManagerPNPM Manager = "pnpm"
	ManagerYarn Manager = "yarn"
)

// Mode is the install mode requested, per spec.md §6.
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeCI      Mode = "ci"
	ModeInstall Mode = "install"
)

type packageJSON struct {
	PackageManager string `json:"packageManager"`
}

// lockfileOf reports which manager's lockfile is present in repoPath, in
// the preference order spec.md §6 gives for the auto-detection fallback:
// pnpm, then yarn, then npm.
func lockfileOf(repoPath string) (Manager, bool) {
	for _, c := range []struct {
		file string
		mgr  Manager
	}{
		{"pnpm-lock.yaml", ManagerPNPM},
		{"yarn.lock", ManagerYarn},
		{"package-lock.json", ManagerNPM},
	} {
		if _, err := os.Stat(filepath.Join(repoPath, c.file)); err == nil {
			return c.mgr, true
		}
	}
	return "", false
}

// readPackageManagerField reads package.json's `packageManager` field
// (e.g. "pnpm@8.6.0") and returns the manager it names, if recognised and
// the corresponding binary is installed.
func readPackageManagerField(repoPath string) (Manager, bool) {
	data, err := os.ReadFile(filepath.Join(repoPath, "package.json"))
	if err != nil {
		return "", false
	}
	var pj packageJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return "", false
	}
	if pj.PackageManager == "" {
		return "", false
	}
	name := pj.PackageManager
	for i, c := range name {
		if c == '@' {
			name = name[:i]
			break
		}
	}
	var mgr Manager
	switch name {
	case "pnpm":
		mgr = ManagerPNPM
	case "yarn":
		mgr = ManagerYarn
	case "npm":
		mgr = ManagerNPM
	default:
		return "", false
	}
	if _, err := exec.LookPath(string(mgr)); err != nil {
		return "", false
	}
	return mgr, true
}

// yarnIsBerry reports whether the repo has a .yarnrc.yml, the marker
// spec.md §6 uses to detect modern ("Berry") Yarn.
func yarnIsBerry(repoPath string) bool {
	_, err := os.Stat(filepath.Join(repoPath, ".yarnrc.yml"))
	return err == nil
}

// Resolve picks the concrete manager to use for repoPath, per spec.md §6:
// "manager=auto: prefer packageManager field in package.json if tool
// installed; else pnpm/yarn/npm per lockfile; else npm."
func Resolve(repoPath string, requested Manager) Manager {
	if requested != "" && requested != ManagerAuto {
		return requested
	}
	if mgr, ok := readPackageManagerField(repoPath); ok {
		return mgr
	}
	if mgr, ok := lockfileOf(repoPath); ok {
		return mgr
	}
	return ManagerNPM
}

// BuildCommand constructs the command name and argv to run, per spec.md
// §6's per-manager rules. safer defaults from config.deps.defaultSafer when
// the request didn't specify it; callers resolve that default before
// calling BuildCommand.
func BuildCommand(repoPath string, manager Manager, mode Mode, safer bool) (command string, args []string) {
	_, hasLockfile := lockfileOf(repoPath)

	switch manager {
	case ManagerPNPM:
		args = []string{"install"}
		if mode == ModeCI || (mode == ModeAuto && hasLockfile) {
			args = append(args, "--frozen-lockfile")
		}
		if safer {
			args = append(args, "--ignore-scripts")
		}
		return "pnpm", args

	case ManagerYarn:
		args = []string{"install"}
		if mode == ModeCI || (mode == ModeAuto && hasLockfile) || yarnIsBerry(repoPath) {
			args = append(args, "--immutable")
		}
		if safer {
			args = append(args, "--ignore-scripts")
		}
		return "yarn", args

	default: // npm
		if hasLockfile && mode != ModeInstall {
			args = []string{"ci"}
		} else {
			args = []string{"install"}
		}
		if safer {
			args = append(args, "--ignore-scripts")
		}
		return "npm", args
	}
}

// HasPackageJSON reports whether repoPath contains a package.json, the
// precondition spec.md §4.8 requires for deps/install.
func HasPackageJSON(repoPath string) bool {
	_, err := os.Stat(filepath.Join(repoPath, "package.json"))
	return err == nil
}
