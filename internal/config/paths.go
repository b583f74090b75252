package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// EnvConfigDir overrides the config directory lookup entirely, per spec.md
// §6 ("OS-specific config directory; override via GIT_DAEMON_CONFIG_DIR").
const EnvConfigDir = "GIT_DAEMON_CONFIG_DIR"

// Paths contains every on-disk location the daemon reads or writes.
type Paths struct {
	Home       string // config home directory
	ConfigFile string // config.json
	TokensFile string // tokens.json
	LogsDir    string // logs/
	LogFile    string // logs/daemon.log
}

// Dir resolves the config directory the daemon should use: the
// GIT_DAEMON_CONFIG_DIR override if set, otherwise an OS-appropriate
// per-user config directory.
func Dir() string {
	if override := os.Getenv(EnvConfigDir); override != "" {
		return override
	}
	return defaultDir()
}

func defaultDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "git-daemon")
		}
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support", "git-daemon")
		}
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "git-daemon")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "git-daemon")
}

// GetPaths returns the full set of paths under the resolved config
// directory, creating the directory tree if it does not already exist.
func GetPaths() (Paths, error) {
	home := Dir()
	paths := Paths{
		Home:       home,
		ConfigFile: filepath.Join(home, "config.json"),
		TokensFile: filepath.Join(home, "tokens.json"),
		LogsDir:    filepath.Join(home, "logs"),
		LogFile:    filepath.Join(home, "logs", "daemon.log"),
	}
	if err := os.MkdirAll(paths.LogsDir, 0o755); err != nil {
		return paths, err
	}
	return paths, nil
}
