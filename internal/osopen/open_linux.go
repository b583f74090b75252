//go:build linux

package osopen

import (
	"os"
	"os/exec"
)

func openFolder(path string) error {
	return exec.Command("xdg-open", path).Start()
}

// openTerminal launches the first terminal emulator found on PATH, cd'd
// into path. There is no single cross-distro "default terminal" API, so
// this tries a short list of common emulators in order.
func openTerminal(path string) error {
	candidates := []struct {
		bin  string
		args []string
	}{
		{"x-terminal-emulator", nil},
		{"gnome-terminal", []string{"--working-directory=" + path}},
		{"konsole", []string{"--workdir", path}},
		{"xterm", nil},
	}
	for _, c := range candidates {
		bin, err := exec.LookPath(c.bin)
		if err != nil {
			continue
		}
		cmd := exec.Command(bin, c.args...)
		if len(c.args) == 0 {
			cmd.Dir = path
		}
		return cmd.Start()
	}
	return os.ErrNotExist
}

func openVSCode(path string) error {
	return exec.Command("code", path).Start()
}
