//go:build darwin

package osopen

import "os/exec"

func openFolder(path string) error {
	return exec.Command("open", path).Start()
}

func openTerminal(path string) error {
	return exec.Command("open", "-a", "Terminal", path).Start()
}

func openVSCode(path string) error {
	return exec.Command("code", path).Start()
}
