//go:build windows

package osopen

import "os/exec"

func openFolder(path string) error {
	return exec.Command("explorer", path).Start()
}

func openTerminal(path string) error {
	cmd := exec.Command("cmd", "/C", "start", "cmd")
	cmd.Dir = path
	return cmd.Start()
}

func openVSCode(path string) error {
	return exec.Command("code", path).Start()
}
