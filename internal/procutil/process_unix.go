//go:build !windows

package procutil

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// SetProcessGroup configures cmd's SysProcAttr so that, once started, the
// spawned process becomes the leader of a new process group. This lets
// TerminateGroup signal the whole tree — the process and every child it
// forks (a git credential helper, an npm postinstall script) — instead of
// just the direct child.
func SetProcessGroup(attr **syscall.SysProcAttr) {
	if *attr == nil {
		*attr = &syscall.SysProcAttr{}
	}
	(*attr).Setpgid = true
}

// TerminateGroup sends SIGTERM to every process in pid's process group. pid
// must be the group leader, i.e. a process started with SetProcessGroup.
func TerminateGroup(pid int) error {
	err := unix.Kill(-pid, unix.SIGTERM)
	if err != nil && err != unix.ESRCH {
		return err
	}
	return nil
}

// GracefulTerminate sends SIGTERM to the process for graceful shutdown.
func GracefulTerminate(p *os.Process) error {
	return unix.Kill(p.Pid, unix.SIGTERM)
}

// TerminateByPID sends SIGTERM to the process identified by pid.
func TerminateByPID(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}

// IsProcessAlive checks whether a process with the given pid is still running.
func IsProcessAlive(pid int) bool {
	return unix.Kill(pid, 0) == nil
}
