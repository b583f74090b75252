// Package osopen implements the os.open operation's three targets (folder,
// terminal, vscode) as platform-dispatched opener functions, per spec.md
// §1: these launch an external OS tool and perform no sandboxing of what
// happens after that — the caller is responsible for approval gating and
// for resolving path inside the workspace first.
package osopen

import "fmt"

// Target is one of the three whitelisted os/open targets (spec.md §6).
type Target string

const (
	TargetFolder   Target = "folder"
	TargetTerminal Target = "terminal"
	TargetVSCode   Target = "vscode"
)

// Open launches the platform tool for target against path. The concrete
// command used per target/OS is implemented in open_<goos>.go, mirroring
// the teacher's process_unix.go/process_windows.go build-tag split.
func Open(target Target, path string) error {
	switch target {
	case TargetFolder:
		return openFolder(path)
	case TargetTerminal:
		return openTerminal(path)
	case TargetVSCode:
		return openVSCode(path)
	default:
		return fmt.Errorf("osopen: unknown target %q", target)
	}
}
