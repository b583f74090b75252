// Package approval implements the capability-approval predicate and grant
// flow of spec.md §4.5: a pure check over persisted approval records, plus a
// TTY-driven prompt that writes new grants back to config on a miss.
package approval

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/nupi-ai/gitdaemon/internal/config"
)

// Capability names, per spec.md's glossary.
const (
	CapOpenTerminal = "open-terminal"
	CapOpenVSCode   = "open-vscode"
	CapDepsInstall  = "deps/install"
)

// HasApproval implements spec.md §4.5's predicate: true iff some entry has
// the same origin, contains capability, and either its repoPath is
// wildcard/absent, equals absoluteRepoPath, or (if relative) resolves
// against workspaceRoot to absoluteRepoPath.
func HasApproval(approvals []config.Approval, origin, workspaceRoot, absoluteRepoPath, capability string) bool {
	for _, a := range approvals {
		if a.Origin != origin {
			continue
		}
		if !hasCapability(a, capability) {
			continue
		}
		if a.RepoPath == "" || a.RepoPath == "*" {
			return true
		}
		if a.RepoPath == absoluteRepoPath {
			return true
		}
		if !filepath.IsAbs(a.RepoPath) && workspaceRoot != "" {
			if filepath.Join(workspaceRoot, a.RepoPath) == absoluteRepoPath {
				return true
			}
		}
	}
	return false
}

func hasCapability(a config.Approval, capability string) bool {
	for _, c := range a.Capability {
		if c == capability {
			return true
		}
	}
	return false
}

// Prompter asks the operator a yes/no question on the controlling terminal
// and reports the answer. Grounded on the teacher's term.IsTerminal /
// term.MakeRaw usage for interactive CLI prompts (cmd/nupi/sessions.go),
// adapted from raw-mode keypress reads to a line-buffered y/N prompt since
// the daemon isn't already driving a raw PTY.
type Prompter struct {
	// ttyPath overrides the default controlling-terminal device, for tests.
	ttyPath string
}

// NewPrompter returns a Prompter that reads/writes the controlling terminal
// device directly, so the prompt works even when the daemon's own stdio has
// been redirected (spec.md §4.5: "direct device access if stdio is not a
// TTY").
func NewPrompter() *Prompter {
	return &Prompter{ttyPath: "/dev/tty"}
}

// Available reports whether a controlling terminal exists to prompt on.
func (p *Prompter) Available() bool {
	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsTerminal(os.Stdout.Fd()) {
		return true
	}
	f, err := os.OpenFile(p.ttyPath, os.O_RDWR, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// Confirm asks question as a y/N prompt and returns the answer. It never
// returns an error for "no terminal available" — callers should check
// Available first and treat that case as a decline, per spec.md §4.5.
func (p *Prompter) Confirm(question string) bool {
	if isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd()) {
		return promptOn(os.Stdin, os.Stdout, question)
	}

	tty, err := os.OpenFile(p.ttyPath, os.O_RDWR, 0)
	if err != nil {
		return false
	}
	defer tty.Close()
	return promptOn(tty, tty, question)
}

func promptOn(in *os.File, out *os.File, question string) bool {
	if !term.IsTerminal(int(in.Fd())) {
		return false
	}
	fmt.Fprintf(out, "%s [y/N]: ", question)
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// Grantor runs the interactive grant flow of spec.md §4.5 on an approval
// miss: prompt, and on "yes" persist a wildcard grant for the capability.
type Grantor struct {
	cfg      *config.Store
	prompter *Prompter
	now      func() time.Time
}

// NewGrantor returns a Grantor backed by cfg and an interactive prompter.
func NewGrantor(cfg *config.Store) *Grantor {
	return &Grantor{cfg: cfg, prompter: NewPrompter(), now: time.Now}
}

// EnsureApproval returns true if origin already holds capability for
// absoluteRepoPath, otherwise runs the grant prompt and, on approval,
// persists a wildcard entry and returns true; on decline, unavailable
// terminal, or a failed config write it returns false.
func (g *Grantor) EnsureApproval(origin, workspaceRoot, absoluteRepoPath, capability string) bool {
	cfg := g.cfg.Get()
	if HasApproval(cfg.Approvals, origin, workspaceRoot, absoluteRepoPath, capability) {
		return true
	}

	if !g.prompter.Available() {
		return false
	}
	question := fmt.Sprintf("Allow %s to use capability %q?", origin, capability)
	if !g.prompter.Confirm(question) {
		return false
	}

	approvedAt := g.now().UTC().Format(time.RFC3339)
	_, err := g.cfg.Update(func(c *config.Config) {
		c.GrantWildcard(origin, capability, approvedAt)
	})
	return err == nil
}
