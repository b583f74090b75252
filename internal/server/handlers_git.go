package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nupi-ai/gitdaemon/internal/apierr"
	"github.com/nupi-ai/gitdaemon/internal/gitops"
	"github.com/nupi-ai/gitdaemon/internal/job"
	"github.com/nupi-ai/gitdaemon/internal/runner"
	"github.com/nupi-ai/gitdaemon/internal/sandbox"
)

// workspaceRoot returns the configured workspace root or fails
// workspace_required (spec.md §4.4).
func (s *Server) workspaceRoot() (string, error) {
	root := s.cfg.Get().WorkspaceRoot
	if root == "" {
		return "", apierr.WorkspaceRequired()
	}
	return root, nil
}

// resolveRepoPath implements spec.md §4.8's resolveRepoPath: sandbox-resolve
// rel, then require it to be a directory containing .git.
func resolveRepoPath(root, rel string) (string, error) {
	abs, err := sandbox.ResolveInsideWorkspace(root, rel, false)
	if err != nil {
		if err == sandbox.ErrMissingPath {
			return "", apierr.RepoNotFound()
		}
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", apierr.RepoNotFound()
	}
	if _, err := os.Stat(filepath.Join(abs, ".git")); err != nil {
		return "", apierr.RepoNotFound()
	}
	return abs, nil
}

type cloneRequest struct {
	RepoURL      string `json:"repoUrl"`
	DestRelative string `json:"destRelative"`
	Options      struct {
		Branch string `json:"branch"`
		Depth  int    `json:"depth"`
	} `json:"options"`
}

// handleGitClone implements spec.md §4.8's git.clone.
func (s *Server) handleGitClone(w http.ResponseWriter, r *http.Request, origin string) {
	var req cloneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, apierr.BadRequest("invalid JSON body"))
		return
	}

	if !gitops.ValidRepoURL(req.RepoURL) {
		writeAPIError(w, apierr.InvalidRepoURL())
		return
	}
	if err := sandbox.EnsureRelative(req.DestRelative); err != nil {
		writeAPIError(w, err)
		return
	}

	root, err := s.workspaceRoot()
	if err != nil {
		writeAPIError(w, err)
		return
	}

	dest, err := sandbox.ResolveInsideWorkspace(root, req.DestRelative, true)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if _, statErr := os.Stat(dest); statErr == nil {
		writeAPIError(w, apierr.Conflict("destination already exists"))
		return
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		writeAPIError(w, apierr.Internal(err.Error()))
		return
	}

	args := gitops.CloneArgs(req.RepoURL, dest, gitops.CloneOptions{
		Branch: req.Options.Branch,
		Depth:  req.Options.Depth,
	})

	j := s.jobs.Enqueue(runGitCommand(root, args))
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": j.ID})
}

type fetchRequest struct {
	RepoPath string `json:"repoPath"`
	Remote   string `json:"remote"`
	Prune    bool   `json:"prune"`
}

// handleGitFetch implements spec.md §4.8's git.fetch.
func (s *Server) handleGitFetch(w http.ResponseWriter, r *http.Request, origin string) {
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, apierr.BadRequest("invalid JSON body"))
		return
	}

	root, err := s.workspaceRoot()
	if err != nil {
		writeAPIError(w, err)
		return
	}
	repoAbs, err := resolveRepoPath(root, req.RepoPath)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	args := gitops.FetchArgs(repoAbs, req.Remote, req.Prune)
	j := s.jobs.Enqueue(runGitCommand(root, args))
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": j.ID})
}

// runGitCommand wraps internal/runner.Run into a job.Runner so enqueued
// clone/fetch jobs stream line-buffered output into the job's event ring
// (spec.md §4.7).
func runGitCommand(cwd string, args []string) job.Runner {
	return func(rc job.RunContext) error {
		result, err := runner.Run(rc.Context(), "git", args, cwd, func(stream, line string) {
			switch stream {
			case "stdout":
				rc.LogStdout(line)
			case "stderr":
				rc.LogStderr(line)
			}
		})
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return &nonZeroExit{command: "git", code: result.ExitCode}
		}
		return nil
	}
}

type nonZeroExit struct {
	command string
	code    int
}

func (e *nonZeroExit) Error() string {
	return e.command + " exited with status " + strconv.Itoa(e.code)
}

// handleGitStatus implements spec.md §4.8's git.status: runs synchronously
// (spec.md §5) rather than as a job.
func (s *Server) handleGitStatus(w http.ResponseWriter, r *http.Request, origin string) {
	repoPath := r.URL.Query().Get("repoPath")

	root, err := s.workspaceRoot()
	if err != nil {
		writeAPIError(w, err)
		return
	}
	repoAbs, err := resolveRepoPath(root, repoPath)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), gitStatusTimeout)
	defer cancel()
	status, err := gitops.RunStatus(ctx, repoAbs)
	if err != nil {
		writeAPIError(w, apierr.Internal(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

const gitStatusTimeout = 30 * time.Second
