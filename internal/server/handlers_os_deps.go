package server

import (
	"encoding/json"
	"net/http"

	"github.com/nupi-ai/gitdaemon/internal/apierr"
	"github.com/nupi-ai/gitdaemon/internal/approval"
	"github.com/nupi-ai/gitdaemon/internal/depsinstall"
	"github.com/nupi-ai/gitdaemon/internal/job"
	"github.com/nupi-ai/gitdaemon/internal/osopen"
	"github.com/nupi-ai/gitdaemon/internal/runner"
	"github.com/nupi-ai/gitdaemon/internal/sandbox"
)

type osOpenRequest struct {
	Target string `json:"target"`
	Path   string `json:"path"`
}

// handleOSOpen implements spec.md §4.8's os.open: folder needs no approval,
// terminal/vscode require the matching capability.
func (s *Server) handleOSOpen(w http.ResponseWriter, r *http.Request, origin string) {
	var req osOpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, apierr.BadRequest("invalid JSON body"))
		return
	}

	root, err := s.workspaceRoot()
	if err != nil {
		writeAPIError(w, err)
		return
	}
	abs, err := sandbox.ResolveInsideWorkspace(root, req.Path, false)
	if err != nil {
		if err == sandbox.ErrMissingPath {
			writeAPIError(w, apierr.PathNotFound())
			return
		}
		writeAPIError(w, err)
		return
	}

	target := osopen.Target(req.Target)
	var capability string
	switch target {
	case osopen.TargetTerminal:
		capability = approval.CapOpenTerminal
	case osopen.TargetVSCode:
		capability = approval.CapOpenVSCode
	case osopen.TargetFolder:
		capability = ""
	default:
		writeAPIError(w, apierr.BadRequest("target must be folder, terminal, or vscode"))
		return
	}

	if capability != "" && !s.grantor.EnsureApproval(origin, root, abs, capability) {
		writeAPIError(w, apierr.CapabilityNotGranted(capability))
		return
	}

	if err := osopen.Open(target, abs); err != nil {
		writeAPIError(w, apierr.Internal(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type depsInstallRequest struct {
	RepoPath string `json:"repoPath"`
	Manager  string `json:"manager"`
	Mode     string `json:"mode"`
	Safer    *bool  `json:"safer"`
}

// handleDepsInstall implements spec.md §4.8's deps.install.
func (s *Server) handleDepsInstall(w http.ResponseWriter, r *http.Request, origin string) {
	var req depsInstallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, apierr.BadRequest("invalid JSON body"))
		return
	}

	root, err := s.workspaceRoot()
	if err != nil {
		writeAPIError(w, err)
		return
	}
	abs, err := sandbox.ResolveInsideWorkspace(root, req.RepoPath, false)
	if err != nil {
		if err == sandbox.ErrMissingPath {
			writeAPIError(w, apierr.PathNotFound())
			return
		}
		writeAPIError(w, err)
		return
	}
	if !depsinstall.HasPackageJSON(abs) {
		writeAPIError(w, apierr.BadRequest("repoPath does not contain a package.json"))
		return
	}

	if !s.grantor.EnsureApproval(origin, root, abs, approval.CapDepsInstall) {
		writeAPIError(w, apierr.CapabilityNotGranted(approval.CapDepsInstall))
		return
	}

	cfg := s.cfg.Get()
	safer := cfg.DepsSafer
	if req.Safer != nil {
		safer = *req.Safer
	}

	manager := depsinstall.Resolve(abs, depsinstall.Manager(req.Manager))
	mode := depsinstall.Mode(req.Mode)
	if mode == "" {
		mode = depsinstall.ModeAuto
	}
	command, args := depsinstall.BuildCommand(abs, manager, mode, safer)

	j := s.jobs.Enqueue(runDepsCommand(abs, command, args))
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": j.ID})
}

// runDepsCommand mirrors runGitCommand for the deps/install job, streaming
// npm/pnpm/yarn's install output into the job's event ring (spec.md §4.7).
func runDepsCommand(cwd, command string, args []string) job.Runner {
	return func(rc job.RunContext) error {
		result, err := runner.Run(rc.Context(), command, args, cwd, func(stream, line string) {
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
			return &nonZeroExit{command: command, code: result.ExitCode}
		}
		return nil
	}
}
