package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/nupi-ai/gitdaemon/internal/apierr"
)

type metaResponse struct {
	Version   string         `json:"version"`
	Build     string         `json:"build"`
	Pairing   pairingStatus  `json:"pairing"`
	Workspace workspaceMeta  `json:"workspace"`
	Tools     toolCapability `json:"tools"`
}

type pairingStatus struct {
	Paired bool `json:"paired"`
}

type workspaceMeta struct {
	Configured bool   `json:"configured"`
	Root       string `json:"root,omitempty"`
}

type toolCapability struct {
	GitClone    bool `json:"gitClone"`
	GitFetch    bool `json:"gitFetch"`
	GitStatus   bool `json:"gitStatus"`
	OSOpen      bool `json:"osOpen"`
	DepsInstall bool `json:"depsInstall"`
}

// handleMeta implements spec.md §4.8's meta operation: no auth required,
// reports whether the caller's origin already holds an active token.
func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	cfg := s.cfg.Get()

	_, paired := s.tokens.GetActive(origin)

	resp := metaResponse{
		Version: buildVersion(),
		Build:   "",
		Pairing: pairingStatus{Paired: paired},
		Workspace: workspaceMeta{
			Configured: cfg.WorkspaceRoot != "",
			Root:       cfg.WorkspaceRoot,
		},
		Tools: toolCapability{
			GitClone:    true,
			GitFetch:    true,
			GitStatus:   true,
			OSOpen:      true,
			DepsInstall: true,
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

type pairRequest struct {
	Step string `json:"step"`
	Code string `json:"code"`
}

type pairStartResponse struct {
	Code         string    `json:"code"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Instructions string    `json:"instructions"`
}

type pairConfirmResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// handlePair implements spec.md §4.3/§4.8's pair.start and pair.confirm.
// Pairing does not require bearer auth; it is gated only by the admission
// filters (including the stricter 10-req/10-min pairing rate tier).
func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAPIError(w, apierr.BadRequest("pair requires POST"))
		return
	}
	var req pairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, apierr.BadRequest("invalid JSON body"))
		return
	}
	origin := r.Header.Get("Origin")

	switch req.Step {
	case "start":
		result, err := s.pairing.Start(origin)
		if err != nil {
			writeAPIError(w, apierr.Internal(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, pairStartResponse{
			Code:         result.Code,
			ExpiresAt:    result.ExpiresAt,
			Instructions: result.Instructions,
		})

	case "confirm":
		if strings.TrimSpace(req.Code) == "" {
			writeAPIError(w, apierr.UnprocessableValidation("code must not be empty"))
			return
		}
		if !s.pairing.Confirm(origin, req.Code) {
			writeAPIError(w, apierr.UnprocessableValidation("pairing code is invalid, expired, or already used"))
			return
		}
		ttlDays := s.cfg.Get().PairingTTLDays
		plaintext, expiresAt, err := s.tokens.IssueToken(origin, ttlDays)
		if err != nil {
			writeAPIError(w, apierr.Internal(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, pairConfirmResponse{
			AccessToken: plaintext,
			TokenType:   "Bearer",
			ExpiresAt:   expiresAt,
		})

	default:
		writeAPIError(w, apierr.BadRequest("step must be \"start\" or \"confirm\""))
	}
}

type diagnosticsResponse struct {
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	RunningJobs   int    `json:"runningJobs"`
	MaxConcurrent int    `json:"maxConcurrent"`
}

// handleDiagnostics is an authenticated introspection route, generalizing
// the teacher's daemon/status operation for the job manager's internal
// counters.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request, origin string) {
	cfg := s.cfg.Get()
	writeJSON(w, http.StatusOK, diagnosticsResponse{
		Version:       buildVersion(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		RunningJobs:   s.jobs.RunningCount(),
		MaxConcurrent: cfg.JobsMaxConcur,
	})
}
