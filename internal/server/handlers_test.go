package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/nupi-ai/gitdaemon/internal/config"
	"github.com/nupi-ai/gitdaemon/internal/job"
	"github.com/nupi-ai/gitdaemon/internal/pairing"
	"github.com/nupi-ai/gitdaemon/internal/token"
)

const testOrigin = "http://localhost:5173"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	cfg, err := config.Open(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Update(func(c *config.Config) {
		c.OriginAllowlist = []string{testOrigin}
	})

	tokens, err := token.Open(filepath.Join(dir, "tokens.json"))
	if err != nil {
		t.Fatal(err)
	}

	pm := pairing.New()
	jm := job.New(1, time.Second)

	return New(cfg, tokens, pm, jm)
}

func newRequest(method, path, origin string, body any) *http.Request {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "127.0.0.1:54321"
	req.Host = "127.0.0.1"
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (s *Server) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.admissionMiddleware(s.mux).ServeHTTP(rec, req)
	return rec
}

// Scenario 1 (spec.md §8): meta with no Origin -> 403 origin_not_allowed.
func TestMetaWithoutOriginIsRejected(t *testing.T) {
	s := newTestServer(t)
	rec := s.serve(newRequest(http.MethodGet, "/v1/meta", "", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	var body errorBody
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.ErrorCode != "origin_not_allowed" {
		t.Fatalf("errorCode = %q, want origin_not_allowed", body.ErrorCode)
	}
}

// Scenario 2: meta with allowed Origin -> 200, pairing.paired=false, workspace
// not configured.
func TestMetaWithAllowedOrigin(t *testing.T) {
	s := newTestServer(t)
	rec := s.serve(newRequest(http.MethodGet, "/v1/meta", testOrigin, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var resp metaResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Version == "" {
		t.Fatal("expected a non-empty version")
	}
	if resp.Pairing.Paired {
		t.Fatal("pairing.paired should be false before pairing")
	}
	if resp.Workspace.Configured {
		t.Fatal("workspace.configured should be false when unset")
	}
}

// Scenario 3: git/status with valid origin but no Authorization -> 401
// auth_required. With a valid token but no workspaceRoot -> 409
// workspace_required.
func TestGitStatusRequiresAuthThenWorkspace(t *testing.T) {
	s := newTestServer(t)

	rec := s.serve(newRequest(http.MethodGet, "/v1/git/status?repoPath=repo", testOrigin, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body errorBody
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.ErrorCode != "auth_required" {
		t.Fatalf("errorCode = %q, want auth_required", body.ErrorCode)
	}

	tok, _, err := s.tokens.IssueToken(testOrigin, 30)
	if err != nil {
		t.Fatal(err)
	}

	req := newRequest(http.MethodGet, "/v1/git/status?repoPath=repo", testOrigin, nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = s.serve(req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body=%s", rec.Code, rec.Body.String())
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.ErrorCode != "workspace_required" {
		t.Fatalf("errorCode = %q, want workspace_required", body.ErrorCode)
	}
}

// Scenario 4: git/clone with a file:// repoUrl -> 422 invalid_repo_url.
func TestGitCloneRejectsFileURL(t *testing.T) {
	s := newTestServer(t)
	tok, _, _ := s.tokens.IssueToken(testOrigin, 30)
	s.cfg.Update(func(c *config.Config) { c.WorkspaceRoot = t.TempDir() })

	req := newRequest(http.MethodPost, "/v1/git/clone", testOrigin, map[string]any{
		"repoUrl":      "file:///tmp/repo",
		"destRelative": "repo",
	})
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := s.serve(req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body=%s", rec.Code, rec.Body.String())
	}
	var body errorBody
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.ErrorCode != "invalid_repo_url" {
		t.Fatalf("errorCode = %q, want invalid_repo_url", body.ErrorCode)
	}
}

// Scenario 5: git/clone with destRelative escaping the workspace -> 409
// path_outside_workspace.
func TestGitCloneRejectsEscapingDest(t *testing.T) {
	s := newTestServer(t)
	tok, _, _ := s.tokens.IssueToken(testOrigin, 30)
	s.cfg.Update(func(c *config.Config) { c.WorkspaceRoot = t.TempDir() })

	req := newRequest(http.MethodPost, "/v1/git/clone", testOrigin, map[string]any{
		"repoUrl":      "git@host:o/r.git",
		"destRelative": "../escape",
	})
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := s.serve(req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body=%s", rec.Code, rec.Body.String())
	}
	var body errorBody
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.ErrorCode != "path_outside_workspace" {
		t.Fatalf("errorCode = %q, want path_outside_workspace", body.ErrorCode)
	}
}

// Scenario 6: full pairing flow, then a second confirm with the same code
// fails.
func TestPairingFlowEndToEnd(t *testing.T) {
	s := newTestServer(t)

	startRec := s.serve(newRequest(http.MethodPost, "/v1/pair", testOrigin, map[string]any{"step": "start"}))
	if startRec.Code != http.StatusOK {
		t.Fatalf("pair start status = %d, body=%s", startRec.Code, startRec.Body.String())
	}
	var startResp pairStartResponse
	json.Unmarshal(startRec.Body.Bytes(), &startResp)
	if startResp.Code == "" {
		t.Fatal("expected a non-empty pairing code")
	}

	confirmRec := s.serve(newRequest(http.MethodPost, "/v1/pair", testOrigin, map[string]any{
		"step": "confirm", "code": startResp.Code,
	}))
	if confirmRec.Code != http.StatusOK {
		t.Fatalf("pair confirm status = %d, body=%s", confirmRec.Code, confirmRec.Body.String())
	}
	var confirmResp pairConfirmResponse
	json.Unmarshal(confirmRec.Body.Bytes(), &confirmResp)
	if confirmResp.AccessToken == "" {
		t.Fatal("expected a non-empty access token")
	}

	metaReq := newRequest(http.MethodGet, "/v1/meta", testOrigin, nil)
	metaReq.Header.Set("Authorization", "Bearer "+confirmResp.AccessToken)
	metaRec := s.serve(metaReq)
	var metaResp metaResponse
	json.Unmarshal(metaRec.Body.Bytes(), &metaResp)
	if !metaResp.Pairing.Paired {
		t.Fatal("expected pairing.paired=true after a successful pair flow")
	}

	replayRec := s.serve(newRequest(http.MethodPost, "/v1/pair", testOrigin, map[string]any{
		"step": "confirm", "code": startResp.Code,
	}))
	if replayRec.Code == http.StatusOK {
		t.Fatal("replayed confirm with a consumed code must not succeed")
	}
}
