// Package server implements the HTTP surface of spec.md §2 item 7 and §4.8:
// routes that translate admission-filtered, authenticated requests into
// either direct responses or job enqueues. Grounded on the teacher's
// APIServer (internal/server/api_server.go, handlers.go): a single
// http.ServeMux assembled once, wrapped in a shared security middleware
// chain, served by one or two http.Server listeners (plain + optional TLS
// mirror) built from PreparedHTTPServer.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/nupi-ai/gitdaemon/internal/apierr"
	"github.com/nupi-ai/gitdaemon/internal/approval"
	"github.com/nupi-ai/gitdaemon/internal/config"
	"github.com/nupi-ai/gitdaemon/internal/job"
	"github.com/nupi-ai/gitdaemon/internal/pairing"
	"github.com/nupi-ai/gitdaemon/internal/token"
	"github.com/nupi-ai/gitdaemon/internal/version"
)

// Server owns every long-lived collaborator the HTTP surface dispatches
// into: config, token store, pairing manager, job manager, and approval
// grantor.
type Server struct {
	cfg      *config.Store
	tokens   *token.Store
	pairing  *pairing.Manager
	jobs     *job.Manager
	grantor  *approval.Grantor
	limiters *limiterSet

	startTime time.Time

	mux        *http.ServeMux
	httpServer *http.Server
	tlsServer  *http.Server
}

// New assembles the route table and middleware chain. It does not start
// listening; call Start or Prepare.
func New(cfg *config.Store, tokens *token.Store, pm *pairing.Manager, jobs *job.Manager) *Server {
	s := &Server{
		cfg:       cfg,
		tokens:    tokens,
		pairing:   pm,
		jobs:      jobs,
		grantor:   approval.NewGrantor(cfg),
		limiters:  newLimiterSet(),
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/meta", s.handleMeta)
	mux.HandleFunc("/v1/pair", s.handlePair)
	mux.HandleFunc("/v1/diagnostics", s.requireAuth(s.handleDiagnostics))
	mux.HandleFunc("/v1/git/clone", s.requireAuth(s.handleGitClone))
	mux.HandleFunc("/v1/git/fetch", s.requireAuth(s.handleGitFetch))
	mux.HandleFunc("/v1/git/status", s.requireAuth(s.handleGitStatus))
	mux.HandleFunc("/v1/os/open", s.requireAuth(s.handleOSOpen))
	mux.HandleFunc("/v1/deps/install", s.requireAuth(s.handleDepsInstall))
	mux.HandleFunc("/v1/jobs/", s.requireAuth(s.handleJobsSubroute))

	s.mux = mux
	return s
}

// requireAuth wraps handler with the bearer-token check of spec.md §4.2:
// missing Authorization -> auth_required (401); present but invalid ->
// auth_invalid (401). The pairing and meta routes intentionally bypass
// this (spec.md §4.3: "Pairing does not require bearer auth"; meta is
// queried pre-pairing to report pairing status).
func (s *Server) requireAuth(handler func(w http.ResponseWriter, r *http.Request, origin string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		bearer := extractBearerToken(r)
		if bearer == "" {
			writeAPIError(w, apierr.AuthRequired())
			return
		}
		if !s.tokens.VerifyToken(origin, bearer) {
			writeAPIError(w, apierr.AuthInvalid())
			return
		}
		handler(w, r, origin)
	}
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// Prepare builds the plaintext and, if configured, TLS http.Server values
// without starting to serve, mirroring the teacher's Prepare/PreparedHTTPServer
// split so callers can manage listener lifecycle themselves (spec.md §6:
// "Optional second TLS listener is a mirror of the plaintext one").
func (s *Server) Prepare() (plain *http.Server, tlsSrv *http.Server, tlsCertPath, tlsKeyPath string, err error) {
	cfg := s.cfg.Get()
	if cfg.ServerHost != "127.0.0.1" && cfg.ServerHost != "localhost" && cfg.ServerHost != "::1" {
		return nil, nil, "", "", fmt.Errorf("server: serverHost %q must be a loopback literal", cfg.ServerHost)
	}
	if len(cfg.OriginAllowlist) == 0 {
		return nil, nil, "", "", fmt.Errorf("server: originAllowlist must not be empty")
	}

	addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
	handler := s.admissionMiddleware(s.mux)

	plain = &http.Server{
		Addr:    addr,
		Handler: handler,
	}
	s.httpServer = plain

	if cfg.TLSCertPath != "" || cfg.TLSKeyPath != "" {
		if cfg.TLSCertPath == "" || cfg.TLSKeyPath == "" {
			return nil, nil, "", "", fmt.Errorf("server: TLS requires both cert and key paths")
		}
		if _, err := tls.LoadX509KeyPair(cfg.TLSCertPath, cfg.TLSKeyPath); err != nil {
			return nil, nil, "", "", fmt.Errorf("server: load TLS keypair: %w", err)
		}
		tlsSrv = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort+1),
			Handler: handler,
		}
		s.tlsServer = tlsSrv
	}

	return plain, tlsSrv, cfg.TLSCertPath, cfg.TLSKeyPath, nil
}

// Start prepares and runs the plaintext listener (and, if configured, the
// TLS mirror in a background goroutine), blocking on the plaintext
// listener the way the teacher's APIServer.Start does.
func (s *Server) Start() error {
	plain, tlsSrv, certPath, keyPath, err := s.Prepare()
	if err != nil {
		return err
	}
	if tlsSrv != nil {
		go func() {
			log.Printf("[server] TLS listener starting on %s", tlsSrv.Addr)
			if err := tlsSrv.ListenAndServeTLS(certPath, keyPath); err != nil && err != http.ErrServerClosed {
				log.Printf("[server] TLS listener exited: %v", err)
			}
		}()
	}
	log.Printf("[server] listening on %s", plain.Addr)
	return plain.ListenAndServe()
}

// Shutdown gracefully stops both listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if s.tlsServer != nil {
		if err := s.tlsServer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// buildVersion is surfaced on /v1/meta and /v1/diagnostics.
func buildVersion() string { return version.String() }
