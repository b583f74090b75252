// Package apierr defines the stable error taxonomy described in spec.md §7:
// every API error carries a machine-stable code, a user-safe message, and
// the HTTP status it maps to.
package apierr

import "net/http"

// Error is a typed API error. It implements the standard error interface so
// it can be returned, wrapped, and matched with errors.As like any other Go
// error, while still carrying the wire-level code and status spec.md §7
// requires.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return e.Message
}

func new(code, message string, status int) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

func AuthRequired() *Error {
	return new("auth_required", "authentication required", http.StatusUnauthorized)
}

func AuthInvalid() *Error {
	return new("auth_invalid", "invalid or expired bearer token", http.StatusUnauthorized)
}

func OriginNotAllowed() *Error {
	return new("origin_not_allowed", "request origin is not allowed", http.StatusForbidden)
}

func RateLimited() *Error {
	return new("rate_limited", "rate limit exceeded", http.StatusTooManyRequests)
}

func RequestTooLarge(detail string) *Error {
	return new("request_too_large", detail, http.StatusRequestEntityTooLarge)
}

func WorkspaceRequired() *Error {
	return new("workspace_required", "no workspace root is configured", http.StatusConflict)
}

func PathOutsideWorkspace() *Error {
	return new("path_outside_workspace", "path resolves outside the workspace root", http.StatusConflict)
}

func InvalidRepoURL() *Error {
	return new("invalid_repo_url", "repoUrl is not a valid git remote", http.StatusUnprocessableEntity)
}

func CapabilityNotGranted(capability string) *Error {
	return new("capability_not_granted", "capability not granted: "+capability, http.StatusConflict)
}

func JobNotFound() *Error {
	return new("job_not_found", "job not found", http.StatusNotFound)
}

func Timeout() *Error {
	return new("timeout", "operation timed out", http.StatusInternalServerError)
}

func RepoNotFound() *Error {
	return new("repo_not_found", "repository not found", http.StatusNotFound)
}

func PathNotFound() *Error {
	return new("path_not_found", "path not found", http.StatusNotFound)
}

func Internal(message string) *Error {
	return new("internal_error", message, http.StatusInternalServerError)
}

func BadRequest(message string) *Error {
	return new("internal_error", message, http.StatusBadRequest)
}

func Conflict(message string) *Error {
	return new("internal_error", message, http.StatusConflict)
}

// UnprocessableValidation is the "generic" internal_error status the
// pairing route uses for an empty code or a confirm that can't succeed
// (unknown, expired, or already-consumed code), per spec.md §8's
// worked example (a replayed confirm returns 422).
func UnprocessableValidation(message string) *Error {
	return new("internal_error", message, http.StatusUnprocessableEntity)
}
