package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/nupi-ai/gitdaemon/internal/apierr"
)

// errorBody is the standard JSON error envelope returned by all HTTP error
// responses, per spec.md §7.
type errorBody struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// writeAPIError is the single terminal error handler spec.md §7 describes:
// it type-switches on *apierr.Error and writes the matching code/message/
// status; any other error is treated as an internal_error so a handler can
// always pass through whatever resolveInsideWorkspace/sandbox returned.
func writeAPIError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*apierr.Error)
	if !ok {
		apiErr = apierr.Internal(err.Error())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	if encodeErr := json.NewEncoder(w).Encode(errorBody{ErrorCode: apiErr.Code, Message: apiErr.Message}); encodeErr != nil {
		log.Printf("[server] failed to write error response: %v", encodeErr)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] failed to write response: %v", err)
	}
}
