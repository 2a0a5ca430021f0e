// Package httpapi implements the core's administrative HTTP interface
// (spec.md §6): a small REST surface, consumed by the out-of-scope
// Admin UI/TUI but defined here, for introspecting and hot-updating the
// live ChaosConfig and for listing/toggling each route's migration
// mode. Every handler in this package is mounted outside the request
// pipeline, so it naturally satisfies spec.md §6's "all admin
// endpoints skip validation and chaos" — there is no orchestrator
// stage to skip because these handlers never enter it.
//
// The error-handling shape (a handler that returns an error, decorated
// into a JSON problem response by a single wrapper) is grounded on
// _examples/stacklok-toolhive/pkg/api/errors/handler.go.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/mockforge/core/internal/apierrors"
	"github.com/mockforge/core/internal/logging"
)

// HandlerWithError is an http.HandlerFunc that may fail; ErrorHandler
// turns the returned error into a response instead of making every
// handler repeat the same status-code/logging boilerplate.
type HandlerWithError func(w http.ResponseWriter, r *http.Request) error

// ErrorHandler adapts a HandlerWithError into a plain http.HandlerFunc.
// A non-nil error is mapped to its HTTP status via apierrors.Code and
// serialized as a minimal JSON problem body; 5xx errors are logged with
// the request path, matching spec.md §7's "Internal error ... logged
// with stage name and request id" (the path stands in for stage name
// here, since admin requests have no pipeline stage).
func ErrorHandler(h HandlerWithError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			status := apierrors.Code(err)
			if status >= 500 {
				logging.ErrorContext(r.Context(), "admin api handler failed", "path", r.URL.Path, "error", err)
			}
			writeJSONError(w, status, err.Error())
		}
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apierrors.NewInvalidArgumentError("malformed request body", err)
	}
	return nil
}
