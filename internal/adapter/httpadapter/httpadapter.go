// Package httpadapter is the HTTP protocol adapter: it normalizes
// *http.Request into model.ProtocolRequest, drives the request through
// the orchestrator, and serializes pipeline.Response back onto
// http.ResponseWriter. Router mounting follows
// _examples/stacklok-toolhive/pkg/api/server.go's use of
// go-chi/chi/v5: a chi.Mux with the admin API mounted ahead of a
// catch-all route so admin requests never reach the orchestrator
// (spec.md §6's "admin endpoints skip validation and chaos").
package httpadapter

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mockforge/core/internal/httpapi"
	"github.com/mockforge/core/internal/logging"
	"github.com/mockforge/core/internal/model"
	"github.com/mockforge/core/internal/pipeline"
)

// Adapter is the HTTP entry point: an http.Handler that wraps a
// pipeline.Orchestrator. It satisfies http.Handler directly rather
// than adapter.Protocol's Accept/Send pair, since net/http already
// runs its own accept loop and calls ServeHTTP once per request; see
// adapter.Serve's doc comment for why HTTP and gRPC opt out of that
// generic loop.
type Adapter struct {
	Orchestrator *pipeline.Orchestrator
	router       *chi.Mux
}

// New builds an Adapter. admin may be nil to disable the admin API
// entirely (e.g. in a deployment that exposes it on a separate,
// internal-only listener instead of the same router).
func New(o *pipeline.Orchestrator, admin *httpapi.AdminAPI) *Adapter {
	r := chi.NewRouter()
	if admin != nil {
		httpapi.Mount(r, admin)
	}
	a := &Adapter{Orchestrator: o, router: r}
	r.Handle("/*", http.HandlerFunc(a.serveMock))
	return a
}

// ServeHTTP implements http.Handler.
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *Adapter) serveMock(w http.ResponseWriter, r *http.Request) {
	req, err := fromHTTPRequest(r)
	if err != nil {
		logging.WarnContext(r.Context(), "failed to read request body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	resp := a.Orchestrator.Handle(r.Context(), req)
	writeResponse(w, resp)
}

func fromHTTPRequest(r *http.Request) (*model.ProtocolRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	query := make(map[string][]string, len(r.URL.Query()))
	for k, v := range r.URL.Query() {
		query[k] = v
	}

	return &model.ProtocolRequest{
		ID:         requestID(r),
		Protocol:   model.ProtocolHTTP,
		Method:     r.Method,
		Path:       r.URL.Path,
		Headers:    map[string][]string(r.Header),
		Query:      query,
		Body:       model.Body{Bytes: body, ContentType: r.Header.Get("Content-Type")},
		ClientAddr: clientAddr(r),
		TraceID:    r.Header.Get("X-Trace-Id"),
		SpanID:     r.Header.Get("X-Span-Id"),
		ReceivedAt:  time.Now(),
		WorkspaceID: workspaceID(r),
	}, nil
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	return uuid.NewString()
}

func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

// workspaceID reads the configured header or query parameter the
// control plane injects, defaulting to "default" per spec.md §9's
// "Unified state across protocols" design note.
func workspaceID(r *http.Request) string {
	if ws := r.Header.Get("X-Mockforge-Workspace"); ws != "" {
		return ws
	}
	if ws := r.URL.Query().Get("workspace"); ws != "" {
		return ws
	}
	return "default"
}

func writeResponse(w http.ResponseWriter, resp *pipeline.Response) {
	for name, vals := range resp.Headers {
		for _, v := range vals {
			w.Header().Add(name, v)
		}
	}
	if resp.Problem != nil {
		w.Header().Set("Content-Type", "application/problem+json")
	} else if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}
