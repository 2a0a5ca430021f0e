package httpapi

import (
	"github.com/go-chi/chi/v5"
)

// Mount wires a's handlers onto r under /__mockforge/api, matching the
// endpoint names spec.md §6 specifies verbatim. Callers (typically
// internal/adapter/httpadapter) mount this subrouter before the
// catch-all mock route, so admin requests never reach the orchestrator
// pipeline at all — satisfying "all admin endpoints skip validation and
// chaos" structurally rather than via a per-stage bypass flag.
func Mount(r chi.Router, a *AdminAPI) {
	r.Route("/__mockforge/api", func(api chi.Router) {
		api.Get("/state", ErrorHandler(a.GetState))
		api.Post("/state", ErrorHandler(a.UpdateState))
		api.Get("/migration/routes", ErrorHandler(a.GetRoutes))
		api.Post("/migration/routes/{pattern}/toggle", ErrorHandler(a.ToggleRoute))
	})
}
