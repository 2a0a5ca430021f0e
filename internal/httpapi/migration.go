package httpapi

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/mockforge/core/internal/apierrors"
	"github.com/mockforge/core/internal/model"
	"github.com/mockforge/core/internal/registry"
)

// RouteMode is one of the three migration modes spec.md §6 names for
// `POST /__mockforge/api/migration/routes/{pattern}/toggle`: a route
// that is fully mocked, one whose mock response is served but whose
// traffic is also mirrored to the real backend for comparison
// ("shadow"), or one passed straight through to the real backend.
type RouteMode string

const (
	RouteModeMock   RouteMode = "mock"
	RouteModeShadow RouteMode = "shadow"
	RouteModeReal   RouteMode = "real"
)

// next implements the toggle cycle spec.md §6 calls for:
// mock -> shadow -> real -> mock.
func (m RouteMode) next() RouteMode {
	switch m {
	case RouteModeMock:
		return RouteModeShadow
	case RouteModeShadow:
		return RouteModeReal
	default:
		return RouteModeMock
	}
}

// migrationStore holds the current mode for every route pattern the
// admin API has toggled away from the default. Routes never toggled
// are implicitly RouteModeMock; the store only grows with explicit
// toggles, matching the admin API's "opt a route into migration"
// intent rather than requiring every route to be pre-registered here.
type migrationStore struct {
	mu    sync.RWMutex
	modes map[string]RouteMode
}

func newMigrationStore() *migrationStore {
	return &migrationStore{modes: map[string]RouteMode{}}
}

func (s *migrationStore) modeFor(pattern string) RouteMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.modes[pattern]; ok {
		return m
	}
	return RouteModeMock
}

func (s *migrationStore) toggle(pattern string) RouteMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.modes[pattern]
	if !ok {
		cur = RouteModeMock
	}
	next := cur.next()
	s.modes[pattern] = next
	return next
}

// RouteMigrationView is one entry of `GET /__mockforge/api/migration/routes`.
type RouteMigrationView struct {
	Protocol model.Protocol `json:"protocol"`
	Pattern  string         `json:"pattern"`
	Method   string         `json:"method,omitempty"`
	Name     string         `json:"name"`
	Mode     RouteMode      `json:"mode"`
}

// Registry is the subset of *registry.Registry the migration endpoints
// need, declared locally so this package depends on a capability, not
// the concrete type.
type Registry interface {
	All() []*model.SpecOperation
}

var _ Registry = (*registry.Registry)(nil)

// RegisterMigration wires reg into a into the /migration/routes
// endpoints; separated from NewAdminAPI's constructor since a caller
// embedding only the chaos section of the admin API (e.g. a unit test)
// need not provide a registry.
func (a *AdminAPI) RegisterMigration(reg Registry) {
	a.registry = reg
}

// GetRoutes serves `GET /__mockforge/api/migration/routes`.
func (a *AdminAPI) GetRoutes(w http.ResponseWriter, r *http.Request) error {
	if a.registry == nil {
		return writeJSON(w, http.StatusOK, []RouteMigrationView{})
	}
	ops := a.registry.All()
	views := make([]RouteMigrationView, 0, len(ops))
	for _, op := range ops {
		views = append(views, RouteMigrationView{
			Protocol: op.Protocol,
			Pattern:  op.PathPattern,
			Method:   op.Method,
			Name:     op.Name,
			Mode:     a.migrations.modeFor(op.PathPattern),
		})
	}
	return writeJSON(w, http.StatusOK, views)
}

// ToggleRoute serves
// `POST /__mockforge/api/migration/routes/{pattern}/toggle`. The
// pattern path segment is URL-escaped by the caller since operation
// path patterns themselves contain slashes (e.g. `/users/{id}`).
func (a *AdminAPI) ToggleRoute(w http.ResponseWriter, r *http.Request) error {
	encoded := chi.URLParam(r, "pattern")
	pattern, err := url.PathUnescape(encoded)
	if err != nil {
		return apierrors.NewInvalidArgumentError("malformed route pattern", err)
	}
	mode := a.migrations.toggle(pattern)
	return writeJSON(w, http.StatusOK, map[string]string{"pattern": pattern, "mode": string(mode)})
}
