// Package module defines the units of functionality a miniservice is built
// from. A module always has a name; it takes part in composition by
// implementing any of the optional interfaces below.
package module

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MKhiriev/go-miniservice/internal/auth"
	"github.com/MKhiriev/go-miniservice/internal/config"
	"github.com/MKhiriev/go-miniservice/internal/logger"
	"github.com/MKhiriev/go-miniservice/internal/openapi"
	"github.com/MKhiriev/go-miniservice/internal/problem"
	"github.com/MKhiriev/go-miniservice/internal/registry"
	"github.com/MKhiriev/go-miniservice/internal/versioning"
)

// VersionParam is the route parameter holding the API version in module
// route patterns, e.g. "/api/v{version}/status".
const VersionParam = "version"

type Module interface {
	Name() string
}

// ServiceRegistrar modules bind their services during composition, before
// the registry is sealed.
type ServiceRegistrar interface {
	Module
	RegisterServices(reg *registry.Registry, cfg config.StructuredConfig) error
}

// RouteRegistrar modules mount HTTP handlers on the pipeline router.
type RouteRegistrar interface {
	Module
	RegisterRoutes(r chi.Router, env RouteEnv)
}

// APIDescriber modules declare the API versions they serve and document
// their endpoints.
type APIDescriber interface {
	Module
	APIVersions() []versioning.APIVersion
	Endpoints() []Endpoint
}

// Endpoint documents one route. Versions limits the documentation groups
// the endpoint appears in; empty means every group.
type Endpoint struct {
	Method    string
	Pattern   string
	Versions  []versioning.APIVersion
	Operation openapi.Operation
}

// DocumentPath returns the pattern with the version parameter replaced by
// the group form of v: "/api/v{version}/status" becomes "/api/v1/status".
func (e Endpoint) DocumentPath(v versioning.APIVersion) string {
	return strings.ReplaceAll(e.Pattern, "{"+VersionParam+"}", strings.TrimPrefix(v.GroupName(), "v"))
}

// InGroup reports whether the endpoint is documented for v.
func (e Endpoint) InGroup(v versioning.APIVersion) bool {
	if len(e.Versions) == 0 {
		return true
	}
	for _, ev := range e.Versions {
		if ev.Equal(v) {
			return true
		}
	}
	return false
}

// RouteEnv is what a module can use when mounting routes.
type RouteEnv struct {
	// Registry is sealed.
	Registry *registry.Registry
	Problems *problem.Factory
	// Policies is nil when authentication is off.
	Policies auth.Policies
	Logger   *logger.Logger
}

// Require enforces policy when authentication is on and passes requests
// through otherwise.
func (e RouteEnv) Require(policy string) func(http.Handler) http.Handler {
	if e.Policies == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return e.Policies.Require(policy)
}

// Names returns the names of mods in order.
func Names(mods []Module) []string {
	out := make([]string, 0, len(mods))
	for _, m := range mods {
		out = append(out, m.Name())
	}
	return out
}

// Select keeps the modules named in enabled, case-insensitively, preserving
// the order of mods. An empty enabled list keeps every module.
func Select(mods []Module, enabled []string) []Module {
	if len(enabled) == 0 {
		return mods
	}
	out := make([]Module, 0, len(mods))
	for _, m := range mods {
		for _, name := range enabled {
			if strings.EqualFold(strings.TrimSpace(name), m.Name()) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// PolicyProvider modules declare the authorization policies their routes
// require, as policy name to scope. Configured claims override them.
type PolicyProvider interface {
	Module
	Policies() map[string]string
}
