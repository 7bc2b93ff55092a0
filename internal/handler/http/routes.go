// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/MKhiriev/go-miniservice/internal/auth"
	"github.com/MKhiriev/go-miniservice/internal/cache"
	"github.com/MKhiriev/go-miniservice/internal/compose"
	"github.com/MKhiriev/go-miniservice/internal/health"
	"github.com/MKhiriev/go-miniservice/internal/module"
	"github.com/MKhiriev/go-miniservice/internal/openapi"
	"github.com/MKhiriev/go-miniservice/internal/problem"
	"github.com/MKhiriev/go-miniservice/internal/registry"
	"github.com/MKhiriev/go-miniservice/internal/tracing"
	"github.com/MKhiriev/go-miniservice/internal/versioning"
)

const (
	swaggerJSONPattern = "/swagger/{" + openapi.GroupParam + "}/swagger.json"
	swaggerYAMLPattern = "/swagger/{" + openapi.GroupParam + "}/swagger.yaml"
)

// Init builds the pipeline. Middlewares run in this order: panic recovery,
// request id, access log, metrics, forwarded headers, CORS, compression,
// tracing header capture. Module routes additionally pass API versioning,
// authentication and response caching.
func (h *Handler) Init() (http.Handler, error) {
	reg := h.registry
	if reg == nil || !reg.Sealed() {
		return nil, ErrNotSealed
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID)
	router.Use(h.withLogging)
	if h.metrics != nil {
		router.Use(h.withMetrics)
	}

	if fwd, ok := registry.Resolve[compose.Forwarded](reg, registry.ForwardedHeaders); ok {
		if fwd.ForwardedFor {
			router.Use(middleware.RealIP)
		}
		if fwd.ForwardedProto {
			router.Use(withForwardedProto)
		}
	}
	if opts, ok := registry.Resolve[cors.Options](reg, registry.CORS); ok {
		router.Use(cors.Handler(opts))
	}
	router.Use(withGZip)

	names, ok := registry.Config[[]string](reg, compose.TracingHeaders)
	if !ok {
		names = tracing.DefaultHeaders
	}
	router.Use(tracing.Middleware(names))

	h.registerBuiltins(router)
	router.Group(h.registerModules)

	router.NotFound(CheckHTTPMethod)
	router.MethodNotAllowed(CheckHTTPMethod)

	var handler http.Handler = router
	if routing, _ := registry.Resolve[compose.Routing](reg, registry.Router); routing.LowercaseURLs {
		handler = withLowercaseURLs(router)
	}

	return otelhttp.NewHandler(handler, OperationName), nil
}

// registerModules installs the API middlewares and the module routes. The
// built-in routes stay outside this group, so they are neither versioned nor
// authenticated nor cached.
func (h *Handler) registerModules(r chi.Router) {
	reg := h.registry

	if opts, ok := registry.Resolve[versioning.Options](reg, registry.APIVersioning); ok {
		r.Use(versioning.Middleware(opts))
	}

	var policies auth.Policies
	if v, ok := registry.Resolve[auth.Validator](reg, registry.Authentication); ok {
		r.Use(auth.Authenticate(v))
		policies, _ = registry.Resolve[auth.Policies](reg, registry.Authorization)
		if policies == nil {
			policies = auth.Policies{}
		}
	}

	c, hasCache := registry.Resolve[*cache.Cache](reg, registry.MemoryCache)
	policy, hasPolicy := registry.Resolve[cache.ResponsePolicy](reg, registry.ResponseCaching)
	if hasCache && hasPolicy {
		r.Use(cache.ResponseCaching(c, policy))
	}

	problems, ok := registry.Resolve[*problem.Factory](reg, registry.ProblemDetails)
	if !ok {
		problems = problem.NewFactory()
	}
	routing, _ := registry.Resolve[compose.Routing](reg, registry.Router)
	env := module.RouteEnv{
		Registry: reg,
		Problems: problems,
		Policies: policies,
		Logger:   h.logger,
	}
	for _, src := range routing.Sources {
		src.RegisterRoutes(r, env)
		h.logger.Debug().Str("module", src.Name()).Msg("module routes registered")
	}
}

func (h *Handler) registerBuiltins(router chi.Router) {
	reg := h.registry

	router.Get(health.Path, health.Handler(0, registry.ResolveAll[health.Checker](reg, registry.HealthChecks)...))

	if h.metrics != nil {
		router.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	if catalog, ok := registry.Resolve[*openapi.Catalog](reg, registry.OpenAPI); ok {
		router.Get(swaggerJSONPattern, openapi.JSONHandler(catalog))
		router.Get(swaggerYAMLPattern, openapi.YAMLHandler(catalog))
	}

	if p, ok := registry.Resolve[compose.Profiler](reg, registry.Profiler); ok {
		router.Mount(p.Path, middleware.Profiler())
	}
}
