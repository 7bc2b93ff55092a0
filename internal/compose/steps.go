package compose

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/MKhiriev/go-miniservice/internal/auth"
	"github.com/MKhiriev/go-miniservice/internal/cache"
	"github.com/MKhiriev/go-miniservice/internal/config"
	"github.com/MKhiriev/go-miniservice/internal/eventbus"
	"github.com/MKhiriev/go-miniservice/internal/feature"
	"github.com/MKhiriev/go-miniservice/internal/health"
	"github.com/MKhiriev/go-miniservice/internal/logger"
	"github.com/MKhiriev/go-miniservice/internal/metrics"
	"github.com/MKhiriev/go-miniservice/internal/module"
	"github.com/MKhiriev/go-miniservice/internal/openapi"
	"github.com/MKhiriev/go-miniservice/internal/persistence"
	"github.com/MKhiriev/go-miniservice/internal/problem"
	"github.com/MKhiriev/go-miniservice/internal/registry"
	"github.com/MKhiriev/go-miniservice/internal/restclient"
	"github.com/MKhiriev/go-miniservice/internal/versioning"
)

// Step names, in composition order.
const (
	StepPreHook          = "pre-hook"
	StepPersistence      = "persistence"
	StepPostHook         = "post-hook"
	StepRESTClient       = "rest-client"
	StepEventBus         = "event-bus"
	StepCleanArch        = "clean-arch"
	StepResponseCaching  = "response-caching"
	StepAPIVersioning    = "api-versioning"
	StepRouter           = "router"
	StepProblemDetails   = "problem-details"
	StepAuthentication   = "authentication"
	StepOpenAPI          = "openapi"
	StepCORS             = "cors"
	StepForwardedHeaders = "forwarded-headers"
	StepProfiler         = "profiler"
)

// State is what steps read and write during one composition.
type State struct {
	Features feature.Set
	Config   config.StructuredConfig

	reg      *registry.Registry
	log      *logger.Logger
	modules  []module.Module
	metrics  *metrics.Metrics
	clientOp []restclient.Option
	pre      Hook
	post     Hook

	// set by earlier steps for later ones
	versions *versioning.Options
	auth     *auth.Options
}

// Step is one unit of composition. A nil Guard always runs.
type Step struct {
	Name  string
	Guard func(st *State) bool
	Apply func(ctx context.Context, st *State) error
}

func (s Step) runs(st *State) bool {
	return s.Guard == nil || s.Guard(st)
}

func enabled(name string) func(st *State) bool {
	return func(st *State) bool { return st.Features.IsEnabled(name) }
}

// Steps returns the composition steps in their fixed order.
func Steps() []Step {
	return []Step{
		{Name: StepPreHook, Apply: func(ctx context.Context, st *State) error { return runHook(ctx, st.pre, st.reg) }},
		{Name: StepPersistence, Guard: enabled(feature.Mongo), Apply: bindPersistence},
		{Name: StepPostHook, Apply: func(ctx context.Context, st *State) error { return runHook(ctx, st.post, st.reg) }},
		{Name: StepRESTClient, Apply: bindRESTClient},
		{Name: StepEventBus, Apply: bindEventBus},
		{Name: StepCleanArch, Guard: enabled(feature.CleanArch), Apply: scanModules},
		{Name: StepResponseCaching, Apply: bindCaching},
		{Name: StepAPIVersioning, Guard: enabled(feature.APIVersion), Apply: bindVersioning},
		{Name: StepRouter, Apply: bindRouter},
		{Name: StepProblemDetails, Apply: bindProblemDetails},
		{Name: StepAuthentication, Guard: enabled(feature.AuthN), Apply: bindAuth},
		{Name: StepOpenAPI, Guard: enabled(feature.OpenAPI), Apply: bindOpenAPI},
		{Name: StepCORS, Apply: bindCORS},
		{Name: StepForwardedHeaders, Guard: notDevelopment, Apply: bindForwarded},
		{Name: StepProfiler, Guard: enabled(feature.APIProfiler), Apply: bindProfiler},
	}
}

func runHook(ctx context.Context, h Hook, reg *registry.Registry) error {
	if h == nil {
		return nil
	}
	return h(ctx, reg)
}

func bindPersistence(ctx context.Context, st *State) error {
	if st.Features.IsEnabled(feature.EfCore) {
		return ErrConflictingPersistence
	}

	mongo, err := persistence.NewMongo(ctx, st.Config.Storage.Mongo, st.log)
	if err != nil {
		return err
	}
	return st.reg.Bind(registry.Persistence, mongo)
}

func bindRESTClient(_ context.Context, st *State) error {
	cfg := st.Config.Client

	policy := restclient.DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if backoff, ok := restclient.ParseBackoff(cfg.Backoff); ok {
		policy.Backoff = backoff
	} else {
		st.log.Warn().Str("backoff", cfg.Backoff).Msg("unknown backoff strategy, using exponential-jitter")
	}
	if cfg.InitialWait > 0 {
		policy.InitialWait = cfg.InitialWait
	}
	if cfg.MaxWait > 0 {
		policy.MaxWait = cfg.MaxWait
	}

	opts := []restclient.Option{
		restclient.WithTimeout(cfg.Timeout),
		restclient.WithRetryPolicy(policy),
		restclient.WithPropagator(otel.GetTextMapPropagator()),
		restclient.WithLogger(st.log),
		restclient.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
	}
	if st.metrics != nil {
		opts = append(opts, restclient.WithObserver(st.metrics))
	}
	opts = append(opts, st.clientOp...)

	client := restclient.New(opts...)
	if err := st.reg.Bind(registry.RESTClient, client); err != nil {
		return err
	}
	if names := st.Config.Tracing.Headers; len(names) > 0 {
		if err := st.reg.Configure(TracingHeaders, append([]string(nil), names...)); err != nil {
			return err
		}
	}

	peers := make([]string, 0, len(cfg.Peers))
	for name := range cfg.Peers {
		peers = append(peers, name)
	}
	sort.Strings(peers)
	for _, name := range peers {
		checker, err := health.NewPeerChecker(name, cfg.Peers[name], client)
		if err != nil {
			return err
		}
		if err = st.reg.Bind(registry.HealthChecks, checker); err != nil {
			return err
		}
	}

	return nil
}

func bindEventBus(_ context.Context, st *State) error {
	return st.reg.Bind(registry.EventBus, eventbus.New(st.log))
}

func scanModules(_ context.Context, st *State) error {
	names := make([]string, 0, len(st.modules))
	for _, m := range st.modules {
		names = append(names, m.Name())

		sr, ok := m.(module.ServiceRegistrar)
		if !ok {
			continue
		}
		if err := sr.RegisterServices(st.reg, st.Config); err != nil {
			return fmt.Errorf("module %q: %w", m.Name(), err)
		}
	}
	return st.reg.Configure(CleanArchModules, names)
}

func bindCaching(_ context.Context, st *State) error {
	c := cache.New(st.Config.Cache.DefaultTTL, st.Config.Cache.CleanupInterval)
	if err := st.reg.Bind(registry.MemoryCache, c); err != nil {
		return err
	}
	return st.reg.Bind(registry.ResponseCaching, cache.ResponsePolicy{})
}

func bindVersioning(_ context.Context, st *State) error {
	def, err := versioning.Parse(st.Config.APIVersion)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidAPIVersion, st.Config.APIVersion, err)
	}

	var declared []versioning.APIVersion
	for _, m := range st.modules {
		if d, ok := m.(module.APIDescriber); ok {
			declared = append(declared, d.APIVersions()...)
		}
	}

	opts := versioning.NewOptions(def, declared...)
	st.versions = &opts
	return st.reg.Bind(registry.APIVersioning, opts)
}

func bindRouter(_ context.Context, st *State) error {
	routing := Routing{LowercaseURLs: true}
	for _, m := range st.modules {
		if rr, ok := m.(module.RouteRegistrar); ok {
			routing.Sources = append(routing.Sources, rr)
			routing.Modules = append(routing.Modules, m.Name())
		}
	}
	return st.reg.Bind(registry.Router, routing)
}

func bindProblemDetails(_ context.Context, st *State) error {
	return st.reg.Bind(registry.ProblemDetails, problem.NewFactory())
}

func bindAuth(_ context.Context, st *State) error {
	cfg := st.Config.Auth

	policies := auth.Policies{}
	for _, m := range st.modules {
		if pp, ok := m.(module.PolicyProvider); ok {
			for name, scope := range pp.Policies() {
				policies[name] = scope
			}
		}
	}
	for name, scope := range cfg.Claims {
		policies[name] = scope
	}

	opts := auth.Options{
		Authority:         cfg.Authority,
		ExternalAuthority: cfg.ExternalAuthority,
		Audience:          cfg.Audience,
		SignKey:           cfg.SignKey,
		Policies:          policies,
		Scopes:            cfg.Scopes,
	}
	if opts.SignKey == "" {
		st.log.Warn().Msg("auth sign key is not configured, every bearer token will be rejected")
	}
	if err := st.reg.Bind(registry.Authentication, auth.NewJWTValidator(opts)); err != nil {
		return err
	}
	if err := st.reg.Bind(registry.Authorization, policies); err != nil {
		return err
	}

	st.auth = &opts
	return nil
}

func bindOpenAPI(_ context.Context, st *State) error {
	section := st.Config.OpenAPI
	if section == nil {
		return ErrOpenAPIConfigMissing
	}

	versions := []versioning.APIVersion{{Major: 1}}
	var deprecated func(versioning.APIVersion) bool
	if st.versions != nil {
		versions = st.versions.Supported
		deprecated = st.versions.IsDeprecated
	}

	groups := make([]openapi.Group, 0, len(versions))
	for _, v := range versions {
		groups = append(groups, openapi.Group{
			Name:       v.GroupName(),
			Version:    v.String(),
			Deprecated: deprecated != nil && deprecated(v),
		})
	}

	catalog := openapi.NewCatalog(openapi.Options{
		Title:          section.Title,
		Description:    section.Description,
		ContactName:    section.ContactName,
		ContactEmail:   section.ContactEmail,
		TermsOfService: section.TermsOfService,
		LicenseName:    section.LicenseName,
		LicenseURL:     section.LicenseURL,
	}, groups...)

	for _, m := range st.modules {
		d, ok := m.(module.APIDescriber)
		if !ok {
			continue
		}
		for _, v := range versions {
			for _, ep := range d.Endpoints() {
				if !ep.InGroup(v) {
					continue
				}
				path := ep.DocumentPath(v)
				if !catalog.Register(v.GroupName(), ep.Method, path, ep.Operation) {
					st.log.Debug().
						Str("module", m.Name()).
						Str("group", v.GroupName()).
						Str("method", ep.Method).
						Str("path", path).
						Msg("conflicting operation ignored, first registration kept")
				}
			}
		}
	}

	if st.auth != nil {
		catalog.UseOAuth2(st.auth.External(), st.auth.Scopes)
		scheme, _ := catalog.Scheme()
		if err := st.reg.Bind(registry.OpenAPISecurity, scheme); err != nil {
			return err
		}
	}

	return st.reg.Bind(registry.OpenAPI, catalog)
}

func bindCORS(_ context.Context, st *State) error {
	return st.reg.Bind(registry.CORS, cors.Options{
		AllowOriginFunc: func(*http.Request, string) bool { return true },
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

func notDevelopment(st *State) bool {
	return !st.Config.App.IsDevelopment()
}

func bindForwarded(_ context.Context, st *State) error {
	return st.reg.Bind(registry.ForwardedHeaders, Forwarded{ForwardedFor: true, ForwardedProto: true})
}

func bindProfiler(_ context.Context, st *State) error {
	return st.reg.Bind(registry.Profiler, Profiler{Path: ProfilerPath})
}
