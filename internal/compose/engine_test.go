package compose

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-miniservice/internal/auth"
	"github.com/MKhiriev/go-miniservice/internal/config"
	"github.com/MKhiriev/go-miniservice/internal/feature"
	"github.com/MKhiriev/go-miniservice/internal/health"
	"github.com/MKhiriev/go-miniservice/internal/logger"
	"github.com/MKhiriev/go-miniservice/internal/module"
	"github.com/MKhiriev/go-miniservice/internal/openapi"
	"github.com/MKhiriev/go-miniservice/internal/persistence"
	"github.com/MKhiriev/go-miniservice/internal/registry"
	"github.com/MKhiriev/go-miniservice/internal/restclient"
	"github.com/MKhiriev/go-miniservice/internal/versioning"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func testConfig() config.StructuredConfig {
	return config.StructuredConfig{
		App:        config.App{Name: "orders", Environment: "production", Version: "1.0.0"},
		APIVersion: "1.0",
		Auth: config.Auth{
			Authority:         "http://identity",
			ExternalAuthority: "https://id.example.com",
			Audience:          "orders_api",
			SignKey:           "test-sign-key",
			Claims:            map[string]string{"orders.read": "orders_read"},
			Scopes:            map[string]string{"orders_read": "Read orders"},
		},
		OpenAPI: &config.OpenAPI{Title: "Orders"},
		Storage: config.Storage{Mongo: config.Mongo{URI: "mongodb://localhost:27017", Database: "orders"}},
		Client:  config.Client{MaxAttempts: 2, Backoff: config.BackoffConstant},
		Tracing: config.Tracing{Headers: []string{"x-request-id", "traceparent"}},
	}
}

// recorder collects step outcomes.
type recorder struct {
	outcomes []StepOutcome
}

func (r *recorder) observe(o StepOutcome) { r.outcomes = append(r.outcomes, o) }

func (r *recorder) ran() []string {
	out := make([]string, 0, len(r.outcomes))
	for _, o := range r.outcomes {
		if !o.Skipped {
			out = append(out, o.Name)
		}
	}
	return out
}

func compose(t *testing.T, cfg config.StructuredConfig, flags map[string]bool, opts ...Option) (*registry.Registry, *recorder, error) {
	t.Helper()
	rec := &recorder{}
	opts = append(opts, WithObserver(rec.observe))
	e := NewEngine(cfg, logger.Nop(), opts...)
	reg, err := e.Compose(context.Background(), feature.NewSet(flags), nil, nil)
	return reg, rec, err
}

// ── step order ───────────────────────────────────────────────────────────────

func TestSteps_FixedOrder(t *testing.T) {
	var names []string
	for _, s := range Steps() {
		names = append(names, s.Name)
	}

	assert.Equal(t, []string{
		StepPreHook, StepPersistence, StepPostHook, StepRESTClient, StepEventBus,
		StepCleanArch, StepResponseCaching, StepAPIVersioning, StepRouter,
		StepProblemDetails, StepAuthentication, StepOpenAPI, StepCORS,
		StepForwardedHeaders, StepProfiler,
	}, names)
}

func TestCompose_ObserverSeesEveryStepInOrder(t *testing.T) {
	_, rec, err := compose(t, testConfig(), map[string]bool{feature.APIVersion: true})
	require.NoError(t, err)

	require.Len(t, rec.outcomes, len(Steps()))
	for i, o := range rec.outcomes {
		assert.Equal(t, i+1, o.Position)
		assert.Equal(t, Steps()[i].Name, o.Name)
	}
	assert.Equal(t, []string{
		StepPreHook, StepPostHook, StepRESTClient, StepEventBus, StepResponseCaching,
		StepAPIVersioning, StepRouter, StepProblemDetails, StepCORS, StepForwardedHeaders,
	}, rec.ran())
}

func TestCompose_HooksRunAroundPersistence(t *testing.T) {
	var calls []string
	pre := func(_ context.Context, reg *registry.Registry) error {
		calls = append(calls, "pre")
		assert.False(t, reg.Has(registry.Persistence))
		return nil
	}
	post := func(_ context.Context, reg *registry.Registry) error {
		calls = append(calls, "post")
		assert.True(t, reg.Has(registry.Persistence))
		assert.False(t, reg.Has(registry.RESTClient))
		return nil
	}

	e := NewEngine(testConfig(), logger.Nop())
	reg, err := e.Compose(context.Background(), feature.NewSet(map[string]bool{feature.Mongo: true}), pre, post)
	require.NoError(t, err)
	assert.Equal(t, []string{"pre", "post"}, calls)

	p, ok := registry.Resolve[persistence.Provider](reg, registry.Persistence)
	require.True(t, ok)
	assert.Equal(t, "mongo", p.Name())
}

func TestCompose_HookErrorIsFatal(t *testing.T) {
	boom := errors.New("boom")
	rec := &recorder{}
	e := NewEngine(testConfig(), logger.Nop(), WithObserver(rec.observe))

	reg, err := e.Compose(context.Background(), feature.NewSet(nil), func(context.Context, *registry.Registry) error {
		return boom
	}, nil)

	require.Error(t, err)
	assert.Nil(t, reg)
	assert.ErrorIs(t, err, boom)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepPreHook, stepErr.Step)
	assert.Len(t, rec.outcomes, 1)
}

// ── fatal configuration errors ───────────────────────────────────────────────

func TestCompose_MongoAndEfCoreConflict(t *testing.T) {
	postCalled := false
	rec := &recorder{}
	e := NewEngine(testConfig(), logger.Nop(), WithObserver(rec.observe))

	reg, err := e.Compose(context.Background(),
		feature.NewSet(map[string]bool{feature.Mongo: true, feature.EfCore: true}),
		nil,
		func(context.Context, *registry.Registry) error {
			postCalled = true
			return nil
		})

	require.ErrorIs(t, err, ErrConflictingPersistence)
	assert.Nil(t, reg)
	assert.False(t, postCalled)
	assert.Equal(t, []string{StepPreHook, StepPersistence}, rec.ran())
}

func TestCompose_EfCoreAloneLeavesPersistenceToHooks(t *testing.T) {
	reg, _, err := compose(t, testConfig(), map[string]bool{feature.EfCore: true})
	require.NoError(t, err)
	assert.False(t, reg.Has(registry.Persistence))
}

func TestCompose_OpenAPIWithoutSection(t *testing.T) {
	cfg := testConfig()
	cfg.OpenAPI = nil

	reg, rec, err := compose(t, cfg, map[string]bool{feature.OpenAPI: true, feature.APIProfiler: true})

	require.ErrorIs(t, err, ErrOpenAPIConfigMissing)
	assert.Nil(t, reg)
	assert.Contains(t, err.Error(), "add the configuration or disable the feature")

	last := rec.outcomes[len(rec.outcomes)-1]
	assert.Equal(t, StepOpenAPI, last.Name)
	assert.NotContains(t, rec.ran(), StepCORS)
	assert.NotContains(t, rec.ran(), StepForwardedHeaders)
	assert.NotContains(t, rec.ran(), StepProfiler)
}

func TestCompose_InvalidAPIVersion(t *testing.T) {
	for _, raw := range []string{"", "1", "a.b", "1.x-beta"} {
		t.Run(raw, func(t *testing.T) {
			cfg := testConfig()
			cfg.APIVersion = raw

			reg, _, err := compose(t, cfg, map[string]bool{feature.APIVersion: true})
			require.ErrorIs(t, err, ErrInvalidAPIVersion)
			assert.Nil(t, reg)
		})
	}
}

func TestCompose_InvalidAPIVersionIgnoredWhenVersioningOff(t *testing.T) {
	cfg := testConfig()
	cfg.APIVersion = "garbage"

	_, _, err := compose(t, cfg, nil)
	assert.NoError(t, err)
}

func TestCompose_AuthWithoutSignKey(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.SignKey = ""

	reg, _, err := compose(t, cfg, map[string]bool{feature.AuthN: true})
	require.NoError(t, err)
	require.True(t, reg.Has(registry.Authentication))

	v, ok := registry.Resolve[auth.Validator](reg, registry.Authentication)
	require.True(t, ok)

	token, err := auth.IssueToken(auth.Options{Authority: cfg.Auth.Authority, Audience: cfg.Auth.Audience, SignKey: "other-key"}, "user-1", nil, time.Minute)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	auth.Authenticate(v)(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	_, err = v.Validate(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrMissingSignKey)
}

func TestCompose_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reg, err := NewEngine(testConfig(), logger.Nop()).Compose(ctx, feature.NewSet(nil), nil, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, reg)
}

// ── registry contents ────────────────────────────────────────────────────────

func TestCompose_EndToEnd(t *testing.T) {
	reg, _, err := compose(t, testConfig(), map[string]bool{
		feature.CleanArch:  true,
		feature.APIVersion: true,
		feature.AuthN:      false,
		feature.OpenAPI:    false,
	}, WithModules(module.NewStatus()))
	require.NoError(t, err)
	require.True(t, reg.Sealed())

	for _, c := range []registry.Capability{
		registry.Router, registry.MemoryCache, registry.ResponseCaching,
		registry.APIVersioning, registry.ProblemDetails, registry.RESTClient,
		registry.EventBus, registry.CleanArch, registry.CORS, registry.ForwardedHeaders,
	} {
		assert.True(t, reg.Has(c), "missing %s", c)
	}
	for _, c := range []registry.Capability{
		registry.Authentication, registry.Authorization, registry.OpenAPI,
		registry.OpenAPISecurity, registry.Persistence, registry.Profiler,
	} {
		assert.False(t, reg.Has(c), "unexpected %s", c)
	}

	routing, ok := registry.Resolve[Routing](reg, registry.Router)
	require.True(t, ok)
	assert.True(t, routing.LowercaseURLs)
	assert.Equal(t, []string{"status"}, routing.Modules)

	names, ok := registry.Config[[]string](reg, CleanArchModules)
	require.True(t, ok)
	assert.Equal(t, []string{"status"}, names)

	opts, ok := registry.Resolve[versioning.Options](reg, registry.APIVersioning)
	require.True(t, ok)
	assert.Equal(t, "1.0", opts.Default.String())

	assert.ErrorIs(t, reg.Bind(registry.Profiler, Profiler{}), registry.ErrSealed)
}

func TestCompose_AuthNDelta(t *testing.T) {
	tests := []struct {
		name  string
		flags map[string]bool
		want  []registry.Capability
	}{
		{
			name:  "without documentation",
			flags: map[string]bool{feature.APIVersion: true},
			want:  []registry.Capability{registry.Authentication, registry.Authorization},
		},
		{
			name:  "with documentation",
			flags: map[string]bool{feature.APIVersion: true, feature.OpenAPI: true},
			want:  []registry.Capability{registry.Authentication, registry.Authorization, registry.OpenAPISecurity},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			off := feature.NewSet(tt.flags).With(feature.AuthN, false)
			on := feature.NewSet(tt.flags).With(feature.AuthN, true)

			e := NewEngine(testConfig(), logger.Nop(), WithModules(module.NewStatus()))
			regOff, err := e.Compose(context.Background(), off, nil, nil)
			require.NoError(t, err)
			regOn, err := e.Compose(context.Background(), on, nil, nil)
			require.NoError(t, err)

			before := map[registry.Capability]bool{}
			for _, c := range regOff.Capabilities() {
				before[c] = true
			}
			var added []registry.Capability
			for _, c := range regOn.Capabilities() {
				if !before[c] {
					added = append(added, c)
				}
			}
			assert.ElementsMatch(t, tt.want, added)
			assert.Len(t, regOn.Capabilities(), len(regOff.Capabilities())+len(tt.want))
			assert.Equal(t, regOff.ConfigNames(), regOn.ConfigNames())
		})
	}
}

func TestCompose_AuthPolicies(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Claims[module.EchoPolicy] = "custom_echo"

	reg, _, err := compose(t, cfg, map[string]bool{feature.AuthN: true}, WithModules(module.NewStatus()))
	require.NoError(t, err)

	policies, ok := registry.Resolve[auth.Policies](reg, registry.Authorization)
	require.True(t, ok)
	assert.Equal(t, "orders_read", policies["orders.read"])
	assert.Equal(t, "custom_echo", policies[module.EchoPolicy])

	_, ok = registry.Resolve[auth.Validator](reg, registry.Authentication)
	assert.True(t, ok)
}

func TestCompose_OpenAPIDocuments(t *testing.T) {
	reg, _, err := compose(t, testConfig(), map[string]bool{
		feature.APIVersion: true,
		feature.OpenAPI:    true,
		feature.AuthN:      true,
	}, WithModules(module.NewStatus()))
	require.NoError(t, err)

	catalog, ok := registry.Resolve[*openapi.Catalog](reg, registry.OpenAPI)
	require.True(t, ok)
	assert.Equal(t, []string{"v1"}, catalog.Groups())

	doc, ok := catalog.Document("v1")
	require.True(t, ok)
	assert.Equal(t, "Orders 1.0", doc.Info.Title)
	require.Contains(t, doc.Paths, "/api/v1/status")
	require.Contains(t, doc.Paths, "/api/v1/echo")
	assert.NotEmpty(t, doc.Paths["/api/v1/status"]["get"].Security)

	scheme, ok := registry.Resolve[openapi.SecurityScheme](reg, registry.OpenAPISecurity)
	require.True(t, ok)
	assert.Equal(t, "https://id.example.com/connect/authorize", scheme.Flows.Implicit.AuthorizationURL)
	assert.Equal(t, "https://id.example.com/connect/token", scheme.Flows.Implicit.TokenURL)
}

func TestCompose_OpenAPIWithoutVersioningHasSingleGroup(t *testing.T) {
	reg, _, err := compose(t, testConfig(), map[string]bool{feature.OpenAPI: true})
	require.NoError(t, err)

	catalog, ok := registry.Resolve[*openapi.Catalog](reg, registry.OpenAPI)
	require.True(t, ok)
	assert.Equal(t, []string{"v1"}, catalog.Groups())
	assert.False(t, reg.Has(registry.OpenAPISecurity))
}

func TestCompose_DevelopmentSkipsForwardedHeaders(t *testing.T) {
	cfg := testConfig()
	cfg.App.Environment = "Development"

	reg, rec, err := compose(t, cfg, map[string]bool{feature.APIProfiler: true})
	require.NoError(t, err)
	assert.False(t, reg.Has(registry.ForwardedHeaders))
	assert.NotContains(t, rec.ran(), StepForwardedHeaders)

	p, ok := registry.Resolve[Profiler](reg, registry.Profiler)
	require.True(t, ok)
	assert.Equal(t, ProfilerPath, p.Path)
}

func TestCompose_RESTClientAndPeers(t *testing.T) {
	cfg := testConfig()
	cfg.Client.Peers = map[string]string{"billing": "http://billing:8080", "catalog": "http://catalog:8080"}

	reg, _, err := compose(t, cfg, nil)
	require.NoError(t, err)

	_, ok := registry.Resolve[*restclient.Client](reg, registry.RESTClient)
	assert.True(t, ok)

	checkers := registry.ResolveAll[health.Checker](reg, registry.HealthChecks)
	require.Len(t, checkers, 2)
	assert.Equal(t, "peer:billing", checkers[0].Name())
	assert.Equal(t, "peer:catalog", checkers[1].Name())

	headers, ok := registry.Config[[]string](reg, TracingHeaders)
	require.True(t, ok)
	assert.Equal(t, []string{"x-request-id", "traceparent"}, headers)
}

func TestCompose_ModulesFilteredByConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Modules = []string{"billing"}

	reg, _, err := compose(t, cfg, map[string]bool{feature.CleanArch: true}, WithModules(module.NewStatus()))
	require.NoError(t, err)

	routing, ok := registry.Resolve[Routing](reg, registry.Router)
	require.True(t, ok)
	assert.Empty(t, routing.Sources)
	assert.False(t, reg.Has(registry.CleanArch))
}

// ── Plan ─────────────────────────────────────────────────────────────────────

func TestPlan(t *testing.T) {
	e := NewEngine(testConfig(), logger.Nop())
	plan := e.Plan(feature.NewSet(map[string]bool{feature.Mongo: true, feature.OpenAPI: true}))

	require.Len(t, plan, 15)
	runs := map[string]bool{}
	for _, p := range plan {
		runs[p.Name] = p.Runs
	}
	assert.True(t, runs[StepPersistence])
	assert.True(t, runs[StepOpenAPI])
	assert.False(t, runs[StepAuthentication])
	assert.False(t, runs[StepAPIVersioning])
	assert.True(t, runs[StepForwardedHeaders])
	assert.Equal(t, 1, plan[0].Position)
}
