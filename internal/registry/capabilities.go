package registry

// Capability names a contract a binding fulfils.
type Capability string

// Capabilities bound by the composition engine. Hosts may bind their own
// names from the pre and post hooks.
const (
	Persistence       Capability = "persistence"
	RESTClient        Capability = "rest-client"
	EventBus          Capability = "event-bus"
	CleanArch         Capability = "clean-arch"
	MemoryCache       Capability = "memory-cache"
	ResponseCaching   Capability = "response-caching"
	APIVersioning     Capability = "api-versioning"
	Router            Capability = "router"
	ProblemDetails    Capability = "problem-details"
	Authentication    Capability = "authentication"
	Authorization     Capability = "authorization"
	OpenAPI           Capability = "openapi"
	OpenAPISecurity   Capability = "openapi-security"
	CORS              Capability = "cors"
	ForwardedHeaders  Capability = "forwarded-headers"
	Profiler          Capability = "profiler"
	HealthChecks      Capability = "health-checks"
	RelationalStorage Capability = "relational-storage"
)
