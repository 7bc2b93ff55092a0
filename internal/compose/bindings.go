package compose

import "github.com/MKhiriev/go-miniservice/internal/module"

// Values bound by the engine for the request pipeline to consume.

// Routing is bound under the router capability.
type Routing struct {
	// LowercaseURLs makes route matching ignore the case of the request
	// path when no route matches it verbatim.
	LowercaseURLs bool
	Sources       []module.RouteRegistrar
	Modules       []string
}

// Forwarded is bound under the forwarded-headers capability.
type Forwarded struct {
	ForwardedFor   bool
	ForwardedProto bool
}

// Profiler is bound under the profiler capability.
type Profiler struct {
	Path string
}

// ProfilerPath is where the profiler is mounted.
const ProfilerPath = "/profiler"

// CleanArchModules names the configuration block listing the modules seen
// by the clean-arch step.
const CleanArchModules = "clean-arch:modules"

// TracingHeaders names the configuration block listing the inbound headers
// captured for forwarding on outbound calls. It is absent when none are
// configured and the pipeline falls back to tracing.DefaultHeaders.
const TracingHeaders = "tracing:headers"
