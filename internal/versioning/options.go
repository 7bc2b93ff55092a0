package versioning

import "sort"

// Options configures versioned routing.
type Options struct {
	// Default is served when a request does not name a version.
	Default APIVersion

	// Supported lists every version the service serves, Default included.
	Supported []APIVersion

	// Deprecated lists versions still served but scheduled for removal.
	Deprecated []APIVersion

	// ReportAPIVersions adds api-supported-versions and
	// api-deprecated-versions headers to responses.
	ReportAPIVersions bool

	// AssumeDefaultWhenUnspecified serves Default to requests without a
	// version instead of rejecting them.
	AssumeDefaultWhenUnspecified bool
}

// NewOptions returns options serving def plus extra, deduplicated and sorted.
func NewOptions(def APIVersion, extra ...APIVersion) Options {
	opts := Options{
		Default:                      def,
		ReportAPIVersions:            true,
		AssumeDefaultWhenUnspecified: true,
	}
	opts.Supported = dedupe(append([]APIVersion{def}, extra...))

	return opts
}

// IsSupported reports whether v is one of the served versions.
func (o Options) IsSupported(v APIVersion) bool {
	for _, s := range o.Supported {
		if s.Equal(v) {
			return true
		}
	}
	return false
}

// IsDeprecated reports whether v is marked deprecated.
func (o Options) IsDeprecated(v APIVersion) bool {
	for _, d := range o.Deprecated {
		if d.Equal(v) {
			return true
		}
	}
	return false
}

func dedupe(in []APIVersion) []APIVersion {
	out := make([]APIVersion, 0, len(in))
	for _, v := range in {
		seen := false
		for _, o := range out {
			if o.Equal(v) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })

	return out
}
