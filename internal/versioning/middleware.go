package versioning

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/MKhiriev/go-miniservice/internal/problem"
)

const (
	// QueryParam and Header name where clients put the requested version.
	QueryParam = "api-version"
	Header     = "api-version"

	supportedHeader  = "api-supported-versions"
	deprecatedHeader = "api-deprecated-versions"
)

type ctxKey struct{}

// pathSegment matches a /v{version}/ segment such as /v1/, /v1.2/ or /v2-beta/.
var pathSegment = regexp.MustCompile(`/[vV](\d+(?:\.\d+)?(?:-[A-Za-z0-9]+)?)(?:/|$)`)

// FromContext returns the version selected for the request.
func FromContext(ctx context.Context) (APIVersion, bool) {
	v, ok := ctx.Value(ctxKey{}).(APIVersion)
	return v, ok
}

// WithVersion stores v on ctx.
func WithVersion(ctx context.Context, v APIVersion) context.Context {
	return context.WithValue(ctx, ctxKey{}, v)
}

// Requested extracts the raw version a request asks for, looking at the query
// string, then the header, then the URL path.
func Requested(r *http.Request) string {
	if v := r.URL.Query().Get(QueryParam); v != "" {
		return v
	}
	if v := r.Header.Get(Header); v != "" {
		return v
	}
	if m := pathSegment.FindStringSubmatch(r.URL.Path); m != nil {
		return m[1]
	}
	return ""
}

// Middleware selects the API version of each request and stores it on the
// request context. Requests for versions that are not served get a 400
// problem with code UnsupportedApiVersion.
func Middleware(opts Options) func(http.Handler) http.Handler {
	supported := joinVersions(opts.Supported)
	deprecated := joinVersions(opts.Deprecated)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.ReportAPIVersions {
				w.Header().Set(supportedHeader, supported)
				if deprecated != "" {
					w.Header().Set(deprecatedHeader, deprecated)
				}
			}

			raw := Requested(r)
			if raw == "" {
				if !opts.AssumeDefaultWhenUnspecified {
					writeUnsupported(w, r, "An API version is required, but was not specified.")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithVersion(r.Context(), opts.Default)))
				return
			}

			v, err := ParseRequested(raw)
			if err != nil || !opts.IsSupported(v) {
				writeUnsupported(w, r, "The HTTP resource does not support the API version '"+raw+"'.")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithVersion(r.Context(), v)))
		})
	}
}

func writeUnsupported(w http.ResponseWriter, r *http.Request, detail string) {
	p := problem.New(http.StatusBadRequest, detail)
	p.Code = "UnsupportedApiVersion"
	p.Instance = r.URL.Path
	_ = problem.Write(w, p)
}

func joinVersions(vs []APIVersion) string {
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, ", ")
}
