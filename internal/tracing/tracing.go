// Package tracing carries the distributed-tracing headers of an inbound
// request to the outbound calls made while serving it.
package tracing

import (
	"context"
	"net/http"
	"strings"
)

// DefaultHeaders are the correlation headers forwarded when none are
// configured: request id, B3, OpenTracing and W3C trace context.
var DefaultHeaders = []string{
	"x-request-id",
	"x-b3-traceid",
	"x-b3-spanid",
	"x-b3-parentspanid",
	"x-b3-sampled",
	"x-b3-flags",
	"x-ot-span-context",
	"traceparent",
	"tracestate",
}

// Header is one name/value pair of a tracing context.
type Header struct {
	Name  string
	Value string
}

// Context is an ordered, immutable sequence of tracing headers.
type Context struct {
	headers []Header
}

// NewContext builds a Context from pairs, keeping their order. Pairs with an
// empty name are dropped.
func NewContext(pairs ...Header) Context {
	out := make([]Header, 0, len(pairs))
	for _, p := range pairs {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		out = append(out, p)
	}
	return Context{headers: out}
}

// With returns a copy of c with an extra pair appended.
func (c Context) With(name, value string) Context {
	out := make([]Header, 0, len(c.headers)+1)
	out = append(out, c.headers...)
	return NewContext(append(out, Header{Name: name, Value: value})...)
}

// Headers returns a copy of the pairs in order.
func (c Context) Headers() []Header {
	out := make([]Header, len(c.headers))
	copy(out, c.headers)
	return out
}

// Len returns the number of pairs.
func (c Context) Len() int {
	return len(c.headers)
}

// Get returns the value of the first pair named name.
func (c Context) Get(name string) (string, bool) {
	for _, h := range c.headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

type ctxKey struct{}

// WithContext attaches tc to ctx.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// FromContext returns the tracing context attached to ctx, or an empty one.
func FromContext(ctx context.Context) Context {
	tc, _ := ctx.Value(ctxKey{}).(Context)
	return tc
}

// Capture copies the headers listed in names from r, in the order of names.
// Multi-valued headers contribute one pair per value.
func Capture(r *http.Request, names []string) Context {
	if len(names) == 0 {
		names = DefaultHeaders
	}

	pairs := make([]Header, 0, len(names))
	for _, name := range names {
		for _, v := range r.Header.Values(name) {
			pairs = append(pairs, Header{Name: http.CanonicalHeaderKey(name), Value: v})
		}
	}
	return NewContext(pairs...)
}

// Middleware captures the tracing headers of each request onto its context so
// outbound calls made by handlers forward them.
func Middleware(names []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc := Capture(r, names)
			if tc.Len() == 0 {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), tc)))
		})
	}
}
