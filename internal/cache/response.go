package cache

import (
	"bytes"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ResponsePolicy bounds what the response cache stores.
type ResponsePolicy struct {
	// MaxBodySize skips responses larger than this many bytes. Zero means
	// 1 MiB.
	MaxBodySize int
}

type cachedResponse struct {
	status   int
	header   http.Header
	body     []byte
	storedAt time.Time
}

// ResponseCaching caches GET and HEAD responses with status 200 whose handler
// set Cache-Control: public, max-age=N for some N > 0. Entries are keyed by
// method, URL, Accept, api-version and every request header named in the
// response's Vary, and served with an Age header. Requests carrying
// Authorization or Cache-Control: no-cache always reach the handler.
func ResponseCaching(c *Cache, policy ResponsePolicy) func(http.Handler) http.Handler {
	maxBody := policy.MaxBodySize
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cacheableRequest(r) {
				next.ServeHTTP(w, r)
				return
			}

			base := r.Method + " " + r.URL.String()
			var vary []string
			if v, ok := c.Get(varyPrefix + base); ok {
				vary = v.([]string)
			}
			if v, ok := c.Get(responseKey(base, r, vary)); ok {
				serveCached(w, r, v.(*cachedResponse))
				return
			}

			outer := w.Header().Clone()
			rec := &recorder{ResponseWriter: w, status: http.StatusOK, limit: maxBody}
			next.ServeHTTP(rec, r)

			if rec.status != http.StatusOK || rec.overflow {
				return
			}
			maxAge, ok := publicMaxAge(rec.header.Get("Cache-Control"))
			if !ok {
				return
			}
			vary, ok = varyNames(rec.header)
			if !ok {
				return
			}

			c.SetWithTTL(varyPrefix+base, vary, maxAge)
			c.SetWithTTL(responseKey(base, r, vary), &cachedResponse{
				status:   rec.status,
				header:   handlerHeaders(outer, rec.header),
				body:     rec.buf.Bytes(),
				storedAt: time.Now(),
			}, maxAge)
		})
	}
}

// handlerHeaders drops the headers that were already present before the
// handler ran, so per-request values set by outer middlewares are not replayed.
func handlerHeaders(outer, written http.Header) http.Header {
	out := make(http.Header, len(written))
	for k, v := range written {
		if prev, ok := outer[k]; ok && slices.Equal(prev, v) {
			continue
		}
		out[k] = append([]string(nil), v...)
	}
	return out
}

func cacheableRequest(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	if r.Header.Get("Authorization") != "" {
		return false
	}
	for _, directive := range splitDirectives(r.Header.Get("Cache-Control")) {
		if directive == "no-cache" || directive == "no-store" {
			return false
		}
	}
	return true
}

const varyPrefix = "vary "

// keyHeaders always take part in the response key.
var keyHeaders = []string{"Accept", "Api-Version"}

func responseKey(base string, r *http.Request, vary []string) string {
	var b strings.Builder
	b.WriteString(base)
	for _, name := range append(slices.Clone(keyHeaders), vary...) {
		b.WriteString("\x00")
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strings.Join(r.Header.Values(name), ","))
	}
	return b.String()
}

// varyNames returns the canonical request header names listed in Vary.
// Vary: * makes the response uncacheable.
func varyNames(h http.Header) ([]string, bool) {
	var names []string
	for _, v := range h.Values("Vary") {
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			switch {
			case name == "":
				continue
			case name == "*":
				return nil, false
			}
			name = http.CanonicalHeaderKey(name)
			if !slices.Contains(keyHeaders, name) && !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	return names, true
}

func serveCached(w http.ResponseWriter, r *http.Request, cr *cachedResponse) {
	h := w.Header()
	for k, v := range cr.header {
		h[k] = append([]string(nil), v...)
	}
	h.Set("Age", strconv.Itoa(int(time.Since(cr.storedAt).Seconds())))
	w.WriteHeader(cr.status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(cr.body)
	}
}

// publicMaxAge returns max-age when the header marks the response public and
// has no private or no-store directive.
func publicMaxAge(header string) (time.Duration, bool) {
	var public bool
	var maxAge int
	for _, directive := range splitDirectives(header) {
		switch {
		case directive == "public":
			public = true
		case directive == "private", directive == "no-store", directive == "no-cache":
			return 0, false
		case strings.HasPrefix(directive, "max-age="):
			n, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age="))
			if err != nil {
				return 0, false
			}
			maxAge = n
		}
	}
	if !public || maxAge <= 0 {
		return 0, false
	}
	return time.Duration(maxAge) * time.Second, true
}

func splitDirectives(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// recorder tees the response into a buffer while writing it through. header
// is the snapshot taken when the status was written, before any outer writer
// adds its own encoding headers.
type recorder struct {
	http.ResponseWriter
	header      http.Header
	status      int
	wroteHeader bool
	buf         bytes.Buffer
	limit       int
	overflow    bool
}

func (r *recorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = code
	r.header = r.Header().Clone()
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	if !r.overflow {
		if r.buf.Len()+len(b) > r.limit {
			r.overflow = true
			r.buf.Reset()
		} else {
			r.buf.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}

func (r *recorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
