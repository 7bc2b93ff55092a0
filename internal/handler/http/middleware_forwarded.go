package http

import (
	"net/http"
	"strings"
)

const forwardedProtoHeader = "X-Forwarded-Proto"

// withForwardedProto takes the scheme of the request from the first value of
// X-Forwarded-Proto set by a reverse proxy.
func withForwardedProto(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if proto := r.Header.Get(forwardedProtoHeader); proto != "" {
			proto, _, _ = strings.Cut(proto, ",")
			proto = strings.ToLower(strings.TrimSpace(proto))
			if proto == "http" || proto == "https" {
				r.URL.Scheme = proto
			}
		}
		next.ServeHTTP(w, r)
	})
}
