package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// withLowercaseURLs routes a request by its lower-cased path when the path
// as sent matches no route. Route patterns are registered in lower case.
func withLowercaseURLs(router *chi.Mux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		lower := strings.ToLower(path)
		if lower != path &&
			!router.Match(chi.NewRouteContext(), r.Method, path) &&
			router.Match(chi.NewRouteContext(), r.Method, lower) {
			r.URL.Path = lower
			r.URL.RawPath = ""
		}
		router.ServeHTTP(w, r)
	})
}
