// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"net/http"

	"github.com/MKhiriev/go-miniservice/internal/problem"
)

// CheckHTTPMethod is registered as both the NotFound and the
// MethodNotAllowed handler of the router.
//
// Chi answers 405 when a path matches a route but the method does not. The
// pipeline answers 404 instead, so callers using an unsupported method
// cannot tell the route exists. Both cases are rendered as problem details.
//
// Usage:
//
//	router := chi.NewRouter()
//	router.NotFound(CheckHTTPMethod)
//	router.MethodNotAllowed(CheckHTTPMethod)
func CheckHTTPMethod(w http.ResponseWriter, r *http.Request) {
	p := problem.New(http.StatusNotFound, "no resource matches "+r.Method+" "+r.URL.Path)
	p.Instance = r.URL.Path
	_ = problem.Write(w, p)
}
