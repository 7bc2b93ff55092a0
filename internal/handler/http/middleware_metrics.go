package http

import (
	"net/http"
	"time"
)

func (h *Handler) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done := h.metrics.InFlight()
		defer done()

		start := time.Now()
		mw := &responseWriter{ResponseWriter: w}
		next.ServeHTTP(mw, r)

		h.metrics.ObserveHTTPRequest(r.Method, routePattern(r), mw.statusOrOK(), time.Since(start))
	})
}
