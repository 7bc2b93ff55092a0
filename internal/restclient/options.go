package restclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/propagation"

	"github.com/MKhiriev/go-miniservice/internal/logger"
)

// Observer receives per-attempt measurements. *metrics.Metrics implements it.
type Observer interface {
	ObserveClientRequest(method string, statusCode int, elapsed time.Duration)
	ObserveClientRetry(method string)
}

type options struct {
	baseURL    string
	timeout    time.Duration
	headers    http.Header
	policy     RetryPolicy
	propagator propagation.TextMapPropagator
	observer   Observer
	log        *logger.Logger
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*options)

// WithBaseURL resolves relative request URLs against baseURL.
func WithBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = baseURL }
}

// WithTimeout bounds each attempt. Zero leaves attempts unbounded.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithDefaultHeader adds a header sent on every call. Default headers win
// over per-call tracing headers of the same name.
func WithDefaultHeader(name, value string) Option {
	return func(o *options) { o.headers.Add(name, value) }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithPropagator injects the span context of each call's context using p.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(o *options) { o.propagator = p }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithHTTPClient replaces the underlying *http.Client, e.g. with one whose
// transport is instrumented.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}
