// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package restclient is a JSON REST client for calls between services. Every
// call sends Accept: application/json, forwards the tracing headers found in
// its context without touching the shared client, runs under a retry policy
// and turns non-2xx responses into errors.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/propagation"

	"github.com/MKhiriev/go-miniservice/internal/logger"
	"github.com/MKhiriev/go-miniservice/internal/tracing"
)

const mediaTypeJSON = "application/json"

// Client is safe for concurrent use. Its default headers are fixed at
// construction.
type Client struct {
	rc         *resty.Client
	defaults   http.Header
	policy     RetryPolicy
	propagator propagation.TextMapPropagator
	observer   Observer
	log        *logger.Logger
}

// New builds a Client. Without WithRetryPolicy it uses DefaultRetryPolicy.
func New(opts ...Option) *Client {
	o := options{
		headers: make(http.Header),
		policy:  DefaultRetryPolicy(),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	var rc *resty.Client
	if o.httpClient != nil {
		rc = resty.NewWithClient(o.httpClient)
	} else {
		rc = resty.New()
	}
	if o.baseURL != "" {
		rc.SetBaseURL(normalizeBaseURL(o.baseURL))
	}
	if o.timeout > 0 {
		rc.SetTimeout(o.timeout)
	}
	// retries are driven by RetryPolicy, one resty execution per attempt
	rc.SetRetryCount(0)

	return &Client{
		rc:         rc,
		defaults:   o.headers.Clone(),
		policy:     o.policy,
		propagator: o.propagator,
		observer:   o.observer,
		log:        o.log.WithComponent("restclient"),
	}
}

// DefaultHeaders returns a copy of the headers sent on every call.
func (c *Client) DefaultHeaders() http.Header {
	return c.defaults.Clone()
}

// Get issues GET url and decodes the JSON body into T.
func Get[T any](ctx context.Context, c *Client, url string) (T, error) {
	return call[T](ctx, c, http.MethodGet, url, nil, false)
}

// Post sends payload as JSON to url and decodes the JSON body into T. A nil
// payload is sent as {}.
func Post[T any](ctx context.Context, c *Client, url string, payload any) (T, error) {
	return call[T](ctx, c, http.MethodPost, url, payload, true)
}

// Put sends payload as JSON to url and decodes the JSON body into T. A nil
// payload is sent as {}.
func Put[T any](ctx context.Context, c *Client, url string, payload any) (T, error) {
	return call[T](ctx, c, http.MethodPut, url, payload, true)
}

// Delete issues DELETE url and decodes a JSON boolean body. An empty 2xx body
// yields false.
func (c *Client) Delete(ctx context.Context, url string) (bool, error) {
	return call[bool](ctx, c, http.MethodDelete, url, nil, false)
}

func call[T any](ctx context.Context, c *Client, method, url string, payload any, withBody bool) (T, error) {
	var zero T

	var body []byte
	if withBody {
		var err error
		body, err = encodePayload(payload)
		if err != nil {
			return zero, fmt.Errorf("%s %s: %w", method, url, err)
		}
	}

	headers := c.requestHeaders(ctx)

	resp, err := c.execute(ctx, method, url, headers, body)
	if err != nil {
		return zero, err
	}

	raw := bytes.TrimSpace(resp.Body())
	if len(raw) == 0 {
		return zero, nil
	}

	var out T
	if err = json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("%s %s: %w: %w", method, url, ErrDecodeResponse, err)
	}

	return out, nil
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error encoding payload: %w", err)
	}
	if bytes.Equal(b, []byte("null")) {
		return []byte("{}"), nil
	}
	return b, nil
}

// requestHeaders builds the header set of a single call: client defaults
// first, then propagated and captured tracing pairs whose names are not yet
// present. Accept is always application/json.
func (c *Client) requestHeaders(ctx context.Context) http.Header {
	h := c.defaults.Clone()

	for _, pair := range c.tracingPairs(ctx) {
		name := http.CanonicalHeaderKey(pair.Name)
		if _, taken := h[name]; taken {
			continue
		}
		h.Set(name, pair.Value)
	}

	h.Set("Accept", mediaTypeJSON)

	return h
}

func (c *Client) tracingPairs(ctx context.Context) []tracing.Header {
	var pairs []tracing.Header

	if c.propagator != nil {
		carrier := propagation.HeaderCarrier(make(http.Header))
		c.propagator.Inject(ctx, carrier)
		keys := carrier.Keys()
		sort.Strings(keys)
		for _, k := range keys {
			pairs = append(pairs, tracing.Header{Name: k, Value: carrier.Get(k)})
		}
	}

	return append(pairs, tracing.FromContext(ctx).Headers()...)
}

func (c *Client) execute(ctx context.Context, method, url string, headers http.Header, body []byte) (*resty.Response, error) {
	log := c.log.With().Str("method", method).Str("url", url).Logger()

	for attempt := 1; ; attempt++ {
		req := c.rc.R().SetContext(ctx)
		for name, values := range headers {
			req.Header[name] = append([]string(nil), values...)
		}
		if body != nil {
			req.SetHeader("Content-Type", mediaTypeJSON)
			req.SetBody(body)
		}

		start := time.Now()
		resp, err := req.Execute(method, url)
		status := 0
		if err == nil {
			status = resp.StatusCode()
		}
		if c.observer != nil {
			c.observer.ObserveClientRequest(method, status, time.Since(start))
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", method, url, ctx.Err())
		}

		if !c.policy.shouldRetry(method, status, err, attempt) {
			if err != nil {
				return nil, fmt.Errorf("%s %s: request failed after %d attempt(s): %w", method, url, attempt, err)
			}
			if httpErr := mapHTTPError(resp, attempt); httpErr != nil {
				return nil, httpErr
			}
			return resp, nil
		}

		var retryAfter time.Duration
		if err == nil {
			retryAfter = parseRetryAfter(resp.Header().Get("Retry-After"))
		}
		wait := c.policy.wait(attempt, retryAfter)

		log.Debug().
			Int("attempt", attempt).
			Int("status", status).
			Err(err).
			Dur("wait", wait).
			Msg("retrying request")
		if c.observer != nil {
			c.observer.ObserveClientRetry(method)
		}

		if err = sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, url, err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func normalizeBaseURL(u string) string {
	u = strings.TrimRight(u, "/")
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return "http://" + u
}
