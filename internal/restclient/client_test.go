package restclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/MKhiriev/go-miniservice/internal/tracing"
)

type item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, Backoff: Constant, InitialWait: time.Millisecond}
}

// ── typed calls ──────────────────────────────────────────────────────────────

func TestGet_DecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/items/7", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":7,"name":"seven"}`)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	got, err := Get[item](context.Background(), c, "/items/7")

	require.NoError(t, err)
	assert.Equal(t, item{ID: 7, Name: "seven"}, got)
}

func TestGet_EmptySuccessBodyYieldsZeroValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))

	got, err := Get[item](context.Background(), c, "/items/1")
	require.NoError(t, err)
	assert.Equal(t, item{}, got)

	ptr, err := Get[*item](context.Background(), c, "/items/1")
	require.NoError(t, err)
	assert.Nil(t, ptr)
}

func TestGet_InvalidJSONIsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":`)
	}))
	defer srv.Close()

	_, err := Get[item](context.Background(), New(WithBaseURL(srv.URL)), "/x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecodeResponse)
}

func TestPost_SendsJSONPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    string
	}{
		{name: "struct payload", payload: item{ID: 1, Name: "a"}, want: `{"id":1,"name":"a"}`},
		{name: "nil payload", payload: nil, want: `{}`},
		{name: "typed nil pointer", payload: (*item)(nil), want: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				assert.JSONEq(t, tt.want, string(body))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				_, _ = io.WriteString(w, `{"id":2,"name":"created"}`)
			}))
			defer srv.Close()

			got, err := Post[item](context.Background(), New(WithBaseURL(srv.URL)), "/items", tt.payload)
			require.NoError(t, err)
			assert.Equal(t, 2, got.ID)
		})
	}
}

func TestPut_UsesPutMethod(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		_, _ = io.WriteString(w, `{"id":3,"name":"updated"}`)
	}))
	defer srv.Close()

	got, err := Put[item](context.Background(), New(WithBaseURL(srv.URL)), "/items/3", item{ID: 3, Name: "updated"})
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Name)
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{name: "true body", status: http.StatusOK, body: `true`, want: true},
		{name: "false body", status: http.StatusOK, body: `false`, want: false},
		{name: "empty body", status: http.StatusOK, body: ``, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			got, err := New(WithBaseURL(srv.URL)).Delete(context.Background(), "/items/1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ── errors ───────────────────────────────────────────────────────────────────

func TestNonSuccessStatusIsError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{name: "404", status: http.StatusNotFound, sentinel: ErrNotFound},
		{name: "401", status: http.StatusUnauthorized, sentinel: ErrUnauthorized},
		{name: "409", status: http.StatusConflict, sentinel: ErrConflict},
		{name: "418 has no sentinel", status: http.StatusTeapot, sentinel: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, "nope")
			}))
			defer srv.Close()

			_, err := Get[item](context.Background(), New(WithBaseURL(srv.URL)), "/x")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsuccessfulStatus)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}

			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, "nope", httpErr.Body)
		})
	}
}

func TestDelete_NonSuccessIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	ok, err := New(WithBaseURL(srv.URL)).Delete(context.Background(), "/items/1")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrForbidden)
}

// ── headers ──────────────────────────────────────────────────────────────────

func TestAcceptIsAlwaysJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"application/json"}, r.Header.Values("Accept"))
		_, _ = io.WriteString(w, `true`)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithDefaultHeader("Accept", "text/xml"))
	_, err := Get[bool](context.Background(), c, "/x")
	require.NoError(t, err)
}

func TestTracingHeadersDoNotLeakBetweenCalls(t *testing.T) {
	var mu sync.Mutex
	var seen []http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Clone())
		mu.Unlock()
		_, _ = io.WriteString(w, `true`)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithDefaultHeader("x-request-id", "client-default"))

	first := tracing.WithContext(context.Background(), tracing.NewContext(
		tracing.Header{Name: "x-request-id", Value: "r1"},
		tracing.Header{Name: "x-b3-traceid", Value: "t1"},
	))
	second := tracing.WithContext(context.Background(), tracing.NewContext(
		tracing.Header{Name: "x-b3-spanid", Value: "s2"},
	))

	_, err := Get[bool](first, c, "/one")
	require.NoError(t, err)
	_, err = Get[bool](second, c, "/two")
	require.NoError(t, err)

	require.Len(t, seen, 2)

	assert.Equal(t, "client-default", seen[0].Get("X-Request-Id"))
	assert.Equal(t, "t1", seen[0].Get("X-B3-Traceid"))
	assert.Empty(t, seen[0].Get("X-B3-Spanid"))

	assert.Equal(t, "client-default", seen[1].Get("X-Request-Id"))
	assert.Empty(t, seen[1].Get("X-B3-Traceid"), "header from the previous call leaked")
	assert.Equal(t, "s2", seen[1].Get("X-B3-Spanid"))

	assert.Equal(t, []string{"client-default"}, c.DefaultHeaders().Values("X-Request-Id"))
	assert.Empty(t, c.DefaultHeaders().Get("X-B3-Traceid"))
}

func TestTracingPairs_FirstOccurrenceWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"first"}, r.Header.Values("X-Request-Id"))
		_, _ = io.WriteString(w, `true`)
	}))
	defer srv.Close()

	ctx := tracing.WithContext(context.Background(), tracing.NewContext(
		tracing.Header{Name: "x-request-id", Value: "first"},
		tracing.Header{Name: "X-Request-ID", Value: "second"},
	))

	_, err := Get[bool](ctx, New(WithBaseURL(srv.URL)), "/x")
	require.NoError(t, err)
}

func TestPropagatorInjectsSpanContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("traceparent"))
		_, _ = io.WriteString(w, `true`)
	}))
	defer srv.Close()

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "call")
	defer span.End()

	c := New(WithBaseURL(srv.URL), WithPropagator(propagation.TraceContext{}))
	_, err := Get[bool](ctx, c, "/x")
	require.NoError(t, err)
}

// ── retries ──────────────────────────────────────────────────────────────────

type countingObserver struct {
	requests atomic.Int32
	retries  atomic.Int32
}

func (o *countingObserver) ObserveClientRequest(string, int, time.Duration) { o.requests.Add(1) }
func (o *countingObserver) ObserveClientRetry(string)                       { o.retries.Add(1) }

func TestRetry_RecoversFromServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"id":1,"name":"ok"}`)
	}))
	defer srv.Close()

	obs := &countingObserver{}
	c := New(WithBaseURL(srv.URL), WithRetryPolicy(fastRetry(3)), WithObserver(obs))

	got, err := Get[item](context.Background(), c, "/x")
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Name)
	assert.EqualValues(t, 3, calls.Load())
	assert.EqualValues(t, 3, obs.requests.Load())
	assert.EqualValues(t, 2, obs.retries.Load())
}

func TestRetry_BudgetExhaustedReturnsHTTPError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithRetryPolicy(fastRetry(2)))
	_, err := Get[item](context.Background(), c, "/x")

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 2, httpErr.Attempts)
	assert.ErrorIs(t, err, ErrBadGateway)
	assert.EqualValues(t, 2, calls.Load())
}

func TestRetry_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := Get[item](context.Background(), New(WithBaseURL(srv.URL), WithRetryPolicy(fastRetry(5))), "/x")
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRetry_PostOnlyWhenAllowed(t *testing.T) {
	tests := []struct {
		name      string
		allow     bool
		wantCalls int32
	}{
		{name: "not retried by default", allow: false, wantCalls: 1},
		{name: "retried when allowed", allow: true, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				body, _ := io.ReadAll(r.Body)
				assert.JSONEq(t, `{"id":1,"name":"a"}`, string(body))
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer srv.Close()

			policy := fastRetry(3)
			policy.RetryNonIdempotent = tt.allow
			_, err := Post[item](context.Background(), New(WithBaseURL(srv.URL), WithRetryPolicy(policy)), "/x", item{ID: 1, Name: "a"})
			assert.ErrorIs(t, err, ErrInternalServerError)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestRetry_HonoursRetryAfter(t *testing.T) {
	var calls atomic.Int32
	var firstAt, secondAt time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			firstAt = time.Now()
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		secondAt = time.Now()
		_, _ = io.WriteString(w, `true`)
	}))
	defer srv.Close()

	policy := RetryPolicy{MaxAttempts: 2, Backoff: Constant, InitialWait: time.Millisecond, MaxWait: 5 * time.Second}
	ok, err := Get[bool](context.Background(), New(WithBaseURL(srv.URL), WithRetryPolicy(policy)), "/x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, secondAt.Sub(firstAt), 900*time.Millisecond)
}

func TestRetry_ContextCancelStopsWaiting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	policy := RetryPolicy{MaxAttempts: 10, Backoff: Constant, InitialWait: time.Minute}
	start := time.Now()
	_, err := Get[item](ctx, New(WithBaseURL(srv.URL), WithRetryPolicy(policy)), "/x")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestTransportErrorIsRetriedThenReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	obs := &countingObserver{}
	_, err := Get[item](context.Background(), New(WithBaseURL(url), WithRetryPolicy(fastRetry(2)), WithObserver(obs)), "/x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsuccessfulStatus)
	assert.EqualValues(t, 2, obs.requests.Load())
}

// ── concurrency ──────────────────────────────────────────────────────────────

func TestConcurrentCallsKeepTheirOwnHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// echo the request id back so each caller can check its own
		_, _ = io.WriteString(w, `"`+r.Header.Get("X-Request-Id")+`"`)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "req-" + string(rune('a'+i%26)) + time.Duration(i).String()
			ctx := tracing.WithContext(context.Background(), tracing.NewContext(tracing.Header{Name: "x-request-id", Value: id}))
			got, err := Get[string](ctx, c, "/echo")
			if err != nil {
				errs <- err
				return
			}
			if got != id {
				errs <- errors.New("got " + got + ", want " + id)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Empty(t, c.DefaultHeaders())
}

func TestNormalizeBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080", normalizeBaseURL("localhost:8080/"))
	assert.Equal(t, "https://peer", normalizeBaseURL("https://peer"))
}
