package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_ImmutableWith(t *testing.T) {
	base := NewContext(Header{Name: "x-request-id", Value: "a"})
	next := base.With("traceparent", "00-abc")

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, next.Len())

	hs := next.Headers()
	hs[0].Value = "mutated"
	v, ok := next.Get("X-Request-Id")
	require.True(t, ok)
	assert.Equal(t, "a", v)
}

func TestNewContext_DropsEmptyNames(t *testing.T) {
	tc := NewContext(Header{Name: " ", Value: "x"}, Header{Name: "a", Value: "1"})
	assert.Equal(t, []Header{{Name: "a", Value: "1"}}, tc.Headers())
}

func TestFromContext_Empty(t *testing.T) {
	assert.Equal(t, 0, FromContext(context.Background()).Len())
}

func TestCapture_OrderFollowsNames(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("traceparent", "00-1-2-01")
	r.Header.Set("x-request-id", "req-1")
	r.Header.Set("x-unrelated", "skip")

	tc := Capture(r, nil)
	assert.Equal(t, []Header{
		{Name: "X-Request-Id", Value: "req-1"},
		{Name: "Traceparent", Value: "00-1-2-01"},
	}, tc.Headers())
}

func TestMiddleware_AttachesContext(t *testing.T) {
	var got Context
	h := Middleware([]string{"x-correlation-id"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Add("X-Correlation-Id", "c1")
	r.Header.Add("X-Correlation-Id", "c2")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, 2, got.Len())
	v, _ := got.Get("x-correlation-id")
	assert.Equal(t, "c1", v)
}
