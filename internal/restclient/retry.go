package restclient

import (
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// BackoffStrategy selects how the wait between attempts grows.
type BackoffStrategy int

const (
	// ExponentialJitter doubles the wait each attempt and randomises it by
	// up to Jitter of its value.
	ExponentialJitter BackoffStrategy = iota
	// Exponential doubles the wait each attempt.
	Exponential
	// Constant waits InitialWait between every attempt.
	Constant
)

// ParseBackoff maps "constant", "exponential" and "exponential-jitter" to a
// strategy. Matching ignores case.
func ParseBackoff(s string) (BackoffStrategy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "constant":
		return Constant, true
	case "exponential":
		return Exponential, true
	case "exponential-jitter", "":
		return ExponentialJitter, true
	default:
		return ExponentialJitter, false
	}
}

// RetryPolicy decides whether and when a failed attempt is repeated. A
// policy is a value: it is configured once per client and never changes
// while calls are in flight, so concurrent calls share it safely.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, the first included.
	// Values below 1 mean a single attempt.
	MaxAttempts int

	Backoff     BackoffStrategy
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
	Jitter      float64

	// RetryNonIdempotent also retries POST and PATCH.
	RetryNonIdempotent bool
}

// DefaultRetryPolicy makes three attempts with exponential backoff starting
// at 200ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     ExponentialJitter,
		InitialWait: 200 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2,
		Jitter:      0.2,
	}
}

// NoRetry makes exactly one attempt.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// shouldRetry reports whether attempt (1-based) may be followed by another.
// status is zero when the attempt failed before a response arrived.
func (p RetryPolicy) shouldRetry(method string, status int, err error, attempt int) bool {
	if attempt >= p.attempts() {
		return false
	}
	if !p.RetryNonIdempotent && !isIdempotent(method) {
		return false
	}
	if err != nil {
		return true
	}

	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// wait returns the pause after attempt (1-based). A positive retryAfter from
// the server takes precedence, capped by MaxWait.
func (p RetryPolicy) wait(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return p.capped(retryAfter)
	}
	if p.InitialWait <= 0 {
		return 0
	}

	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 2
	}

	var d time.Duration
	switch p.Backoff {
	case Constant:
		d = p.InitialWait
	case Exponential, ExponentialJitter:
		exp := math.Pow(multiplier, float64(attempt-1))
		d = time.Duration(float64(p.InitialWait) * exp)
		if d <= 0 {
			d = math.MaxInt64
		}
	}

	if p.Backoff == ExponentialJitter && p.Jitter > 0 {
		spread := float64(d) * p.Jitter
		d = time.Duration(float64(d) - spread + rand.Float64()*2*spread)
	}

	return p.capped(d)
}

func (p RetryPolicy) capped(d time.Duration) time.Duration {
	if p.MaxWait > 0 && d > p.MaxWait {
		return p.MaxWait
	}
	if d < 0 {
		return 0
	}
	return d
}

func isIdempotent(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}

// parseRetryAfter reads a Retry-After header in delay-seconds or HTTP-date
// form. Anything else yields zero.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
