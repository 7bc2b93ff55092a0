package restclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrUnsuccessfulStatus is wrapped by every *HTTPError.
	ErrUnsuccessfulStatus = errors.New("unsuccessful response status")

	ErrBadRequest          = errors.New("bad request")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrTooManyRequests     = errors.New("too many requests")
	ErrInternalServerError = errors.New("internal server error")
	ErrBadGateway          = errors.New("bad gateway")
	ErrServiceUnavailable  = errors.New("service unavailable")

	// ErrDecodeResponse is returned when a successful body is not valid JSON
	// for the requested type.
	ErrDecodeResponse = errors.New("error decoding response body")
)

var statusErrors = map[int]error{
	http.StatusBadRequest:          ErrBadRequest,
	http.StatusUnauthorized:        ErrUnauthorized,
	http.StatusForbidden:           ErrForbidden,
	http.StatusNotFound:            ErrNotFound,
	http.StatusConflict:            ErrConflict,
	http.StatusTooManyRequests:     ErrTooManyRequests,
	http.StatusInternalServerError: ErrInternalServerError,
	http.StatusBadGateway:          ErrBadGateway,
	http.StatusServiceUnavailable:  ErrServiceUnavailable,
}

// HTTPError describes a call that finished with a non-2xx status after the
// retry budget was spent.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Attempts   int
}

func (e *HTTPError) Error() string {
	body := e.Body
	if body == "" {
		body = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: http %d after %d attempt(s): %s", e.Method, e.URL, e.StatusCode, e.Attempts, body)
}

// Unwrap exposes ErrUnsuccessfulStatus and, when the status has one, the
// matching status sentinel.
func (e *HTTPError) Unwrap() []error {
	errs := []error{ErrUnsuccessfulStatus}
	if sentinel, ok := statusErrors[e.StatusCode]; ok {
		errs = append(errs, sentinel)
	}
	return errs
}

func mapHTTPError(resp *resty.Response, attempts int) error {
	if resp.IsSuccess() {
		return nil
	}

	return &HTTPError{
		Method:     resp.Request.Method,
		URL:        resp.Request.URL,
		StatusCode: resp.StatusCode(),
		Body:       strings.TrimSpace(string(resp.Body())),
		Attempts:   attempts,
	}
}
