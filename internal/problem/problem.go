// Package problem renders RFC 7807 problem details and converts request
// model validation failures into them.
package problem

import (
	"encoding/json"
	"net/http"
)

// ContentType is the media type of problem detail payloads.
const ContentType = "application/problem+json"

// Details is an RFC 7807 problem details payload. Errors carries field-level
// validation messages keyed by JSON field path.
type Details struct {
	Type     string              `json:"type,omitempty"`
	Title    string              `json:"title"`
	Status   int                 `json:"status"`
	Detail   string              `json:"detail,omitempty"`
	Instance string              `json:"instance,omitempty"`
	Code     string              `json:"code,omitempty"`
	Errors   map[string][]string `json:"errors,omitempty"`
}

// New builds a problem for status with the standard status text as title.
func New(status int, detail string) Details {
	return Details{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}

// Write serialises p to w with the problem+json content type.
func Write(w http.ResponseWriter, p Details) error {
	if p.Status == 0 {
		p.Status = http.StatusInternalServerError
	}
	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}

	body, err := json.Marshal(p)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(p.Status)
	_, err = w.Write(body)

	return err
}
