// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package module

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MKhiriev/go-miniservice/internal/config"
	"github.com/MKhiriev/go-miniservice/internal/eventbus"
	"github.com/MKhiriev/go-miniservice/internal/feature"
	"github.com/MKhiriev/go-miniservice/internal/logger"
	"github.com/MKhiriev/go-miniservice/internal/openapi"
	"github.com/MKhiriev/go-miniservice/internal/registry"
	"github.com/MKhiriev/go-miniservice/internal/versioning"
)

const (
	StatusPattern = "/api/v{version}/status"
	EchoPattern   = "/api/v{version}/echo"

	// EchoPolicy guards the echo endpoint when authentication is on.
	EchoPolicy = "echo"

	// EchoedTopic is published on the event bus for every echoed message.
	EchoedTopic = "status.echoed"

	statusMaxAge = "public, max-age=30"
)

// StatusInfo is served by the status endpoint.
type StatusInfo struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Environment string   `json:"environment"`
	APIVersion  string   `json:"apiVersion,omitempty"`
	Features    []string `json:"features"`
	StartedAt   string   `json:"startedAt"`
}

type EchoRequest struct {
	Message string `json:"message" validate:"required,max=256"`
	Repeat  int    `json:"repeat" validate:"gte=0,lte=10"`
}

type EchoResponse struct {
	ID       string   `json:"id"`
	Messages []string `json:"messages"`
}

// Status is the built-in module reporting service identity and echoing
// validated payloads.
type Status struct {
	startedAt time.Time
	info      StatusInfo
}

func NewStatus() *Status {
	return &Status{startedAt: time.Now().UTC()}
}

func (s *Status) Name() string { return "status" }

// RegisterServices captures the service identity and binds the module under
// the clean-arch capability.
func (s *Status) RegisterServices(reg *registry.Registry, cfg config.StructuredConfig) error {
	s.info = StatusInfo{
		Name:        cfg.App.Name,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
		APIVersion:  cfg.APIVersion,
		Features:    feature.NewSet(cfg.Features).Enabled(),
		StartedAt:   s.startedAt.Format(time.RFC3339),
	}
	return reg.Bind(registry.CleanArch, s)
}

func (s *Status) Policies() map[string]string {
	return map[string]string{EchoPolicy: EchoPolicy}
}

func (s *Status) APIVersions() []versioning.APIVersion {
	return []versioning.APIVersion{{Major: 1}}
}

func (s *Status) RegisterRoutes(r chi.Router, env RouteEnv) {
	r.Get(StatusPattern, s.status)
	r.With(env.Require(EchoPolicy)).Post(EchoPattern, s.echo(env))
}

func (s *Status) Endpoints() []Endpoint {
	return []Endpoint{
		{
			Method:  http.MethodGet,
			Pattern: StatusPattern,
			Operation: openapi.Operation{
				OperationID: "getStatus",
				Summary:     "Service identity and enabled features",
				Tags:        []string{"status"},
				Responses: map[string]openapi.Response{
					"200": jsonResponse("Service status", openapi.Schema{"type": "object"}),
				},
			},
		},
		{
			Method:  http.MethodPost,
			Pattern: EchoPattern,
			Operation: openapi.Operation{
				OperationID: "echo",
				Summary:     "Echo a validated message",
				Tags:        []string{"status"},
				RequestBody: &openapi.RequestBody{
					Required: true,
					Content: map[string]openapi.MediaType{
						"application/json": {Schema: openapi.Schema{"type": "object"}},
					},
				},
				Responses: map[string]openapi.Response{
					"200": jsonResponse("Echoed messages", openapi.Schema{"type": "object"}),
					"400": {Description: "Validation problem"},
				},
			},
		},
	}
}

func jsonResponse(description string, schema openapi.Schema) openapi.Response {
	return openapi.Response{
		Description: description,
		Content:     map[string]openapi.MediaType{"application/json": {Schema: schema}},
	}
}

func (s *Status) status(w http.ResponseWriter, r *http.Request) {
	info := s.info
	if v, ok := versioning.FromContext(r.Context()); ok {
		info.APIVersion = v.String()
	}

	w.Header().Set("Cache-Control", statusMaxAge)
	writeJSON(w, r, http.StatusOK, info)
}

func (s *Status) echo(env RouteEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EchoRequest
		if !env.Problems.Bind(w, r, &req) {
			return
		}

		repeat := max(req.Repeat, 1)
		resp := EchoResponse{ID: uuid.NewString(), Messages: make([]string, 0, repeat)}
		for range repeat {
			resp.Messages = append(resp.Messages, req.Message)
		}

		if bus, ok := registry.Resolve[*eventbus.Bus](env.Registry, registry.EventBus); ok {
			err := bus.Publish(r.Context(), eventbus.Event{
				Topic:     EchoedTopic,
				Timestamp: time.Now().UTC(),
				Data:      resp,
			})
			if err != nil {
				logger.FromRequest(r).Err(err).Str("topic", EchoedTopic).Msg("event handlers failed")
			}
		}

		writeJSON(w, r, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromRequest(r).Err(err).Msg("encode response")
	}
}
