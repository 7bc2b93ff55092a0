package http

import (
	"github.com/MKhiriev/go-miniservice/internal/logger"
	"github.com/MKhiriev/go-miniservice/internal/metrics"
	"github.com/MKhiriev/go-miniservice/internal/registry"
)

// OperationName names the server span of every inbound request.
const OperationName = "miniservice.http"

type Handler struct {
	registry *registry.Registry
	// metrics is nil when the host does not collect metrics.
	metrics *metrics.Metrics

	logger *logger.Logger
}

func NewHandler(reg *registry.Registry, m *metrics.Metrics, logger *logger.Logger) *Handler {
	logger.Info().Msg("http handler created")
	return &Handler{
		registry: reg,
		metrics:  m,
		logger:   logger,
	}
}
