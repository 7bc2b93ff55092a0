package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-miniservice/internal/compose"
	"github.com/MKhiriev/go-miniservice/internal/config"
	"github.com/MKhiriev/go-miniservice/internal/eventbus"
	"github.com/MKhiriev/go-miniservice/internal/feature"
	handler "github.com/MKhiriev/go-miniservice/internal/handler/http"
	"github.com/MKhiriev/go-miniservice/internal/journal"
	"github.com/MKhiriev/go-miniservice/internal/logger"
	"github.com/MKhiriev/go-miniservice/internal/metrics"
	"github.com/MKhiriev/go-miniservice/internal/module"
	"github.com/MKhiriev/go-miniservice/internal/registry"
	"github.com/MKhiriev/go-miniservice/internal/server"
	"github.com/MKhiriev/go-miniservice/internal/telemetry"
	"github.com/MKhiriev/go-miniservice/internal/workers"
)

const closeTimeout = 5 * time.Second

// hostModules are the modules compiled into this binary.
func hostModules() []module.Module {
	return []module.Module{module.NewStatus()}
}

func newServeCommand(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Compose the service and serve HTTP until stopped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), flags)
		},
	}
}

func serve(ctx context.Context, flags *config.Flags) error {
	cfg, err := config.GetStructuredConfig(flags)
	if err != nil {
		return fmt.Errorf("error getting configs: %w", err)
	}

	log := logger.NewLogger(cfg.App.Name, cfg.App.LogLevel, cfg.App.IsDevelopment())
	log.Debug().Any("config", cfg.Redacted()).Msg("received configs")

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.App)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := shutdownTelemetry(closeCtx); err != nil {
			log.Err(err).Msg("error flushing traces")
		}
	}()

	m := metrics.New()
	h := newHost(cfg, log)
	engine := compose.NewEngine(*cfg, log,
		compose.WithModules(hostModules()...),
		compose.WithMetrics(m),
	)

	reg, err := engine.Compose(ctx, feature.NewSet(cfg.Features), h.preHook, h.postHook)
	if err != nil {
		h.closeDB()
		return fmt.Errorf("composition failed: %w", err)
	}
	defer closeProviders(reg, log)

	pipeline, err := handler.NewHandler(reg, m, log).Init()
	if err != nil {
		return err
	}
	srv, err := server.NewServer(pipeline, cfg.Server, log)
	if err != nil {
		return err
	}

	httpWorker := workers.Func("http", srv.RunServer)
	ws := workers.New(log)
	bus, ok := registry.Resolve[*eventbus.Bus](reg, registry.EventBus)
	if h.db != nil && ok {
		j, err := journal.New(h.db, journal.DefaultBuffer, log)
		if err != nil {
			return err
		}
		detach := j.Attach(bus, module.EchoedTopic)
		defer detach()
		// events published by requests still draining are recorded
		for _, w := range workers.DrainAfter(httpWorker, j) {
			ws.Add(w)
		}
	} else {
		ws.Add(httpWorker)
	}

	return ws.Run(ctx)
}
