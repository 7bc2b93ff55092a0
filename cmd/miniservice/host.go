package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/MKhiriev/go-miniservice/internal/config"
	"github.com/MKhiriev/go-miniservice/internal/feature"
	"github.com/MKhiriev/go-miniservice/internal/health"
	"github.com/MKhiriev/go-miniservice/internal/logger"
	"github.com/MKhiriev/go-miniservice/internal/persistence"
	"github.com/MKhiriev/go-miniservice/internal/registry"
	"github.com/MKhiriev/go-miniservice/migrations"
)

// host carries the state the composition hooks share with serve.
type host struct {
	cfg *config.StructuredConfig
	log *logger.Logger

	// db is the relational provider opened by the pre-hook, nil unless
	// EfCore is enabled.
	db *persistence.DB
}

func newHost(cfg *config.StructuredConfig, log *logger.Logger) *host {
	return &host{cfg: cfg, log: log}
}

// preHook opens and migrates the relational store when EfCore is enabled
// and Mongo is not. With both enabled the persistence step rejects the
// combination, so nothing is opened here.
func (h *host) preHook(ctx context.Context, reg *registry.Registry) error {
	features := feature.NewSet(h.cfg.Features)
	if !features.IsEnabled(feature.EfCore) || features.IsEnabled(feature.Mongo) {
		return nil
	}

	db, err := persistence.Open(ctx, h.cfg.Storage.DB, h.log)
	if err != nil {
		return fmt.Errorf("error opening relational store: %w", err)
	}
	h.db = db

	if err = db.Migrate(ctx, h.migrationsFS()); err != nil {
		return err
	}

	if err = reg.Bind(registry.Persistence, db); err != nil {
		return err
	}
	return reg.Bind(registry.RelationalStorage, db)
}

func (h *host) migrationsFS() fs.FS {
	if dir := h.cfg.Storage.DB.MigrationsDir; dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS()
}

// postHook turns every bound persistence provider into a health check.
func (h *host) postHook(_ context.Context, reg *registry.Registry) error {
	for _, p := range registry.ResolveAll[persistence.Provider](reg, registry.Persistence) {
		checker, err := health.NewProviderChecker(p)
		if err != nil {
			return err
		}
		if err = reg.Bind(registry.HealthChecks, checker); err != nil {
			return err
		}
	}
	return nil
}

func (h *host) closeDB() {
	if h.db == nil {
		return
	}
	if err := h.db.Close(context.Background()); err != nil {
		h.log.Err(err).Msg("error closing relational store")
	}
}

func closeProviders(reg *registry.Registry, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	for _, p := range registry.ResolveAll[persistence.Provider](reg, registry.Persistence) {
		if err := p.Close(ctx); err != nil {
			log.Err(err).Str("provider", p.Name()).Msg("error closing provider")
		}
	}
}
