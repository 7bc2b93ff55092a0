// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig mirrors StructuredConfig with the environment variable names of
// every field. Map values use "key=value" pairs separated by commas, e.g.
// FEATURES="Mongo=true,OpenApi:Profiler=false".
type envConfig struct {
	App struct {
		Name        string `env:"NAME"`
		Environment string `env:"ENVIRONMENT"`
		Version     string `env:"VERSION"`
		LogLevel    string `env:"LOG_LEVEL"`
	} `envPrefix:"APP_"`

	Server struct {
		Address         string        `env:"ADDRESS"`
		ReadTimeout     time.Duration `env:"READ_TIMEOUT"`
		WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"`
		IdleTimeout     time.Duration `env:"IDLE_TIMEOUT"`
		RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT"`
		ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
	} `envPrefix:"SERVER_"`

	Features map[string]bool `env:"FEATURES" envKeyValSeparator:"="`

	APIVersion string `env:"API_VERSION"`

	Auth struct {
		Authority         string            `env:"AUTHORITY"`
		ExternalAuthority string            `env:"EXTERNAL_AUTHORITY"`
		Audience          string            `env:"AUDIENCE"`
		SignKey           string            `env:"SIGN_KEY"`
		Claims            map[string]string `env:"CLAIMS" envKeyValSeparator:"="`
		Scopes            map[string]string `env:"SCOPES" envKeyValSeparator:"="`
	} `envPrefix:"AUTH_"`

	OpenAPI struct {
		Enabled        bool   `env:"ENABLED"`
		Title          string `env:"TITLE"`
		Description    string `env:"DESCRIPTION"`
		ContactName    string `env:"CONTACT_NAME"`
		ContactEmail   string `env:"CONTACT_EMAIL"`
		TermsOfService string `env:"TERMS_OF_SERVICE"`
		LicenseName    string `env:"LICENSE_NAME"`
		LicenseURL     string `env:"LICENSE_URL"`
	} `envPrefix:"OPENAPI_"`

	Storage struct {
		DB struct {
			Driver        string `env:"DRIVER"`
			DSN           string `env:"DATABASE_URI"`
			MigrationsDir string `env:"MIGRATIONS_DIR"`
		} `envPrefix:"DB_"`
		Mongo struct {
			URI      string `env:"URI"`
			Database string `env:"DATABASE"`
		} `envPrefix:"MONGO_"`
	} `envPrefix:"STORAGE_"`

	Client struct {
		Timeout     time.Duration     `env:"TIMEOUT"`
		MaxAttempts int               `env:"MAX_ATTEMPTS"`
		Backoff     string            `env:"BACKOFF"`
		InitialWait time.Duration     `env:"INITIAL_WAIT"`
		MaxWait     time.Duration     `env:"MAX_WAIT"`
		Peers       map[string]string `env:"PEERS" envKeyValSeparator:"="`
	} `envPrefix:"CLIENT_"`

	Cache struct {
		DefaultTTL      time.Duration `env:"DEFAULT_TTL"`
		CleanupInterval time.Duration `env:"CLEANUP_INTERVAL"`
	} `envPrefix:"CACHE_"`

	Telemetry struct {
		OTLPEndpoint string `env:"OTLP_ENDPOINT"`
		Insecure     bool   `env:"INSECURE"`
		ServiceName  string `env:"SERVICE_NAME"`
	} `envPrefix:"TELEMETRY_"`

	TracingHeaders []string `env:"TRACING_HEADERS"`
	Modules        []string `env:"MODULES"`
	ConfigFile     string   `env:"CONFIG"`
}

// parseEnv reads the process environment with caarlos0/env and maps it onto
// a StructuredConfig. OpenAPI stays nil unless OPENAPI_ENABLED is true or
// an OPENAPI_* field is set.
func parseEnv() (*StructuredConfig, error) {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("error getting env configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			Name:        e.App.Name,
			Environment: e.App.Environment,
			Version:     e.App.Version,
			LogLevel:    e.App.LogLevel,
		},
		Server: Server{
			Address:         e.Server.Address,
			ReadTimeout:     e.Server.ReadTimeout,
			WriteTimeout:    e.Server.WriteTimeout,
			IdleTimeout:     e.Server.IdleTimeout,
			RequestTimeout:  e.Server.RequestTimeout,
			ShutdownTimeout: e.Server.ShutdownTimeout,
		},
		Features:   e.Features,
		APIVersion: e.APIVersion,
		Auth: Auth{
			Authority:         e.Auth.Authority,
			ExternalAuthority: e.Auth.ExternalAuthority,
			Audience:          e.Auth.Audience,
			SignKey:           e.Auth.SignKey,
			Claims:            e.Auth.Claims,
			Scopes:            e.Auth.Scopes,
		},
		Storage: Storage{
			DB: DB{
				Driver:        e.Storage.DB.Driver,
				DSN:           e.Storage.DB.DSN,
				MigrationsDir: e.Storage.DB.MigrationsDir,
			},
			Mongo: Mongo{
				URI:      e.Storage.Mongo.URI,
				Database: e.Storage.Mongo.Database,
			},
		},
		Client: Client{
			Timeout:     e.Client.Timeout,
			MaxAttempts: e.Client.MaxAttempts,
			Backoff:     e.Client.Backoff,
			InitialWait: e.Client.InitialWait,
			MaxWait:     e.Client.MaxWait,
			Peers:       e.Client.Peers,
		},
		Cache: Cache{
			DefaultTTL:      e.Cache.DefaultTTL,
			CleanupInterval: e.Cache.CleanupInterval,
		},
		Telemetry: Telemetry{
			OTLPEndpoint: e.Telemetry.OTLPEndpoint,
			Insecure:     e.Telemetry.Insecure,
			ServiceName:  e.Telemetry.ServiceName,
		},
		Tracing:    Tracing{Headers: e.TracingHeaders},
		Modules:    e.Modules,
		ConfigFile: e.ConfigFile,
	}

	o := e.OpenAPI
	openAPI := OpenAPI{
		Title:          o.Title,
		Description:    o.Description,
		ContactName:    o.ContactName,
		ContactEmail:   o.ContactEmail,
		TermsOfService: o.TermsOfService,
		LicenseName:    o.LicenseName,
		LicenseURL:     o.LicenseURL,
	}
	if o.Enabled || openAPI != (OpenAPI{}) {
		cfg.OpenAPI = &openAPI
	}

	return cfg, nil
}
