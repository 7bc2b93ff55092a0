// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"strings"
	"time"
)

// EnvDevelopment is the App.Environment value of local development.
const EnvDevelopment = "development"

// StructuredConfig is the top-level configuration container of a
// miniservice. It is populated by merging defaults, a config file, a .env
// file, environment variables and command-line flags.
type StructuredConfig struct {
	// App holds the service identity and logging settings.
	App App

	// Server holds the HTTP listener address and timeouts.
	Server Server

	// Features toggles optional capabilities by name, e.g. "Mongo",
	// "OpenApi:Profiler". Lookups are case-insensitive.
	Features map[string]bool

	// APIVersion is the default API version of the service, e.g. "1.0".
	APIVersion string

	// Auth holds bearer-token validation and policy settings.
	Auth Auth

	// OpenAPI is nil when no OpenApi section was configured.
	OpenAPI *OpenAPI

	// Storage holds the relational and document store settings.
	Storage Storage

	// Client holds the outbound REST client settings.
	Client Client

	// Cache holds the in-memory cache settings.
	Cache Cache

	// Telemetry holds the trace exporter settings.
	Telemetry Telemetry

	// Tracing lists the inbound headers forwarded on outbound calls.
	Tracing Tracing

	// Modules names the modules the host enables. Empty means all.
	Modules []string

	// ConfigFile is the optional path to a JSON or YAML config file.
	ConfigFile string

	// DotEnvFile is the optional path to a .env file.
	DotEnvFile string
}

type App struct {
	Name        string
	Environment string
	Version     string
	LogLevel    string
}

// IsDevelopment reports whether the service runs in the development
// environment.
func (a App) IsDevelopment() bool {
	return strings.EqualFold(a.Environment, EnvDevelopment)
}

type Server struct {
	// Address is the TCP address of the HTTP listener, "host:port".
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type Auth struct {
	Authority         string
	ExternalAuthority string
	Audience          string
	SignKey           string
	// Claims maps a policy name to the scope it requires.
	Claims map[string]string
	// Scopes maps a scope to its description for API documentation.
	Scopes map[string]string
}

type OpenAPI struct {
	Title          string
	Description    string
	ContactName    string
	ContactEmail   string
	TermsOfService string
	LicenseName    string
	LicenseURL     string
}

type Storage struct {
	DB    DB
	Mongo Mongo
}

// DB holds relational database settings. Driver is "postgres" or "sqlite".
type DB struct {
	Driver        string
	DSN           string
	MigrationsDir string
}

type Mongo struct {
	URI      string
	Database string
}

type Client struct {
	Timeout     time.Duration
	MaxAttempts int
	// Backoff is "constant", "exponential" or "exponential-jitter".
	Backoff     string
	InitialWait time.Duration
	MaxWait     time.Duration
	// Peers maps a peer service name to its base URL. Each peer gets a
	// health check.
	Peers map[string]string
}

type Cache struct {
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
}

type Telemetry struct {
	OTLPEndpoint string
	Insecure     bool
	ServiceName  string
}

type Tracing struct {
	Headers []string
}

// Backoff strategies accepted in Client.Backoff.
const (
	BackoffConstant          = "constant"
	BackoffExponential       = "exponential"
	BackoffExponentialJitter = "exponential-jitter"
)

// Relational drivers accepted in Storage.DB.Driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func defaults() *StructuredConfig {
	return &StructuredConfig{
		App: App{
			Name:        "miniservice",
			Environment: "production",
			Version:     "0.0.1",
			LogLevel:    "info",
		},
		Server: Server{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		APIVersion: "1.0",
		Storage: Storage{
			DB: DB{Driver: DriverPostgres},
		},
		Client: Client{
			MaxAttempts: 3,
			Backoff:     BackoffExponentialJitter,
			InitialWait: 200 * time.Millisecond,
			MaxWait:     5 * time.Second,
		},
		Cache: Cache{
			DefaultTTL:      5 * time.Minute,
			CleanupInterval: 10 * time.Minute,
		},
		Tracing: Tracing{
			Headers: []string{
				"x-request-id",
				"x-b3-traceid",
				"x-b3-spanid",
				"x-b3-parentspanid",
				"x-b3-sampled",
				"x-b3-flags",
				"x-ot-span-context",
				"traceparent",
				"tracestate",
			},
		},
	}
}

// GetStructuredConfig loads, merges and validates the configuration. Sources
// are applied in increasing precedence: defaults, config file, .env file,
// environment variables, command-line flags.
func GetStructuredConfig(flags *Flags) (*StructuredConfig, error) {
	return newConfigBuilder().
		withDefaults().
		withDotEnv(flags).
		withEnv().
		withFlags(flags).
		withFile().
		build()
}
