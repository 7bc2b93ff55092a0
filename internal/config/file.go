package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk layout of a config file. The same keys are used
// for JSON and YAML.
type fileConfig struct {
	App struct {
		Name        string `json:"name" yaml:"name"`
		Environment string `json:"environment" yaml:"environment"`
		Version     string `json:"version" yaml:"version"`
		LogLevel    string `json:"log_level" yaml:"log_level"`
	} `json:"app" yaml:"app"`

	Server struct {
		Address         string   `json:"address" yaml:"address"`
		ReadTimeout     Duration `json:"read_timeout" yaml:"read_timeout"`
		WriteTimeout    Duration `json:"write_timeout" yaml:"write_timeout"`
		IdleTimeout     Duration `json:"idle_timeout" yaml:"idle_timeout"`
		RequestTimeout  Duration `json:"request_timeout" yaml:"request_timeout"`
		ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	} `json:"server" yaml:"server"`

	Features map[string]bool `json:"features" yaml:"features"`

	APIVersion string `json:"api_version" yaml:"api_version"`

	Auth struct {
		Authority         string            `json:"authority" yaml:"authority"`
		ExternalAuthority string            `json:"external_authority" yaml:"external_authority"`
		Audience          string            `json:"audience" yaml:"audience"`
		SignKey           string            `json:"sign_key" yaml:"sign_key"`
		Claims            map[string]string `json:"claims" yaml:"claims"`
		Scopes            map[string]string `json:"scopes" yaml:"scopes"`
	} `json:"auth" yaml:"auth"`

	OpenAPI *struct {
		Title          string `json:"title" yaml:"title"`
		Description    string `json:"description" yaml:"description"`
		ContactName    string `json:"contact_name" yaml:"contact_name"`
		ContactEmail   string `json:"contact_email" yaml:"contact_email"`
		TermsOfService string `json:"terms_of_service" yaml:"terms_of_service"`
		LicenseName    string `json:"license_name" yaml:"license_name"`
		LicenseURL     string `json:"license_url" yaml:"license_url"`
	} `json:"openapi" yaml:"openapi"`

	Storage struct {
		DB struct {
			Driver        string `json:"driver" yaml:"driver"`
			DSN           string `json:"dsn" yaml:"dsn"`
			MigrationsDir string `json:"migrations_dir" yaml:"migrations_dir"`
		} `json:"db" yaml:"db"`
		Mongo struct {
			URI      string `json:"uri" yaml:"uri"`
			Database string `json:"database" yaml:"database"`
		} `json:"mongo" yaml:"mongo"`
	} `json:"storage" yaml:"storage"`

	Client struct {
		Timeout     Duration          `json:"timeout" yaml:"timeout"`
		MaxAttempts int               `json:"max_attempts" yaml:"max_attempts"`
		Backoff     string            `json:"backoff" yaml:"backoff"`
		InitialWait Duration          `json:"initial_wait" yaml:"initial_wait"`
		MaxWait     Duration          `json:"max_wait" yaml:"max_wait"`
		Peers       map[string]string `json:"peers" yaml:"peers"`
	} `json:"client" yaml:"client"`

	Cache struct {
		DefaultTTL      Duration `json:"default_ttl" yaml:"default_ttl"`
		CleanupInterval Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
	} `json:"cache" yaml:"cache"`

	Telemetry struct {
		OTLPEndpoint string `json:"otlp_endpoint" yaml:"otlp_endpoint"`
		Insecure     bool   `json:"insecure" yaml:"insecure"`
		ServiceName  string `json:"service_name" yaml:"service_name"`
	} `json:"telemetry" yaml:"telemetry"`

	Tracing struct {
		Headers []string `json:"headers" yaml:"headers"`
	} `json:"tracing" yaml:"tracing"`

	Modules []string `json:"modules" yaml:"modules"`
}

// parseFile reads a JSON or YAML config file, chosen by extension.
func parseFile(path string) (*StructuredConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	case ".json", "":
		err = json.Unmarshal(data, &fc)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedConfigFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("error decoding config file %q: %w", path, err)
	}

	return fc.toConfig(), nil
}

func (fc *fileConfig) toConfig() *StructuredConfig {
	cfg := &StructuredConfig{
		App: App{
			Name:        fc.App.Name,
			Environment: fc.App.Environment,
			Version:     fc.App.Version,
			LogLevel:    fc.App.LogLevel,
		},
		Server: Server{
			Address:         fc.Server.Address,
			ReadTimeout:     time.Duration(fc.Server.ReadTimeout),
			WriteTimeout:    time.Duration(fc.Server.WriteTimeout),
			IdleTimeout:     time.Duration(fc.Server.IdleTimeout),
			RequestTimeout:  time.Duration(fc.Server.RequestTimeout),
			ShutdownTimeout: time.Duration(fc.Server.ShutdownTimeout),
		},
		Features:   fc.Features,
		APIVersion: fc.APIVersion,
		Auth: Auth{
			Authority:         fc.Auth.Authority,
			ExternalAuthority: fc.Auth.ExternalAuthority,
			Audience:          fc.Auth.Audience,
			SignKey:           fc.Auth.SignKey,
			Claims:            fc.Auth.Claims,
			Scopes:            fc.Auth.Scopes,
		},
		Storage: Storage{
			DB: DB{
				Driver:        fc.Storage.DB.Driver,
				DSN:           fc.Storage.DB.DSN,
				MigrationsDir: fc.Storage.DB.MigrationsDir,
			},
			Mongo: Mongo{
				URI:      fc.Storage.Mongo.URI,
				Database: fc.Storage.Mongo.Database,
			},
		},
		Client: Client{
			Timeout:     time.Duration(fc.Client.Timeout),
			MaxAttempts: fc.Client.MaxAttempts,
			Backoff:     fc.Client.Backoff,
			InitialWait: time.Duration(fc.Client.InitialWait),
			MaxWait:     time.Duration(fc.Client.MaxWait),
			Peers:       fc.Client.Peers,
		},
		Cache: Cache{
			DefaultTTL:      time.Duration(fc.Cache.DefaultTTL),
			CleanupInterval: time.Duration(fc.Cache.CleanupInterval),
		},
		Telemetry: Telemetry{
			OTLPEndpoint: fc.Telemetry.OTLPEndpoint,
			Insecure:     fc.Telemetry.Insecure,
			ServiceName:  fc.Telemetry.ServiceName,
		},
		Tracing: Tracing{Headers: fc.Tracing.Headers},
		Modules: fc.Modules,
	}

	if o := fc.OpenAPI; o != nil {
		cfg.OpenAPI = &OpenAPI{
			Title:          o.Title,
			Description:    o.Description,
			ContactName:    o.ContactName,
			ContactEmail:   o.ContactEmail,
			TermsOfService: o.TermsOfService,
			LicenseName:    o.LicenseName,
			LicenseURL:     o.LicenseURL,
		}
	}

	return cfg
}

// Duration is a time.Duration that decodes from strings like "1h" or "30s"
// as well as from integer nanoseconds, in JSON and YAML.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case int:
		*d = Duration(time.Duration(value))
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
