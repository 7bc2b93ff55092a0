package config

import "errors"

// Validation errors returned by [StructuredConfig.validate].
var (
	// ErrInvalidServerConfigs indicates an unusable listen address or
	// negative timeouts.
	ErrInvalidServerConfigs = errors.New("invalid server configuration")
	// ErrInvalidClientConfigs indicates retry settings out of bounds or an
	// unknown backoff strategy.
	ErrInvalidClientConfigs = errors.New("invalid client configuration")
	// ErrInvalidStorageConfigs indicates an unsupported relational driver.
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrUnsupportedConfigFormat is returned for config files that are
	// neither JSON nor YAML.
	ErrUnsupportedConfigFormat = errors.New("unsupported config file format")
)
