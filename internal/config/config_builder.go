package config

import (
	"errors"
	"fmt"
	"os"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
)

type configBuilder struct {
	configs     []*StructuredConfig
	hasDefaults bool
	err         error
}

func newConfigBuilder() *configBuilder {
	return &configBuilder{
		configs: make([]*StructuredConfig, 0, 5),
	}
}

// build merges the collected configs in order; later non-zero values win.
// Feature flags are overlaid key by key so that an explicit false in a later
// source turns a feature off.
func (b *configBuilder) build() (*StructuredConfig, error) {
	if b.err != nil {
		return nil, fmt.Errorf("error occured during building config: %w", b.err)
	}

	config := new(StructuredConfig)
	features := make(map[string]bool)
	for _, cfg := range b.configs {
		if err := mergo.Merge(config, cfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("error merging configs: %w", err)
		}
		for name, on := range cfg.Features {
			features[name] = on
		}
	}
	if len(features) > 0 {
		config.Features = features
	}

	return config, config.validate()
}

func (b *configBuilder) withDefaults() *configBuilder {
	b.configs = append(b.configs, defaults())
	b.hasDefaults = true
	return b
}

// withDotEnv loads variables from the .env file into the process
// environment without overriding variables that are already set. A missing
// default .env file is not an error.
func (b *configBuilder) withDotEnv(flags *Flags) *configBuilder {
	path := os.Getenv("DOTENV_FILE")
	explicit := path != ""
	if flags != nil && flags.DotEnvFile != "" {
		path, explicit = flags.DotEnvFile, true
	}
	if path == "" {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return b
		}
		b.err = errors.Join(b.err, fmt.Errorf("error loading dotenv file %q: %w", path, err))
	}

	return b
}

func (b *configBuilder) withEnv() *configBuilder {
	envCfg, err := parseEnv()
	if err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}

	b.configs = append(b.configs, envCfg)
	return b
}

func (b *configBuilder) withFlags(flags *Flags) *configBuilder {
	if flags == nil {
		return b
	}

	b.configs = append(b.configs, flags.toConfig())
	return b
}

// withFile parses the config file named by the collected sources and
// inserts it right after the defaults, below env and flags.
func (b *configBuilder) withFile() *configBuilder {
	var path string
	for _, cfg := range b.configs {
		if cfg.ConfigFile != "" {
			path = cfg.ConfigFile
		}
	}
	if path == "" {
		return b
	}

	fileCfg, err := parseFile(path)
	if err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}

	at := 0
	if b.hasDefaults {
		at = 1
	}
	b.configs = append(b.configs[:at], append([]*StructuredConfig{fileCfg}, b.configs[at:]...)...)
	return b
}
