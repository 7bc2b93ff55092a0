// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"
	"net"
)

// MaxClientAttempts bounds Client.MaxAttempts.
const MaxClientAttempts = 10

// validate checks that the merged [StructuredConfig] is usable before the
// host starts composing. Feature-specific sections (Auth, OpenAPI, Mongo)
// are checked by the composition steps that need them.
func (cfg *StructuredConfig) validate() error {
	if cfg.Server.Address != "" {
		if _, _, err := net.SplitHostPort(cfg.Server.Address); err != nil {
			return fmt.Errorf("%w: address %q: %w", ErrInvalidServerConfigs, cfg.Server.Address, err)
		}
	}
	if cfg.Server.ReadTimeout < 0 || cfg.Server.WriteTimeout < 0 || cfg.Server.RequestTimeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidServerConfigs)
	}

	if cfg.Client.MaxAttempts < 0 || cfg.Client.MaxAttempts > MaxClientAttempts {
		return fmt.Errorf("%w: max attempts must be within 0..%d", ErrInvalidClientConfigs, MaxClientAttempts)
	}
	switch cfg.Client.Backoff {
	case "", BackoffConstant, BackoffExponential, BackoffExponentialJitter:
	default:
		return fmt.Errorf("%w: unknown backoff %q", ErrInvalidClientConfigs, cfg.Client.Backoff)
	}

	switch cfg.Storage.DB.Driver {
	case "", DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidStorageConfigs, cfg.Storage.DB.Driver)
	}

	return nil
}
