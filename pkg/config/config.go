/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads agent configuration from JSON files with an
// environment override for containerized deployments.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/carverauto/deviceradar/pkg/logger"
)

// EnvConfigJSON, when set, replaces the on-disk config document entirely.
const EnvConfigJSON = "AGENT_CONFIG_JSON"

// Validator allows a config struct to validate itself and apply defaults.
type Validator interface {
	Validate() error
}

// ConfigLoader loads configuration from a source into dst.
type ConfigLoader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Config holds the configuration loading dependencies.
type Config struct {
	loader ConfigLoader
	logger logger.Logger
}

// NewConfig initializes a new Config instance with a file loader.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Config{
		loader: &FileConfigLoader{},
		logger: log,
	}
}

// LoadAndValidate loads configuration into dst and validates it if dst
// implements Validator. The AGENT_CONFIG_JSON environment variable
// takes precedence over the file path.
func (c *Config) LoadAndValidate(ctx context.Context, path string, dst interface{}) error {
	if doc := os.Getenv(EnvConfigJSON); doc != "" {
		if err := json.Unmarshal([]byte(doc), dst); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", EnvConfigJSON, err)
		}

		c.logger.Info().Msg("Loaded configuration from environment")
	} else {
		if err := c.loader.Load(ctx, path, dst); err != nil {
			return err
		}

		c.logger.Info().Str("path", path).Msg("Loaded configuration from file")
	}

	return ValidateConfig(dst)
}

// ValidateConfig validates a configuration if it implements Validator.
func ValidateConfig(cfg interface{}) error {
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}

	return v.Validate()
}
