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

// Package discovery enumerates physical devices attached to this host
// via the platform tools and registers new ones with the controller.
package discovery

import (
	"context"
	"os/exec"
	"time"

	"github.com/carverauto/deviceradar/pkg/logger"
	"github.com/carverauto/deviceradar/pkg/models"
)

const defaultToolTimeout = 10 * time.Second

// CommandRunner executes one enumeration command. Tests inject canned
// outputs through this seam.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Scanner runs one enumeration command per device family, each under
// its own bounded timeout. A missing tool or non-zero exit yields an
// empty list for that family so one platform's absence never blocks
// discovery of the other.
type Scanner struct {
	runner      CommandRunner
	toolTimeout time.Duration
	logger      logger.Logger
}

func NewScanner(log logger.Logger) *Scanner {
	return &Scanner{
		runner:      execRunner{},
		toolTimeout: defaultToolTimeout,
		logger:      log,
	}
}

// NewScannerWithRunner is used by tests and exotic deployments.
func NewScannerWithRunner(runner CommandRunner, log logger.Logger) *Scanner {
	s := NewScanner(log)
	s.runner = runner

	return s
}

// Discover enumerates all families. It never returns an error: tool
// failures degrade to empty per-family results with a warning.
func (s *Scanner) Discover(ctx context.Context) []models.DeviceRecord {
	now := time.Now()

	records := s.scanFamily(ctx, models.PlatformAndroid, now, "adb", "devices", "-l")
	records = append(records, s.scanFamily(ctx, models.PlatformIOS, now, "idevice_id", "-l")...)

	s.logger.Debug().Int("count", len(records)).Msg("Discovery scan complete")

	return records
}

func (s *Scanner) scanFamily(ctx context.Context, family models.DevicePlatform, seen time.Time, name string, args ...string) []models.DeviceRecord {
	tctx, cancel := context.WithTimeout(ctx, s.toolTimeout)
	defer cancel()

	out, err := s.runner.Run(tctx, name, args...)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("family", string(family)).
			Str("tool", name).
			Msg("Device enumeration tool unavailable, skipping family")

		return nil
	}

	switch family {
	case models.PlatformAndroid:
		return ParseADBDevices(out, seen)
	case models.PlatformIOS:
		return ParseIOSDevices(out, seen)
	default:
		return nil
	}
}
