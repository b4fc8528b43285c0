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

package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/deviceradar/pkg/logger"
	"github.com/carverauto/deviceradar/pkg/models"
)

var errToolMissing = errors.New("executable file not found in $PATH")

// mockRunner serves canned output per tool name.
type mockRunner struct {
	outputs map[string][]byte
	errs    map[string]error
}

func (m *mockRunner) Run(_ context.Context, name string, _ ...string) ([]byte, error) {
	if err, ok := m.errs[name]; ok {
		return nil, err
	}

	return m.outputs[name], nil
}

func TestScannerDiscoverBothFamilies(t *testing.T) {
	runner := &mockRunner{
		outputs: map[string][]byte{
			"adb":        []byte("List of devices attached\nemulator-5554 device model:Pixel_7\n"),
			"idevice_id": []byte("00008030-001A2B3C4D5E6F7G\n"),
		},
	}

	s := NewScannerWithRunner(runner, logger.NewTestLogger())

	records := s.Discover(context.Background())

	require.Len(t, records, 2)
	assert.Equal(t, models.PlatformAndroid, records[0].Platform)
	assert.Equal(t, models.PlatformIOS, records[1].Platform)
}

func TestScannerMissingToolSkipsFamily(t *testing.T) {
	runner := &mockRunner{
		outputs: map[string][]byte{
			"adb": []byte("List of devices attached\nemulator-5554 device\nR5CT102ABCD device\n"),
		},
		errs: map[string]error{
			"idevice_id": errToolMissing,
		},
	}

	s := NewScannerWithRunner(runner, logger.NewTestLogger())

	records := s.Discover(context.Background())

	require.Len(t, records, 2)

	for _, rec := range records {
		assert.Equal(t, models.PlatformAndroid, rec.Platform)
	}
}

func TestScannerAllToolsMissing(t *testing.T) {
	runner := &mockRunner{
		errs: map[string]error{
			"adb":        errToolMissing,
			"idevice_id": errToolMissing,
		},
	}

	s := NewScannerWithRunner(runner, logger.NewTestLogger())

	assert.Empty(t, s.Discover(context.Background()))
}
