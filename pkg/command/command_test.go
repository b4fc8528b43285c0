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

package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStartDevice(t *testing.T) {
	cmd, err := Decode([]byte(`{"type":"start_device","deviceId":"emulator-5554"}`))
	require.NoError(t, err)

	start, ok := cmd.(StartDevice)
	require.True(t, ok)
	assert.Equal(t, "emulator-5554", start.DeviceID)
}

func TestDecodeStopDevice(t *testing.T) {
	cmd, err := Decode([]byte(`{"type":"stop_device","deviceId":"R5CT102ABCD"}`))
	require.NoError(t, err)

	stop, ok := cmd.(StopDevice)
	require.True(t, ok)
	assert.Equal(t, "R5CT102ABCD", stop.DeviceID)
}

func TestDecodeUnknownType(t *testing.T) {
	raw := []byte(`{"type":"reboot_host","deviceId":"emulator-5554","force":true}`)

	cmd, err := Decode(raw)
	require.NoError(t, err)

	unknown, ok := cmd.(Unknown)
	require.True(t, ok)
	assert.Equal(t, "reboot_host", unknown.Type)
	assert.JSONEq(t, string(raw), string(unknown.Raw))
}

func TestDecodeMissingType(t *testing.T) {
	cmd, err := Decode([]byte(`{"deviceId":"emulator-5554"}`))
	require.NoError(t, err)

	unknown, ok := cmd.(Unknown)
	require.True(t, ok)
	assert.Empty(t, unknown.Type)
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{"type":"start_device"`))
	require.Error(t, err)
}

func TestDecodeExtraFieldsIgnored(t *testing.T) {
	cmd, err := Decode([]byte(`{"type":"start_device","deviceId":"emulator-5554","priority":"high"}`))
	require.NoError(t, err)

	start, ok := cmd.(StartDevice)
	require.True(t, ok)
	assert.Equal(t, "emulator-5554", start.DeviceID)
}
