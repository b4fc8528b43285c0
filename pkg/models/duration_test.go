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

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshalString(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"30s"`), &d))
	assert.Equal(t, 30*time.Second, time.Duration(d))
}

func TestDurationUnmarshalNanoseconds(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`15000000000`), &d))
	assert.Equal(t, 15*time.Second, time.Duration(d))
}

func TestDurationUnmarshalInvalid(t *testing.T) {
	var d Duration
	require.Error(t, json.Unmarshal([]byte(`"not-a-duration"`), &d))

	err := json.Unmarshal([]byte(`true`), &d)
	require.ErrorIs(t, err, ErrInvalidDuration)
}

func TestDurationMarshal(t *testing.T) {
	data, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(data))
}

func TestDurationInStruct(t *testing.T) {
	type wrapper struct {
		Interval Duration `json:"interval"`
	}

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"interval":"1m"}`), &w))
	assert.Equal(t, time.Minute, time.Duration(w.Interval))
}
