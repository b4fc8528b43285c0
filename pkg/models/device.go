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

import "time"

// DevicePlatform identifies the device family a record was discovered by.
type DevicePlatform string

const (
	PlatformAndroid DevicePlatform = "android"
	PlatformIOS     DevicePlatform = "ios"
)

const DeviceStatusOnline = "online"

// DeviceRecord is one physical device attached to this agent's host.
// Records are created on first observation and refreshed on every scan
// that re-observes them; they are never removed from the known set.
type DeviceRecord struct {
	UDID     string         `json:"udid"`
	Platform DevicePlatform `json:"platform"`
	Name     string         `json:"name"`
	Status   string         `json:"status"`
	LastSeen time.Time      `json:"last_seen"`
}
