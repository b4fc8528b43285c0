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
	"bufio"
	"bytes"
	"strings"

	"time"

	"github.com/carverauto/deviceradar/pkg/models"
)

// ParseADBDevices parses `adb devices -l` output. Only serials in the
// "device" state count; "offline" and "unauthorized" entries are not
// usable for automation and are skipped.
func ParseADBDevices(out []byte, seen time.Time) []models.DeviceRecord {
	var records []models.DeviceRecord

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[1] != "device" {
			continue
		}

		name := fields[0]

		for _, f := range fields[2:] {
			if model, ok := strings.CutPrefix(f, "model:"); ok {
				name = strings.ReplaceAll(model, "_", " ")
				break
			}
		}

		records = append(records, models.DeviceRecord{
			UDID:     fields[0],
			Platform: models.PlatformAndroid,
			Name:     name,
			Status:   models.DeviceStatusOnline,
			LastSeen: seen,
		})
	}

	return records
}

// ParseIOSDevices parses `idevice_id -l` output: one UDID per line.
func ParseIOSDevices(out []byte, seen time.Time) []models.DeviceRecord {
	var records []models.DeviceRecord

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		udid := strings.TrimSpace(scanner.Text())
		if udid == "" {
			continue
		}

		records = append(records, models.DeviceRecord{
			UDID:     udid,
			Platform: models.PlatformIOS,
			Name:     "iOS Device",
			Status:   models.DeviceStatusOnline,
			LastSeen: seen,
		})
	}

	return records
}
