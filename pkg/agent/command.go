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

package agent

import (
	"context"

	"github.com/carverauto/deviceradar/pkg/command"
)

// HandleStartDevice implements command.Handler. Session setup itself
// happens through the engine proxy; the command marks intent so the
// agent can log and correlate it.
func (a *Agent) HandleStartDevice(_ context.Context, cmd command.StartDevice) {
	if !a.state.KnownDevice(cmd.DeviceID) {
		a.logger.Warn().Str("device_id", cmd.DeviceID).Msg("Start requested for unknown device")
		return
	}

	a.logger.Info().Str("device_id", cmd.DeviceID).Msg("Device automation start requested")
}

// HandleStopDevice implements command.Handler.
func (a *Agent) HandleStopDevice(_ context.Context, cmd command.StopDevice) {
	if !a.state.KnownDevice(cmd.DeviceID) {
		a.logger.Warn().Str("device_id", cmd.DeviceID).Msg("Stop requested for unknown device")
		return
	}

	a.logger.Info().Str("device_id", cmd.DeviceID).Msg("Device automation stop requested")
}
