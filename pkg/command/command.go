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

// Package command is the agent's inbound command channel: discrete
// JSON frames over a websocket, decoded into typed commands.
package command

import "encoding/json"

const (
	TypeStartDevice = "start_device"
	TypeStopDevice  = "stop_device"
)

// Command is the decoded form of one inbound frame.
type Command interface {
	commandType() string
}

// StartDevice asks the agent to begin automation on one device.
type StartDevice struct {
	DeviceID string
}

// StopDevice asks the agent to end automation on one device.
type StopDevice struct {
	DeviceID string
}

// Unknown preserves frames with an unrecognized type tag. They are
// logged and dropped; no response is owed to the sender.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (StartDevice) commandType() string { return TypeStartDevice }
func (StopDevice) commandType() string  { return TypeStopDevice }
func (u Unknown) commandType() string   { return u.Type }

// Decode turns one raw frame into a typed command. A frame that is not
// valid JSON is an error; valid JSON with an unrecognized type decodes
// to Unknown.
func Decode(data []byte) (Command, error) {
	var envelope struct {
		Type     string `json:"type"`
		DeviceID string `json:"deviceId"`
	}

	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	switch envelope.Type {
	case TypeStartDevice:
		return StartDevice{DeviceID: envelope.DeviceID}, nil
	case TypeStopDevice:
		return StopDevice{DeviceID: envelope.DeviceID}, nil
	default:
		return Unknown{Type: envelope.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}
