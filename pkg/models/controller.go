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

// AgentCapabilities describes the host this agent runs on. Sent once
// with registration so the controller can render per-node facts.
type AgentCapabilities struct {
	Platform      string `json:"platform"`
	EngineVersion string `json:"engine_version"`
	Port          int    `json:"port"`
}

// AgentRegistration is the body of POST {controller}/agents/register.
type AgentRegistration struct {
	AgentID      string            `json:"agent_id"`
	TunnelURL    string            `json:"tunnel_url"`
	AppiumURL    string            `json:"appium_url"`
	Capabilities AgentCapabilities `json:"capabilities"`
	Timestamp    time.Time         `json:"timestamp"`
}

// HeartbeatStatus is the body of POST {controller}/agents/{id}/heartbeat.
type HeartbeatStatus struct {
	Status         string    `json:"status"`
	EngineRunning  bool      `json:"engine_running"`
	TunnelURL      *string   `json:"tunnel_url"`
	KnownDeviceIDs []string  `json:"known_device_ids"`
	Timestamp      time.Time `json:"timestamp"`
}

// DeviceRegistration is the body of POST {controller}/devices/register.
type DeviceRegistration struct {
	UDID      string    `json:"udid"`
	Platform  string    `json:"platform"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	LastSeen  time.Time `json:"last_seen"`
	AgentID   string    `json:"agent_id"`
	TunnelURL string    `json:"tunnel_url"`
	AppiumURL string    `json:"appium_url"`
}
