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

// AgentStatus tracks where the agent is in its lifecycle.
type AgentStatus string

const (
	StatusInit             AgentStatus = "init"
	StatusEngineStarting   AgentStatus = "engine_starting"
	StatusEngineReady      AgentStatus = "engine_ready"
	StatusTunnelConnecting AgentStatus = "tunnel_connecting"
	StatusTunnelReady      AgentStatus = "tunnel_ready"
	StatusRegistering      AgentStatus = "registering"
	StatusRegistered       AgentStatus = "registered"
	StatusDegraded         AgentStatus = "degraded"
	StatusShuttingDown     AgentStatus = "shutting_down"
	StatusStopped          AgentStatus = "stopped"
)

// AgentIdentity is generated once at process start and never changes.
// It is not persisted across restarts.
type AgentIdentity struct {
	AgentID   string    `json:"agent_id"`
	StartedAt time.Time `json:"started_at"`
}

// TunnelState reflects the tunnel most recently confirmed connected.
// URL is nil while disconnected or reconnecting.
type TunnelState struct {
	URL             *string   `json:"url"`
	LastConnectedAt time.Time `json:"last_connected_at"`
	Retries         int       `json:"retries"`
}

// RegistrationState is pessimistic: IsRegistered is true only
// immediately following a successful registration or heartbeat call.
type RegistrationState struct {
	IsRegistered    bool      `json:"is_registered"`
	LastHeartbeatAt time.Time `json:"last_heartbeat_at"`
}

// HealthSnapshot is the read-only agent state returned by GET /health.
type HealthSnapshot struct {
	Status         AgentStatus `json:"status"`
	AgentID        string      `json:"agent_id"`
	EngineRunning  bool        `json:"engine_running"`
	TunnelURL      *string     `json:"tunnel_url"`
	IsRegistered   bool        `json:"is_registered"`
	KnownDeviceIDs []string    `json:"known_device_ids"`
	Timestamp      time.Time   `json:"timestamp"`
}
