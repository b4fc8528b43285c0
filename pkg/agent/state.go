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
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/deviceradar/pkg/models"
)

// State is the one shared agent state object. All mutation goes
// through its methods; the heartbeat, discovery and tunnel goroutines
// never touch fields directly.
type State struct {
	mu           sync.RWMutex
	identity     models.AgentIdentity
	status       models.AgentStatus
	tunnel       models.TunnelState
	registration models.RegistrationState
	devices      map[string]*models.DeviceRecord
}

// NewState generates the process-lifetime agent identity.
func NewState() *State {
	return &State{
		identity: models.AgentIdentity{
			AgentID:   uuid.New().String(),
			StartedAt: time.Now(),
		},
		status:  models.StatusInit,
		devices: make(map[string]*models.DeviceRecord),
	}
}

func (s *State) AgentID() string {
	return s.identity.AgentID
}

func (s *State) Identity() models.AgentIdentity {
	return s.identity
}

func (s *State) Status() models.AgentStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.status
}

func (s *State) SetStatus(status models.AgentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = status
}

// SetTunnel records the tunnel URL most recently confirmed connected,
// or nil the instant a drop is observed.
func (s *State) SetTunnel(url *string, retries int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tunnel.URL = url
	s.tunnel.Retries = retries

	if url != nil {
		s.tunnel.LastConnectedAt = time.Now()
	}
}

func (s *State) TunnelURL() *string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tunnel.URL
}

func (s *State) IsRegistered() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.registration.IsRegistered
}

// SetRegistered applies a registration-or-heartbeat outcome. Failure
// while registered degrades the agent; a later success recovers it
// with no other state change.
func (s *State) SetRegistered(registered bool, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registration.IsRegistered = registered

	if registered {
		if !at.IsZero() {
			s.registration.LastHeartbeatAt = at
		}

		if s.status == models.StatusRegistering || s.status == models.StatusDegraded {
			s.status = models.StatusRegistered
		}

		return
	}

	if s.status == models.StatusRegistered || s.status == models.StatusRegistering {
		s.status = models.StatusDegraded
	}
}

func (s *State) KnownDevice(udid string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.devices[udid]

	return ok
}

func (s *State) AddDevice(rec models.DeviceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := rec
	s.devices[rec.UDID] = &copied
}

func (s *State) RefreshDevice(udid string, seen time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.devices[udid]
	if !ok {
		return
	}

	rec.Status = models.DeviceStatusOnline
	rec.LastSeen = seen
}

// KnownDeviceIDs returns the sorted UDIDs of all registered devices.
func (s *State) KnownDeviceIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.devices))
	for udid := range s.devices {
		ids = append(ids, udid)
	}

	sort.Strings(ids)

	return ids
}

// Snapshot returns the /health view. It only reads in-memory state.
func (s *State) Snapshot(engineRunning bool) models.HealthSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.devices))
	for udid := range s.devices {
		ids = append(ids, udid)
	}

	sort.Strings(ids)

	return models.HealthSnapshot{
		Status:         s.status,
		AgentID:        s.identity.AgentID,
		EngineRunning:  engineRunning,
		TunnelURL:      s.tunnel.URL,
		IsRegistered:   s.registration.IsRegistered,
		KnownDeviceIDs: ids,
		Timestamp:      time.Now(),
	}
}
