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

package controller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/deviceradar/pkg/logger"
	"github.com/carverauto/deviceradar/pkg/models"
)

type mockClock struct {
	now    time.Time
	ticker *mockTicker
}

func (m *mockClock) Now() time.Time { return m.now }

func (m *mockClock) Ticker(time.Duration) Ticker { return m.ticker }

type mockTicker struct {
	ch chan time.Time
}

func (m *mockTicker) Chan() <-chan time.Time { return m.ch }

func (*mockTicker) Stop() {}

// mockSource is an in-memory StatusSource.
type mockSource struct {
	mu              sync.Mutex
	registered      bool
	lastHeartbeatAt time.Time
}

func (*mockSource) AgentID() string { return "agent-1" }

func (m *mockSource) IsRegistered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.registered
}

func (m *mockSource) SetRegistered(registered bool, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.registered = registered

	if registered && !at.IsZero() {
		m.lastHeartbeatAt = at
	}
}

func (m *mockSource) Registration() *models.AgentRegistration {
	return &models.AgentRegistration{AgentID: m.AgentID(), Timestamp: time.Now()}
}

func (m *mockSource) Heartbeat() *models.HeartbeatStatus {
	return &models.HeartbeatStatus{Status: "online", Timestamp: time.Now()}
}

// controllerStub counts register and heartbeat hits and can be switched
// to fail everything.
type controllerStub struct {
	failing    atomic.Bool
	registers  atomic.Int64
	heartbeats atomic.Int64
}

func (c *controllerStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		switch {
		case r.URL.Path == "/agents/register":
			c.registers.Add(1)
		case strings.HasSuffix(r.URL.Path, "/heartbeat"):
			c.heartbeats.Add(1)
		}

		w.WriteHeader(http.StatusOK)
	})
}

func newHeartbeatFixture(t *testing.T) (*Heartbeater, *mockSource, *controllerStub, *mockClock) {
	t.Helper()

	stub := &controllerStub{}

	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	clock := &mockClock{
		now:    time.Now(),
		ticker: &mockTicker{ch: make(chan time.Time)},
	}
	source := &mockSource{}

	h := NewHeartbeater(NewClient(srv.URL, logger.NewTestLogger()), source, time.Second, clock, logger.NewTestLogger())

	return h, source, stub, clock
}

func TestTickRegistersWhileUnregistered(t *testing.T) {
	h, source, stub, _ := newHeartbeatFixture(t)

	h.Tick(context.Background())

	assert.True(t, source.IsRegistered())
	assert.EqualValues(t, 1, stub.registers.Load())
	assert.EqualValues(t, 0, stub.heartbeats.Load())
}

func TestTickHeartbeatsWhileRegistered(t *testing.T) {
	h, source, stub, clock := newHeartbeatFixture(t)

	source.SetRegistered(true, clock.Now())

	h.Tick(context.Background())
	h.Tick(context.Background())

	assert.EqualValues(t, 0, stub.registers.Load())
	assert.EqualValues(t, 2, stub.heartbeats.Load())
	assert.True(t, source.IsRegistered())
}

func TestHeartbeatFailureFlipsToUnregistered(t *testing.T) {
	h, source, stub, clock := newHeartbeatFixture(t)

	source.SetRegistered(true, clock.Now())
	stub.failing.Store(true)

	h.Tick(context.Background())

	assert.False(t, source.IsRegistered())

	// Next tick attempts re-registration, not a heartbeat.
	stub.failing.Store(false)

	h.Tick(context.Background())

	assert.True(t, source.IsRegistered())
	assert.EqualValues(t, 1, stub.registers.Load())
	assert.EqualValues(t, 0, stub.heartbeats.Load())
}

func TestRegisterFailureIsSwallowed(t *testing.T) {
	h, source, stub, _ := newHeartbeatFixture(t)

	stub.failing.Store(true)

	h.Register(context.Background())

	assert.False(t, source.IsRegistered())
}

func TestHeartbeatLoopRunsOnTicks(t *testing.T) {
	h, source, stub, clock := newHeartbeatFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- h.Start(ctx)
	}()

	clock.ticker.ch <- clock.now
	clock.ticker.ch <- clock.now

	require.Eventually(t, func() bool {
		return stub.registers.Load() >= 1 && stub.heartbeats.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, source.IsRegistered())

	require.NoError(t, h.Stop(context.Background()))

	select {
	case err := <-loopDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat loop did not stop")
	}
}
