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

package tunnel

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/carverauto/deviceradar/pkg/logger"
	"github.com/carverauto/deviceradar/pkg/models"
)

const (
	reconnectInitialInterval = 1 * time.Second
	reconnectMaxInterval     = 30 * time.Second
	reconnectAttemptTimeout  = 45 * time.Second
)

// Manager owns the tunnel lifecycle: it opens the initial tunnel,
// watches for drops and reconnects under exponential backoff with
// jitter. The URL is nil from the instant a drop is observed until a
// reconnect is confirmed.
type Manager struct {
	provider Provider
	logger   logger.Logger

	mu        sync.Mutex
	conn      *Conn
	state     models.TunnelState
	localPort int

	onChange func(url *string, retries int)

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// backoff knobs, overridden in tests
	initialInterval time.Duration
	maxInterval     time.Duration
}

func NewManager(provider Provider, log logger.Logger) *Manager {
	return &Manager{
		provider:        provider,
		logger:          log,
		done:            make(chan struct{}),
		initialInterval: reconnectInitialInterval,
		maxInterval:     reconnectMaxInterval,
	}
}

// OnChange registers a callback fired whenever the tunnel URL changes.
// Must be set before Connect.
func (m *Manager) OnChange(fn func(url *string, retries int)) {
	m.onChange = fn
}

// Connect opens the tunnel for localPort. On failure the error is
// returned and the manager keeps retrying in the background, so a
// controller outage at startup does not strand the agent without a
// tunnel forever.
func (m *Manager) Connect(ctx context.Context, localPort int) (string, error) {
	m.mu.Lock()
	m.localPort = localPort
	m.mu.Unlock()

	conn, err := m.provider.Open(ctx, localPort)
	if err != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.reconnect()
		}()

		return "", err
	}

	m.adopt(conn)

	return conn.URL, nil
}

// State returns a copy of the current tunnel state.
func (m *Manager) State() models.TunnelState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// URL returns the current public URL, nil while disconnected.
func (m *Manager) URL() *string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state.URL
}

// Disconnect stops the reconnect loop and tears down the tunnel.
// Idempotent.
func (m *Manager) Disconnect() {
	m.closeOnce.Do(func() {
		close(m.done)
	})

	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	m.wg.Wait()
}

// adopt records a confirmed connection and starts watching it.
func (m *Manager) adopt(conn *Conn) {
	url := conn.URL

	m.mu.Lock()
	m.conn = conn
	m.state.URL = &url
	m.state.LastConnectedAt = time.Now()
	m.state.Retries = 0
	m.mu.Unlock()

	m.notify(&url, 0)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.watch(conn)
	}()
}

func (m *Manager) watch(conn *Conn) {
	select {
	case <-m.done:
		return
	case err := <-conn.Done():
		// Teardown closes the provider process too; do not treat that
		// as a drop.
		select {
		case <-m.done:
			return
		default:
		}

		m.logger.Warn().Err(err).Msg("Tunnel dropped, reconnecting")

		m.mu.Lock()
		m.conn = nil
		m.state.URL = nil
		retries := m.state.Retries
		m.mu.Unlock()

		m.notify(nil, retries)
		m.reconnect()
	}
}

// reconnect retries until a tunnel is confirmed or the manager shuts
// down. Attempts are paced by exponential backoff with jitter and
// counted in TunnelState.Retries.
func (m *Manager) reconnect() {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.initialInterval
	b.MaxInterval = m.maxInterval

	for {
		wait := b.NextBackOff()

		select {
		case <-m.done:
			return
		case <-time.After(wait):
		}

		m.mu.Lock()
		m.state.Retries++
		attempt := m.state.Retries
		port := m.localPort
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), reconnectAttemptTimeout)
		conn, err := m.provider.Open(ctx, port)

		cancel()

		if err != nil {
			m.logger.Warn().Err(err).Int("attempt", attempt).Msg("Tunnel reconnect failed")
			continue
		}

		m.adopt(conn)

		return
	}
}

func (m *Manager) notify(url *string, retries int) {
	if m.onChange != nil {
		m.onChange(url, retries)
	}
}
