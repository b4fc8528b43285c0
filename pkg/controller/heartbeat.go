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
	"sync"
	"time"

	"github.com/carverauto/deviceradar/pkg/logger"
)

const defaultHeartbeatInterval = 15 * time.Second

// Heartbeater keeps controller-side agent state fresh. Each tick
// attempts exactly one call: registration while unregistered (lazy
// re-registration), otherwise a heartbeat. Any failure flips the
// source to unregistered so the next tick self-heals.
type Heartbeater struct {
	client   *Client
	source   StatusSource
	interval time.Duration
	clock    Clock
	logger   logger.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewHeartbeater(client *Client, source StatusSource, interval time.Duration, clock Clock, log logger.Logger) *Heartbeater {
	if clock == nil {
		clock = realClock{}
	}

	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}

	return &Heartbeater{
		client:   client,
		source:   source,
		interval: interval,
		clock:    clock,
		logger:   log,
		done:     make(chan struct{}),
	}
}

// Start runs the heartbeat loop until ctx is canceled or Stop is called.
func (h *Heartbeater) Start(ctx context.Context) error {
	ticker := h.clock.Ticker(h.interval)
	defer ticker.Stop()

	h.wg.Add(1)
	defer h.wg.Done()

	h.logger.Info().Dur("interval", h.interval).Msg("Starting heartbeat loop")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.done:
			return nil
		case <-ticker.Chan():
			h.Tick(ctx)
		}
	}
}

// Stop halts the loop. Safe to call before or after Start returns.
func (h *Heartbeater) Stop(_ context.Context) error {
	h.closeOnce.Do(func() {
		close(h.done)
	})

	h.wg.Wait()

	return nil
}

// Tick performs one registration-or-heartbeat attempt. The outcome is
// applied to the source before Tick returns.
func (h *Heartbeater) Tick(ctx context.Context) {
	if !h.source.IsRegistered() {
		h.Register(ctx)
		return
	}

	hb := h.source.Heartbeat()

	if err := h.client.Heartbeat(ctx, h.source.AgentID(), hb); err != nil {
		h.logger.Warn().Err(err).Msg("Heartbeat failed, will re-register on next tick")
		h.source.SetRegistered(false, time.Time{})

		return
	}

	h.source.SetRegistered(true, h.clock.Now())
}

// Register announces the agent to the controller. Failures are logged
// and swallowed: a controller outage must never block agent startup.
func (h *Heartbeater) Register(ctx context.Context) {
	reg := h.source.Registration()

	if err := h.client.RegisterAgent(ctx, reg); err != nil {
		h.logger.Error().Err(err).Msg("Agent registration failed")
		h.source.SetRegistered(false, time.Time{})

		return
	}

	h.logger.Info().Str("agent_id", reg.AgentID).Msg("Agent registered with controller")
	h.source.SetRegistered(true, h.clock.Now())
}
