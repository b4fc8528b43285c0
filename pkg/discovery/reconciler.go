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
	"context"
	"sync"
	"time"

	"github.com/carverauto/deviceradar/pkg/logger"
	"github.com/carverauto/deviceradar/pkg/models"
)

const defaultScanInterval = 60 * time.Second

// DeviceSink is the agent's known-device set. Membership gates whether
// a device gets re-registered with the controller.
type DeviceSink interface {
	KnownDevice(udid string) bool
	AddDevice(rec models.DeviceRecord)
	RefreshDevice(udid string, seen time.Time)
}

// DeviceRegistrar posts a newly discovered device to the controller.
type DeviceRegistrar interface {
	RegisterDiscoveredDevice(ctx context.Context, rec models.DeviceRecord) error
}

// Reconciler runs discovery once at startup and then on a fixed
// interval, registering devices not yet in the known set. A failed
// registration leaves the device out of the set, so the next cycle
// retries it naturally.
type Reconciler struct {
	scanner   *Scanner
	sink      DeviceSink
	registrar DeviceRegistrar
	interval  time.Duration
	clock     Clock
	logger    logger.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewReconciler(scanner *Scanner, sink DeviceSink, registrar DeviceRegistrar, interval time.Duration, clock Clock, log logger.Logger) *Reconciler {
	if clock == nil {
		clock = realClock{}
	}

	if interval <= 0 {
		interval = defaultScanInterval
	}

	return &Reconciler{
		scanner:   scanner,
		sink:      sink,
		registrar: registrar,
		interval:  interval,
		clock:     clock,
		logger:    log,
		done:      make(chan struct{}),
	}
}

// Start runs the initial scan, then loops until ctx cancel or Stop.
func (r *Reconciler) Start(ctx context.Context) error {
	r.wg.Add(1)
	defer r.wg.Done()

	r.logger.Info().Dur("interval", r.interval).Msg("Starting device discovery loop")

	r.RunCycle(ctx)

	ticker := r.clock.Ticker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return nil
		case <-ticker.Chan():
			r.RunCycle(ctx)
		}
	}
}

// Stop halts the loop. Safe to call before or after Start returns.
func (r *Reconciler) Stop(_ context.Context) error {
	r.closeOnce.Do(func() {
		close(r.done)
	})

	r.wg.Wait()

	return nil
}

// RunCycle performs one discover-and-register pass. Devices within a
// cycle are registered sequentially; a slow controller stretches the
// cycle rather than reordering devices.
func (r *Reconciler) RunCycle(ctx context.Context) {
	records := r.scanner.Discover(ctx)

	for _, rec := range records {
		if r.sink.KnownDevice(rec.UDID) {
			r.sink.RefreshDevice(rec.UDID, rec.LastSeen)
			continue
		}

		if err := r.registrar.RegisterDiscoveredDevice(ctx, rec); err != nil {
			r.logger.Warn().
				Err(err).
				Str("udid", rec.UDID).
				Msg("Device registration failed, will retry on next scan")

			continue
		}

		r.sink.AddDevice(rec)

		r.logger.Info().
			Str("udid", rec.UDID).
			Str("platform", string(rec.Platform)).
			Str("name", rec.Name).
			Msg("Registered new device")
	}
}
