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

// Package agent wires the engine supervisor, tunnel manager, controller
// client, device discovery and the local HTTP surface into one service.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/carverauto/deviceradar/pkg/controller"
	"github.com/carverauto/deviceradar/pkg/discovery"
	"github.com/carverauto/deviceradar/pkg/engine"
	"github.com/carverauto/deviceradar/pkg/logger"
	"github.com/carverauto/deviceradar/pkg/models"
	"github.com/carverauto/deviceradar/pkg/tunnel"
)

const (
	defaultListenAddr        = ":8089"
	defaultHeartbeatInterval = 15 * time.Second
	defaultDiscoveryInterval = 60 * time.Second
)

var errControllerURLRequired = errors.New("controller_url is required")

// Config is the agent's on-disk configuration document.
type Config struct {
	ControllerURL     string          `json:"controller_url"`
	ListenAddr        string          `json:"listen_addr,omitempty"`
	Engine            engine.Config   `json:"engine,omitempty"`
	Tunnel            tunnel.Config   `json:"tunnel,omitempty"`
	HeartbeatInterval models.Duration `json:"heartbeat_interval,omitempty"`
	DiscoveryInterval models.Duration `json:"discovery_interval,omitempty"`
	Logging           *logger.Config  `json:"logging,omitempty"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.ControllerURL == "" {
		return errControllerURLRequired
	}

	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if time.Duration(c.HeartbeatInterval) == 0 {
		c.HeartbeatInterval = models.Duration(defaultHeartbeatInterval)
	}

	if time.Duration(c.DiscoveryInterval) == 0 {
		c.DiscoveryInterval = models.Duration(defaultDiscoveryInterval)
	}

	if err := c.Engine.Validate(); err != nil {
		return err
	}

	return c.Tunnel.Validate()
}

// Agent is the local device agent service.
type Agent struct {
	config *Config
	logger logger.Logger

	state       *State
	supervisor  *engine.Supervisor
	tunnelMgr   *tunnel.Manager
	client      *controller.Client
	heartbeater *controller.Heartbeater
	scanner     *discovery.Scanner
	reconciler  *discovery.Reconciler

	listener   net.Listener
	httpServer *http.Server
}

// New builds a fully wired but not yet started agent.
func New(cfg *Config, log logger.Logger) *Agent {
	tunnelLog := logger.NewComponentLogger(log, "tunnel")
	discoveryLog := logger.NewComponentLogger(log, "discovery")

	a := &Agent{
		config:     cfg,
		logger:     log,
		state:      NewState(),
		supervisor: engine.NewSupervisor(&cfg.Engine, logger.NewComponentLogger(log, "engine")),
		tunnelMgr:  tunnel.NewManager(tunnel.NewExecProvider(&cfg.Tunnel, tunnelLog), tunnelLog),
		client:     controller.NewClient(cfg.ControllerURL, logger.NewComponentLogger(log, "controller")),
		scanner:    discovery.NewScanner(discoveryLog),
	}

	a.heartbeater = controller.NewHeartbeater(
		a.client, a, time.Duration(cfg.HeartbeatInterval), nil, logger.NewComponentLogger(log, "heartbeat"))
	a.reconciler = discovery.NewReconciler(
		a.scanner, a.state, a, time.Duration(cfg.DiscoveryInterval), nil, discoveryLog)

	a.tunnelMgr.OnChange(func(url *string, retries int) {
		a.state.SetTunnel(url, retries)
	})

	a.httpServer = &http.Server{
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a
}

// Start brings the agent up in order: local listener, engine, tunnel,
// registration, then the background loops. Only the listener bind and
// the engine failing to become ready are fatal.
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info().
		Str("agent_id", a.state.AgentID()).
		Str("listen_addr", a.config.ListenAddr).
		Msg("Starting device agent")

	// Binding before the engine spawns doubles as the single-instance
	// guard: a second agent on this host fails here, before it can
	// fight over the engine port.
	ln, err := net.Listen("tcp", a.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.config.ListenAddr, err)
	}

	a.listener = ln

	a.state.SetStatus(models.StatusEngineStarting)

	if err := a.supervisor.Start(ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("engine startup: %w", err)
	}

	a.state.SetStatus(models.StatusEngineReady)

	a.state.SetStatus(models.StatusTunnelConnecting)

	localPort := ln.Addr().(*net.TCPAddr).Port

	if _, err := a.tunnelMgr.Connect(ctx, localPort); err != nil {
		a.logger.Warn().Err(err).Msg("Tunnel not yet available, reconnecting in background")
	} else {
		a.state.SetStatus(models.StatusTunnelReady)
	}

	a.state.SetStatus(models.StatusRegistering)
	a.heartbeater.Register(ctx)

	go func() {
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	go func() {
		if err := a.heartbeater.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error().Err(err).Msg("Heartbeat loop stopped")
		}
	}()

	go func() {
		if err := a.reconciler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error().Err(err).Msg("Discovery loop stopped")
		}
	}()

	return nil
}

// Stop shuts the agent down: loops first so nothing reports state
// mid-teardown, then the HTTP surface, the engine and the tunnel.
func (a *Agent) Stop(ctx context.Context) error {
	a.state.SetStatus(models.StatusShuttingDown)

	_ = a.heartbeater.Stop(ctx)
	_ = a.reconciler.Stop(ctx)

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("HTTP server shutdown")
	}

	a.supervisor.Stop()
	a.tunnelMgr.Disconnect()

	a.state.SetStatus(models.StatusStopped)

	a.logger.Info().Msg("Device agent stopped")

	return nil
}

// AgentID implements controller.StatusSource.
func (a *Agent) AgentID() string {
	return a.state.AgentID()
}

// IsRegistered implements controller.StatusSource.
func (a *Agent) IsRegistered() bool {
	return a.state.IsRegistered()
}

// SetRegistered implements controller.StatusSource.
func (a *Agent) SetRegistered(registered bool, at time.Time) {
	a.state.SetRegistered(registered, at)
}

// Registration implements controller.StatusSource. Rebuilt per attempt
// so a tunnel URL that changed between retries is never re-sent stale.
func (a *Agent) Registration() *models.AgentRegistration {
	tunnelURL := ""
	if url := a.state.TunnelURL(); url != nil {
		tunnelURL = *url
	}

	return &models.AgentRegistration{
		AgentID:      a.state.AgentID(),
		TunnelURL:    tunnelURL,
		AppiumURL:    a.config.Engine.BaseURL(),
		Capabilities: a.capabilities(),
		Timestamp:    time.Now(),
	}
}

// Heartbeat implements controller.StatusSource.
func (a *Agent) Heartbeat() *models.HeartbeatStatus {
	return &models.HeartbeatStatus{
		Status:         "online",
		EngineRunning:  a.supervisor.Running(),
		TunnelURL:      a.state.TunnelURL(),
		KnownDeviceIDs: a.state.KnownDeviceIDs(),
		Timestamp:      time.Now(),
	}
}

// RegisterDiscoveredDevice implements discovery.DeviceRegistrar.
func (a *Agent) RegisterDiscoveredDevice(ctx context.Context, rec models.DeviceRecord) error {
	tunnelURL := ""
	if url := a.state.TunnelURL(); url != nil {
		tunnelURL = *url
	}

	return a.client.RegisterDevice(ctx, &models.DeviceRegistration{
		UDID:      rec.UDID,
		Platform:  string(rec.Platform),
		Name:      rec.Name,
		Status:    rec.Status,
		LastSeen:  rec.LastSeen,
		AgentID:   a.state.AgentID(),
		TunnelURL: tunnelURL,
		AppiumURL: a.config.Engine.BaseURL(),
	})
}

func (a *Agent) capabilities() models.AgentCapabilities {
	platform := runtime.GOOS

	if info, err := host.Info(); err == nil && info.Platform != "" {
		platform = fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion)
	}

	return models.AgentCapabilities{
		Platform:      platform,
		EngineVersion: a.config.Engine.Version,
		Port:          a.config.Engine.Port,
	}
}
