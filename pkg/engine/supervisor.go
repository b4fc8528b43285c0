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

// Package engine supervises the local automation-engine subprocess.
package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/carverauto/deviceradar/pkg/logger"
	"github.com/carverauto/deviceradar/pkg/models"
)

const (
	defaultBinary       = "appium"
	defaultHost         = "127.0.0.1"
	defaultPort         = 4723
	defaultReadyMarker  = "Appium REST http interface listener started"
	defaultStartTimeout = 30 * time.Second
)

var (
	// ErrStartupTimeout is fatal: the engine never emitted its readiness
	// marker inside the configured window.
	ErrStartupTimeout = errors.New("engine did not become ready before the startup deadline")

	// ErrEngineExited is fatal: the engine process died before readiness.
	ErrEngineExited = errors.New("engine exited before becoming ready")

	errAlreadyStarted = errors.New("engine already started")
)

// Config describes how to launch and probe the automation engine.
type Config struct {
	Binary       string          `json:"binary,omitempty"`
	Host         string          `json:"host,omitempty"`
	Port         int             `json:"port,omitempty"`
	Args         []string        `json:"args,omitempty"`
	ReadyMarker  string          `json:"ready_marker,omitempty"`
	StartTimeout models.Duration `json:"start_timeout,omitempty"`
	Version      string          `json:"version,omitempty"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.Binary == "" {
		c.Binary = defaultBinary
	}

	if c.Host == "" {
		c.Host = defaultHost
	}

	if c.Port == 0 {
		c.Port = defaultPort
	}

	if c.ReadyMarker == "" {
		c.ReadyMarker = defaultReadyMarker
	}

	if time.Duration(c.StartTimeout) == 0 {
		c.StartTimeout = models.Duration(defaultStartTimeout)
	}

	return nil
}

// BaseURL is the engine's local HTTP endpoint.
func (c *Config) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// Supervisor launches the engine, waits for its readiness banner and
// owns shutdown. There is no automatic restart on unexpected exit;
// a crash after startup surfaces as Running() == false.
type Supervisor struct {
	config *Config
	logger logger.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	exited   chan struct{}
	started  bool
	stopOnce sync.Once
}

func NewSupervisor(config *Config, log logger.Logger) *Supervisor {
	return &Supervisor{
		config: config,
		logger: log,
	}
}

// Start spawns the engine and blocks until the readiness marker appears
// on its output, the process exits, the startup window elapses, or ctx
// is canceled. It resolves exactly once per supervisor.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.started {
		s.mu.Unlock()
		return errAlreadyStarted
	}

	args := []string{"--port", strconv.Itoa(s.config.Port), "--relaxed-security"}
	args = append(args, s.config.Args...)

	cmd := exec.Command(s.config.Binary, args...)

	pr, pw, err := os.Pipe()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("create engine output pipe: %w", err)
	}

	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		_ = pr.Close()
		_ = pw.Close()

		return fmt.Errorf("start engine %q: %w", s.config.Binary, err)
	}

	// The child holds its own copy of the write end; closing ours lets
	// the scanner see EOF when the engine exits.
	_ = pw.Close()

	ready := make(chan struct{})
	exited := make(chan struct{})

	s.cmd = cmd
	s.exited = exited
	s.started = true
	s.mu.Unlock()

	s.logger.Info().
		Str("binary", s.config.Binary).
		Int("port", s.config.Port).
		Msg("Starting automation engine")

	go s.watchOutput(pr, ready)

	go func() {
		waitErr := cmd.Wait()
		close(exited)

		if waitErr != nil {
			s.logger.Warn().Err(waitErr).Msg("Engine process exited")
		} else {
			s.logger.Info().Msg("Engine process exited")
		}
	}()

	timeout := time.Duration(s.config.StartTimeout)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ready:
		s.logger.Info().Msg("Engine ready")
		return nil
	case <-exited:
		return ErrEngineExited
	case <-timer.C:
		s.Stop()
		return fmt.Errorf("%w (%s)", ErrStartupTimeout, timeout)
	case <-ctx.Done():
		s.Stop()
		return ctx.Err()
	}
}

// watchOutput scans engine output for the readiness marker and keeps
// draining for the process lifetime so the child never blocks on a
// full pipe.
func (s *Supervisor) watchOutput(r io.ReadCloser, ready chan struct{}) {
	defer func() {
		_ = r.Close()
	}()

	var once sync.Once

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		s.logger.Debug().Str("line", line).Msg("engine output")

		if strings.Contains(line, s.config.ReadyMarker) {
			once.Do(func() { close(ready) })
		}
	}
}

// Running reports whether the engine process is alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return false
	}

	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// Stop sends SIGTERM to the engine. Safe to call multiple times; calls
// after the first are no-ops.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		cmd := s.cmd
		s.mu.Unlock()

		if cmd == nil || cmd.Process == nil {
			return
		}

		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			s.logger.Debug().Err(err).Msg("Engine terminate signal failed (already gone?)")
		}
	})
}
