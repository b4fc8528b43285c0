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
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sync"
	"syscall"
	"time"

	"github.com/carverauto/deviceradar/pkg/logger"
	"github.com/carverauto/deviceradar/pkg/models"
)

const (
	defaultTunnelBinary   = "cloudflared"
	defaultConnectTimeout = 30 * time.Second
)

var (
	// ErrConnectTimeout means the tunnel client never printed a public URL.
	ErrConnectTimeout = errors.New("tunnel client did not publish a url in time")

	errTunnelClientExited = errors.New("tunnel client exited before publishing a url")

	publicURLPattern = regexp.MustCompile(`https://[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\S*`)
)

// Config describes the external tunnel client.
type Config struct {
	Binary         string          `json:"binary,omitempty"`
	Args           []string        `json:"args,omitempty"`
	ConnectTimeout models.Duration `json:"connect_timeout,omitempty"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.Binary == "" {
		c.Binary = defaultTunnelBinary
	}

	if len(c.Args) == 0 {
		c.Args = []string{"tunnel", "--url"}
	}

	if time.Duration(c.ConnectTimeout) == 0 {
		c.ConnectTimeout = models.Duration(defaultConnectTimeout)
	}

	return nil
}

// ExecProvider runs a tunnel client binary and parses the public URL
// from its output. The subprocess exiting is the drop signal.
type ExecProvider struct {
	config *Config
	logger logger.Logger
}

func NewExecProvider(config *Config, log logger.Logger) *ExecProvider {
	return &ExecProvider{config: config, logger: log}
}

func (p *ExecProvider) Open(ctx context.Context, localPort int) (*Conn, error) {
	args := append(append([]string{}, p.config.Args...), fmt.Sprintf("http://127.0.0.1:%d", localPort))

	cmd := exec.Command(p.config.Binary, args...)

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create tunnel output pipe: %w", err)
	}

	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()

		return nil, fmt.Errorf("start tunnel client %q: %w", p.config.Binary, err)
	}

	_ = pw.Close()

	urlCh := make(chan string, 1)
	done := make(chan error, 1)

	go func() {
		defer func() {
			_ = pr.Close()
		}()

		var once sync.Once

		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			line := scanner.Text()

			p.logger.Debug().Str("line", line).Msg("tunnel output")

			if url := publicURLPattern.FindString(line); url != "" {
				once.Do(func() { urlCh <- url })
			}
		}
	}()

	go func() {
		done <- cmd.Wait()
	}()

	terminate := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
		}
	}

	timer := time.NewTimer(time.Duration(p.config.ConnectTimeout))
	defer timer.Stop()

	select {
	case url := <-urlCh:
		p.logger.Info().Str("url", url).Int("local_port", localPort).Msg("Tunnel established")
		return NewConn(url, done, terminate), nil
	case waitErr := <-done:
		if waitErr != nil {
			return nil, fmt.Errorf("%w: %w", errTunnelClientExited, waitErr)
		}

		return nil, errTunnelClientExited
	case <-timer.C:
		terminate()
		return nil, ErrConnectTimeout
	case <-ctx.Done():
		terminate()
		return nil, ctx.Err()
	}
}
