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

// Package controller is the HTTP client for the cloud controller's
// registration, heartbeat and device-registration endpoints.
package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/carverauto/deviceradar/pkg/logger"
	"github.com/carverauto/deviceradar/pkg/models"
)

const (
	registerTimeout  = 10 * time.Second
	heartbeatTimeout = 5 * time.Second
)

var errUnexpectedStatus = errors.New("controller returned unexpected status")

// Client talks to the controller. Registration and device calls get a
// longer timeout than heartbeats: a slow heartbeat should fail fast and
// let the next tick self-heal.
type Client struct {
	baseURL         string
	registerClient  *http.Client
	heartbeatClient *http.Client
	logger          logger.Logger
}

func NewClient(baseURL string, log logger.Logger) *Client {
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		registerClient:  &http.Client{Timeout: registerTimeout},
		heartbeatClient: &http.Client{Timeout: heartbeatTimeout},
		logger:          log,
	}
}

// RegisterAgent announces this agent to the controller.
func (c *Client) RegisterAgent(ctx context.Context, reg *models.AgentRegistration) error {
	return c.post(ctx, c.registerClient, c.baseURL+"/agents/register", reg)
}

// Heartbeat reports liveness and current state for a registered agent.
func (c *Client) Heartbeat(ctx context.Context, agentID string, hb *models.HeartbeatStatus) error {
	return c.post(ctx, c.heartbeatClient, fmt.Sprintf("%s/agents/%s/heartbeat", c.baseURL, agentID), hb)
}

// RegisterDevice announces one discovered device.
func (c *Client) RegisterDevice(ctx context.Context, reg *models.DeviceRegistration) error {
	return c.post(ctx, c.registerClient, c.baseURL+"/devices/register", reg)
}

func (c *Client) post(ctx context.Context, client *http.Client, url string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request for %s: %w", url, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request for %s: %w", url, err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post to %s: %w", url, err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %s from %s", errUnexpectedStatus, resp.Status, url)
	}

	return nil
}
