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
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/deviceradar/pkg/models"
)

func TestHealthEndpoint(t *testing.T) {
	a := newTestAgent(t, "https://controller.example.com")

	url := "https://alpha.example.com"
	a.state.SetStatus(models.StatusRegistered)
	a.state.SetTunnel(&url, 0)
	a.state.SetRegistered(true, a.state.Identity().StartedAt)
	a.state.AddDevice(models.DeviceRecord{UDID: "emulator-5554"})

	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snap models.HealthSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))

	assert.Equal(t, models.StatusRegistered, snap.Status)
	assert.Equal(t, a.state.AgentID(), snap.AgentID)
	assert.False(t, snap.EngineRunning)
	require.NotNil(t, snap.TunnelURL)
	assert.Equal(t, url, *snap.TunnelURL)
	assert.Equal(t, []string{"emulator-5554"}, snap.KnownDeviceIDs)
}

func TestHealthEndpointMethodNotAllowed(t *testing.T) {
	a := newTestAgent(t, "https://controller.example.com")

	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/health", "application/json", nil)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestDevicesEndpoint(t *testing.T) {
	// The enumeration tools are absent on test hosts; the endpoint must
	// still answer with a JSON list rather than an error.
	a := newTestAgent(t, "https://controller.example.com")

	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/devices")
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var records []models.DeviceRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
}

func engineStub(t *testing.T, handler http.HandlerFunc) (host string, port int) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	addr := srv.Listener.Addr().(*net.TCPAddr)

	return "127.0.0.1", addr.Port
}

func TestEngineProxyForwardsVerbatim(t *testing.T) {
	var (
		gotMethod      string
		gotPath        string
		gotQuery       string
		gotContentType string
		gotBody        []byte
	)

	host, port := engineStub(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("X-Engine", "ok")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"value":{"sessionId":"abc"}}`))
	})

	a := newTestAgent(t, "https://controller.example.com")
	a.config.Engine.Host = host
	a.config.Engine.Port = port

	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPut,
		srv.URL+"/engine/session/abc/url?timeout=5", strings.NewReader(`{"url":"https://example.com"}`))
	require.NoError(t, err)

	// The engine requires JSON no matter what the caller declares.
	req.Header.Set("Content-Type", "text/plain")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/session/abc/url", gotPath)
	assert.Equal(t, "timeout=5", gotQuery)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"url":"https://example.com"}`, string(gotBody))

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ok", resp.Header.Get("X-Engine"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":{"sessionId":"abc"}}`, string(body))
}

func TestEngineProxyUpstreamDown(t *testing.T) {
	a := newTestAgent(t, "https://controller.example.com")

	// Nothing listens on port 1.
	a.config.Engine.Port = 1

	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/engine/status")
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "engine request failed", body["error"])
}

func TestCORSPreflight(t *testing.T) {
	a := newTestAgent(t, "https://controller.example.com")

	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/health", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
