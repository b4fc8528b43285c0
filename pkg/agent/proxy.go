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
	"context"
	"io"
	"net/http"
	"strings"
	"time"
)

const proxyTimeout = 30 * time.Second

// Connection-scoped headers are not forwarded in either direction.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

var proxyClient = &http.Client{Timeout: proxyTimeout}

// handleEngineProxy forwards /engine/* to the local automation engine
// verbatim: same method, same body, same response status and body. The
// Content-Type is forced to application/json because the engine's REST
// surface rejects anything else, regardless of what remote session
// libraries send.
func (a *Agent) handleEngineProxy(w http.ResponseWriter, r *http.Request) {
	target := a.config.Engine.BaseURL() + strings.TrimPrefix(r.URL.Path, "/engine")
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	ctx, cancel := context.WithTimeout(r.Context(), proxyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		a.logger.Error().Err(err).Str("target", target).Msg("Engine proxy request build failed")
		a.writeProxyError(w)

		return
	}

	copyHeaders(req.Header, r.Header)
	req.Header.Set("Content-Type", "application/json")

	resp, err := proxyClient.Do(req)
	if err != nil {
		a.logger.Error().
			Err(err).
			Str("method", r.Method).
			Str("target", target).
			Msg("Engine request failed")
		a.writeProxyError(w)

		return
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		a.logger.Debug().Err(err).Msg("Engine proxy response copy interrupted")
	}
}

// writeProxyError is deliberately generic: engine failure details stay
// in the agent log, not in responses that transit the public tunnel.
func (a *Agent) writeProxyError(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": "engine request failed"})
}

func copyHeaders(dst, src http.Header) {
	for name, values := range src {
		if isHopByHop(name) {
			continue
		}

		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func isHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}

	return false
}
