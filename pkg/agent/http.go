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
	"net/http"

	"github.com/gorilla/mux"

	"github.com/carverauto/deviceradar/pkg/command"
	httpx "github.com/carverauto/deviceradar/pkg/http"
	"github.com/carverauto/deviceradar/pkg/logger"
)

// Router builds the agent's local HTTP surface: health, on-demand
// device enumeration, the websocket command channel and the engine
// proxy.
func (a *Agent) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/devices", a.handleDevices).Methods(http.MethodGet)
	r.Handle("/commands", command.NewServer(a, logger.NewComponentLogger(a.logger, "command")))
	r.PathPrefix("/engine/").HandlerFunc(a.handleEngineProxy)

	return httpx.CommonMiddleware(r, logger.NewComponentLogger(a.logger, "http"))
}

// handleHealth returns the in-memory snapshot. It performs no I/O, so
// it stays responsive while the engine or controller misbehave.
func (a *Agent) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snapshot := a.state.Snapshot(a.supervisor.Running())

	writeJSON(w, http.StatusOK, snapshot)
}

// handleDevices runs a fresh enumeration pass, bypassing the known set.
func (a *Agent) handleDevices(w http.ResponseWriter, r *http.Request) {
	records := a.scanner.Discover(r.Context())

	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}
