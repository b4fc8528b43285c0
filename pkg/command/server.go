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

package command

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/carverauto/deviceradar/pkg/logger"
)

// Handler receives decoded commands.
type Handler interface {
	HandleStartDevice(ctx context.Context, cmd StartDevice)
	HandleStopDevice(ctx context.Context, cmd StopDevice)
}

// Server upgrades inbound connections and dispatches frames to the
// handler. The channel is fire-and-forget: no acknowledgements are
// sent and unrecognized frames are dropped without closing the
// connection.
type Server struct {
	handler  Handler
	logger   logger.Logger
	upgrader websocket.Upgrader
}

func NewServer(handler Handler, log logger.Logger) *Server {
	return &Server{
		handler: handler,
		logger:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The channel is reached through the tunnel or localhost;
			// origin enforcement belongs to the controller edge.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Command channel upgrade failed")
		return
	}

	defer func() {
		_ = conn.Close()
	}()

	s.logger.Info().Str("remote_addr", r.RemoteAddr).Msg("Command channel connected")

	ctx := r.Context()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn().Err(err).Msg("Command channel closed unexpectedly")
			} else {
				s.logger.Debug().Str("remote_addr", r.RemoteAddr).Msg("Command channel closed")
			}

			return
		}

		s.Dispatch(ctx, data)
	}
}

// Dispatch decodes one frame and routes it. Malformed and unknown
// frames are logged and dropped; neither mutates agent state.
func (s *Server) Dispatch(ctx context.Context, data []byte) {
	cmd, err := Decode(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Dropping malformed command frame")
		return
	}

	switch c := cmd.(type) {
	case StartDevice:
		s.handler.HandleStartDevice(ctx, c)
	case StopDevice:
		s.handler.HandleStopDevice(ctx, c)
	case Unknown:
		s.logger.Warn().Str("type", c.Type).Msg("Dropping unrecognized command type")
	}
}
