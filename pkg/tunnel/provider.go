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

// Package tunnel exposes a local port through a publicly reachable URL
// and keeps the mapping alive across drops.
package tunnel

import "context"

// Provider opens one tunnel from a public URL to a local port.
type Provider interface {
	Open(ctx context.Context, localPort int) (*Conn, error)
}

// Conn is one established tunnel. Done yields when the tunnel drops;
// the error may be nil for a clean provider exit.
type Conn struct {
	URL string

	done    <-chan error
	closeFn func()
}

func NewConn(url string, done <-chan error, closeFn func()) *Conn {
	return &Conn{URL: url, done: done, closeFn: closeFn}
}

func (c *Conn) Done() <-chan error {
	return c.done
}

func (c *Conn) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}
