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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/carverauto/deviceradar/pkg/agent"
	"github.com/carverauto/deviceradar/pkg/config"
	"github.com/carverauto/deviceradar/pkg/lifecycle"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/deviceradar/agent.json", "Path to agent config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg agent.Config
	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	agentLogger, err := lifecycle.CreateComponentLogger("agent", cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	svc := agent.New(&cfg, agentLogger)

	return lifecycle.Run(ctx, svc, agentLogger)
}
