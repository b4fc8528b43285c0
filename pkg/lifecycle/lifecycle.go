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

// Package lifecycle runs a service until the process is told to stop.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/deviceradar/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// Service is a long-running component with explicit start and stop.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Run starts the service and blocks until SIGINT or SIGTERM, then stops
// it under a bounded shutdown window.
func Run(ctx context.Context, svc Service, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("service start: %w", err)
	}

	<-ctx.Done()

	log.Info().Msg("Shutdown signal received")

	// A fresh context: the signal context is already canceled.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := svc.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("service stop: %w", err)
	}

	return nil
}

// CreateComponentLogger creates a logger tagged with a component field.
func CreateComponentLogger(component string, config *logger.Config) (logger.Logger, error) {
	if config == nil {
		config = logger.DefaultConfig()
	}

	log, err := logger.New(config)
	if err != nil {
		return nil, err
	}

	return logger.NewComponentLogger(log, component), nil
}
