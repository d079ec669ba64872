// Copyright 2025 MindOps Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// The control-plane command serves the authenticated, audited HTTP API over
// the policy, SLO, RCA and topology surfaces.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Huzefaaa2/MindOps/pkg/controlplane"
)

func main() {
	app := kingpin.New("control-plane", "MindOps control plane API server.")

	var (
		listenAddr = app.Flag("listen-addr", "Address to serve the API on.").Default(":8088").String()
		apiKey     = app.Flag("api-key", "API key required on every request; empty disables auth.").
				Envar("CONTROL_PLANE_API_KEY").String()
		authzMode = app.Flag("authz-mode", "Authorization mode.").
				Envar("CONTROL_PLANE_AUTHZ_MODE").Default("allow-all").Enum("allow-all", "deny-all", "scoped")
		statePath = app.Flag("store", "Control-plane state file.").
				Envar("CONTROL_PLANE_STORE").Default("data/control_plane_state.json").String()
		auditPath = app.Flag("audit-log", "Append-only JSON-Lines audit log.").
				Envar("CONTROL_PLANE_AUDIT_LOG").Default("data/audit.log").String()
		sloStorePath = app.Flag("slo-store", "SLO store file served by /slo/export.").
				Envar("SLO_STORE_PATH").Default("data/slo_store.json").String()
		logLevel = app.Flag("log-level", "Log level.").Default("info").Enum("debug", "info", "warn", "error")
	)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	logger := setupLogger(*logLevel)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	server := controlplane.NewServer(controlplane.Options{
		APIKey:       *apiKey,
		AuthzMode:    controlplane.AuthzMode(*authzMode),
		StatePath:    *statePath,
		AuditPath:    *auditPath,
		SLOStorePath: *sloStorePath,
		Registry:     registry,
	}, logger)

	httpServer := &http.Server{
		Addr:         *listenAddr,
		Handler:      server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	var g run.Group
	// Termination handler.
	{
		term := make(chan os.Signal, 1)
		cancel := make(chan struct{})
		signal.Notify(term, os.Interrupt, syscall.SIGTERM)

		g.Add(
			func() error {
				select {
				case <-term:
					level.Info(logger).Log("msg", "received SIGTERM, exiting gracefully...")
				case <-cancel:
				}
				return nil
			},
			func(error) {
				close(cancel)
			},
		)
	}
	// API server.
	{
		g.Add(func() error {
			level.Info(logger).Log("msg", "listening", "addr", *listenAddr)
			return httpServer.ListenAndServe()
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			_ = httpServer.Shutdown(ctx)
			cancel()
		})
	}
	if err := g.Run(); err != nil && err != http.ErrServerClosed {
		level.Error(logger).Log("msg", "exit with error", "err", err)
		os.Exit(1)
	}
}

func setupLogger(lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	switch lvl {
	case "debug":
		logger = level.NewFilter(logger, level.AllowDebug())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	default:
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
}
