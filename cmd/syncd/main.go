// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KBchulan/jmReader/internal/backoff"
	"github.com/KBchulan/jmReader/internal/catalog"
	"github.com/KBchulan/jmReader/internal/catalog/snapshot"
	"github.com/KBchulan/jmReader/internal/dispatch"
	"github.com/KBchulan/jmReader/internal/logging"
	"github.com/KBchulan/jmReader/internal/realtime"
	"github.com/KBchulan/jmReader/internal/relay"
	"github.com/KBchulan/jmReader/internal/status"
	"github.com/KBchulan/jmReader/internal/transport"
	"github.com/KBchulan/jmReader/pkg/config"
	"github.com/KBchulan/jmReader/pkg/plugins"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := config.LoadEnv(); err != nil {
		logger.Error("failed to load env file", "error", err)
		os.Exit(1)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "/etc/syncd/config.yaml"
	}

	cfg, fromFile, err := loadConfig(configPath)
	if err != nil {
		logger.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := snapshot.New(cfg.SnapshotConfig(), logger.With("component", "snapshot"))
	if err != nil {
		logger.Error("failed to open snapshot store", "error", err)
		os.Exit(1)
	}

	fetcher, err := catalog.NewHTTPFetcher(cfg.API.BaseURL, cfg.API.Timeout, logger.With("component", "api"))
	if err != nil {
		logger.Error("invalid api base url", "error", err)
		os.Exit(1)
	}

	policy, err := backoff.New(cfg.BackoffSettings())
	if err != nil {
		logger.Error("invalid reconnect policy", "error", err)
		os.Exit(1)
	}

	registry := dispatch.NewRegistry(logger.With("component", "dispatch"))
	eventLog := logging.NewEventLogger(logger.With("component", "event"))
	dialer := transport.NewWebSocketDialer(cfg.TransportSettings(), logger.With("component", "transport"))

	mgr := realtime.NewManager(realtime.Options{
		BaseURL:  cfg.Server.BaseURL,
		Origin:   cfg.Server.Origin,
		Dialer:   dialer,
		Policy:   policy,
		Registry: registry,
		Logger:   logger.With("component", "realtime"),
		EventLog: eventLog,
	})

	cat := catalog.New(fetcher, store, catalog.Settings{
		PageSize:         cfg.API.PageSize,
		LatestLimit:      cfg.API.LatestLimit,
		RecommendedLimit: cfg.API.RecommendedLimit,
	}, logger.With("component", "catalog"))
	if err := cat.Register(mgr); err != nil {
		logger.Error("failed to register catalog handlers", "error", err)
		os.Exit(1)
	}
	if err := cat.Restore(ctx); err != nil {
		logger.Warn("catalog snapshot not restored", "error", err)
	}
	cat.Reload()

	sinks := plugins.NewRegistry(logger)
	registerSinks(cfg, sinks, logger)
	if total := len(cfg.Sinks); total > 0 {
		up := sinks.ConnectSinks(ctx)
		logger.Info("sinks connected", "connected", up, "configured", total)
	}

	table := relay.NewTable()
	for _, r := range cfg.Routes() {
		table.Add(r)
	}
	router := relay.NewRouter(table, sinks, mgr, relay.Options{}, logger.With("component", "relay"))
	if err := router.Start(ctx); err != nil {
		logger.Error("failed to start relay", "error", err)
		os.Exit(1)
	}

	if fromFile {
		watcher := config.NewWatcher(configPath, router, 0, logger.With("component", "config"))
		go watcher.Watch(ctx)
	}

	statusSrv := status.New(status.Options{
		Addr:       cfg.Status.Addr,
		Connection: mgr,
		Dispatcher: registry,
		Catalog:    cat,
		Sinks:      sinks,
		Relay:      router,
	}, logger.With("component", "status"))
	go func() {
		if err := statusSrv.Start(ctx); err != nil {
			logger.Error("status server failed", "error", err)
		}
	}()

	mgr.Connect()
	logger.Info("syncd started", "config", configPath, "api", cfg.API.BaseURL)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down syncd")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	mgr.Close()
	router.Stop()
	if err := statusSrv.Stop(shutdownCtx); err != nil {
		logger.Warn("status server shutdown", "error", err)
	}
	cancel()
	cat.Close()
	sinks.StopAll(shutdownCtx)
	if err := store.Close(); err != nil {
		logger.Warn("snapshot store close", "error", err)
	}

	logger.Info("syncd stopped")
}

// loadConfig falls back to defaults plus environment when the file is absent.
func loadConfig(path string) (*config.Config, bool, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}
	cfg = config.Default()
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

func registerSinks(cfg *config.Config, reg *plugins.Registry, logger *slog.Logger) {
	for _, s := range cfg.Sinks {
		sink, err := plugins.NewSink(s.Name, s.Type, s.Config, logger)
		if err != nil {
			logger.Warn("skipping sink", "name", s.Name, "type", s.Type, "error", err)
			continue
		}
		reg.RegisterSink(sink)
	}
}
