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

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KBchulan/jmReader/internal/backoff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  origin: https://reader.example.com
  ping_interval: 20s
reconnect:
  strategy: exponential
  initial: 1s
  max: 30s
  multiplier: 2
  jitter: 0.2
api:
  base_url: https://api.example.com/api
  page_size: 30
cache:
  store: redis
  redis_addr: localhost:6379
  ttl: 1h
log:
  level: debug
sinks:
  - name: kafka-main
    type: kafka
    config:
      brokers: "localhost:9092"
      topic: comics
relays:
  - kind: comic_added
    sinks: [kafka-main]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/api", cfg.Server.BaseURL, "server base url follows the api")
	assert.Equal(t, "https://reader.example.com", cfg.Server.Origin)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, 30, cfg.API.PageSize)

	assert.Equal(t, backoff.Settings{
		Strategy:   backoff.StrategyExponential,
		Delay:      backoff.DefaultDelay,
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 2,
		Jitter:     0.2,
	}, cfg.BackoffSettings())

	ts := cfg.TransportSettings()
	assert.Equal(t, 20*time.Second, ts.PingInterval)
	assert.Equal(t, 60*time.Second, ts.ReadTimeout)

	sc := cfg.SnapshotConfig()
	assert.Equal(t, "redis", sc.Store)
	assert.Equal(t, time.Hour, sc.TTL)

	require.Len(t, cfg.Sinks, 1)
	assert.Equal(t, "comics", cfg.Sinks[0].Config["topic"])

	routes := cfg.Routes()
	require.Len(t, routes, 1)
	assert.Equal(t, "comic_added", routes[0].Kind)
	assert.Equal(t, []string{"kafka-main"}, routes[0].Sinks)

	level, err := ParseLevel(cfg.Log.Level)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, backoff.StrategyFixed, cfg.Reconnect.Strategy)
	assert.Equal(t, 5*time.Second, cfg.Reconnect.Delay)
	assert.Equal(t, "memory", cfg.Cache.Store)
	assert.Equal(t, ":8090", cfg.Status.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, cfg.API.BaseURL, cfg.Server.BaseURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvAPIBaseURL, "http://10.0.0.5:8000/api")
	t.Setenv(EnvOrigin, "https://app.example.com")
	t.Setenv(EnvStatusAddr, "127.0.0.1:9999")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(writeConfig(t, "api:\n  base_url: http://ignored/api\n"))
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:8000/api", cfg.API.BaseURL)
	assert.Equal(t, "http://10.0.0.5:8000/api", cfg.Server.BaseURL)
	assert.Equal(t, "https://app.example.com", cfg.Server.Origin)
	assert.Equal(t, "127.0.0.1:9999", cfg.Status.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)

	def := Default()
	assert.Equal(t, "127.0.0.1:9999", def.Status.Addr)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad level", "log:\n  level: loud\n", "unknown level"},
		{"bad strategy", "reconnect:\n  strategy: linear\n", "unknown strategy"},
		{"redis without addr", "cache:\n  store: redis\n", "redis_addr"},
		{"unknown store", "cache:\n  store: etcd\n", "unknown store"},
		{"sink without type", "sinks:\n  - name: a\n", "name and type are required"},
		{"duplicate sink", "sinks:\n  - {name: a, type: kafka}\n  - {name: a, type: mqtt}\n", "duplicate name"},
		{"relay to unknown sink", "relays:\n  - kind: comic_added\n    sinks: [nope]\n", "unknown sink"},
		{"relay without kind", "sinks:\n  - {name: a, type: kafka}\nrelays:\n  - sinks: [a]\n", "kind is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("/nonexistent/path")
	assert.ErrorContains(t, err, "read config")

	_, err = Load(writeConfig(t, "server: [not, a, map]\n"))
	assert.ErrorContains(t, err, "parse config")
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JMREADER_TEST_ONLY=from-file\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("JMREADER_TEST_ONLY") })

	require.NoError(t, LoadEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("JMREADER_TEST_ONLY"))
}
