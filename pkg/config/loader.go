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
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/KBchulan/jmReader/internal/backoff"
	"github.com/KBchulan/jmReader/internal/catalog/snapshot"
	"github.com/KBchulan/jmReader/internal/relay"
	"github.com/KBchulan/jmReader/internal/transport"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the file is parsed.
const (
	EnvAPIBaseURL = "JMREADER_API_BASE_URL"
	EnvOrigin     = "JMREADER_ORIGIN"
	EnvStatusAddr = "JMREADER_STATUS_ADDR"
	EnvLogLevel   = "JMREADER_LOG_LEVEL"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	API       APIConfig       `yaml:"api"`
	Cache     CacheConfig     `yaml:"cache"`
	Status    StatusConfig    `yaml:"status"`
	Log       LogConfig       `yaml:"log"`
	Sinks     []SinkConfig    `yaml:"sinks"`
	Relays    []RelayConfig   `yaml:"relays"`
}

// ServerConfig locates the realtime channel. BaseURL defaults to the API
// base URL; only its host is used.
type ServerConfig struct {
	BaseURL          string        `yaml:"base_url"`
	Origin           string        `yaml:"origin"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
}

type ReconnectConfig struct {
	Strategy   string        `yaml:"strategy"`
	Delay      time.Duration `yaml:"delay"`
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
	Jitter     float64       `yaml:"jitter"`
}

type APIConfig struct {
	BaseURL          string        `yaml:"base_url"`
	Timeout          time.Duration `yaml:"timeout"`
	PageSize         int           `yaml:"page_size"`
	LatestLimit      int           `yaml:"latest_limit"`
	RecommendedLimit int           `yaml:"recommended_limit"`
}

type CacheConfig struct {
	Store     string        `yaml:"store"`
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

type StatusConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type SinkConfig struct {
	Name   string            `yaml:"name"`
	Type   string            `yaml:"type"`
	Config map[string]string `yaml:"config"`
}

type RelayConfig struct {
	Kind  string   `yaml:"kind"`
	Sinks []string `yaml:"sinks"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnv reads .env files into the process environment. Missing files are
// not an error; variables already set win.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvOrigin); v != "" {
		c.Server.Origin = v
	}
	if v := os.Getenv(EnvStatusAddr); v != "" {
		c.Status.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8000/api"
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = 15 * time.Second
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = c.API.BaseURL
	}
	if c.Server.Origin == "" {
		c.Server.Origin = "http://localhost"
	}
	if c.Reconnect.Strategy == "" {
		c.Reconnect.Strategy = backoff.StrategyFixed
	}
	if c.Reconnect.Delay == 0 {
		c.Reconnect.Delay = backoff.DefaultDelay
	}
	if c.Cache.Store == "" {
		c.Cache.Store = snapshot.StoreMemory
	}
	if c.Status.Addr == "" {
		c.Status.Addr = ":8090"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	var errs []error

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Reconnect.Strategy {
	case backoff.StrategyFixed, backoff.StrategyExponential:
	default:
		errs = append(errs, fmt.Errorf("reconnect.strategy: unknown strategy %q", c.Reconnect.Strategy))
	}
	switch c.Cache.Store {
	case snapshot.StoreMemory:
	case snapshot.StoreRedis:
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.redis_addr is required when store=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.store: unknown store %q", c.Cache.Store))
	}

	names := make(map[string]bool, len(c.Sinks))
	for i, s := range c.Sinks {
		if s.Name == "" || s.Type == "" {
			errs = append(errs, fmt.Errorf("sinks[%d]: name and type are required", i))
			continue
		}
		if names[s.Name] {
			errs = append(errs, fmt.Errorf("sinks[%d]: duplicate name %q", i, s.Name))
		}
		names[s.Name] = true
	}
	for i, r := range c.Relays {
		if r.Kind == "" {
			errs = append(errs, fmt.Errorf("relays[%d]: kind is required", i))
		}
		for _, name := range r.Sinks {
			if !names[name] {
				errs = append(errs, fmt.Errorf("relays[%d]: unknown sink %q", i, name))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level: unknown level %q", s)
	}
}

func (c *Config) BackoffSettings() backoff.Settings {
	return backoff.Settings{
		Strategy:   c.Reconnect.Strategy,
		Delay:      c.Reconnect.Delay,
		Initial:    c.Reconnect.Initial,
		Max:        c.Reconnect.Max,
		Multiplier: c.Reconnect.Multiplier,
		Jitter:     c.Reconnect.Jitter,
	}
}

func (c *Config) TransportSettings() *transport.Settings {
	s := transport.DefaultSettings()
	if c.Server.HandshakeTimeout > 0 {
		s.HandshakeTimeout = c.Server.HandshakeTimeout
	}
	if c.Server.ReadTimeout > 0 {
		s.ReadTimeout = c.Server.ReadTimeout
	}
	if c.Server.PingInterval > 0 {
		s.PingInterval = c.Server.PingInterval
	}
	return s
}

func (c *Config) SnapshotConfig() snapshot.Config {
	return snapshot.Config{
		Store:     c.Cache.Store,
		RedisAddr: c.Cache.RedisAddr,
		TTL:       c.Cache.TTL,
	}
}

func (rc RelayConfig) ToRoute() *relay.Route {
	return &relay.Route{
		Kind:  rc.Kind,
		Sinks: append([]string(nil), rc.Sinks...),
	}
}

func (c *Config) Routes() []*relay.Route {
	routes := make([]*relay.Route, 0, len(c.Relays))
	for _, rc := range c.Relays {
		routes = append(routes, rc.ToRoute())
	}
	return routes
}
