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

package plugins

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/KBchulan/jmReader/pkg/core"
)

type Registry struct {
	sinks   map[string]core.Sink
	healthy map[string]bool
	logger  *slog.Logger
	mu      sync.RWMutex
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		sinks:   make(map[string]core.Sink),
		healthy: make(map[string]bool),
		logger:  logger,
	}
}

func (r *Registry) RegisterSink(s core.Sink) {
	r.mu.Lock()
	r.sinks[s.Name()] = s
	r.mu.Unlock()
	r.logger.Info("registered sink", "name", s.Name(), "type", s.Type())
}

func (r *Registry) Sink(name string) (core.Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sinks[name]
	return s, ok
}

func (r *Registry) Sinks() map[string]core.Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[string]core.Sink, len(r.sinks))
	for k, v := range r.sinks {
		cp[k] = v
	}
	return cp
}

// ConnectSinks connects every registered sink and returns how many came up.
// A sink that fails stays registered but is marked unhealthy. Connects run
// outside the registry lock so Status stays responsive.
func (r *Registry) ConnectSinks(ctx context.Context) int {
	connected := 0
	for name, s := range r.Sinks() {
		err := s.Connect(ctx)
		if err != nil {
			r.logger.Error("sink connect failed", "name", name, "error", err)
		} else {
			connected++
		}
		r.setHealthyIfCurrent(name, s, err == nil)
	}
	return connected
}

// setHealthyIfCurrent ignores sinks replaced while a network call was running.
func (r *Registry) setHealthyIfCurrent(name string, s core.Sink, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sinks[name] == s {
		r.healthy[name] = ok
	}
}

func (r *Registry) IsSinkHealthy(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.healthy[name]
}

func (r *Registry) SetHealthy(name string, ok bool) {
	r.mu.Lock()
	if _, exists := r.sinks[name]; exists {
		r.healthy[name] = ok
	}
	r.mu.Unlock()
}

type SinkStatus struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Healthy bool   `json:"healthy"`
}

func (r *Registry) Status() []SinkStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SinkStatus, 0, len(r.sinks))
	for name, s := range r.sinks {
		out = append(out, SinkStatus{Name: name, Type: s.Type(), Healthy: r.healthy[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) StopAll(ctx context.Context) {
	for name, s := range r.Sinks() {
		r.logger.Info("stopping sink", "name", name)
		if err := s.Disconnect(ctx); err != nil {
			r.logger.Warn("sink disconnect failed", "name", name, "error", err)
		}
		r.setHealthyIfCurrent(name, s, false)
	}
}
