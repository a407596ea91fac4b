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

package mqtt5

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/KBchulan/jmReader/internal/codec"
	"github.com/KBchulan/jmReader/pkg/core"
	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
)

type Sink struct {
	name      string
	brokerURL string
	topic     string
	mu        sync.RWMutex
	cm        *autopaho.ConnectionManager
	logger    *slog.Logger
}

// New builds an MQTT v5 sink. topic may contain {kind}.
func New(name, brokerURL, topic string, logger *slog.Logger) *Sink {
	return &Sink{
		name:      name,
		brokerURL: brokerURL,
		topic:     topic,
		logger:    logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "mqtt5" }

func (s *Sink) Connect(ctx context.Context) error {
	serverURL, err := url.Parse(s.brokerURL)
	if err != nil {
		return fmt.Errorf("mqtt5 invalid URL: %w", err)
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{serverURL},
		KeepAlive:                     30,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         60,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			s.logger.Info("mqtt5 connection up", "name", s.name)
		},
		OnConnectError: func(err error) {
			s.logger.Warn("mqtt5 connection attempt failed", "name", s.name, "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "jmreader-" + s.name + "-" + uuid.New().String()[:8],
		},
	}

	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return fmt.Errorf("mqtt5 connection: %w", err)
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("mqtt5 await connection: %w", err)
	}

	s.mu.Lock()
	s.cm = cm
	s.mu.Unlock()
	s.logger.Info("mqtt5 sink connected", "name", s.name, "broker", s.brokerURL)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	cm := s.cm
	s.cm = nil
	s.mu.Unlock()
	if cm != nil {
		return cm.Disconnect(ctx)
	}
	return nil
}

func (s *Sink) Publish(ctx context.Context, evt core.Event) error {
	s.mu.RLock()
	cm := s.cm
	s.mu.RUnlock()
	if cm == nil {
		return core.ErrSinkNotConnected
	}

	data, err := codec.Encode(evt)
	if err != nil {
		return err
	}
	_, err = cm.Publish(ctx, &paho.Publish{
		Topic:   codec.ExpandTopic(s.topic, evt),
		QoS:     1,
		Payload: data,
		Properties: &paho.PublishProperties{
			ContentType: "application/json",
		},
	})
	return err
}
