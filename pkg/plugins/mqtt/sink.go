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

package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KBchulan/jmReader/internal/codec"
	"github.com/KBchulan/jmReader/pkg/core"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Sink publishes to an MQTT 3.1.1 broker. The client reconnects on its own;
// publishes made while it is down fail fast.
type Sink struct {
	name   string
	broker string
	topic  string
	qos    byte
	mu     sync.RWMutex
	client mqtt.Client
	logger *slog.Logger
}

func New(name, broker, topic string, qos byte, logger *slog.Logger) *Sink {
	if qos > 2 {
		qos = 1
	}
	return &Sink{
		name:   name,
		broker: broker,
		topic:  topic,
		qos:    qos,
		logger: logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "mqtt" }

func (s *Sink) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.broker).
		SetClientID("jmreader-" + s.name + "-" + uuid.New().String()[:8]).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetOnConnectHandler(func(mqtt.Client) {
			s.logger.Info("mqtt connected", "name", s.name, "broker", s.broker)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.logger.Warn("mqtt connection lost", "name", s.name, "error", err)
		})

	client := mqtt.NewClient(opts)
	if err := wait(ctx, client.Connect()); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", s.broker, err)
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()
	if client != nil {
		client.Disconnect(250)
	}
	return nil
}

func (s *Sink) Publish(ctx context.Context, evt core.Event) error {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil || !client.IsConnectionOpen() {
		return core.ErrSinkNotConnected
	}

	data, err := codec.Encode(evt)
	if err != nil {
		return err
	}
	return wait(ctx, client.Publish(codec.ExpandTopic(s.topic, evt), s.qos, false, data))
}

func wait(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
