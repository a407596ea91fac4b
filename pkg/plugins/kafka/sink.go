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

package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/KBchulan/jmReader/internal/codec"
	"github.com/KBchulan/jmReader/pkg/core"
	"github.com/segmentio/kafka-go"
)

// Sink writes event envelopes to one Kafka topic, keyed by event kind so
// events of a kind stay in one partition.
type Sink struct {
	name    string
	brokers []string
	topic   string
	mu      sync.RWMutex
	writer  *kafka.Writer
	logger  *slog.Logger
}

func New(name string, brokers []string, topic string, logger *slog.Logger) *Sink {
	return &Sink{
		name:    name,
		brokers: brokers,
		topic:   topic,
		logger:  logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "kafka" }

func (s *Sink) Connect(ctx context.Context) error {
	if len(s.brokers) == 0 || s.topic == "" {
		return fmt.Errorf("kafka sink %s: brokers and topic are required", s.name)
	}
	s.mu.Lock()
	s.writer = &kafka.Writer{
		Addr:                   kafka.TCP(s.brokers...),
		Topic:                  s.topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	s.mu.Unlock()
	s.logger.Info("kafka sink connected",
		"name", s.name,
		"brokers", strings.Join(s.brokers, ","),
		"topic", s.topic,
	)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	w := s.writer
	s.writer = nil
	s.mu.Unlock()
	if w != nil {
		return w.Close()
	}
	return nil
}

func (s *Sink) Publish(ctx context.Context, evt core.Event) error {
	s.mu.RLock()
	w := s.writer
	s.mu.RUnlock()
	if w == nil {
		return core.ErrSinkNotConnected
	}

	data, err := codec.Encode(evt)
	if err != nil {
		return err
	}
	return w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.Kind),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(evt.ID)},
		},
	})
}
