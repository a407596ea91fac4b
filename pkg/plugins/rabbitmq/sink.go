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

package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/KBchulan/jmReader/internal/codec"
	"github.com/KBchulan/jmReader/pkg/core"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Sink publishes envelopes to an exchange. With no exchange the default one
// is used and the routing key names the queue, which is declared on connect.
type Sink struct {
	name       string
	url        string
	exchange   string
	routingKey string
	mu         sync.RWMutex
	conn       *amqp.Connection
	pubCh      *amqp.Channel
	logger     *slog.Logger
}

func New(name, url, exchange, routingKey string, logger *slog.Logger) *Sink {
	return &Sink{
		name:       name,
		url:        url,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "rabbitmq" }

func (s *Sink) Connect(ctx context.Context) error {
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq publish channel: %w", err)
	}

	if s.exchange == "" && s.routingKey != "" && s.routingKey != codec.KindPlaceholder {
		if _, err := ch.QueueDeclare(s.routingKey, true, false, false, false, nil); err != nil {
			conn.Close()
			return fmt.Errorf("rabbitmq queue declare %s: %w", s.routingKey, err)
		}
	}

	s.mu.Lock()
	s.conn = conn
	s.pubCh = ch
	s.mu.Unlock()

	s.logger.Info("rabbitmq sink connected", "name", s.name, "exchange", s.exchange, "routing_key", s.routingKey)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	conn, ch := s.conn, s.pubCh
	s.conn, s.pubCh = nil, nil
	s.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (s *Sink) Publish(ctx context.Context, evt core.Event) error {
	s.mu.RLock()
	ch := s.pubCh
	s.mu.RUnlock()
	if ch == nil {
		return core.ErrSinkNotConnected
	}

	data, err := codec.Encode(evt)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx,
		s.exchange,
		codec.ExpandTopic(s.routingKey, evt),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         data,
			MessageId:    evt.ID,
			Type:         evt.Kind,
			Timestamp:    evt.ReceivedAt,
		},
	)
}
