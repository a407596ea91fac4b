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

package jms

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Azure/go-amqp"
	"github.com/KBchulan/jmReader/internal/codec"
	"github.com/KBchulan/jmReader/pkg/core"
)

// Sink sends envelopes over AMQP 1.0 to a queue on a JMS-style broker
// (ActiveMQ Artemis, Qpid and the like).
type Sink struct {
	name     string
	url      string
	queue    string
	mu       sync.RWMutex
	conn     *amqp.Conn
	sendSess *amqp.Session
	sender   *amqp.Sender
	logger   *slog.Logger
}

func New(name, url, queue string, logger *slog.Logger) *Sink {
	return &Sink{
		name:   name,
		url:    url,
		queue:  queue,
		logger: logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "jms" }

func (s *Sink) Connect(ctx context.Context) error {
	if s.queue == "" {
		return fmt.Errorf("jms sink %s: queue is required", s.name)
	}

	conn, err := amqp.Dial(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("jms dial: %w", err)
	}
	sess, err := conn.NewSession(ctx, nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("jms send session: %w", err)
	}
	sender, err := sess.NewSender(ctx, s.queue, nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("jms sender: %w", err)
	}

	s.mu.Lock()
	s.conn, s.sendSess, s.sender = conn, sess, sender
	s.mu.Unlock()

	s.logger.Info("jms sink connected", "name", s.name, "url", s.url, "queue", s.queue)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	conn, sess, sender := s.conn, s.sendSess, s.sender
	s.conn, s.sendSess, s.sender = nil, nil, nil
	s.mu.Unlock()

	if sender != nil {
		sender.Close(ctx)
	}
	if sess != nil {
		sess.Close(ctx)
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (s *Sink) Publish(ctx context.Context, evt core.Event) error {
	s.mu.RLock()
	sender := s.sender
	s.mu.RUnlock()
	if sender == nil {
		return core.ErrSinkNotConnected
	}

	data, err := codec.Encode(evt)
	if err != nil {
		return err
	}
	contentType := "application/json"
	subject := evt.Kind
	return sender.Send(ctx, &amqp.Message{
		Data: [][]byte{data},
		Properties: &amqp.MessageProperties{
			MessageID:   evt.ID,
			ContentType: &contentType,
			Subject:     &subject,
		},
	}, nil)
}
