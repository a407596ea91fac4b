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

package solace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KBchulan/jmReader/internal/codec"
	"github.com/KBchulan/jmReader/pkg/core"
	"solace.dev/go/messaging"
	"solace.dev/go/messaging/pkg/solace"
	"solace.dev/go/messaging/pkg/solace/config"
	"solace.dev/go/messaging/pkg/solace/resource"
)

type Sink struct {
	name      string
	host      string
	vpn       string
	username  string
	password  string
	topic     string
	mu        sync.RWMutex
	service   solace.MessagingService
	publisher solace.DirectMessagePublisher
	logger    *slog.Logger
}

// New builds a Solace direct-messaging sink. topic may contain {kind}.
func New(name, host, vpn, username, password, topic string, logger *slog.Logger) *Sink {
	return &Sink{
		name:     name,
		host:     host,
		vpn:      vpn,
		username: username,
		password: password,
		topic:    topic,
		logger:   logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "solace" }

func (s *Sink) Connect(ctx context.Context) error {
	service, err := messaging.NewMessagingServiceBuilder().
		FromConfigurationProvider(config.ServicePropertyMap{
			config.TransportLayerPropertyHost:                s.host,
			config.ServicePropertyVPNName:                    s.vpn,
			config.AuthenticationPropertySchemeBasicUserName: s.username,
			config.AuthenticationPropertySchemeBasicPassword: s.password,
		}).Build()
	if err != nil {
		return fmt.Errorf("solace build: %w", err)
	}
	if err = service.Connect(); err != nil {
		return fmt.Errorf("solace connect: %w", err)
	}

	publisher, err := service.CreateDirectMessagePublisherBuilder().Build()
	if err != nil {
		service.Disconnect()
		return fmt.Errorf("solace publisher build: %w", err)
	}
	if err = publisher.Start(); err != nil {
		service.Disconnect()
		return fmt.Errorf("solace publisher start: %w", err)
	}

	s.mu.Lock()
	s.service, s.publisher = service, publisher
	s.mu.Unlock()

	s.logger.Info("solace sink connected", "name", s.name, "host", s.host)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	service, publisher := s.service, s.publisher
	s.service, s.publisher = nil, nil
	s.mu.Unlock()

	if publisher != nil {
		publisher.Terminate(5 * time.Second)
	}
	if service != nil {
		return service.Disconnect()
	}
	return nil
}

func (s *Sink) Publish(ctx context.Context, evt core.Event) error {
	s.mu.RLock()
	service, publisher := s.service, s.publisher
	s.mu.RUnlock()
	if publisher == nil {
		return core.ErrSinkNotConnected
	}

	data, err := codec.Encode(evt)
	if err != nil {
		return err
	}
	msg, err := service.MessageBuilder().BuildWithByteArrayPayload(data)
	if err != nil {
		return fmt.Errorf("solace message build: %w", err)
	}
	return publisher.Publish(msg, resource.TopicOf(codec.ExpandTopic(s.topic, evt)))
}
