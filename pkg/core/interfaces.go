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

package core

import "context"

// Handler receives events of the kinds it was subscribed to. A returned error
// is logged by the dispatcher and does not stop delivery to other handlers.
type Handler interface {
	Handle(ctx context.Context, evt Event) error
}

type HandlerFunc func(ctx context.Context, evt Event) error

func (f HandlerFunc) Handle(ctx context.Context, evt Event) error { return f(ctx, evt) }

// Subscriber is the subscription surface handed to data-sync consumers.
// Unsubscribe reports whether an entry was removed.
type Subscriber interface {
	Subscribe(kind string, h Handler) (SubscriptionID, error)
	Unsubscribe(kind string, id SubscriptionID) bool
}

// Conn is one live duplex channel. Only the reader side is used.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Sink is a broker the relay forwards selected events to.
type Sink interface {
	Name() string
	Type() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Publish(ctx context.Context, evt Event) error
}
