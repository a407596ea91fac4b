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

package status

import (
	"sync"

	"github.com/google/uuid"
)

type message struct {
	event string
	id    string
	data  []byte
}

// hub fans messages out to SSE clients. A client whose buffer is full misses
// the message rather than slowing everyone else down.
type hub struct {
	mu      sync.Mutex
	clients map[string]chan message
	buffer  int
	closed  bool
}

func newHub(buffer int) *hub {
	return &hub{clients: make(map[string]chan message), buffer: buffer}
}

func (h *hub) add() (string, <-chan message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return "", nil, false
	}
	id := uuid.New().String()
	ch := make(chan message, h.buffer)
	h.clients[id] = ch
	return id, ch, true
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(ch)
	}
}

// broadcast returns how many clients missed msg.
func (h *hub) broadcast(msg message) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	missed := 0
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			missed++
		}
	}
	return missed
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.clients {
		delete(h.clients, id)
		close(ch)
	}
}
