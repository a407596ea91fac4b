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

import (
	"encoding/json"
	"fmt"
)

// Notification is the closed set of typed events the catalog backend pushes.
// Kinds outside the set decode to Unknown so dispatch stays open-ended.
type Notification interface {
	Kind() string
	isNotification()
}

type ComicAdded struct {
	ComicID ID     `json:"comic_id"`
	Title   string `json:"title,omitempty"`
}

type ComicDeleted struct {
	ComicID ID `json:"comic_id"`
}

type Unknown struct {
	EventKind string
	Raw       json.RawMessage
}

func (ComicAdded) Kind() string   { return KindComicAdded }
func (ComicDeleted) Kind() string { return KindComicDeleted }
func (u Unknown) Kind() string    { return u.EventKind }

func (ComicAdded) isNotification()   {}
func (ComicDeleted) isNotification() {}
func (Unknown) isNotification()      {}

// Notification decodes the event payload into its typed variant.
func (e Event) Notification() (Notification, error) {
	switch e.Kind {
	case KindComicAdded:
		var n ComicAdded
		if err := json.Unmarshal(e.Payload, &n); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Kind, err)
		}
		return n, nil
	case KindComicDeleted:
		var n ComicDeleted
		if err := json.Unmarshal(e.Payload, &n); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Kind, err)
		}
		return n, nil
	default:
		return Unknown{EventKind: e.Kind, Raw: e.Payload}, nil
	}
}
