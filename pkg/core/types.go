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
	"time"
)

// ConnectionState is the lifecycle state of the realtime channel.
type ConnectionState int32

const (
	StateClosed ConnectionState = iota
	StateConnecting
	StateOpen
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StateChange is delivered to state listeners on every transition.
type StateChange struct {
	Old ConnectionState
	New ConnectionState
	Err error
	At  time.Time
}

// Event kinds pushed by the catalog backend.
const (
	KindComicAdded   = "comic_added"
	KindComicDeleted = "comic_deleted"
)

// Event is one decoded inbound frame. Payload holds the whole frame object.
type Event struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	Payload      json.RawMessage `json:"payload"`
	ConnectionID string          `json:"connection_id"`
	ReceivedAt   time.Time       `json:"received_at"`
}

// SubscriptionID identifies one registry entry. Zero is never issued.
type SubscriptionID uint64

// Comic mirrors the catalog API's comic resource.
type Comic struct {
	ID          ID        `json:"id"`
	Title       string    `json:"title"`
	Cover       string    `json:"cover"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	UpdateTime  string    `json:"updateTime"`
	Status      string    `json:"status"`
	Chapters    []Chapter `json:"chapters,omitempty"`
}

type Chapter struct {
	ID         ID     `json:"id"`
	ComicID    ID     `json:"comicId"`
	Title      string `json:"title"`
	Order      int    `json:"order"`
	UpdateTime string `json:"updateTime"`
	PageCount  int    `json:"pageCount"`
}

type Page struct {
	ID        ID     `json:"id"`
	ChapterID ID     `json:"chapterId"`
	URL       string `json:"url"`
	Order     int    `json:"order"`
}

// PaginatedResult is the list envelope returned by paginated endpoints.
type PaginatedResult[T any] struct {
	Items    []T  `json:"items"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasMore  bool `json:"hasMore"`
}

// Search sort orders accepted by the backend.
const (
	SortNewest  = "newest"
	SortOldest  = "oldest"
	SortPopular = "popular"
)

// SearchParams narrows a catalog search. Tags match when a comic carries any
// of them.
type SearchParams struct {
	Keyword  string   `json:"keyword"`
	Page     int      `json:"page,omitempty"`
	PageSize int      `json:"pageSize,omitempty"`
	Sort     string   `json:"sort,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}
