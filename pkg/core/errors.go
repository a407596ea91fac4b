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

import "errors"

var (
	ErrEmptyKind        = errors.New("event kind must not be empty")
	ErrNilHandler       = errors.New("handler must not be nil")
	ErrInvalidEndpoint  = errors.New("invalid realtime endpoint")
	ErrSinkNotFound     = errors.New("sink not found")
	ErrSinkNotConnected = errors.New("sink not connected")
	ErrUnknownSinkType  = errors.New("unknown sink type")
	ErrStoreClosed      = errors.New("store closed")
	ErrNotFound         = errors.New("not found")
)
