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

package relay

import (
	"sort"
	"sync"
)

// Route sends every event of Kind to each named sink.
type Route struct {
	Kind  string
	Sinks []string
}

type Table struct {
	routes sync.Map
}

func NewTable() *Table {
	return &Table{}
}

func (t *Table) Add(route *Route) {
	t.routes.Store(route.Kind, route)
}

func (t *Table) Remove(kind string) {
	t.routes.Delete(kind)
}

func (t *Table) Lookup(kind string) (*Route, bool) {
	v, ok := t.routes.Load(kind)
	if !ok {
		return nil, false
	}
	return v.(*Route), true
}

func (t *Table) ReplaceAll(routes []*Route) {
	t.routes.Range(func(key, _ any) bool {
		t.routes.Delete(key)
		return true
	})
	for _, r := range routes {
		t.routes.Store(r.Kind, r)
	}
}

// Kinds lists the routed kinds in sorted order.
func (t *Table) Kinds() []string {
	var kinds []string
	t.routes.Range(func(key, _ any) bool {
		kinds = append(kinds, key.(string))
		return true
	})
	sort.Strings(kinds)
	return kinds
}
