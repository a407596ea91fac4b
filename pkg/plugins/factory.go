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

package plugins

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/KBchulan/jmReader/pkg/core"
	"github.com/KBchulan/jmReader/pkg/plugins/jms"
	"github.com/KBchulan/jmReader/pkg/plugins/kafka"
	"github.com/KBchulan/jmReader/pkg/plugins/mqtt"
	"github.com/KBchulan/jmReader/pkg/plugins/mqtt5"
	"github.com/KBchulan/jmReader/pkg/plugins/rabbitmq"
	"github.com/KBchulan/jmReader/pkg/plugins/solace"
)

// NewSink builds an unconnected sink of the given type from its config map.
func NewSink(name, typ string, cfg map[string]string, logger *slog.Logger) (core.Sink, error) {
	logger = logger.With("sink", name)

	switch typ {
	case "kafka":
		var brokers []string
		for _, b := range strings.Split(cfg["brokers"], ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		return kafka.New(name, brokers, cfg["topic"], logger), nil

	case "mqtt5":
		return mqtt5.New(name, cfg["broker_url"], cfg["topic"], logger), nil

	case "mqtt":
		qos := byte(1)
		if v, ok := cfg["qos"]; ok {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 || n > 2 {
				return nil, fmt.Errorf("sink %s: invalid qos %q", name, v)
			}
			qos = byte(n)
		}
		return mqtt.New(name, cfg["broker"], cfg["topic"], qos, logger), nil

	case "rabbitmq":
		key := cfg["routing_key"]
		if key == "" {
			key = cfg["queue"]
		}
		return rabbitmq.New(name, cfg["url"], cfg["exchange"], key, logger), nil

	case "jms":
		return jms.New(name, cfg["url"], cfg["queue"], logger), nil

	case "solace":
		return solace.New(name,
			cfg["host"], cfg["vpn"],
			cfg["username"], cfg["password"],
			cfg["topic"],
			logger,
		), nil

	default:
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownSinkType, typ)
	}
}
