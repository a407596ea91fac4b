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

package endpoint

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/KBchulan/jmReader/pkg/core"
)

const Path = "/ws"

// Resolve derives the realtime URL. The scheme follows the origin's security
// (https -> wss, anything else -> ws). The host comes from baseURL when it
// parses to an absolute URL and from the origin otherwise.
func Resolve(baseURL, origin string, logger *slog.Logger) (string, error) {
	o, err := url.Parse(strings.TrimSpace(origin))
	if err != nil {
		return "", fmt.Errorf("%w: origin %q: %v", core.ErrInvalidEndpoint, origin, err)
	}
	if o.Host == "" {
		return "", fmt.Errorf("%w: origin %q has no host", core.ErrInvalidEndpoint, origin)
	}

	scheme := "ws"
	if strings.EqualFold(o.Scheme, "https") || strings.EqualFold(o.Scheme, "wss") {
		scheme = "wss"
	}

	host := o.Host
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		b, err := url.Parse(baseURL)
		switch {
		case err != nil:
			logger.Warn("cannot parse api base url, using origin host", "base_url", baseURL, "error", err)
		case b.Scheme == "" || b.Host == "":
			logger.Warn("api base url is not absolute, using origin host", "base_url", baseURL)
		default:
			host = b.Host
		}
	}

	u := url.URL{Scheme: scheme, Host: host, Path: Path}
	return u.String(), nil
}
