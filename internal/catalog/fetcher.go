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

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/KBchulan/jmReader/pkg/core"
)

const DefaultTimeout = 15 * time.Second

// Fetcher reads catalog collections from the backend REST API.
type Fetcher interface {
	Comics(ctx context.Context, page, pageSize int) (core.PaginatedResult[core.Comic], error)
	Latest(ctx context.Context, limit int) ([]core.Comic, error)
	Recommended(ctx context.Context, limit int) ([]core.Comic, error)
	Comic(ctx context.Context, id core.ID) (core.Comic, error)
	Search(ctx context.Context, params core.SearchParams) (core.PaginatedResult[core.Comic], error)
	ChapterPages(ctx context.Context, chapterID string) ([]core.Page, error)
}

type HTTPFetcher struct {
	base   *url.URL
	client *http.Client
	logger *slog.Logger
}

func NewHTTPFetcher(baseURL string, timeout time.Duration, logger *slog.Logger) (*HTTPFetcher, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api base url %q must be absolute", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPFetcher{
		base:   u,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

func (f *HTTPFetcher) Comics(ctx context.Context, page, pageSize int) (core.PaginatedResult[core.Comic], error) {
	var res core.PaginatedResult[core.Comic]
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	err := f.get(ctx, "comics", q, &res)
	return res, err
}

func (f *HTTPFetcher) Latest(ctx context.Context, limit int) ([]core.Comic, error) {
	var res []core.Comic
	err := f.get(ctx, "comics/latest", limitQuery(limit), &res)
	return res, err
}

func (f *HTTPFetcher) Recommended(ctx context.Context, limit int) ([]core.Comic, error) {
	var res []core.Comic
	err := f.get(ctx, "comics/recommended", limitQuery(limit), &res)
	return res, err
}

func (f *HTTPFetcher) Comic(ctx context.Context, id core.ID) (core.Comic, error) {
	var res core.Comic
	err := f.get(ctx, "comics/"+url.PathEscape(id.String()), nil, &res)
	return res, err
}

func (f *HTTPFetcher) Search(ctx context.Context, params core.SearchParams) (core.PaginatedResult[core.Comic], error) {
	var res core.PaginatedResult[core.Comic]
	q := url.Values{}
	q.Set("keyword", params.Keyword)
	q.Set("page", strconv.Itoa(params.Page))
	q.Set("pageSize", strconv.Itoa(params.PageSize))
	if params.Sort != "" {
		q.Set("sort", params.Sort)
	}
	for _, tag := range params.Tags {
		q.Add("tags", tag)
	}
	err := f.get(ctx, "comics/search", q, &res)
	return res, err
}

func (f *HTTPFetcher) ChapterPages(ctx context.Context, chapterID string) ([]core.Page, error) {
	var res []core.Page
	err := f.get(ctx, "chapters/"+url.PathEscape(chapterID)+"/pages", nil, &res)
	return res, err
}

func limitQuery(limit int) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	return q
}

func (f *HTTPFetcher) get(ctx context.Context, path string, query url.Values, out any) error {
	u := f.base.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", u.Path, err)
	}
	defer resp.Body.Close()

	f.logger.Debug("api request",
		"path", u.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: GET %s", core.ErrNotFound, u.Path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", u.Path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", u.Path, err)
	}
	return nil
}
