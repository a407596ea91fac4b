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
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/KBchulan/jmReader/internal/catalog/snapshot"
	"github.com/KBchulan/jmReader/pkg/core"
)

const (
	DefaultPageSize         = 20
	DefaultLatestLimit      = 10
	DefaultRecommendedLimit = 6
)

var ErrEmptyKeyword = errors.New("search keyword must not be empty")

// Snapshot keys for the cached collections.
const (
	KeyComics      = "comics"
	KeyLatest      = "latest"
	KeyRecommended = "recommended"
)

type Settings struct {
	PageSize         int
	LatestLimit      int
	RecommendedLimit int
}

func (s *Settings) applyDefaults() {
	if s.PageSize <= 0 {
		s.PageSize = DefaultPageSize
	}
	if s.LatestLimit <= 0 {
		s.LatestLimit = DefaultLatestLimit
	}
	if s.RecommendedLimit <= 0 {
		s.RecommendedLimit = DefaultRecommendedLimit
	}
}

// State is a point-in-time copy of the catalog.
type State struct {
	Comics         []core.Comic  `json:"comics"`
	Total          int           `json:"total"`
	HasMore        bool          `json:"has_more"`
	Latest         []core.Comic  `json:"latest"`
	Recommended    []core.Comic  `json:"recommended"`
	Filtered       []core.Comic  `json:"filtered"`
	FilterTag      string        `json:"filter_tag,omitempty"`
	Current        *core.Comic   `json:"current,omitempty"`
	CurrentChapter *core.Chapter `json:"current_chapter,omitempty"`
	CurrentPages   []core.Page   `json:"current_pages"`
	Loading        bool          `json:"loading"`
	LastError      string        `json:"last_error,omitempty"`
	Reloads        uint64        `json:"reloads"`
}

// versioned drops results from reloads that were overtaken by a later one.
type versioned[T any] struct {
	issued  atomic.Uint64
	applied uint64
	value   T
}

func (v *versioned[T]) next() uint64 { return v.issued.Add(1) }

// set must be called with the catalog lock held.
func (v *versioned[T]) set(seq uint64, val T) bool {
	if seq <= v.applied {
		return false
	}
	v.applied = seq
	v.value = val
	return true
}

// Catalog mirrors the reader's view of the backend: the comic collections it
// lists and whatever comic and chapter are open. Realtime notifications
// trigger background reloads.
type Catalog struct {
	mu          sync.RWMutex
	comics      versioned[core.PaginatedResult[core.Comic]]
	latest      versioned[[]core.Comic]
	recommended versioned[[]core.Comic]
	current     *core.Comic
	chapter     *core.Chapter
	pages       []core.Page
	filtered    []core.Comic
	filterTag   string
	lastErr     error

	// Deletions seen while an open is in flight, so a slow detail fetch
	// cannot install a comic that was deleted meanwhile.
	deletions uint64
	opening   int
	deletedAt map[core.ID]uint64

	fetcher  Fetcher
	store    snapshot.Store
	settings Settings
	logger   *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inflight atomic.Int32
	reloads  atomic.Uint64

	subMu      sync.Mutex
	subscriber core.Subscriber
	subs       map[string]core.SubscriptionID
}

// New builds a catalog. store may be nil, in which case nothing is cached.
func New(fetcher Fetcher, store snapshot.Store, settings Settings, logger *slog.Logger) *Catalog {
	settings.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Catalog{
		fetcher:  fetcher,
		store:    store,
		settings: settings,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register subscribes the catalog's handlers on sub.
func (c *Catalog) Register(sub core.Subscriber) error {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	added, err := sub.Subscribe(core.KindComicAdded, core.HandlerFunc(c.HandleComicAdded))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", core.KindComicAdded, err)
	}
	deleted, err := sub.Subscribe(core.KindComicDeleted, core.HandlerFunc(c.HandleComicDeleted))
	if err != nil {
		sub.Unsubscribe(core.KindComicAdded, added)
		return fmt.Errorf("subscribe %s: %w", core.KindComicDeleted, err)
	}

	c.subscriber = sub
	c.subs = map[string]core.SubscriptionID{
		core.KindComicAdded:   added,
		core.KindComicDeleted: deleted,
	}
	return nil
}

func (c *Catalog) Unregister() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.subscriber == nil {
		return
	}
	for kind, id := range c.subs {
		c.subscriber.Unsubscribe(kind, id)
	}
	c.subscriber = nil
	c.subs = nil
}

func (c *Catalog) HandleComicAdded(ctx context.Context, evt core.Event) error {
	c.logger.Info("comic added, reloading catalog", "event_id", evt.ID)
	c.Reload()
	return nil
}

// HandleComicDeleted reloads the collections and, when the deleted comic is
// the one open, clears it together with its chapter and pages.
func (c *Catalog) HandleComicDeleted(ctx context.Context, evt core.Event) error {
	c.logger.Info("comic deleted, reloading catalog", "event_id", evt.ID)
	c.Reload()

	n, err := evt.Notification()
	if err != nil {
		return err
	}
	deleted, ok := n.(core.ComicDeleted)
	if !ok || deleted.ComicID == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opening > 0 {
		c.deletions++
		if c.deletedAt == nil {
			c.deletedAt = make(map[core.ID]uint64)
		}
		c.deletedAt[deleted.ComicID] = c.deletions
	}
	c.filtered = removeComic(c.filtered, deleted.ComicID)
	if c.current != nil && c.current.ID == deleted.ComicID {
		c.current = nil
		c.chapter = nil
		c.pages = nil
		c.logger.Info("open comic was deleted", "comic_id", deleted.ComicID)
	}
	return nil
}

// Reload refreshes the three collections in the background.
func (c *Catalog) Reload() {
	c.reloads.Add(1)

	seq := c.comics.next()
	c.spawn(KeyComics, func(ctx context.Context) error {
		res, err := c.fetcher.Comics(ctx, 1, c.settings.PageSize)
		if err != nil {
			return err
		}
		c.mu.Lock()
		applied := c.comics.set(seq, res)
		c.mu.Unlock()
		if applied {
			c.save(ctx, KeyComics, res)
		}
		return nil
	})

	latestSeq := c.latest.next()
	c.spawn(KeyLatest, func(ctx context.Context) error {
		res, err := c.fetcher.Latest(ctx, c.settings.LatestLimit)
		if err != nil {
			return err
		}
		c.mu.Lock()
		applied := c.latest.set(latestSeq, res)
		c.mu.Unlock()
		if applied {
			c.save(ctx, KeyLatest, res)
		}
		return nil
	})

	recSeq := c.recommended.next()
	c.spawn(KeyRecommended, func(ctx context.Context) error {
		res, err := c.fetcher.Recommended(ctx, c.settings.RecommendedLimit)
		if err != nil {
			return err
		}
		c.mu.Lock()
		applied := c.recommended.set(recSeq, res)
		c.mu.Unlock()
		if applied {
			c.save(ctx, KeyRecommended, res)
		}
		return nil
	})
}

func (c *Catalog) spawn(name string, fn func(ctx context.Context) error) {
	c.wg.Add(1)
	c.inflight.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.inflight.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("reload panic recovered", "collection", name, "error", r)
			}
		}()

		if err := fn(c.ctx); err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.setErr(err)
			c.logger.Error("reload failed", "collection", name, "error", err)
		}
	}()
}

func (c *Catalog) save(ctx context.Context, key string, v any) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, key, v); err != nil {
		c.logger.Warn("snapshot save failed", "key", key, "error", err)
	}
}

func (c *Catalog) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// Restore seeds collections that no reload has filled yet from the snapshot
// store. Missing snapshots are skipped.
func (c *Catalog) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	var errs []error
	var comics core.PaginatedResult[core.Comic]
	if err := c.load(ctx, KeyComics, &comics); err != nil {
		errs = append(errs, err)
	} else if comics.Items != nil {
		c.mu.Lock()
		if c.comics.applied == 0 {
			c.comics.value = comics
		}
		c.mu.Unlock()
	}

	var latest []core.Comic
	if err := c.load(ctx, KeyLatest, &latest); err != nil {
		errs = append(errs, err)
	} else if latest != nil {
		c.mu.Lock()
		if c.latest.applied == 0 {
			c.latest.value = latest
		}
		c.mu.Unlock()
	}

	var recommended []core.Comic
	if err := c.load(ctx, KeyRecommended, &recommended); err != nil {
		errs = append(errs, err)
	} else if recommended != nil {
		c.mu.Lock()
		if c.recommended.applied == 0 {
			c.recommended.value = recommended
		}
		c.mu.Unlock()
	}

	return errors.Join(errs...)
}

func (c *Catalog) load(ctx context.Context, key string, v any) error {
	err := c.store.Load(ctx, key, v)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	return err
}

// OpenComic fetches a comic's detail and makes it the open comic. Opening a
// different comic clears the open chapter.
func (c *Catalog) OpenComic(ctx context.Context, id core.ID) error {
	since := c.beginOpen()
	comic, err := c.fetcher.Comic(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	gone := c.endOpenLocked(since, id, comic.ID)
	if err != nil {
		c.lastErr = err
		return fmt.Errorf("open comic %s: %w", id, err)
	}
	if gone {
		return fmt.Errorf("open comic %s: deleted while loading: %w", id, core.ErrNotFound)
	}
	if c.current == nil || c.current.ID != comic.ID {
		c.chapter = nil
		c.pages = nil
	}
	c.current = &comic
	c.lastErr = nil
	return nil
}

// OpenChapter loads the pages of chapterID, formatted "{comicId}-{order}".
// The open chapter is taken from the open comic when the ids agree.
func (c *Catalog) OpenChapter(ctx context.Context, chapterID string) error {
	comicID, order, ok := parseChapterID(chapterID)
	since := c.beginOpen()

	c.mu.Lock()
	if ok && c.current != nil && c.current.ID == comicID {
		c.chapter = nil
		for i := range c.current.Chapters {
			if c.current.Chapters[i].Order == order {
				ch := c.current.Chapters[i]
				c.chapter = &ch
				break
			}
		}
	}
	c.mu.Unlock()

	pages, err := c.fetcher.ChapterPages(ctx, chapterID)

	c.mu.Lock()
	defer c.mu.Unlock()
	gone := ok && c.endOpenLocked(since, comicID)
	if err != nil {
		c.lastErr = err
		return fmt.Errorf("open chapter %s: %w", chapterID, err)
	}
	if gone {
		return fmt.Errorf("open chapter %s: comic deleted while loading: %w", chapterID, core.ErrNotFound)
	}
	c.pages = pages
	c.lastErr = nil
	return nil
}

func (c *Catalog) beginOpen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opening++
	return c.deletions
}

// endOpenLocked reports whether any of ids was deleted after since.
func (c *Catalog) endOpenLocked(since uint64, ids ...core.ID) bool {
	gone := false
	for _, id := range ids {
		if id != "" && c.deletedAt[id] > since {
			gone = true
		}
	}
	c.opening--
	if c.opening == 0 {
		c.deletedAt = nil
	}
	return gone
}

// Search queries the backend search endpoint. Results are returned, not
// stored.
func (c *Catalog) Search(ctx context.Context, params core.SearchParams) (core.PaginatedResult[core.Comic], error) {
	if strings.TrimSpace(params.Keyword) == "" {
		return core.PaginatedResult[core.Comic]{}, ErrEmptyKeyword
	}
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		params.PageSize = c.settings.PageSize
	}
	res, err := c.fetcher.Search(ctx, params)
	if err != nil {
		c.setErr(err)
		return res, fmt.Errorf("search %q: %w", params.Keyword, err)
	}
	return res, nil
}

// ComicsByTag reloads a page of comics and keeps those carrying tag as the
// filtered collection. The result is never paginated further.
func (c *Catalog) ComicsByTag(ctx context.Context, tag string, page, pageSize int) (core.PaginatedResult[core.Comic], error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = c.settings.PageSize
	}

	seq := c.comics.next()
	res, err := c.fetcher.Comics(ctx, page, pageSize)
	if err != nil {
		c.setErr(err)
		return core.PaginatedResult[core.Comic]{}, fmt.Errorf("comics by tag %q: %w", tag, err)
	}

	filtered := make([]core.Comic, 0, len(res.Items))
	for _, comic := range res.Items {
		if slices.Contains(comic.Tags, tag) {
			filtered = append(filtered, comic)
		}
	}

	c.mu.Lock()
	applied := c.comics.set(seq, res)
	c.filtered = filtered
	c.filterTag = tag
	c.lastErr = nil
	c.mu.Unlock()
	if applied {
		c.save(ctx, KeyComics, res)
	}

	return core.PaginatedResult[core.Comic]{
		Items:    append([]core.Comic(nil), filtered...),
		Total:    len(filtered),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func removeComic(comics []core.Comic, id core.ID) []core.Comic {
	out := comics[:0:0]
	for _, comic := range comics {
		if comic.ID != id {
			out = append(out, comic)
		}
	}
	return out
}

func parseChapterID(id string) (core.ID, int, bool) {
	comic, orderStr, ok := strings.Cut(id, "-")
	if !ok || comic == "" {
		return "", 0, false
	}
	order, err := strconv.Atoi(orderStr)
	if err != nil {
		return "", 0, false
	}
	return core.ID(comic), order, true
}

// Reset empties every collection and the open comic.
func (c *Catalog) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.comics.value = core.PaginatedResult[core.Comic]{}
	c.latest.value = nil
	c.recommended.value = nil
	c.filtered = nil
	c.filterTag = ""
	c.current = nil
	c.chapter = nil
	c.pages = nil
	c.lastErr = nil
}

func (c *Catalog) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := State{
		Comics:       append([]core.Comic(nil), c.comics.value.Items...),
		Total:        c.comics.value.Total,
		HasMore:      c.comics.value.HasMore,
		Latest:       append([]core.Comic(nil), c.latest.value...),
		Recommended:  append([]core.Comic(nil), c.recommended.value...),
		Filtered:     append([]core.Comic(nil), c.filtered...),
		FilterTag:    c.filterTag,
		CurrentPages: append([]core.Page(nil), c.pages...),
		Loading:      c.inflight.Load() > 0,
		Reloads:      c.reloads.Load(),
	}
	if c.current != nil {
		cur := *c.current
		s.Current = &cur
	}
	if c.chapter != nil {
		ch := *c.chapter
		s.CurrentChapter = &ch
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// Wait blocks until every background reload started so far has finished.
func (c *Catalog) Wait() {
	c.wg.Wait()
}

// Close cancels in-flight reloads and waits for them to return.
func (c *Catalog) Close() {
	c.Unregister()
	c.cancel()
	c.wg.Wait()
}
