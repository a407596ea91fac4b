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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/KBchulan/jmReader/internal/catalog"
	"github.com/KBchulan/jmReader/internal/codec"
	"github.com/KBchulan/jmReader/internal/realtime"
	"github.com/KBchulan/jmReader/internal/relay"
	"github.com/KBchulan/jmReader/pkg/core"
	"github.com/KBchulan/jmReader/pkg/plugins"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Connection interface {
	Stats() realtime.Stats
	Connected() bool
	OnStateChange(fn func(core.StateChange)) int
	RemoveStateListener(id int)
}

type Dispatcher interface {
	core.Subscriber
	Kinds() map[string]int
}

type CatalogView interface {
	Snapshot() catalog.State
	Search(ctx context.Context, params core.SearchParams) (core.PaginatedResult[core.Comic], error)
	ComicsByTag(ctx context.Context, tag string, page, pageSize int) (core.PaginatedResult[core.Comic], error)
}

type SinkView interface {
	Status() []plugins.SinkStatus
}

type RelayView interface {
	Stats() relay.Stats
}

// Options wires the server to the rest of the daemon. Catalog, Sinks and
// Relay are optional.
type Options struct {
	Addr       string
	Connection Connection
	Dispatcher Dispatcher
	Catalog    CatalogView
	Sinks      SinkView
	Relay      RelayView
	// EventKinds are streamed on /events; defaults to the catalog kinds.
	EventKinds []string
}

type CatalogSummary struct {
	Comics      int     `json:"comics"`
	Total       int     `json:"total"`
	Latest      int     `json:"latest"`
	Recommended int     `json:"recommended"`
	Current     core.ID `json:"current,omitempty"`
	Loading     bool    `json:"loading"`
	LastError   string  `json:"last_error,omitempty"`
	Reloads     uint64  `json:"reloads"`
}

type Report struct {
	Connection  realtime.Stats       `json:"connection"`
	Subscribers map[string]int       `json:"subscribers"`
	Catalog     *CatalogSummary      `json:"catalog,omitempty"`
	Sinks       []plugins.SinkStatus `json:"sinks,omitempty"`
	Relay       *relay.Stats         `json:"relay,omitempty"`
	Streams     int                  `json:"streams"`
}

type stateMessage struct {
	Old   string    `json:"old"`
	New   string    `json:"new"`
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}

// Server exposes daemon health over HTTP for local tooling and UIs.
type Server struct {
	opts   Options
	logger *slog.Logger
	hub    *hub
	router chi.Router

	mu       sync.Mutex
	server   *http.Server
	listener int
	subs     map[string]core.SubscriptionID
}

func New(opts Options, logger *slog.Logger) *Server {
	if len(opts.EventKinds) == 0 {
		opts.EventKinds = []string{core.KindComicAdded, core.KindComicDeleted}
	}
	s := &Server{
		opts:   opts,
		logger: logger,
		hub:    newHub(32),
		subs:   make(map[string]core.SubscriptionID),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/status", s.handleStatus)
	r.Get("/catalog", s.handleCatalog)
	r.Get("/catalog/search", s.handleSearch)
	r.Get("/catalog/tags/{tag}", s.handleTag)
	r.Get("/events", s.handleEvents)
	return r
}

func (s *Server) Handler() http.Handler { return s.router }

// Attach starts feeding state changes and dispatched events to /events
// streams.
func (s *Server) Attach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.Connection != nil && s.listener == 0 {
		s.listener = s.opts.Connection.OnStateChange(s.publishState)
	}
	if s.opts.Dispatcher == nil {
		return nil
	}
	for _, kind := range s.opts.EventKinds {
		if _, ok := s.subs[kind]; ok {
			continue
		}
		id, err := s.opts.Dispatcher.Subscribe(kind, core.HandlerFunc(s.publishEvent))
		if err != nil {
			return fmt.Errorf("status subscribe %q: %w", kind, err)
		}
		s.subs[kind] = id
	}
	return nil
}

func (s *Server) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opts.Connection != nil && s.listener != 0 {
		s.opts.Connection.RemoveStateListener(s.listener)
		s.listener = 0
	}
	for kind, id := range s.subs {
		s.opts.Dispatcher.Unsubscribe(kind, id)
		delete(s.subs, kind)
	}
}

// Start serves until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Attach(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(shutdownCtx)
	}()

	s.logger.Info("status server starting", "addr", s.opts.Addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop ends every /events stream and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.detach()
	s.hub.close()

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) publishState(change core.StateChange) {
	msg := stateMessage{Old: change.Old.String(), New: change.New.String(), At: change.At}
	if change.Err != nil {
		msg.Error = change.Err.Error()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.hub.broadcast(message{event: "state", data: data})
}

func (s *Server) publishEvent(_ context.Context, evt core.Event) error {
	data, err := codec.Encode(evt)
	if err != nil {
		return err
	}
	if missed := s.hub.broadcast(message{event: "event", id: evt.ID, data: data}); missed > 0 {
		s.logger.Debug("slow event streams skipped", "event_id", evt.ID, "missed", missed)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.opts.Connection == nil || !s.opts.Connection.Connected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "disconnected"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

func (s *Server) Report() Report {
	rep := Report{
		Subscribers: map[string]int{},
		Streams:     s.hub.count(),
	}
	if s.opts.Connection != nil {
		rep.Connection = s.opts.Connection.Stats()
	}
	if s.opts.Dispatcher != nil {
		rep.Subscribers = s.opts.Dispatcher.Kinds()
	}
	if s.opts.Catalog != nil {
		st := s.opts.Catalog.Snapshot()
		sum := &CatalogSummary{
			Comics:      len(st.Comics),
			Total:       st.Total,
			Latest:      len(st.Latest),
			Recommended: len(st.Recommended),
			Loading:     st.Loading,
			LastError:   st.LastError,
			Reloads:     st.Reloads,
		}
		if st.Current != nil {
			sum.Current = st.Current.ID
		}
		rep.Catalog = sum
	}
	if s.opts.Sinks != nil {
		rep.Sinks = s.opts.Sinks.Status()
	}
	if s.opts.Relay != nil {
		rs := s.opts.Relay.Stats()
		rep.Relay = &rs
	}
	return rep
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Report())
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if s.opts.Catalog == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "catalog disabled"})
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Catalog.Snapshot())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.opts.Catalog == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "catalog disabled"})
		return
	}
	q := r.URL.Query()
	params := core.SearchParams{
		Keyword:  q.Get("keyword"),
		Page:     queryInt(q.Get("page")),
		PageSize: queryInt(q.Get("pageSize")),
		Sort:     q.Get("sort"),
		Tags:     q["tags"],
	}
	res, err := s.opts.Catalog.Search(r.Context(), params)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTag(w http.ResponseWriter, r *http.Request) {
	if s.opts.Catalog == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "catalog disabled"})
		return
	}
	q := r.URL.Query()
	res, err := s.opts.Catalog.ComicsByTag(r.Context(), chi.URLParam(r, "tag"), queryInt(q.Get("page")), queryInt(q.Get("pageSize")))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeCatalogError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, catalog.ErrEmptyKeyword) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// queryInt returns 0 for missing or malformed values; callers apply defaults.
func queryInt(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	id, ch, ok := s.hub.add()
	if !ok {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.hub.remove(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logger.Info("event stream opened", "client_id", id)
	defer s.logger.Info("event stream closed", "client_id", id)

	if s.opts.Connection != nil {
		st := s.opts.Connection.Stats()
		data, _ := json.Marshal(map[string]string{"new": st.State})
		writeMessage(w, message{event: "state", data: data})
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			writeMessage(w, msg)
			flusher.Flush()
		}
	}
}

func writeMessage(w http.ResponseWriter, msg message) {
	if msg.id != "" {
		fmt.Fprintf(w, "id: %s\n", msg.id)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.event, msg.data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
