// Package fakenotion provides a fake remote store speaking the /api/v3 JSON
// API over HTTP, plus the websocket change feed used by pkg/monitor.
//
// Records live in an in-memory mock.Transport, so tests can seed data and
// inspect calls the same way they do without a network. Failures can be
// injected per endpoint to exercise retries and error propagation.
package fakenotion

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	gorilla "github.com/gorilla/websocket"

	"github.com/notion-go/notion/internal/codec"
	"github.com/notion-go/notion/internal/mock"
	"github.com/notion-go/notion/pkg/constants"
	"github.com/notion-go/notion/pkg/models"
	"github.com/notion-go/notion/pkg/monitor"
	"github.com/notion-go/notion/pkg/transport"
)

// Failure makes an endpoint answer with an error status.
type Failure struct {
	// Endpoint is the API method name, e.g. "getRecordValues".
	Endpoint   string
	StatusCode int
	Message    string
	// Times is how many requests fail before the endpoint recovers.
	// Zero means every request fails.
	Times int
}

type subscriber struct {
	mu   sync.Mutex
	conn *gorilla.Conn
	keys map[models.Key]struct{}
}

func (s *subscriber) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// Server is a fake remote store.
type Server struct {
	// Remote holds the records served and receives every call.
	Remote *mock.Transport
	// Token, when set, must be presented in the token_v2 cookie.
	Token string
	// UserID is returned by getUserAnalyticsSettings.
	UserID string

	addr     string
	listener net.Listener
	server   *http.Server
	router   *mux.Router
	upgrader gorilla.Upgrader
	codec    codec.JSON

	mu          sync.Mutex
	failures    []*Failure
	requests    map[string]int
	subscribers map[*subscriber]struct{}
}

// NewServer creates a fake server over remote.
// Use "127.0.0.1:0" to bind to a random available port.
func NewServer(addr string, remote *mock.Transport) *Server {
	s := &Server{
		Remote:      remote,
		addr:        addr,
		requests:    make(map[string]int),
		subscribers: make(map[*subscriber]struct{}),
	}

	r := mux.NewRouter()
	api := r.PathPrefix(constants.APIPath).Subrouter()
	api.Use(s.authenticate, s.injectFailures)
	api.HandleFunc("/"+transport.EndpointGetRecordValues, s.handleGetRecordValues).Methods(http.MethodPost)
	api.HandleFunc("/"+transport.EndpointSubmitTransaction, s.handleSubmitTransaction).Methods(http.MethodPost)
	api.HandleFunc("/"+transport.EndpointQueryCollection, s.handleQueryCollection).Methods(http.MethodPost)
	api.HandleFunc("/"+transport.EndpointSearchPagesWithParent, s.handleSearch).Methods(http.MethodPost)
	api.HandleFunc("/"+transport.EndpointUserSettings, s.handleUserSettings).Methods(http.MethodPost)
	r.Handle(monitor.FeedPath, s.authenticate(http.HandlerFunc(s.handleFeed)))
	s.router = r

	return s
}

// Handler exposes the routes, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving. Returns an error if the address cannot be bound.
func (s *Server) Start() error {
	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.server = &http.Server{Handler: s.router}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("fakenotion: %v", err)
		}
	}()
	return nil
}

// Stop closes the listener, open feeds and in-flight requests.
func (s *Server) Stop() error {
	s.mu.Lock()
	for sub := range s.subscribers {
		sub.conn.Close()
	}
	s.mu.Unlock()

	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// Address returns the address the server listens on.
func (s *Server) Address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL returns the base URL to configure a client with.
func (s *Server) URL() string {
	return constants.HTTPScheme + "://" + s.Address()
}

// Fail injects a failure. Failures are matched in the order they were added.
func (s *Server) Fail(f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, &f)
}

// Requests returns how many requests reached endpoint, failed ones included.
func (s *Server) Requests(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[endpoint]
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" {
			c, err := r.Cookie(constants.TokenCookie)
			if err != nil || c.Value != s.Token {
				s.writeError(w, http.StatusUnauthorized, "Token was invalid or expired.")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := lastSegment(r.URL.Path)

		s.mu.Lock()
		s.requests[endpoint]++
		var hit *Failure
		for i, f := range s.failures {
			if f.Endpoint != endpoint {
				continue
			}
			hit = f
			if f.Times > 0 {
				f.Times--
				if f.Times == 0 {
					s.failures = append(s.failures[:i], s.failures[i+1:]...)
				}
			}
			break
		}
		s.mu.Unlock()

		if hit != nil {
			s.writeError(w, hit.StatusCode, hit.Message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func lastSegment(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(r.Body)
	if err == nil {
		err = s.codec.Unmarshal(body, dst)
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid input.")
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := s.codec.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"message":"encoding response failed"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"message": message})
}

// writeTransportError answers with the status carried by a mock error.
func (s *Server) writeTransportError(w http.ResponseWriter, err error) {
	var terr *transport.Error
	if errors.As(err, &terr) {
		s.writeError(w, terr.StatusCode, terr.Message)
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

type recordResult struct {
	Role  string        `json:"role"`
	Value models.Record `json:"value,omitempty"`
}

func (s *Server) handleGetRecordValues(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Requests []models.Key `json:"requests"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	records, err := s.Remote.FetchRecords(r.Context(), req.Requests)
	if err != nil {
		s.writeTransportError(w, err)
		return
	}
	results := make([]recordResult, len(req.Requests))
	for i, k := range req.Requests {
		if rec, ok := records[k]; ok {
			results[i] = recordResult{Role: "editor", Value: rec}
		} else {
			results[i] = recordResult{Role: "none"}
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequestID  string             `json:"requestId"`
		Operations []models.Operation `json:"operations"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.Remote.SubmitOperations(r.Context(), req.Operations); err != nil {
		s.writeTransportError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{})
	s.notify(req.Operations)
}

func (s *Server) handleQueryCollection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CollectionID     string           `json:"collectionId"`
		CollectionViewID string           `json:"collectionViewId"`
		Query            models.QuerySpec `json:"query"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.Remote.QueryCollection(r.Context(), req.CollectionID, req.CollectionViewID, req.Query)
	if err != nil {
		s.writeTransportError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query    string `json:"query"`
		ParentID string `json:"parentId"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.Remote.SearchWithParent(r.Context(), req.ParentID, req.Query)
	if err != nil {
		s.writeTransportError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUserSettings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"user_id": s.UserID})
}

// handleFeed serves the change feed: the client sends one subscription,
// then receives a notification for every submitted edit of a subscribed
// record.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var sub monitor.Subscription
	if err := conn.ReadJSON(&sub); err != nil {
		return
	}
	entry := &subscriber{conn: conn, keys: make(map[models.Key]struct{}, len(sub.Keys))}
	for _, k := range sub.Keys {
		entry.keys[k] = struct{}{}
	}

	s.mu.Lock()
	s.subscribers[entry] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.subscribers, entry)
		s.mu.Unlock()
	}()

	// Nothing else is expected from the client; reading surfaces the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Subscribers returns the number of open change feeds.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

func (s *Server) notify(ops []models.Operation) {
	seen := make(map[models.Key]struct{}, len(ops))
	var changed []monitor.Notification
	for _, op := range ops {
		k := op.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		changed = append(changed, monitor.Notification{Table: k.Table, ID: k.ID, Version: s.Remote.Record(k.Table, k.ID).Version()})
	}

	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subscribers))
	for sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		for _, n := range changed {
			if _, ok := sub.keys[n.Key()]; !ok {
				continue
			}
			if err := sub.send(n); err != nil {
				break
			}
		}
	}
}
