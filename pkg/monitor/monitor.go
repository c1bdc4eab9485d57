// Package monitor keeps cached records in step with remote edits.
//
// A Monitor subscribes to a websocket change feed for a set of records. The
// feed pushes one notification per remote edit carrying the record's new
// version. Whenever a notification reports a version newer than the cached
// one, the record is re-fetched. Notifications that arrive while a refresh
// is in flight are coalesced into the next refresh.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	gorilla "github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/notion-go/notion/internal/codec"
	"github.com/notion-go/notion/pkg/constants"
	"github.com/notion-go/notion/pkg/logger"
	"github.com/notion-go/notion/pkg/models"
	"github.com/notion-go/notion/pkg/store"
)

// FeedPath is appended to the base URL to reach the change feed.
const FeedPath = "/ws/changes"

const closeTimeout = time.Second

// ErrClosed is returned by Run when the server closes the feed.
var ErrClosed = errors.New("change feed closed by server")

// Notification reports that a record was edited remotely.
type Notification struct {
	Table   string `json:"table"`
	ID      string `json:"id"`
	Version int64  `json:"version"`
}

func (n Notification) Key() models.Key {
	return models.NewKey(n.Table, n.ID)
}

// Subscription is the first message sent on the feed.
type Subscription struct {
	Type string       `json:"type"`
	Keys []models.Key `json:"keys"`
}

// Cache is the part of the record store the monitor needs.
type Cache interface {
	Cached(table, id string) models.Entry
	Refresh(ctx context.Context, sel store.Selector) error
}

type Option func(m *Monitor)

func WithLogger(l logger.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithToken authenticates the feed with the token_v2 cookie.
func WithToken(token string) Option {
	return func(m *Monitor) {
		m.token = token
	}
}

func WithDialer(d *gorilla.Dialer) Option {
	return func(m *Monitor) {
		m.dialer = d
	}
}

// OnRefresh is called after every refresh with the keys it covered.
func OnRefresh(fn func(keys []models.Key)) Option {
	return func(m *Monitor) {
		m.onRefresh = fn
	}
}

type Monitor struct {
	url       string
	token     string
	cache     Cache
	dialer    *gorilla.Dialer
	codec     codec.JSON
	logger    logger.Logger
	onRefresh func(keys []models.Key)
}

// New creates a Monitor for the remote store at baseURL (http or https).
func New(baseURL string, cache Cache, opts ...Option) (*Monitor, error) {
	u, err := feedURL(baseURL)
	if err != nil {
		return nil, err
	}
	m := &Monitor{
		url:    u,
		cache:  cache,
		dialer: gorilla.DefaultDialer,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func feedURL(baseURL string) (string, error) {
	base := strings.TrimRight(baseURL, "/")
	switch {
	case base == "":
		return "", constants.ErrNoBaseURL
	case strings.HasPrefix(base, constants.HTTPSecureScheme+"://"):
		return "wss" + strings.TrimPrefix(base, constants.HTTPSecureScheme) + FeedPath, nil
	case strings.HasPrefix(base, constants.HTTPScheme+"://"):
		return "ws" + strings.TrimPrefix(base, constants.HTTPScheme) + FeedPath, nil
	default:
		return "", fmt.Errorf("base url %q must be http or https", baseURL)
	}
}

// Run subscribes to keys and refreshes stale records until ctx is done or
// the feed fails. It returns nil when ctx is canceled.
func (m *Monitor) Run(ctx context.Context, keys []models.Key) error {
	header := http.Header{}
	if m.token != "" {
		header.Set("Cookie", (&http.Cookie{Name: constants.TokenCookie, Value: m.token}).String())
	}
	conn, res, err := m.dialer.DialContext(ctx, m.url, header)
	if err != nil {
		return fmt.Errorf("dialing change feed: %w", err)
	}
	defer res.Body.Close()

	sub, err := m.codec.Marshal(Subscription{Type: "subscribe", Keys: keys})
	if err != nil {
		conn.Close()
		return err
	}
	if err := conn.WriteMessage(gorilla.TextMessage, sub); err != nil {
		conn.Close()
		return fmt.Errorf("subscribing: %w", err)
	}
	m.logger.Debug("subscribed to change feed", "url", m.url, "records", len(keys))

	g, gctx := errgroup.WithContext(ctx)
	pending := make(chan Notification, 64)

	g.Go(func() error {
		<-gctx.Done()
		deadline := time.Now().Add(closeTimeout)
		_ = conn.WriteControl(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""), deadline)
		conn.Close()
		return nil
	})
	g.Go(func() error {
		defer close(pending)
		return m.readLoop(gctx, conn, pending)
	})
	g.Go(func() error {
		return m.refreshLoop(gctx, pending)
	})

	err = g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Monitor) readLoop(ctx context.Context, conn *gorilla.Conn, out chan<- Notification) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
				return ErrClosed
			}
			return fmt.Errorf("reading change feed: %w", err)
		}

		var n Notification
		if err := m.codec.Unmarshal(data, &n); err != nil || n.Table == "" || n.ID == "" {
			m.logger.Warn("ignoring malformed notification", "payload", string(data))
			continue
		}
		select {
		case out <- n:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Monitor) refreshLoop(ctx context.Context, in <-chan Notification) error {
	for n := range in {
		batch := map[models.Key]int64{n.Key(): n.Version}
	drain:
		for {
			select {
			case more, ok := <-in:
				if !ok {
					break drain
				}
				if more.Version > batch[more.Key()] {
					batch[more.Key()] = more.Version
				}
			default:
				break drain
			}
		}

		if err := m.refresh(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Error("refreshing after remote change failed", "error", err.Error())
		}
	}
	return nil
}

// refresh re-fetches, in one call, every record whose cached version is
// older than the notified one. Records never fetched are left alone.
func (m *Monitor) refresh(ctx context.Context, batch map[models.Key]int64) error {
	var stale []models.Key
	for k, version := range batch {
		e := m.cache.Cached(k.Table, k.ID)
		switch {
		case e.State == models.Unfetched:
		case e.State == models.Missing, e.Value.Version() < version:
			stale = append(stale, k)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].String() < stale[j].String() })

	sel := store.Selector{}
	for _, k := range stale {
		s := sel[k.Table]
		s.IDs = append(s.IDs, k.ID)
		sel[k.Table] = s
	}
	if err := m.cache.Refresh(ctx, sel); err != nil {
		return err
	}
	m.logger.Debug("refreshed records after remote change", "count", len(stale))
	if m.onRefresh != nil {
		m.onRefresh(stale)
	}
	return nil
}
