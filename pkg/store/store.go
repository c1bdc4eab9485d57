// Package store resolves record reads against the in-memory cache and the
// remote store.
//
// Reads return the cached payload unless the record was never fetched or a
// refresh is forced; everything that has to go to the remote store in one
// call goes out as a single batched fetch. Query and search responses carry
// the records they reference, and those records are written to the cache as
// a side effect.
//
// The store also remembers which blocks a committed transaction touched, so
// that they can be re-pulled afterwards: fields such as last_edited_time are
// computed remotely and cannot be derived locally.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/buger/jsonparser"

	"github.com/notion-go/notion/internal/codec"
	"github.com/notion-go/notion/pkg/cache"
	"github.com/notion-go/notion/pkg/constants"
	"github.com/notion-go/notion/pkg/logger"
	"github.com/notion-go/notion/pkg/models"
	"github.com/notion-go/notion/pkg/transport"
)

// Store owns the record cache. One mutex guards the cache and the
// transaction bookkeeping; it is never held across a remote call.
type Store struct {
	mu      sync.Mutex
	cache   *cache.Cache
	tracked []string
	seen    map[string]struct{}

	transport   transport.Transport
	unmarshaler codec.Unmarshaler
	logger      logger.Logger
}

type Option func(s *Store)

func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

func New(t transport.Transport, opts ...Option) *Store {
	s := &Store{
		cache:       cache.New(),
		seen:        make(map[string]struct{}),
		transport:   t,
		unmarshaler: codec.JSON{},
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the record for (table, id), fetching it if it was never loaded
// or if force is set. A nil record with a nil error means the remote store
// has no such record.
func (s *Store) Get(ctx context.Context, table, id string, force bool) (models.Record, error) {
	key := models.NewKey(table, id)
	records, err := s.GetMany(ctx, []models.Key{key}, force)
	if err != nil {
		return nil, err
	}
	return records[key], nil
}

// GetMany resolves several keys at once. Keys that need fetching are loaded
// in exactly one remote call; if every key is cached no call is made.
// Missing records are absent from the returned map.
func (s *Store) GetMany(ctx context.Context, keys []models.Key, force bool) (map[models.Key]models.Record, error) {
	out := make(map[models.Key]models.Record, len(keys))
	need := make([]models.Key, 0, len(keys))
	queued := make(map[models.Key]struct{}, len(keys))

	s.mu.Lock()
	for _, k := range keys {
		e := s.cache.Get(k.Table, k.ID)
		if !force && e.State != models.Unfetched {
			if e.State == models.Present {
				out[k] = e.Value
			}
			continue
		}
		if _, ok := queued[k]; ok {
			continue
		}
		queued[k] = struct{}{}
		need = append(need, k)
	}
	s.mu.Unlock()

	if len(need) == 0 {
		return out, nil
	}

	fetched, err := s.fetch(ctx, need)
	if err != nil {
		return nil, err
	}
	for k, r := range fetched {
		out[k] = r
	}
	return out, nil
}

// Cached returns the current cache slot without touching the network.
func (s *Store) Cached(table, id string) models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Get(table, id)
}

// KnownIDs returns every id of table currently in the cache.
func (s *Store) KnownIDs(table string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.IDs(table)
}

// Selection picks records of one table to refresh: either explicit ids or
// every id the cache currently knows.
type Selection struct {
	IDs []string
	All bool
}

// Selector maps table names to the records to refresh.
type Selector map[string]Selection

func IDs(ids ...string) Selection {
	return Selection{IDs: ids}
}

func AllKnown() Selection {
	return Selection{All: true}
}

// Refresh re-fetches the selected records in one remote call and overwrites
// their cache slots. Records absent from the response are marked missing.
func (s *Store) Refresh(ctx context.Context, sel Selector) error {
	tables := make([]string, 0, len(sel))
	for t := range sel {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	var keys []models.Key
	s.mu.Lock()
	for _, t := range tables {
		ids := sel[t].IDs
		if sel[t].All {
			ids = s.cache.IDs(t)
		}
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			keys = append(keys, models.NewKey(t, id))
		}
	}
	s.mu.Unlock()

	if len(keys) == 0 {
		return nil
	}
	_, err := s.fetch(ctx, keys)
	return err
}

func (s *Store) fetch(ctx context.Context, keys []models.Key) (map[models.Key]models.Record, error) {
	records, err := s.transport.FetchRecords(ctx, keys)
	if err != nil {
		s.logger.Error("fetching records failed", "count", len(keys), "error", err.Error())
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[models.Key]models.Record, len(records))
	for _, k := range keys {
		r, ok := records[k]
		if !ok || r == nil {
			s.cache.MarkMissing(k.Table, k.ID)
			continue
		}
		s.cache.Put(k.Table, k.ID, r)
		out[k] = r
	}
	s.logger.Debug("fetched records", "requested", len(keys), "found", len(out))
	return out, nil
}

// Query runs a collection query and caches every record embedded in the
// response. The returned result does not depend on the cache.
func (s *Store) Query(ctx context.Context, collectionID, viewID string, spec models.QuerySpec) (*models.QueryResult, error) {
	res, err := s.transport.QueryCollection(ctx, collectionID, viewID, spec)
	if err != nil {
		return nil, err
	}
	if err := s.StoreRecordMap(res.RecordMap); err != nil {
		return nil, err
	}
	result := res.Result
	result.BlockIDs = append([]string(nil), res.Result.BlockIDs...)
	result.AggregationResults = append([]models.AggregationResult(nil), res.Result.AggregationResults...)
	return &result, nil
}

// Search finds pages below parentID and caches the records in the response.
func (s *Store) Search(ctx context.Context, parentID, query string) ([]string, error) {
	res, err := s.transport.SearchWithParent(ctx, parentID, query)
	if err != nil {
		return nil, err
	}
	if err := s.StoreRecordMap(res.RecordMap); err != nil {
		return nil, err
	}
	return res.Results, nil
}

type mapEntry struct {
	table, id string
	record    models.Record
}

// StoreRecordMap writes every record of a recordMap object
// ({table: {id: {"value": {...}}}}) to the cache. Entries without a value are
// marked missing. Nothing is written if any entry fails to decode.
func (s *Store) StoreRecordMap(raw []byte) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var entries []mapEntry
	err := jsonparser.ObjectEach(raw, func(table, tableVal []byte, dataType jsonparser.ValueType, _ int) error {
		if dataType != jsonparser.Object {
			return nil
		}
		return jsonparser.ObjectEach(tableVal, func(id, entryVal []byte, dataType jsonparser.ValueType, _ int) error {
			if dataType != jsonparser.Object {
				return nil
			}
			e := mapEntry{table: string(table), id: string(id)}
			value, vt, _, err := jsonparser.Get(entryVal, "value")
			switch {
			case errors.Is(err, jsonparser.KeyPathNotFoundError), vt == jsonparser.Null:
			case err != nil:
				return err
			case vt != jsonparser.Object:
				return fmt.Errorf("%s:%s: value is %s", table, id, vt)
			default:
				var r models.Record
				if err := s.unmarshaler.Unmarshal(value, &r); err != nil {
					return err
				}
				e.record = r
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("%w: record map: %v", constants.ErrInvalidResponse, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.cache.Put(e.table, e.id, e.record)
	}
	s.logger.Debug("stored record map", "records", len(entries))
	return nil
}

// TrackBlocks remembers blocks to refresh once the current transaction has
// been submitted.
func (s *Store) TrackBlocks(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.seen[id]; ok {
			continue
		}
		s.seen[id] = struct{}{}
		s.tracked = append(s.tracked, id)
	}
}

// Tracked returns the blocks queued for post-transaction refresh.
func (s *Store) Tracked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tracked...)
}

// DiscardTracked forgets the blocks queued for refresh.
func (s *Store) DiscardTracked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracked = nil
	s.seen = make(map[string]struct{})
}

// PostTransactionRefresh force-refreshes every tracked block and clears the
// tracking set, whether or not the refresh succeeds.
func (s *Store) PostTransactionRefresh(ctx context.Context) error {
	s.mu.Lock()
	ids := s.tracked
	s.tracked = nil
	s.seen = make(map[string]struct{})
	s.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}
	return s.Refresh(ctx, Selector{constants.TableBlock: IDs(ids...)})
}
