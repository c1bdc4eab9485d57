// Package mock provides an in-memory Transport that records every call.
//
// It behaves like a tiny remote store: fetches are answered from Records,
// submitted operations are applied to Records, and query/search responses
// are whatever the test put in Queries and Searches.
package mock

import (
	"context"
	"fmt"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/notion-go/notion/pkg/models"
	"github.com/notion-go/notion/pkg/transport"
)

type Transport struct {
	mu sync.Mutex

	Records  map[models.Key]models.Record
	Queries  map[string]*transport.QueryResponse  // by view id
	Searches map[string]*transport.SearchResponse // by parent id

	FetchCalls  [][]models.Key
	SubmitCalls [][]models.Operation
	QueryCalls  int
	SearchCalls int

	// FetchErr and SubmitErr, when set, are returned instead of doing the call.
	FetchErr  error
	SubmitErr error
}

var _ transport.Transport = (*Transport)(nil)

func New() *Transport {
	return &Transport{
		Records:  make(map[models.Key]models.Record),
		Queries:  make(map[string]*transport.QueryResponse),
		Searches: make(map[string]*transport.SearchResponse),
	}
}

// Put stores a record on the "remote" side.
func (t *Transport) Put(table, id string, r models.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Records[models.NewKey(table, id)] = r
}

func (t *Transport) Delete(table, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.Records, models.NewKey(table, id))
}

func (t *Transport) Record(table, id string) models.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Records[models.NewKey(table, id)]
}

func (t *Transport) FetchCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.FetchCalls)
}

func (t *Transport) SubmitCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.SubmitCalls)
}

// LastFetch returns the keys of the most recent fetch, or nil.
func (t *Transport) LastFetch() []models.Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.FetchCalls) == 0 {
		return nil
	}
	return t.FetchCalls[len(t.FetchCalls)-1]
}

func (t *Transport) FetchRecords(ctx context.Context, keys []models.Key) (map[models.Key]models.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.FetchCalls = append(t.FetchCalls, append([]models.Key(nil), keys...))
	if t.FetchErr != nil {
		return nil, t.FetchErr
	}

	out := make(map[models.Key]models.Record, len(keys))
	for _, k := range keys {
		if r, ok := t.Records[k]; ok {
			out[k] = clone(r)
		}
	}
	return out, nil
}

func (t *Transport) SubmitOperations(ctx context.Context, ops []models.Operation) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.SubmitCalls = append(t.SubmitCalls, append([]models.Operation(nil), ops...))
	if t.SubmitErr != nil {
		return t.SubmitErr
	}

	// Validate everything before touching anything, so a bad batch changes nothing.
	for _, op := range ops {
		if err := validate(op); err != nil {
			return err
		}
	}
	for _, op := range ops {
		k := op.Key()
		t.Records[k] = Apply(t.Records[k], op)
	}
	return nil
}

func (t *Transport) QueryCollection(ctx context.Context, collectionID, viewID string, spec models.QuerySpec) (*transport.QueryResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.QueryCalls++
	res, ok := t.Queries[viewID]
	if !ok {
		return nil, &transport.Error{Endpoint: transport.EndpointQueryCollection, StatusCode: 400, Message: "no such view"}
	}
	return res, nil
}

func (t *Transport) SearchWithParent(ctx context.Context, parentID, query string) (*transport.SearchResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.SearchCalls++
	res, ok := t.Searches[parentID]
	if !ok {
		return &transport.SearchResponse{Results: []string{}}, nil
	}
	return res, nil
}

func validate(op models.Operation) error {
	switch op.Command {
	case models.CommandSet, models.CommandUpdate, models.CommandListAfter, models.CommandListBefore, models.CommandListRemove:
		return nil
	default:
		return &transport.Error{Endpoint: transport.EndpointSubmitTransaction, StatusCode: 400, Message: fmt.Sprintf("unsupported command %q", op.Command)}
	}
}

// Apply returns r with op applied, the way the remote store would.
// The version is bumped on every change.
func Apply(r models.Record, op models.Operation) models.Record {
	r = clone(r)
	if r == nil {
		r = models.Record{"id": op.ID}
	}

	parent := map[string]any(r)
	for _, seg := range dirOf(op.Path) {
		next, ok := parent[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			parent[seg] = next
		}
		parent = next
	}

	switch op.Command {
	case models.CommandSet:
		if len(op.Path) == 0 {
			if m, ok := op.Args.(map[string]any); ok {
				r = models.Record(clone(m))
			}
			break
		}
		parent[op.Path[len(op.Path)-1]] = op.Args
	case models.CommandUpdate:
		target := parent
		if len(op.Path) > 0 {
			last := op.Path[len(op.Path)-1]
			m, ok := parent[last].(map[string]any)
			if !ok {
				m = map[string]any{}
				parent[last] = m
			}
			target = m
		}
		if args, ok := op.Args.(map[string]any); ok {
			for k, v := range args {
				target[k] = v
			}
		}
	case models.CommandListAfter, models.CommandListBefore, models.CommandListRemove:
		if len(op.Path) == 0 {
			break
		}
		last := op.Path[len(op.Path)-1]
		list, _ := parent[last].([]any)
		args, _ := op.Args.(map[string]any)
		id := args["id"]
		list = removeValue(list, id)
		switch op.Command {
		case models.CommandListAfter:
			list = append(list, id)
		case models.CommandListBefore:
			list = append([]any{id}, list...)
		}
		parent[last] = list
	}

	r["version"] = json.Number(fmt.Sprint(r.Version() + 1))
	return r
}

func dirOf(path []string) []string {
	if len(path) == 0 {
		return nil
	}
	return path[:len(path)-1]
}

func removeValue(list []any, v any) []any {
	out := list[:0:0]
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// clone deep-copies nested maps and slices so callers never share state with
// the fake remote.
func clone[M ~map[string]any](m M) M {
	if m == nil {
		return nil
	}
	out := make(M, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return clone(x)
	case models.Record:
		return clone(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	default:
		return v
	}
}
