package notion

import (
	"context"

	"github.com/notion-go/notion/pkg/models"
)

// Wrapper is implemented by every typed record handle. Handles hold no
// record data; every accessor reads the client's cache, so a handle always
// reflects the last fetch.
type Wrapper interface {
	ID() string
	Table() string
	// Data returns the cached payload, or nil if the record is gone.
	Data() models.Record
	// Refresh re-fetches the record.
	Refresh(ctx context.Context) error
}

type record struct {
	client *Client
	table  string
	id     string
}

func (r *record) ID() string {
	return r.id
}

func (r *record) Table() string {
	return r.table
}

func (r *record) Key() models.Key {
	return models.NewKey(r.table, r.id)
}

func (r *record) Data() models.Record {
	return r.client.store.Cached(r.table, r.id).Value
}

func (r *record) Refresh(ctx context.Context) error {
	_, err := r.client.store.Get(ctx, r.table, r.id, true)
	return err
}

func (r *record) get(path string) any {
	return r.Data().Get(path)
}

// Set writes value at a dotted path of the record.
func (r *record) Set(ctx context.Context, path string, value any) error {
	op := models.BuildOperation(r.table, r.id, path, models.CommandSet, value)
	return r.client.SubmitTransaction(ctx, []models.Operation{op}, true)
}
