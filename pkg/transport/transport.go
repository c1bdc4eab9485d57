// Package transport defines the four remote calls the record store and the
// transaction layer depend on, and an HTTP implementation of them.
//
// Authentication, retry of throttled or failed (5xx) requests and timeouts
// live here. The layers above never retry.
package transport

import (
	"context"

	json "github.com/goccy/go-json"

	"github.com/notion-go/notion/pkg/models"
)

type Transport interface {
	// FetchRecords loads the given records in one round trip. Keys the remote
	// store does not know are absent from the returned map.
	FetchRecords(ctx context.Context, keys []models.Key) (map[models.Key]models.Record, error)
	// SubmitOperations applies all operations atomically.
	SubmitOperations(ctx context.Context, ops []models.Operation) error
	QueryCollection(ctx context.Context, collectionID, viewID string, spec models.QuerySpec) (*QueryResponse, error)
	SearchWithParent(ctx context.Context, parentID, query string) (*SearchResponse, error)
}

// QueryResponse carries the query result and the records it references.
// RecordMap is kept raw: {table: {id: {"value": {...}}}}.
type QueryResponse struct {
	Result    models.QueryResult `json:"result"`
	RecordMap json.RawMessage    `json:"recordMap"`
}

type SearchResponse struct {
	Results   []string        `json:"results"`
	RecordMap json.RawMessage `json:"recordMap"`
}
