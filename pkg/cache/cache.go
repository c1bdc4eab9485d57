// Package cache holds the in-memory record cache.
//
// Every slot is in one of three states (see [models.State]): never fetched,
// confirmed missing, or present with the last fetched payload. There is no
// eviction; entries live as long as the cache.
//
// A Cache is not safe for concurrent use. The store serializes access to it.
package cache

import (
	"sort"

	"github.com/notion-go/notion/pkg/models"
)

type Cache struct {
	tables map[string]map[string]models.Entry
}

func New() *Cache {
	return &Cache{tables: make(map[string]map[string]models.Entry)}
}

// Get returns the slot for (table, id). Slots that were never written are
// reported as models.Unfetched.
func (c *Cache) Get(table, id string) models.Entry {
	if e, ok := c.tables[table][id]; ok {
		return e
	}
	return models.Entry{State: models.Unfetched}
}

// Put stores a fetched payload. A nil record is stored as missing.
func (c *Cache) Put(table, id string, record models.Record) {
	if record == nil {
		c.MarkMissing(table, id)
		return
	}
	c.table(table)[id] = models.Entry{State: models.Present, Value: record}
}

// MarkMissing records that the remote store has no such record.
func (c *Cache) MarkMissing(table, id string) {
	c.table(table)[id] = models.Entry{State: models.Missing}
}

// IDs returns every id of table the cache knows about, present or missing, in
// sorted order.
func (c *Cache) IDs(table string) []string {
	ids := make([]string, 0, len(c.tables[table]))
	for id := range c.tables[table] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of known slots across all tables.
func (c *Cache) Len() int {
	n := 0
	for _, t := range c.tables {
		n += len(t)
	}
	return n
}

func (c *Cache) table(name string) map[string]models.Entry {
	t, ok := c.tables[name]
	if !ok {
		t = make(map[string]models.Entry)
		c.tables[name] = t
	}
	return t
}
