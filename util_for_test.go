package notion

import (
	"testing"
	"time"

	"github.com/notion-go/notion/internal/mock"
	"github.com/notion-go/notion/pkg/models"
)

const (
	testUser = "5a1b9f6e-2c4d-4e8f-9a0b-1c2d3e4f5a6b"

	pageID    = "0123456789abcdef0123456789abcdef"
	pageUUID  = "01234567-89ab-cdef-0123-456789abcdef"
	todoID    = "11111111-1111-4111-8111-111111111111"
	textID    = "22222222-2222-4222-8222-222222222222"
	dbID      = "33333333333343338333333333333333"
	dbUUID    = "33333333-3333-4333-8333-333333333333"
	collID    = "44444444-4444-4444-8444-444444444444"
	viewID    = "55555555555545558555555555555555"
	viewUUID  = "55555555-5555-4555-8555-555555555555"
	rowID     = "66666666-6666-4666-8666-666666666666"
	spaceID   = "77777777-7777-4777-8777-777777777777"
	unknownID = "88888888-8888-4888-8888-888888888888"
)

var testTime = time.UnixMilli(1700000000000)

// newTestClient returns a client over an in-memory remote seeded with a small
// workspace: a space holding one page, the page holding a todo, a text block
// and a database with one row.
func newTestClient(t *testing.T) (*Client, *mock.Transport) {
	t.Helper()
	remote := mock.New()

	remote.Put("space", spaceID, models.Record{"id": spaceID, "name": "Acme", "domain": "acme", "pages": []any{pageUUID}})
	remote.Put("notion_user", testUser, models.Record{"id": testUser, "email": "ada@example.com", "given_name": "Ada", "family_name": "Lovelace"})
	remote.Put("block", pageUUID, models.Record{
		"id": pageUUID, "type": "page", "alive": true,
		"parent_id": spaceID, "parent_table": "space",
		"properties": map[string]any{"title": models.RichText("Home")},
		"format":     map[string]any{"page_icon": "🏠"},
		"content":    []any{todoID, textID, dbUUID},
	})
	remote.Put("block", todoID, models.Record{
		"id": todoID, "type": "to_do", "alive": true, "parent_id": pageUUID, "parent_table": "block",
		"properties": map[string]any{"title": models.RichText("Ship it"), "checked": models.RichText("No")},
	})
	remote.Put("block", textID, models.Record{
		"id": textID, "type": "text", "alive": true, "parent_id": pageUUID, "parent_table": "block",
		"properties": map[string]any{"title": models.RichText("Notes")},
	})
	remote.Put("block", dbUUID, models.Record{
		"id": dbUUID, "type": "collection_view_page", "alive": true, "parent_id": pageUUID, "parent_table": "block",
		"collection_id": collID, "view_ids": []any{viewUUID},
	})
	remote.Put("collection", collID, models.Record{
		"id": collID, "name": models.RichText("Tasks"),
		"schema": map[string]any{
			"title": map[string]any{"name": "Name", "type": "title"},
			"Xx1a":  map[string]any{"name": "Status", "type": "select"},
		},
	})
	remote.Put("collection_view", viewUUID, models.Record{"id": viewUUID, "type": "board", "name": "By status"})
	remote.Put("block", rowID, models.Record{
		"id": rowID, "type": "page", "alive": true, "parent_id": collID, "parent_table": "collection",
		"properties": map[string]any{"title": models.RichText("Row"), "Xx1a": models.RichText("Done")},
	})

	c := NewWithTransport(remote, testUser, WithClock(func() time.Time { return testTime }))
	return c, remote
}
