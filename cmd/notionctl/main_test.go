package main

import (
	"bytes"
	"context"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	notion "github.com/notion-go/notion"
	"github.com/notion-go/notion/internal/fakenotion"
	"github.com/notion-go/notion/internal/mock"
	"github.com/notion-go/notion/pkg/constants"
	"github.com/notion-go/notion/pkg/models"
	"github.com/notion-go/notion/pkg/transport"
)

const (
	userID  = "5a1b9f6e-2c4d-4e8f-9a0b-1c2d3e4f5a6b"
	pageID  = "0123456789abcdef0123456789abcdef"
	page    = "01234567-89ab-cdef-0123-456789abcdef"
	spaceID = "77777777-7777-4777-8777-777777777777"
	dbID    = "33333333333343338333333333333333"
	db      = "33333333-3333-4333-8333-333333333333"
	collID  = "44444444-4444-4444-8444-444444444444"
	viewID  = "55555555555545558555555555555555"
	view    = "55555555-5555-4555-8555-555555555555"
)

func setup(t *testing.T) *fakenotion.Server {
	t.Helper()
	remote := mock.New()
	remote.Put("block", page, models.Record{"id": page, "type": "page", "properties": map[string]any{"title": models.RichText("Home")}})
	remote.Put("block", db, models.Record{"id": db, "type": "collection_view_page", "collection_id": collID, "view_ids": []any{view}})
	remote.Put("collection", collID, models.Record{"id": collID, "name": models.RichText("Tasks")})
	remote.Put("collection_view", view, models.Record{"id": view, "type": "table"})
	remote.Queries[view] = &transport.QueryResponse{Result: models.QueryResult{Type: "table", BlockIDs: []string{page}, Total: 1}}
	remote.Searches[spaceID] = &transport.SearchResponse{Results: []string{page}}

	server := fakenotion.NewServer("127.0.0.1:0", remote)
	server.Token = "secret"
	server.UserID = userID
	require.NoError(t, server.Start())
	t.Cleanup(func() { _ = server.Stop() })

	t.Setenv(notion.EnvToken, "secret")
	t.Setenv(notion.EnvBaseURL, server.URL())
	return server
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGet(t *testing.T) {
	setup(t)

	out, err := run(t, "get", "block", "https://www.notion.so/Home-"+pageID)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, page, rec["id"])
	assert.Equal(t, "page", rec["type"])

	_, err = run(t, "get", "block", "22222222-2222-4222-8222-222222222222")
	require.ErrorContains(t, err, "not found")

	_, err = run(t, "get", "comment", page)
	require.ErrorIs(t, err, constants.ErrUnknownTable)

	_, err = run(t, "get", "block", "nope")
	require.ErrorIs(t, err, constants.ErrInvalidID)
}

func TestRefresh(t *testing.T) {
	server := setup(t)

	out, err := run(t, "refresh", "block", page, db)
	require.NoError(t, err)
	var recs map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	assert.Len(t, recs, 2)
	assert.Equal(t, 1, server.Requests(transport.EndpointGetRecordValues), "one call for every record")
}

func TestQuery(t *testing.T) {
	setup(t)

	out, err := run(t, "query", "https://www.notion.so/acme/Tasks-"+dbID+"?v="+viewID, "--limit", "5")
	require.NoError(t, err)
	var res models.QueryResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{page}, res.BlockIDs)

	_, err = run(t, "query", "https://www.notion.so/acme/Tasks-"+dbID)
	require.ErrorIs(t, err, constants.ErrInvalidViewURL)
}

func TestSearch(t *testing.T) {
	setup(t)

	out, err := run(t, "search", spaceID, "home")
	require.NoError(t, err)
	var pages []pageSummary
	require.NoError(t, json.Unmarshal([]byte(out), &pages))
	assert.Equal(t, []pageSummary{{ID: page, Type: "page", Title: "Home"}}, pages)
}

func TestMissingToken(t *testing.T) {
	setup(t)
	t.Setenv(notion.EnvToken, "")

	_, err := run(t, "get", "block", page)
	require.ErrorIs(t, err, constants.ErrNoToken)
}
