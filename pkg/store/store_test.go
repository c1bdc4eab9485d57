package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notion-go/notion/internal/mock"
	"github.com/notion-go/notion/pkg/constants"
	"github.com/notion-go/notion/pkg/models"
	"github.com/notion-go/notion/pkg/store"
	"github.com/notion-go/notion/pkg/transport"
)

func newStore(t *testing.T) (*store.Store, *mock.Transport) {
	t.Helper()
	remote := mock.New()
	return store.New(remote), remote
}

func TestGetCachesAfterFirstFetch(t *testing.T) {
	ctx := context.Background()
	s, remote := newStore(t)
	remote.Put("block", "b1", models.Record{"id": "b1", "type": "text"})

	r, err := s.Get(ctx, "block", "b1", false)
	require.NoError(t, err)
	assert.Equal(t, "text", r.String("type"))
	assert.Equal(t, 1, remote.FetchCount())

	again, err := s.Get(ctx, "block", "b1", false)
	require.NoError(t, err)
	assert.Equal(t, r, again)
	assert.Equal(t, 1, remote.FetchCount(), "cached reads must not hit the remote store")

	remote.Put("block", "b1", models.Record{"id": "b1", "type": "header"})
	fresh, err := s.Get(ctx, "block", "b1", true)
	require.NoError(t, err)
	assert.Equal(t, "header", fresh.String("type"))
	assert.Equal(t, 2, remote.FetchCount())
	assert.Equal(t, "header", s.Cached("block", "b1").Value.String("type"))
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	s, remote := newStore(t)

	r, err := s.Get(ctx, "block", "nope", false)
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.Equal(t, models.Missing, s.Cached("block", "nope").State)

	// A confirmed-missing record is not fetched again unless forced.
	_, err = s.Get(ctx, "block", "nope", false)
	require.NoError(t, err)
	assert.Equal(t, 1, remote.FetchCount())

	remote.Put("block", "nope", models.Record{"id": "nope"})
	r, err = s.Get(ctx, "block", "nope", true)
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestGetManyBatches(t *testing.T) {
	ctx := context.Background()
	s, remote := newStore(t)
	keys := []models.Key{
		models.NewKey("block", "a"),
		models.NewKey("block", "b"),
		models.NewKey("space", "s"),
		models.NewKey("block", "a"),
	}
	remote.Put("block", "a", models.Record{"id": "a"})
	remote.Put("space", "s", models.Record{"id": "s"})

	records, err := s.GetMany(ctx, keys, false)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	require.Equal(t, 1, remote.FetchCount())
	assert.ElementsMatch(t, keys[:3], remote.LastFetch(), "duplicates are fetched once")

	_, err = s.GetMany(ctx, keys, false)
	require.NoError(t, err)
	assert.Equal(t, 1, remote.FetchCount())

	// Only the unknown key goes out on the next call.
	_, err = s.GetMany(ctx, append(keys, models.NewKey("block", "c")), false)
	require.NoError(t, err)
	assert.Equal(t, []models.Key{models.NewKey("block", "c")}, remote.LastFetch())
}

func TestFetchErrorLeavesCacheAlone(t *testing.T) {
	ctx := context.Background()
	s, remote := newStore(t)
	boom := &transport.Error{Endpoint: "getRecordValues", StatusCode: 500}
	remote.FetchErr = boom

	_, err := s.Get(ctx, "block", "b1", false)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, models.Unfetched, s.Cached("block", "b1").State)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	s, remote := newStore(t)
	remote.Put("block", "a", models.Record{"v": "1"})
	remote.Put("block", "b", models.Record{"v": "1"})
	remote.Put("space", "s", models.Record{"v": "1"})
	_, err := s.GetMany(ctx, []models.Key{
		models.NewKey("block", "a"), models.NewKey("block", "b"), models.NewKey("space", "s"),
	}, false)
	require.NoError(t, err)

	remote.Put("block", "a", models.Record{"v": "2"})
	remote.Delete("block", "b")
	remote.Put("space", "s", models.Record{"v": "2"})
	remote.Put("notion_user", "u", models.Record{"v": "2"})

	err = s.Refresh(ctx, store.Selector{
		"block":       store.AllKnown(),
		"space":       store.IDs("s"),
		"notion_user": store.IDs("u", "u"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, remote.FetchCount(), "a refresh is one remote call")
	assert.Len(t, remote.LastFetch(), 4)

	assert.Equal(t, "2", s.Cached("block", "a").Value.String("v"))
	assert.Equal(t, models.Missing, s.Cached("block", "b").State)
	assert.Equal(t, "2", s.Cached("space", "s").Value.String("v"))
	assert.Equal(t, "2", s.Cached("notion_user", "u").Value.String("v"))
}

func TestRefreshNothing(t *testing.T) {
	s, remote := newStore(t)
	require.NoError(t, s.Refresh(context.Background(), store.Selector{"block": store.AllKnown()}))
	assert.Zero(t, remote.FetchCount())
}

func TestStoreRecordMap(t *testing.T) {
	s, _ := newStore(t)
	raw := []byte(`{
		"block": {
			"r1": {"role": "editor", "value": {"id": "r1", "type": "page", "version": 3}},
			"r2": {"role": "none"}
		},
		"collection": {"c1": {"value": {"id": "c1", "name": [["Tasks"]]}}},
		"__version__": 3
	}`)

	require.NoError(t, s.StoreRecordMap(raw))
	assert.Equal(t, int64(3), s.Cached("block", "r1").Value.Version())
	assert.Equal(t, models.Missing, s.Cached("block", "r2").State)
	assert.Equal(t, "Tasks", models.PlainText(s.Cached("collection", "c1").Value.Get("name")))

	require.NoError(t, s.StoreRecordMap(nil))
	require.NoError(t, s.StoreRecordMap([]byte("null")))
}

func TestStoreRecordMapRejectsGarbage(t *testing.T) {
	s, _ := newStore(t)
	err := s.StoreRecordMap([]byte(`{"block": {"r1": {"value": "oops"}, "r2": {"value": {"id": "r2"}}}}`))
	require.ErrorIs(t, err, constants.ErrInvalidResponse)
	assert.Equal(t, models.Unfetched, s.Cached("block", "r2").State, "a bad map writes nothing")
}

func TestQuerySeedsCache(t *testing.T) {
	ctx := context.Background()
	s, remote := newStore(t)
	remote.Queries["v1"] = &transport.QueryResponse{
		Result: models.QueryResult{Type: "table", BlockIDs: []string{"r1", "r2"}, Total: 2},
		RecordMap: []byte(`{"block": {
			"r1": {"value": {"id": "r1", "parent_table": "collection"}},
			"r2": {"value": {"id": "r2", "parent_table": "collection"}}
		}}`),
	}

	res, err := s.Query(ctx, "c1", "v1", models.QuerySpec{})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, res.BlockIDs)
	assert.Equal(t, 2, res.Total)

	records, err := s.GetMany(ctx, []models.Key{models.NewKey("block", "r1"), models.NewKey("block", "r2")}, false)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Zero(t, remote.FetchCount(), "query results are served from the cache")

	res.BlockIDs[0] = "changed"
	assert.Equal(t, "r1", remote.Queries["v1"].Result.BlockIDs[0], "results are detached from the response")
}

func TestQueryError(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Query(context.Background(), "c1", "unknown", models.QuerySpec{})
	var terr *transport.Error
	require.True(t, errors.As(err, &terr))
}

func TestSearchSeedsCache(t *testing.T) {
	ctx := context.Background()
	s, remote := newStore(t)
	remote.Searches["parent"] = &transport.SearchResponse{
		Results:   []string{"p1"},
		RecordMap: []byte(`{"block": {"p1": {"value": {"id": "p1", "type": "page"}}}}`),
	}

	ids, err := s.Search(ctx, "parent", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)
	assert.Equal(t, models.Present, s.Cached("block", "p1").State)
}

func TestPostTransactionRefresh(t *testing.T) {
	ctx := context.Background()
	s, remote := newStore(t)
	remote.Put("block", "x", models.Record{"id": "x"})

	s.TrackBlocks("x", "y", "x")
	assert.Equal(t, []string{"x", "y"}, s.Tracked())

	require.NoError(t, s.PostTransactionRefresh(ctx))
	assert.Equal(t, []models.Key{models.NewKey("block", "x"), models.NewKey("block", "y")}, remote.LastFetch())
	assert.Empty(t, s.Tracked())

	require.NoError(t, s.PostTransactionRefresh(ctx))
	assert.Equal(t, 1, remote.FetchCount(), "nothing tracked, nothing fetched")

	s.TrackBlocks("z")
	s.DiscardTracked()
	assert.Empty(t, s.Tracked())
}
