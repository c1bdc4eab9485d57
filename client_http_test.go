package notion

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notion-go/notion/internal/fakenotion"
	"github.com/notion-go/notion/pkg/constants"
	"github.com/notion-go/notion/pkg/logger"
	"github.com/notion-go/notion/pkg/transport"
)

func startFakeRemote(t *testing.T) *fakenotion.Server {
	t.Helper()
	_, remote := newTestClient(t)
	server := fakenotion.NewServer("127.0.0.1:0", remote)
	server.Token = "secret"
	server.UserID = testUser
	require.NoError(t, server.Start())
	t.Cleanup(func() {
		if err := server.Stop(); err != nil {
			t.Errorf("stopping fake remote: %v", err)
		}
	})
	return server
}

func TestClientOverHTTP(t *testing.T) {
	ctx := context.Background()
	server := startFakeRemote(t)

	var buf bytes.Buffer
	logData, err := logger.New().FromBuffer(&buf).Level(zerolog.DebugLevel).Make()
	require.NoError(t, err)

	cfg := NewConfig("secret")
	cfg.BaseURL = server.URL()
	cfg.Logger = logData.Adapter()

	c, err := New(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, testUser, c.UserID(), "user id is looked up with the token")

	page, err := c.GetBlock(ctx, "https://www.notion.so/acme/Home-"+pageID)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, "Home", page.Title())

	children, err := page.Children(ctx)
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, 2, server.Requests(transport.EndpointGetRecordValues))

	todo := children[0].(*TodoBlock)
	require.NoError(t, c.Atomic(ctx, func(ctx context.Context) error {
		if err := todo.SetChecked(ctx, true); err != nil {
			return err
		}
		return children[1].SetTitle(ctx, "Edited")
	}))
	assert.Equal(t, 1, server.Requests(transport.EndpointSubmitTransaction))
	assert.Equal(t, 3, server.Requests(transport.EndpointGetRecordValues))
	assert.True(t, todo.Checked())
	assert.Equal(t, "Edited", children[1].Title())
	assert.Equal(t, testUser, server.Remote.Record("block", todoID).String("last_edited_by"))

	assert.Contains(t, buf.String(), "submitted transaction")
}

func TestClientOverHTTPSubmitFailure(t *testing.T) {
	ctx := context.Background()
	server := startFakeRemote(t)

	cfg := NewConfig("secret")
	cfg.BaseURL = server.URL()
	cfg.UserID = testUser
	cfg.Logger = logger.Nop()
	c, err := New(ctx, cfg)
	require.NoError(t, err)

	todo, err := c.GetBlock(ctx, todoID)
	require.NoError(t, err)

	server.Fail(fakenotion.Failure{Endpoint: transport.EndpointSubmitTransaction, StatusCode: 400, Message: "Invalid input."})
	err = todo.(*TodoBlock).SetChecked(ctx, true)
	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 400, terr.StatusCode)
	assert.Equal(t, 1, server.Requests(transport.EndpointGetRecordValues), "no refresh after a failed submission")
	assert.False(t, todo.(*TodoBlock).Checked())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), &Config{})
	require.ErrorIs(t, err, constants.ErrNoBaseURL)

	_, err = New(context.Background(), NewConfig(""))
	require.ErrorIs(t, err, constants.ErrNoToken)
}
