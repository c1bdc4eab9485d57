package notion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/notion-go/notion/pkg/constants"
	"github.com/notion-go/notion/pkg/logger"
	"github.com/notion-go/notion/pkg/models"
	"github.com/notion-go/notion/pkg/store"
	"github.com/notion-go/notion/pkg/transport"
)

// Client is the entry point. It owns one record store and at most one open
// transaction.
type Client struct {
	store     *store.Store
	transport transport.Transport
	userID    string
	logger    logger.Logger
	now       func() time.Time

	// mu guards txn. A nil txn means no transaction is open.
	mu  sync.Mutex
	txn *txnState
}

type Option func(c *Client)

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces the clock used to stamp last-edited times.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New connects to the remote store described by cfg over HTTP. If cfg has no
// UserID, it is looked up with the token.
func New(ctx context.Context, cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.logger()

	h := transport.NewHTTP(transport.Params{
		BaseURL:    cfg.BaseURL,
		Token:      cfg.TokenV2,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		Logger:     log,
	})

	userID := cfg.UserID
	if userID == "" {
		id, err := h.UserID(ctx)
		if err != nil {
			return nil, fmt.Errorf("looking up current user: %w", err)
		}
		userID = id
	}

	return NewWithTransport(h, userID, WithLogger(log)), nil
}

// NewWithTransport builds a Client over any Transport.
func NewWithTransport(t transport.Transport, userID string, opts ...Option) *Client {
	c := &Client{
		transport: t,
		userID:    userID,
		logger:    logger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.store = store.New(t, store.WithLogger(c.logger))
	return c
}

// Store exposes the record store backing this client.
func (c *Client) Store() *store.Store {
	return c.store
}

// UserID is the id of the user edits are attributed to.
func (c *Client) UserID() string {
	return c.userID
}

type getOptions struct {
	force bool
}

// GetOption tweaks a single read.
type GetOption func(o *getOptions)

// ForceRefresh makes a read go to the remote store even if the record is cached.
func ForceRefresh() GetOption {
	return func(o *getOptions) {
		o.force = true
	}
}

func applyGetOptions(opts []GetOption) getOptions {
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// GetRecordData returns the raw payload of a record, or nil if it does not exist.
func (c *Client) GetRecordData(ctx context.Context, table, id string, opts ...GetOption) (models.Record, error) {
	return c.store.Get(ctx, table, id, applyGetOptions(opts).force)
}

// Get returns a typed wrapper for any record except collection views, which
// need their collection (see GetCollectionView). It returns nil, nil if the
// record does not exist.
func (c *Client) Get(ctx context.Context, table, id string, opts ...GetOption) (Wrapper, error) {
	raw, err := c.GetRecordData(ctx, table, id, opts...)
	if err != nil || raw == nil {
		return nil, err
	}
	return Build(c, table, id, raw, nil)
}

// GetBlock returns the block identified by a page URL or an id.
func (c *Client) GetBlock(ctx context.Context, urlOrID string, opts ...GetOption) (BlockWrapper, error) {
	id, err := models.ExtractID(urlOrID)
	if err != nil {
		return nil, err
	}
	w, err := c.Get(ctx, constants.TableBlock, id, opts...)
	if err != nil || w == nil {
		return nil, err
	}
	return w.(BlockWrapper), nil
}

func (c *Client) GetCollection(ctx context.Context, id string, opts ...GetOption) (*Collection, error) {
	w, err := c.Get(ctx, constants.TableCollection, id, opts...)
	if err != nil || w == nil {
		return nil, err
	}
	return w.(*Collection), nil
}

func (c *Client) GetUser(ctx context.Context, id string, opts ...GetOption) (*User, error) {
	w, err := c.Get(ctx, constants.TableUser, id, opts...)
	if err != nil || w == nil {
		return nil, err
	}
	return w.(*User), nil
}

func (c *Client) GetSpace(ctx context.Context, id string, opts ...GetOption) (*Space, error) {
	w, err := c.Get(ctx, constants.TableSpace, id, opts...)
	if err != nil || w == nil {
		return nil, err
	}
	return w.(*Space), nil
}

// GetCollectionView returns a view either from a database page URL
// (".../<block id>?v=<view id>"), in which case the collection is resolved
// from the page, or from a view id together with its collection.
func (c *Client) GetCollectionView(ctx context.Context, urlOrID string, collection *Collection, opts ...GetOption) (*CollectionView, error) {
	viewID := urlOrID
	if isURL(urlOrID) {
		blockID, vid, err := models.ParseViewURL(urlOrID)
		if err != nil {
			return nil, err
		}
		viewID = vid

		block, err := c.GetBlock(ctx, blockID, opts...)
		if err != nil || block == nil {
			return nil, err
		}
		cvb, ok := block.(*CollectionViewBlock)
		if !ok {
			return nil, fmt.Errorf("%w: %s is a %q block", constants.ErrNotCollectionView, blockID, block.Type())
		}
		collection, err = cvb.Collection(ctx)
		if err != nil || collection == nil {
			return nil, err
		}
	} else if collection == nil {
		return nil, constants.ErrCollectionRequired
	}

	raw, err := c.GetRecordData(ctx, constants.TableCollectionView, viewID, opts...)
	if err != nil || raw == nil {
		return nil, err
	}
	w, err := Build(c, constants.TableCollectionView, viewID, raw, collection)
	if err != nil {
		return nil, err
	}
	return w.(*CollectionView), nil
}

// RefreshRecords re-fetches the selected records in one remote call.
func (c *Client) RefreshRecords(ctx context.Context, sel store.Selector) error {
	return c.store.Refresh(ctx, sel)
}

// QueryCollection runs a query against one view of a collection.
func (c *Client) QueryCollection(ctx context.Context, collectionID, viewID string, spec models.QuerySpec) (*models.QueryResult, error) {
	return c.store.Query(ctx, collectionID, viewID, spec)
}

// SearchPagesWithParent returns the pages below parentID matching query.
func (c *Client) SearchPagesWithParent(ctx context.Context, parentID, query string) ([]BlockWrapper, error) {
	ids, err := c.store.Search(ctx, parentID, query)
	if err != nil {
		return nil, err
	}
	return c.blocks(ctx, ids)
}

// blocks builds wrappers for ids, fetching whatever is not cached in one call.
// Missing blocks are skipped.
func (c *Client) blocks(ctx context.Context, ids []string) ([]BlockWrapper, error) {
	keys := make([]models.Key, len(ids))
	for i, id := range ids {
		keys[i] = models.NewKey(constants.TableBlock, id)
	}
	records, err := c.store.GetMany(ctx, keys, false)
	if err != nil {
		return nil, err
	}

	out := make([]BlockWrapper, 0, len(ids))
	for _, k := range keys {
		raw, ok := records[k]
		if !ok {
			continue
		}
		w, err := Build(c, k.Table, k.ID, raw, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, w.(BlockWrapper))
	}
	return out, nil
}

// SubmitTransaction sends ops to the remote store, or buffers them if a
// transaction is open. With updateLastEdited, every mutated block also gets
// its last-edited metadata updated.
func (c *Client) SubmitTransaction(ctx context.Context, ops []models.Operation, updateLastEdited bool) error {
	if len(ops) == 0 {
		return nil
	}

	c.mu.Lock()
	if c.txn != nil {
		c.txn.add(ops, updateLastEdited)
		c.mu.Unlock()
		c.store.TrackBlocks(models.MutatedBlockIDs(ops)...)
		return nil
	}
	c.mu.Unlock()

	state := newTxnState()
	state.add(ops, updateLastEdited)
	return c.submit(ctx, state)
}

// submit sends a flushed batch and refreshes the blocks it touched.
func (c *Client) submit(ctx context.Context, state *txnState) error {
	batch := state.flush(c.userID, c.now())
	if len(batch) == 0 {
		return nil
	}
	if err := c.transport.SubmitOperations(ctx, batch); err != nil {
		c.store.DiscardTracked()
		c.logger.Error("submitting transaction failed", "operations", len(batch), "error", err.Error())
		return err
	}
	c.logger.Debug("submitted transaction", "operations", len(batch))

	c.store.TrackBlocks(models.MutatedBlockIDs(batch)...)
	if err := c.store.PostTransactionRefresh(ctx); err != nil {
		return fmt.Errorf("%w: %w", constants.ErrRefreshAfterSubmit, err)
	}
	return nil
}

func isURL(s string) bool {
	return len(s) > 4 && s[:4] == constants.HTTPScheme
}
