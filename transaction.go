package notion

import (
	"context"
	"time"

	"github.com/notion-go/notion/pkg/models"
)

// txnState is the buffer of an open transaction.
type txnState struct {
	ops []models.Operation
	// edited lists, in first-seen order, the blocks that need a last-edited
	// update when the buffer is flushed.
	edited []string
	seen   map[string]struct{}
}

func newTxnState() *txnState {
	return &txnState{seen: make(map[string]struct{})}
}

func (s *txnState) add(ops []models.Operation, updateLastEdited bool) {
	s.ops = append(s.ops, ops...)
	if !updateLastEdited {
		return
	}
	for _, id := range models.MutatedBlockIDs(ops) {
		if _, ok := s.seen[id]; ok {
			continue
		}
		s.seen[id] = struct{}{}
		s.edited = append(s.edited, id)
	}
}

// flush returns the buffered operations followed by one last-edited update
// per edited block.
func (s *txnState) flush(userID string, at time.Time) []models.Operation {
	batch := make([]models.Operation, 0, len(s.ops)+len(s.edited))
	batch = append(batch, s.ops...)
	for _, id := range s.edited {
		batch = append(batch, models.UpdateLastEditedOperation(userID, id, at))
	}
	return batch
}

// Transaction buffers every SubmitTransaction call made on its client until
// Commit or Rollback. Beginning a transaction while another one is open
// yields a nested Transaction whose Commit and Rollback do nothing; the
// outermost one decides.
type Transaction struct {
	client *Client
	nested bool
	done   bool
}

// Begin opens a transaction, or joins the one already open.
func (c *Client) Begin() *Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.txn != nil {
		return &Transaction{client: c, nested: true}
	}
	c.txn = newTxnState()
	c.logger.Debug("transaction started")
	return &Transaction{client: c}
}

// InTransaction reports whether a transaction is open.
func (c *Client) InTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txn != nil
}

// Nested reports whether t defers to an outer transaction.
func (t *Transaction) Nested() bool {
	return t.nested
}

// Commit submits everything buffered as one remote transaction, then
// refreshes the blocks it touched. If the submission fails, the buffer is
// gone, nothing is refreshed, and the error is returned.
func (t *Transaction) Commit(ctx context.Context) error {
	state := t.close()
	if state == nil {
		return nil
	}
	return t.client.submit(ctx, state)
}

// Rollback drops everything buffered. Nothing is sent or refreshed: the
// buffered operations never touched the cache, so rolled-back blocks still
// hold their last fetched values.
func (t *Transaction) Rollback() {
	state := t.close()
	if state == nil {
		return
	}
	t.client.store.DiscardTracked()
	t.client.logger.Debug("transaction rolled back", "discarded", len(state.ops))
}

// close detaches the buffer from the client. It returns nil for nested or
// already finished transactions.
func (t *Transaction) close() *txnState {
	if t.nested || t.done {
		return nil
	}
	t.done = true

	c := t.client
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.txn
	c.txn = nil
	return state
}

// Atomic runs fn inside a transaction. The transaction commits if fn returns
// nil and rolls back if fn returns an error or panics. Called inside another
// transaction, fn simply joins it. A scope left any other way, by
// runtime.Goexit for instance, also rolls back.
func (c *Client) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	tx := c.Begin()
	finished := false
	defer func() {
		r := recover()
		if !finished {
			tx.Rollback()
		}
		if r != nil {
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		tx.Rollback()
		finished = true
		return err
	}
	err := tx.Commit(ctx)
	finished = true
	return err
}
