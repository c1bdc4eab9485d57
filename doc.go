// Package notion is a client for a hierarchical document store made of
// blocks, collections, collection views, users and spaces.
//
// # Records and the cache
//
// Every record is addressed by a table name and an id. The [Client] keeps a
// process-local cache of raw records (see [github.com/notion-go/notion/pkg/store]).
// Reads are served from the cache when possible; anything else is fetched,
// and reads that need several records fetch them in one remote call.
//
// Typed handles such as [*PageBlock] or [*Collection] hold no data of their
// own. They read the cache on every access, so a handle is always as fresh as
// the last refresh of its record.
//
//	page, err := client.GetBlock(ctx, "https://www.notion.so/My-Page-0123456789abcdef0123456789abcdef")
//	if err != nil {
//		return err
//	}
//	if page == nil {
//		// no such page
//	}
//	fmt.Println(page.Title())
//
// # Transactions
//
// Mutations go through [Client.SubmitTransaction]. Inside [Client.Atomic]
// (or between [Client.Begin] and [Transaction.Commit]) they are buffered and
// sent as a single remote transaction when the outermost scope ends without
// error; on error they are dropped. Transactions nest: an inner scope joins
// the outer one.
//
//	err := client.Atomic(ctx, func(ctx context.Context) error {
//		if err := page.SetTitle(ctx, "Roadmap"); err != nil {
//			return err
//		}
//		return todo.SetChecked(ctx, true)
//	})
//
// After a commit, every block touched is re-fetched, since fields such as
// last_edited_time are computed remotely.
package notion
