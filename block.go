package notion

import (
	"context"

	"github.com/notion-go/notion/pkg/constants"
	"github.com/notion-go/notion/pkg/models"
)

// BlockWrapper is the capability set shared by every block variant.
type BlockWrapper interface {
	Wrapper
	Type() string
	Title() string
	Alive() bool
	ParentID() string
	ParentTable() string
	ChildrenIDs() []string
	Children(ctx context.Context) ([]BlockWrapper, error)
	Parent(ctx context.Context) (Wrapper, error)
	Set(ctx context.Context, path string, value any) error
	SetTitle(ctx context.Context, title string) error
	Remove(ctx context.Context) error
}

// Block is the generic block, used for types without a dedicated wrapper.
type Block struct {
	record
}

var (
	_ BlockWrapper = (*Block)(nil)
	_ BlockWrapper = (*PageBlock)(nil)
	_ BlockWrapper = (*TextBlock)(nil)
	_ BlockWrapper = (*TodoBlock)(nil)
	_ BlockWrapper = (*CodeBlock)(nil)
	_ BlockWrapper = (*EmbedBlock)(nil)
	_ BlockWrapper = (*CollectionViewBlock)(nil)
	_ BlockWrapper = (*CollectionRowBlock)(nil)
)

func (b *Block) Type() string {
	return b.Data().String("type")
}

func (b *Block) Title() string {
	return models.PlainText(b.get("properties.title"))
}

func (b *Block) Alive() bool {
	return b.Data().Bool("alive")
}

func (b *Block) ParentID() string {
	return b.Data().String("parent_id")
}

func (b *Block) ParentTable() string {
	return b.Data().String("parent_table")
}

func (b *Block) ChildrenIDs() []string {
	return b.Data().Strings("content")
}

// Children returns the child blocks, fetching the uncached ones in one call.
func (b *Block) Children(ctx context.Context) ([]BlockWrapper, error) {
	return b.client.blocks(ctx, b.ChildrenIDs())
}

// Parent returns the parent record: a block, a collection or a space.
func (b *Block) Parent(ctx context.Context) (Wrapper, error) {
	table := b.ParentTable()
	if table == "" {
		return nil, nil
	}
	return b.client.Get(ctx, table, b.ParentID())
}

func (b *Block) SetTitle(ctx context.Context, title string) error {
	return b.Set(ctx, "properties.title", models.RichText(title))
}

// Remove marks the block as deleted and unlinks it from its parent block.
func (b *Block) Remove(ctx context.Context) error {
	return b.client.Atomic(ctx, func(ctx context.Context) error {
		if err := b.Set(ctx, "alive", false); err != nil {
			return err
		}
		if b.ParentTable() != constants.TableBlock {
			return nil
		}
		op := models.BuildOperation(constants.TableBlock, b.ParentID(), "content", models.CommandListRemove, map[string]any{"id": b.id})
		return b.client.SubmitTransaction(ctx, []models.Operation{op}, true)
	})
}

type PageBlock struct {
	*Block
}

func (p *PageBlock) Icon() string {
	return p.Data().String("format.page_icon")
}

// TextBlock covers text, headers, list items, toggles, quotes and callouts.
type TextBlock struct {
	*Block
}

type TodoBlock struct {
	*Block
}

func (t *TodoBlock) Checked() bool {
	return models.PlainText(t.get("properties.checked")) == "Yes"
}

func (t *TodoBlock) SetChecked(ctx context.Context, checked bool) error {
	v := "No"
	if checked {
		v = "Yes"
	}
	return t.Set(ctx, "properties.checked", models.RichText(v))
}

type CodeBlock struct {
	*Block
}

func (c *CodeBlock) Language() string {
	return models.PlainText(c.get("properties.language"))
}

// EmbedBlock covers media and link blocks: images, video, audio, files,
// PDFs, bookmarks and embeds.
type EmbedBlock struct {
	*Block
}

func (e *EmbedBlock) Source() string {
	return models.PlainText(e.get("properties.source"))
}

func (e *EmbedBlock) Caption() string {
	return models.PlainText(e.get("properties.caption"))
}

// CollectionViewBlock is an inline or full-page database.
type CollectionViewBlock struct {
	*Block
}

func (v *CollectionViewBlock) CollectionID() string {
	return v.Data().String("collection_id")
}

func (v *CollectionViewBlock) ViewIDs() []string {
	return v.Data().Strings("view_ids")
}

func (v *CollectionViewBlock) Collection(ctx context.Context) (*Collection, error) {
	id := v.CollectionID()
	if id == "" {
		return nil, nil
	}
	return v.client.GetCollection(ctx, id)
}

// Views returns the views of the database, fetching them in one call.
func (v *CollectionViewBlock) Views(ctx context.Context) ([]*CollectionView, error) {
	collection, err := v.Collection(ctx)
	if err != nil || collection == nil {
		return nil, err
	}

	ids := v.ViewIDs()
	keys := make([]models.Key, len(ids))
	for i, id := range ids {
		keys[i] = models.NewKey(constants.TableCollectionView, id)
	}
	records, err := v.client.store.GetMany(ctx, keys, false)
	if err != nil {
		return nil, err
	}

	views := make([]*CollectionView, 0, len(ids))
	for _, k := range keys {
		raw, ok := records[k]
		if !ok {
			continue
		}
		w, err := Build(v.client, k.Table, k.ID, raw, collection)
		if err != nil {
			return nil, err
		}
		views = append(views, w.(*CollectionView))
	}
	return views, nil
}

// CollectionRowBlock is a page living inside a collection. Its properties
// are keyed by the collection schema's property ids.
type CollectionRowBlock struct {
	*Block
}

func (r *CollectionRowBlock) CollectionID() string {
	return r.ParentID()
}

func (r *CollectionRowBlock) Collection(ctx context.Context) (*Collection, error) {
	return r.client.GetCollection(ctx, r.CollectionID())
}

// Property returns the raw value of a property by schema id.
func (r *CollectionRowBlock) Property(id string) any {
	props, _ := r.get("properties").(map[string]any)
	return props[id]
}

func (r *CollectionRowBlock) SetProperty(ctx context.Context, id string, value any) error {
	return r.Set(ctx, "properties."+id, value)
}
