package notion

import (
	"context"

	"github.com/notion-go/notion/pkg/models"
)

type Collection struct {
	record
}

func (c *Collection) Name() string {
	return models.PlainText(c.get("name"))
}

func (c *Collection) Description() string {
	return models.PlainText(c.get("description"))
}

// Schema maps property ids to their definitions ({"name": ..., "type": ...}).
func (c *Collection) Schema() map[string]any {
	s, _ := c.get("schema").(map[string]any)
	return s
}

// PropertyID returns the schema id of the property with the given name.
func (c *Collection) PropertyID(name string) (string, bool) {
	for id, def := range c.Schema() {
		if m, ok := def.(map[string]any); ok && m["name"] == name {
			return id, true
		}
	}
	return "", false
}

// CollectionView is one way of looking at a collection: a table, a board...
type CollectionView struct {
	record
	collection *Collection
	viewType   ViewType
}

func (v *CollectionView) Collection() *Collection {
	return v.collection
}

// Type is the view kind, or ViewGeneric if it is not one of the known kinds.
func (v *CollectionView) Type() ViewType {
	return v.viewType
}

func (v *CollectionView) Name() string {
	return v.Data().String("name")
}

// Query runs spec through this view. Records referenced by the result are
// cached.
func (v *CollectionView) Query(ctx context.Context, spec models.QuerySpec) (*models.QueryResult, error) {
	return v.client.QueryCollection(ctx, v.collection.ID(), v.id, spec)
}

// Rows runs spec and returns the matching rows in result order.
func (v *CollectionView) Rows(ctx context.Context, spec models.QuerySpec) ([]BlockWrapper, error) {
	res, err := v.Query(ctx, spec)
	if err != nil {
		return nil, err
	}
	return v.client.blocks(ctx, res.BlockIDs)
}
