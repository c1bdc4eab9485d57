package notion

import (
	"fmt"

	"github.com/notion-go/notion/pkg/constants"
	"github.com/notion-go/notion/pkg/models"
)

// Block types with a dedicated wrapper. Any other type gets a plain *Block.
var blockTypes = map[string]func(b *Block) BlockWrapper{
	"page":                 func(b *Block) BlockWrapper { return &PageBlock{Block: b} },
	"text":                 newTextBlock,
	"header":               newTextBlock,
	"sub_header":           newTextBlock,
	"sub_sub_header":       newTextBlock,
	"bulleted_list":        newTextBlock,
	"numbered_list":        newTextBlock,
	"toggle":               newTextBlock,
	"quote":                newTextBlock,
	"callout":              newTextBlock,
	"to_do":                func(b *Block) BlockWrapper { return &TodoBlock{Block: b} },
	"code":                 func(b *Block) BlockWrapper { return &CodeBlock{Block: b} },
	"image":                newEmbedBlock,
	"video":                newEmbedBlock,
	"audio":                newEmbedBlock,
	"file":                 newEmbedBlock,
	"pdf":                  newEmbedBlock,
	"bookmark":             newEmbedBlock,
	"embed":                newEmbedBlock,
	"collection_view":      newCollectionViewBlock,
	"collection_view_page": newCollectionViewBlock,
}

func newTextBlock(b *Block) BlockWrapper           { return &TextBlock{Block: b} }
func newEmbedBlock(b *Block) BlockWrapper          { return &EmbedBlock{Block: b} }
func newCollectionViewBlock(b *Block) BlockWrapper { return &CollectionViewBlock{Block: b} }

// Build picks the wrapper for a raw record. Collection views need their
// collection; every other table ignores it. A nil raw record yields nil.
func Build(c *Client, table, id string, raw models.Record, collection *Collection) (Wrapper, error) {
	if raw == nil {
		return nil, nil
	}
	base := record{client: c, table: table, id: id}

	switch table {
	case constants.TableBlock:
		return buildBlock(base, raw), nil
	case constants.TableCollection:
		return &Collection{record: base}, nil
	case constants.TableCollectionView:
		if collection == nil {
			return nil, constants.ErrCollectionRequired
		}
		return &CollectionView{record: base, collection: collection, viewType: viewTypeOf(raw)}, nil
	case constants.TableUser:
		return &User{record: base}, nil
	case constants.TableSpace:
		return &Space{record: base}, nil
	default:
		return nil, fmt.Errorf("%w: %q", constants.ErrUnknownTable, table)
	}
}

func buildBlock(base record, raw models.Record) BlockWrapper {
	b := &Block{record: base}
	// Rows of a collection are stored as blocks of whatever type, but always
	// behave as rows.
	if raw.String("parent_table") == constants.TableCollection {
		return &CollectionRowBlock{Block: b}
	}
	if ctor, ok := blockTypes[raw.String("type")]; ok {
		return ctor(b)
	}
	return b
}

// ViewType tags the known kinds of collection view.
type ViewType string

const (
	ViewGeneric  ViewType = ""
	ViewTable    ViewType = "table"
	ViewBoard    ViewType = "board"
	ViewList     ViewType = "list"
	ViewCalendar ViewType = "calendar"
	ViewGallery  ViewType = "gallery"
	ViewTimeline ViewType = "timeline"
)

func viewTypeOf(raw models.Record) ViewType {
	switch t := ViewType(raw.String("type")); t {
	case ViewTable, ViewBoard, ViewList, ViewCalendar, ViewGallery, ViewTimeline:
		return t
	default:
		return ViewGeneric
	}
}
