package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/notion-go/notion/pkg/models"
)

func TestBuildOperationSplitsPath(t *testing.T) {
	op := models.BuildOperation("block", "b1", "properties.title", models.CommandSet, models.RichText("hi"))
	assert.Equal(t, []string{"properties", "title"}, op.Path)
	assert.Equal(t, models.NewKey("block", "b1"), op.Key())

	op = models.SetOperation("b1", "", map[string]any{"alive": false})
	assert.Equal(t, []string{}, op.Path)
	assert.Equal(t, "block", op.Table)
}

func TestUpdateLastEditedOperation(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	op := models.UpdateLastEditedOperation("u1", "b1", at)

	assert.Equal(t, "block", op.Table)
	assert.Equal(t, "b1", op.ID)
	assert.Equal(t, models.CommandUpdate, op.Command)
	assert.Equal(t, map[string]any{"last_edited_by": "u1", "last_edited_time": int64(1700000000123)}, op.Args)
}

func TestMutatedBlockIDs(t *testing.T) {
	ops := []models.Operation{
		models.SetOperation("x", "title", 1),
		models.BuildOperation("collection", "c1", "name", models.CommandSet, 2),
		models.SetOperation("y", "title", 3),
		models.SetOperation("x", "alive", true),
	}
	assert.Equal(t, []string{"x", "y"}, models.MutatedBlockIDs(ops))
}
