package models

import (
	"strings"
	"time"
)

// Commands understood by submitTransaction.
const (
	CommandSet        = "set"
	CommandUpdate     = "update"
	CommandListAfter  = "listAfter"
	CommandListBefore = "listBefore"
	CommandListRemove = "listRemove"
	CommandSetParent  = "setParent"
)

// Operation applies Command to the field at Path of one record.
type Operation struct {
	Table   string   `json:"table"`
	ID      string   `json:"id"`
	Path    []string `json:"path"`
	Command string   `json:"command"`
	Args    any      `json:"args"`
}

// Key returns the record the operation targets.
func (op Operation) Key() Key {
	return Key{Table: op.Table, ID: op.ID}
}

// BuildOperation creates an operation from a dotted path ("properties.title").
// An empty path addresses the whole record.
func BuildOperation(table, id, path, command string, args any) Operation {
	return Operation{
		Table:   table,
		ID:      id,
		Path:    SplitPath(path),
		Command: command,
		Args:    args,
	}
}

// SetOperation is BuildOperation with the set command on the block table.
func SetOperation(id, path string, args any) Operation {
	return BuildOperation("block", id, path, CommandSet, args)
}

// UpdateLastEditedOperation stamps a block with its last editor and edit time.
func UpdateLastEditedOperation(userID, blockID string, at time.Time) Operation {
	return Operation{
		Table:   "block",
		ID:      blockID,
		Path:    []string{},
		Command: CommandUpdate,
		Args: map[string]any{
			"last_edited_by":   userID,
			"last_edited_time": at.UnixMilli(),
		},
	}
}

func SplitPath(path string) []string {
	if path == "" {
		return []string{}
	}
	return strings.Split(path, ".")
}

// MutatedBlockIDs returns the distinct ids of block records touched by ops,
// in first-seen order.
func MutatedBlockIDs(ops []Operation) []string {
	seen := make(map[string]struct{}, len(ops))
	ids := make([]string, 0, len(ops))
	for _, op := range ops {
		if op.Table != "block" {
			continue
		}
		if _, ok := seen[op.ID]; ok {
			continue
		}
		seen[op.ID] = struct{}{}
		ids = append(ids, op.ID)
	}
	return ids
}
