package models

import "fmt"

// Key identifies one record in the remote store.
type Key struct {
	Table string `json:"table"`
	ID    string `json:"id"`
}

func NewKey(table, id string) Key {
	return Key{Table: table, ID: id}
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Table, k.ID)
}
