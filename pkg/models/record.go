package models

import (
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Record is the raw payload of one record, as returned by the remote store.
type Record map[string]any

// State tells apart the three things a cache slot can hold.
type State int

const (
	// Unfetched means the record was never loaded.
	Unfetched State = iota
	// Missing means the remote store confirmed that the record does not exist
	// or is not visible to the current user.
	Missing
	// Present means Value holds the last fetched payload.
	Present
)

func (s State) String() string {
	switch s {
	case Unfetched:
		return "unfetched"
	case Missing:
		return "missing"
	case Present:
		return "present"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Entry is the content of one cache slot.
type Entry struct {
	State State
	Value Record
}

// Get walks a dotted path ("format.page_icon") into the record.
// It returns nil if any segment is absent.
func (r Record) Get(path string) any {
	if r == nil {
		return nil
	}
	var cur any = map[string]any(r)
	for _, seg := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil
		}
		cur, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return cur
}

// String returns the value at path if it is a string.
func (r Record) String(path string) string {
	s, _ := r.Get(path).(string)
	return s
}

// Bool returns the value at path if it is a bool.
func (r Record) Bool(path string) bool {
	b, _ := r.Get(path).(bool)
	return b
}

// Strings returns the value at path as a list of strings, skipping anything else.
func (r Record) Strings(path string) []string {
	list, _ := r.Get(path).([]any)
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Int returns the value at path as an int64, accepting any JSON number form.
func (r Record) Int(path string) (int64, bool) {
	switch v := r.Get(path).(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return n, true
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// Version is the monotonically increasing revision the remote store attaches
// to every record.
func (r Record) Version() int64 {
	v, _ := r.Int("version")
	return v
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return m, true
	default:
		return nil, false
	}
}

// PlainText flattens the rich text representation used for titles and
// properties (a list of [text, formatting...] chunks) into a string.
func PlainText(v any) string {
	chunks, ok := v.([]any)
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, c := range chunks {
		parts, ok := c.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			b.WriteString(s)
		}
	}
	return b.String()
}

// RichText is the inverse of PlainText for unformatted text.
func RichText(s string) []any {
	return []any{[]any{s}}
}
