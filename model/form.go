package model

import (
	"encoding/json"
	"fmt"
)

// FormData is the accumulated key-value snapshot of every field value entered
// across the visited steps of a wizard session. It preserves insertion order
// and is immutable: every modification returns a new snapshot, so a value can
// be shared freely between concurrent readers.
type FormData struct {
	keys   []string
	values map[string]string
}

// NewFormData builds a snapshot from alternating key, value arguments.
func NewFormData(kv ...string) FormData {
	if len(kv)%2 != 0 {
		panic("model: NewFormData requires key/value pairs")
	}
	var d FormData
	pairs := make([]FormEntry, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		pairs = append(pairs, FormEntry{Key: kv[i], Value: kv[i+1]})
	}
	return d.with(pairs)
}

// FormEntry is a single key-value pair of a FormData snapshot.
type FormEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Get returns the value for key and whether it is present.
func (d FormData) Get(key string) (string, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Value returns the value for key, or "" if absent.
func (d FormData) Value(key string) string {
	return d.values[key]
}

// Len returns the number of keys.
func (d FormData) Len() int {
	return len(d.keys)
}

// Keys returns the keys in insertion order.
func (d FormData) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Entries returns the key-value pairs in insertion order.
func (d FormData) Entries() []FormEntry {
	out := make([]FormEntry, len(d.keys))
	for i, k := range d.keys {
		out[i] = FormEntry{Key: k, Value: d.values[k]}
	}
	return out
}

// Map returns a copy of the snapshot as a plain map.
func (d FormData) Map() map[string]string {
	out := make(map[string]string, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// With returns a new snapshot with key set to value. An existing key keeps
// its original position.
func (d FormData) With(key, value string) FormData {
	return d.with([]FormEntry{{Key: key, Value: value}})
}

// WithFields returns a new snapshot holding the current value of every field.
func (d FormData) WithFields(fields []Field) FormData {
	pairs := make([]FormEntry, 0, len(fields))
	for _, f := range fields {
		b := f.Base()
		pairs = append(pairs, FormEntry{Key: b.ID, Value: b.Value})
	}
	return d.with(pairs)
}

// Merge returns a new snapshot with every entry of other applied on top of d.
func (d FormData) Merge(other FormData) FormData {
	return d.with(other.Entries())
}

func (d FormData) with(pairs []FormEntry) FormData {
	if len(pairs) == 0 {
		return d
	}
	next := FormData{
		keys:   make([]string, len(d.keys), len(d.keys)+len(pairs)),
		values: make(map[string]string, len(d.values)+len(pairs)),
	}
	copy(next.keys, d.keys)
	for k, v := range d.values {
		next.values[k] = v
	}
	for _, p := range pairs {
		if _, exists := next.values[p.Key]; !exists {
			next.keys = append(next.keys, p.Key)
		}
		next.values[p.Key] = p.Value
	}
	return next
}

// MarshalJSON encodes the snapshot as an ordered list of key-value pairs.
func (d FormData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Entries())
}

// UnmarshalJSON decodes an ordered list of key-value pairs.
func (d *FormData) UnmarshalJSON(data []byte) error {
	var entries []FormEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("model: decoding form data: %w", err)
	}
	*d = FormData{}.with(entries)
	return nil
}
