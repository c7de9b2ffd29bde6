package model

import (
	"encoding/json"
	"fmt"
	"sort"

	errs "github.com/dm/gridmon/internal/errors"
)

// Entry pairs a key with its record.
type Entry struct {
	Key    Key
	Record *Record
}

// Snapshot is the complete, key-ordered result of polling one entity type
// once. It is immutable after Build and never holds partial records.
type Snapshot struct {
	schema  *Schema
	entries []Entry
}

// Entity returns the entity type of the snapshot.
func (s *Snapshot) Entity() EntityType { return s.schema.entity }

// Schema returns the column schema all records share.
func (s *Snapshot) Schema() *Schema { return s.schema }

// Len returns the number of records.
func (s *Snapshot) Len() int { return len(s.entries) }

// Entries returns the entries in key order. The slice is shared; callers
// must not modify it.
func (s *Snapshot) Entries() []Entry { return s.entries }

// Keys returns the keys in order.
func (s *Snapshot) Keys() []Key {
	out := make([]Key, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Key
	}
	return out
}

// Get returns the record stored under key.
func (s *Snapshot) Get(key Key) (*Record, bool) {
	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].Key.Compare(key) >= 0 })
	if i < len(s.entries) && s.entries[i].Key.Equal(key) {
		return s.entries[i].Record, true
	}
	return nil, false
}

type snapshotRow struct {
	Key    Key   `json:"key" yaml:"key"`
	Values []any `json:"values" yaml:"values"`
}

type snapshotDoc struct {
	Entity  EntityType    `json:"entity" yaml:"entity"`
	Columns []string      `json:"columns" yaml:"columns"`
	Rows    []snapshotRow `json:"rows" yaml:"rows"`
}

func (s *Snapshot) doc() snapshotDoc {
	d := snapshotDoc{
		Entity:  s.schema.entity,
		Columns: s.schema.Names(),
		Rows:    make([]snapshotRow, len(s.entries)),
	}
	for i, e := range s.entries {
		d.Rows[i] = snapshotRow{Key: e.Key, Values: e.Record.Values()}
	}
	return d
}

// MarshalJSON encodes the snapshot in column and key order, so equal
// snapshots always encode to equal bytes.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.doc())
}

// MarshalYAML encodes the snapshot in column and key order.
func (s *Snapshot) MarshalYAML() (any, error) {
	return s.doc(), nil
}

// SnapshotBuilder accumulates records for one poll of one entity type.
type SnapshotBuilder struct {
	schema  *Schema
	index   map[string]int
	entries []Entry
}

// NewSnapshotBuilder returns a builder for records of schema s.
func NewSnapshotBuilder(s *Schema) *SnapshotBuilder {
	return &SnapshotBuilder{schema: s, index: make(map[string]int)}
}

// Put adds rec under key. A second record for the same key replaces the
// first. Records of another schema or with unset columns are rejected.
func (b *SnapshotBuilder) Put(key Key, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("put %s: nil record", key)
	}
	if rec.schema != b.schema {
		return errs.NewWithContext(errs.ErrCodeInternal, "record belongs to another schema",
			map[string]any{"want": string(b.schema.entity), "got": string(rec.schema.entity)})
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	id := key.id()
	if i, ok := b.index[id]; ok {
		b.entries[i].Record = rec
		return nil
	}
	b.index[id] = len(b.entries)
	b.entries = append(b.entries, Entry{Key: key, Record: rec})
	return nil
}

// Len returns the number of distinct keys added so far.
func (b *SnapshotBuilder) Len() int { return len(b.entries) }

// Build returns the key-ordered snapshot.
func (b *SnapshotBuilder) Build() *Snapshot {
	entries := append([]Entry(nil), b.entries...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Key.Compare(entries[j].Key) < 0 })
	return &Snapshot{schema: b.schema, entries: entries}
}
