package model

import (
	"fmt"
	"sort"
	"sync"
)

// EntityType names a family of records sharing one schema.
type EntityType string

const (
	EntityCluster EntityType = "cluster"
	EntityMachine EntityType = "machine"
	EntityMember  EntityType = "member"
	EntityService EntityType = "service"
	EntityCache   EntityType = "cache"
	EntityProxy   EntityType = "proxy"
)

// Kind is the value type stored in a column.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindLong
	KindDouble
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Unit is a display hint for numeric columns.
type Unit int

const (
	UnitNone Unit = iota
	UnitBytes
	UnitMegabytes
	UnitRatio // fraction in [0,1]
	UnitLoad
)

// Column describes one position of a record.
type Column struct {
	Index int
	Name  string
	Kind  Kind
	Unit  Unit
}

// Schema is the ordered, fixed-width column layout of one entity type.
// Column indices never change once a schema is declared.
type Schema struct {
	entity  EntityType
	columns []Column
}

// NewSchema declares a schema. It panics when a column index does not match
// its position or a name repeats; schemas are package-level declarations so
// this is a programming error.
func NewSchema(entity EntityType, columns ...Column) *Schema {
	if entity == "" {
		panic("model: schema without entity type")
	}
	if len(columns) == 0 {
		panic(fmt.Sprintf("model: schema %s has no columns", entity))
	}
	names := make(map[string]bool, len(columns))
	for i, c := range columns {
		if c.Index != i {
			panic(fmt.Sprintf("model: schema %s column %q has index %d at position %d", entity, c.Name, c.Index, i))
		}
		if names[c.Name] {
			panic(fmt.Sprintf("model: schema %s repeats column %q", entity, c.Name))
		}
		names[c.Name] = true
	}
	return &Schema{entity: entity, columns: append([]Column(nil), columns...)}
}

// Entity returns the entity type the schema describes.
func (s *Schema) Entity() EntityType { return s.entity }

// Width returns the number of columns.
func (s *Schema) Width() int { return len(s.columns) }

// Column returns the column at index i.
func (s *Schema) Column(i int) Column { return s.columns[i] }

// Columns returns a copy of the column list.
func (s *Schema) Columns() []Column {
	return append([]Column(nil), s.columns...)
}

// Names returns the column names in index order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.columns))
	for i, c := range s.columns {
		out[i] = c.Name
	}
	return out
}

// SchemaRegistry maps entity types to their schemas.
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[EntityType]*Schema
}

// NewSchemaRegistry returns an empty registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{schemas: make(map[EntityType]*Schema)}
}

// Register adds s. Registering a second schema for the same entity is an error.
func (r *SchemaRegistry) Register(s *Schema) error {
	if s == nil {
		return fmt.Errorf("schema required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemas[s.entity]; ok {
		return fmt.Errorf("schema for %s already registered", s.entity)
	}
	r.schemas[s.entity] = s
	return nil
}

// Lookup returns the schema registered for entity.
func (r *SchemaRegistry) Lookup(entity EntityType) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[entity]
	return s, ok
}

// Entities returns the registered entity types in sorted order.
func (r *SchemaRegistry) Entities() []EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EntityType, 0, len(r.schemas))
	for e := range r.schemas {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
