// Package retriever turns remote management attributes into typed snapshots,
// one module per entity type.
//
// Every module can collect directly, walking discovered objects through a
// sender.RequestSender. Modules that also support bulk collection declare a
// report and build the same records from its rows. Both paths share one
// build function per module, so a snapshot does not depend on the strategy
// used to collect it.
package retriever

import (
	"context"
	"fmt"

	errs "github.com/dm/gridmon/internal/errors"
	"github.com/dm/gridmon/internal/model"
	"github.com/dm/gridmon/internal/sender"
)

// ErrReportUnsupported is returned by CollectFromReport of modules without a
// report. It is a capability signal, not a failure.
var ErrReportUnsupported = errs.New(errs.ErrCodeUnsupported, "report collection not supported")

// Retriever collects the snapshot of one entity type.
type Retriever interface {
	// Entity returns the entity type the module produces.
	Entity() model.EntityType

	// Schema returns the column layout of every produced record.
	Schema() *model.Schema

	// CollectDirect queries the cluster object by object. Any error aborts
	// the collection and no snapshot is returned.
	CollectDirect(ctx context.Context, s sender.RequestSender, sess *model.Session) (*model.Snapshot, error)

	// SupportsReport reports whether CollectFromReport can be used.
	SupportsReport() bool

	// Report returns the report to run for CollectFromReport. It is the zero
	// Report when SupportsReport is false.
	Report() sender.Report

	// CollectFromReport builds the snapshot from the rows of Report.
	CollectFromReport(rows []sender.ReportRow, sess *model.Session) (*model.Snapshot, error)
}

// directOnly is embedded by modules that have no report.
type directOnly struct{}

func (directOnly) SupportsReport() bool { return false }

func (directOnly) Report() sender.Report { return sender.Report{} }

func (directOnly) CollectFromReport([]sender.ReportRow, *model.Session) (*model.Snapshot, error) {
	return nil, ErrReportUnsupported
}

// eachRow calls fn with a column getter for every row, stopping at the first
// error.
func eachRow(r sender.Report, rows []sender.ReportRow, fn func(get model.Getter) error) error {
	for i, row := range rows {
		if err := fn(r.Lookup(row)); err != nil {
			return fmt.Errorf("%s row %d: %w", r.Name, i, err)
		}
	}
	return nil
}

// objectGetter resolves names first from object-name properties, then from
// fetched attributes. props maps a column name to an object-name key.
func objectGetter(obj sender.ObjectName, props map[string]string, attrs sender.AttributeList) model.Getter {
	return func(name string) (string, error) {
		if key, ok := props[name]; ok {
			if v := obj.Key(key); v != "" {
				return v, nil
			}
			return "", errs.NewWithContext(errs.ErrCodeDataShape, "object name property missing",
				map[string]any{"mbean": obj.String(), "property": key})
		}
		return attrs.Require(name)
	}
}

// Multi-tenant clusters add a domainPartition key to service and cache
// MBeans. Single-tenant clusters leave it unset and the column reads empty.
const (
	colDomainPartition = "DomainPartition"
	keyDomainPartition = "domainPartition"
)

// withPartition answers colDomainPartition from obj, and every other name
// from get.
func withPartition(obj sender.ObjectName, get model.Getter) model.Getter {
	return func(name string) (string, error) {
		if name == colDomainPartition {
			return obj.Key(keyDomainPartition), nil
		}
		return get(name)
	}
}

// qualifiedName prefixes name with its domain partition, if any, so the same
// service in two partitions stays two records.
func qualifiedName(partition, name string) string {
	if partition == "" {
		return name
	}
	return partition + "/" + name
}

// Registry is the fixed set of modules, selectable by entity type.
type Registry struct {
	order   []model.EntityType
	byType  map[model.EntityType]Retriever
	schemas *model.SchemaRegistry
}

// NewRegistry returns a registry of rs in the given order. Two modules for
// the same entity type are an error.
func NewRegistry(rs ...Retriever) (*Registry, error) {
	reg := &Registry{
		byType:  make(map[model.EntityType]Retriever, len(rs)),
		schemas: model.NewSchemaRegistry(),
	}
	for _, r := range rs {
		if err := reg.schemas.Register(r.Schema()); err != nil {
			return nil, fmt.Errorf("register %s: %w", r.Entity(), err)
		}
		reg.order = append(reg.order, r.Entity())
		reg.byType[r.Entity()] = r
	}
	return reg, nil
}

// DefaultRegistry returns a registry of every module.
func DefaultRegistry() *Registry {
	reg, err := NewRegistry(
		NewCluster(),
		NewMachine(),
		NewMember(),
		NewService(),
		NewCache(),
		NewProxy(),
	)
	if err != nil {
		panic(err)
	}
	return reg
}

// Lookup returns the module for entity.
func (r *Registry) Lookup(entity model.EntityType) (Retriever, bool) {
	rt, ok := r.byType[entity]
	return rt, ok
}

// Entities returns the registered entity types in registration order.
func (r *Registry) Entities() []model.EntityType {
	return append([]model.EntityType(nil), r.order...)
}

// All returns the modules in registration order.
func (r *Registry) All() []Retriever {
	out := make([]Retriever, len(r.order))
	for i, e := range r.order {
		out[i] = r.byType[e]
	}
	return out
}

// Select returns the modules for entities, in the given order. An unknown
// entity type is an invalid request.
func (r *Registry) Select(entities []model.EntityType) ([]Retriever, error) {
	if len(entities) == 0 {
		return r.All(), nil
	}
	out := make([]Retriever, 0, len(entities))
	for _, e := range entities {
		rt, ok := r.byType[e]
		if !ok {
			return nil, errs.NewWithContext(errs.ErrCodeInvalidRequest, "unknown entity type",
				map[string]any{"entity": string(e)})
		}
		out = append(out, rt)
	}
	return out, nil
}

// Schemas returns the schema of every registered module.
func (r *Registry) Schemas() *model.SchemaRegistry { return r.schemas }
