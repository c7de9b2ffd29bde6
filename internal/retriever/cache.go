package retriever

import (
	"context"
	"fmt"

	"github.com/dm/gridmon/internal/model"
	"github.com/dm/gridmon/internal/sender"
)

// Cache column indices.
const (
	CacheColService = iota
	CacheColName
	CacheColSize
	CacheColMemory
	CacheColTotalGets
	CacheColTotalPuts
	CacheColHits
	CacheColHitRatio
)

var cacheSchema = model.NewSchema(model.EntityCache,
	model.Column{Index: CacheColService, Name: "ServiceName", Kind: model.KindString},
	model.Column{Index: CacheColName, Name: "CacheName", Kind: model.KindString},
	model.Column{Index: CacheColSize, Name: "Size", Kind: model.KindLong},
	model.Column{Index: CacheColMemory, Name: "MemoryBytes", Kind: model.KindLong, Unit: model.UnitBytes},
	model.Column{Index: CacheColTotalGets, Name: "TotalGets", Kind: model.KindLong},
	model.Column{Index: CacheColTotalPuts, Name: "TotalPuts", Kind: model.KindLong},
	model.Column{Index: CacheColHits, Name: "CacheHits", Kind: model.KindLong},
	model.Column{Index: CacheColHitRatio, Name: "HitRatio", Kind: model.KindDouble, Unit: model.UnitRatio},
)

const (
	colCacheName    = "Name"
	attrSize        = "Size"
	attrUnits       = "Units"
	attrUnitFactor  = "UnitFactor"
	attrTotalGets   = "TotalGets"
	attrTotalPuts   = "TotalPuts"
	attrCacheHits   = "CacheHits"
	cacheReportName = "reports/report-cache-size.xml"
)

var cacheAttributes = []string{attrSize, attrUnits, attrUnitFactor, attrTotalGets, attrTotalPuts, attrCacheHits}

var cacheReport = sender.Report{
	Name:     cacheReportName,
	Columns:  append(append([]string{colService, colCacheName, colNodeID}, cacheAttributes...), colDomainPartition),
	Optional: []string{colDomainPartition},
}

var cacheProps = map[string]string{colService: "service", colCacheName: "name", colNodeID: "nodeId"}

type cacheTotals struct {
	size, memory, gets, puts, hits int64
}

// Cache reports one row per (service, cache), summed over the back tier of
// every storage member. Services in a domain partition are qualified by it.
type Cache struct{}

// NewCache returns the cache module.
func NewCache() *Cache { return &Cache{} }

// Entity implements Retriever.
func (*Cache) Entity() model.EntityType { return model.EntityCache }

// Schema implements Retriever.
func (*Cache) Schema() *model.Schema { return cacheSchema }

// SupportsReport implements Retriever.
func (*Cache) SupportsReport() bool { return true }

// Report implements Retriever.
func (*Cache) Report() sender.Report { return cacheReport }

// CollectDirect implements Retriever.
func (*Cache) CollectDirect(ctx context.Context, s sender.RequestSender, _ *model.Session) (*model.Snapshot, error) {
	objs, err := s.Discover(ctx, sender.Query{Category: sender.CategoryCaches})
	if err != nil {
		return nil, fmt.Errorf("discover caches: %w", err)
	}

	acc := newCacheAccumulator()
	for _, obj := range objs {
		attrs, err := s.FetchMany(ctx, obj, cacheAttributes)
		if err != nil {
			return nil, fmt.Errorf("cache %s: %w", obj, err)
		}
		if err := acc.add(withPartition(obj, objectGetter(obj, cacheProps, attrs))); err != nil {
			return nil, fmt.Errorf("cache %s: %w", obj, err)
		}
	}
	return acc.build()
}

// CollectFromReport implements Retriever.
func (*Cache) CollectFromReport(rows []sender.ReportRow, _ *model.Session) (*model.Snapshot, error) {
	acc := newCacheAccumulator()
	if err := eachRow(cacheReport, rows, acc.add); err != nil {
		return nil, err
	}
	return acc.build()
}

type cacheAccumulator struct {
	keys   []model.Key
	totals map[string]*cacheTotals
	names  map[string][2]string
}

func newCacheAccumulator() *cacheAccumulator {
	return &cacheAccumulator{
		totals: make(map[string]*cacheTotals),
		names:  make(map[string][2]string),
	}
}

func (a *cacheAccumulator) add(get model.Getter) error {
	f := model.NewFields(get)
	service := qualifiedName(f.String(colDomainPartition), f.String(colService))
	name := f.String(colCacheName)
	size := f.Long(attrSize)
	units := f.Long(attrUnits)
	factor := f.Long(attrUnitFactor)
	gets := f.Long(attrTotalGets)
	puts := f.Long(attrTotalPuts)
	hits := f.Long(attrCacheHits)
	if err := f.Err(); err != nil {
		return err
	}

	id := service + "\x00" + name
	t, ok := a.totals[id]
	if !ok {
		t = &cacheTotals{}
		a.totals[id] = t
		a.names[id] = [2]string{service, name}
	}
	t.size += size
	t.memory += units * factor
	t.gets += gets
	t.puts += puts
	t.hits += hits
	return nil
}

func (a *cacheAccumulator) build() (*model.Snapshot, error) {
	b := model.NewSnapshotBuilder(cacheSchema)
	for id, t := range a.totals {
		n := a.names[id]
		ratio := 0.0
		if t.gets > 0 {
			ratio = float64(t.hits) / float64(t.gets)
		}
		rec := model.NewRecord(cacheSchema).
			Set(CacheColService, n[0]).
			Set(CacheColName, n[1]).
			Set(CacheColSize, t.size).
			Set(CacheColMemory, t.memory).
			Set(CacheColTotalGets, t.gets).
			Set(CacheColTotalPuts, t.puts).
			Set(CacheColHits, t.hits).
			Set(CacheColHitRatio, ratio)
		if err := b.Put(model.TupleKey(model.StringKey(n[0]), model.StringKey(n[1])), rec); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}
