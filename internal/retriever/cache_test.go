package retriever

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/dm/gridmon/internal/errors"
	"github.com/dm/gridmon/internal/model"
	"github.com/dm/gridmon/internal/sender"
	"github.com/dm/gridmon/internal/sender/sendertest"
)

type cacheFixture struct {
	service, name       string
	node                int
	size, units, factor int64
	gets, puts, hits    int64
}

func (c cacheFixture) attrs() map[string]string {
	return map[string]string{
		"Size":       fmt.Sprint(c.size),
		"Units":      fmt.Sprint(c.units),
		"UnitFactor": fmt.Sprint(c.factor),
		"TotalGets":  fmt.Sprint(c.gets),
		"TotalPuts":  fmt.Sprint(c.puts),
		"CacheHits":  fmt.Sprint(c.hits),
	}
}

func (c cacheFixture) row() sender.ReportRow {
	a := c.attrs()
	a["Service"] = c.service
	a["Name"] = c.name
	a["NodeId"] = fmt.Sprint(c.node)
	row := make(sender.ReportRow, len(cacheReport.Columns))
	for i, col := range cacheReport.Columns {
		row[i] = a[col]
	}
	return row
}

var cacheFixtures = []cacheFixture{
	{service: "PartitionedCache", name: "orders", node: 1, size: 100, units: 2048, factor: 1, gets: 40, puts: 10, hits: 30},
	{service: "PartitionedCache", name: "orders", node: 2, size: 150, units: 4096, factor: 1, gets: 60, puts: 20, hits: 45},
	{service: "PartitionedCache", name: "customers", node: 1, size: 10, units: 3, factor: 1024, gets: 0, puts: 10, hits: 0},
	{service: "ReplicatedCache", name: "orders", node: 1, size: 5, units: 5, factor: 1, gets: 8, puts: 5, hits: 8},
}

func cacheFake() *sendertest.Fake {
	f := sendertest.New()
	for _, c := range cacheFixtures {
		f.Add(fmt.Sprintf("Coherence:type=Cache,service=%s,name=%s,nodeId=%d,tier=back", c.service, c.name, c.node), c.attrs())
	}
	// Front tiers are not part of the cache totals.
	f.Add("Coherence:type=Cache,service=PartitionedCache,name=orders,nodeId=9,tier=front", cacheFixtures[0].attrs())
	return f
}

func TestCache_CollectDirect(t *testing.T) {
	snap, err := NewCache().CollectDirect(context.Background(), cacheFake(), model.NewSession())
	require.NoError(t, err)
	require.Equal(t, 3, snap.Len())

	key := func(svc, name string) model.Key {
		return model.TupleKey(model.StringKey(svc), model.StringKey(name))
	}
	assert.Equal(t, []model.Key{
		key("PartitionedCache", "customers"),
		key("PartitionedCache", "orders"),
		key("ReplicatedCache", "orders"),
	}, snap.Keys())

	orders, ok := snap.Get(key("PartitionedCache", "orders"))
	require.True(t, ok)
	assert.Equal(t, int64(250), orders.Long(CacheColSize))
	assert.Equal(t, int64(6144), orders.Long(CacheColMemory))
	assert.Equal(t, int64(100), orders.Long(CacheColTotalGets))
	assert.Equal(t, int64(30), orders.Long(CacheColTotalPuts))
	assert.Equal(t, 0.75, orders.Float(CacheColHitRatio))

	customers, _ := snap.Get(key("PartitionedCache", "customers"))
	assert.Equal(t, int64(3072), customers.Long(CacheColMemory))
	assert.Equal(t, 0.0, customers.Float(CacheColHitRatio), "no gets yields a zero ratio")
}

func TestCache_ReportMatchesDirect(t *testing.T) {
	c := NewCache()
	direct, err := c.CollectDirect(context.Background(), cacheFake(), model.NewSession())
	require.NoError(t, err)

	rows := make([]sender.ReportRow, 0, len(cacheFixtures))
	for _, fx := range cacheFixtures {
		rows = append(rows, fx.row())
	}
	report, err := c.CollectFromReport(rows, model.NewSession())
	require.NoError(t, err)

	a, _ := json.Marshal(direct)
	b, _ := json.Marshal(report)
	assert.JSONEq(t, string(a), string(b))
}

func TestCache_FetchFailureAborts(t *testing.T) {
	f := cacheFake()
	f.FetchErr = func(obj sender.ObjectName, _ []string) error {
		if obj.Key("name") == "customers" {
			return errs.New(errs.ErrCodeTransport, "broken pipe")
		}
		return nil
	}

	snap, err := NewCache().CollectDirect(context.Background(), f, model.NewSession())
	assert.Nil(t, snap)
	assert.True(t, errs.IsCode(err, errs.ErrCodeTransport))
}

func TestCache_DomainPartitionsStaySeparate(t *testing.T) {
	f := sendertest.New()
	for _, p := range []struct {
		partition string
		size      int64
	}{
		{"tenant-a", 10},
		{"tenant-b", 700},
	} {
		attrs := cacheFixture{size: p.size, units: p.size, factor: 1}.attrs()
		f.Add(fmt.Sprintf("Coherence:type=Cache,service=Dist,name=orders,domainPartition=%s,nodeId=1,tier=back", p.partition), attrs)
	}

	snap, err := NewCache().CollectDirect(context.Background(), f, model.NewSession())
	require.NoError(t, err)

	key := func(svc string) model.Key {
		return model.TupleKey(model.StringKey(svc), model.StringKey("orders"))
	}
	require.Equal(t, []model.Key{key("tenant-a/Dist"), key("tenant-b/Dist")}, snap.Keys())

	b, _ := snap.Get(key("tenant-b/Dist"))
	assert.Equal(t, "tenant-b/Dist", b.String(CacheColService))
	assert.Equal(t, int64(700), b.Long(CacheColSize))
}
