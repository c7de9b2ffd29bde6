package retriever

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dm/gridmon/internal/model"
	"github.com/dm/gridmon/internal/sender"
	"github.com/dm/gridmon/internal/sender/sendertest"
)

type serviceFixture struct {
	service  string
	node     int
	storage  bool
	statusHA string
	all      int
	endanger int
	pending  int64
}

func (s serviceFixture) attrs() map[string]string {
	return map[string]string{
		"StorageEnabled":       fmt.Sprint(s.storage),
		"StatusHA":             s.statusHA,
		"PartitionsAll":        fmt.Sprint(s.all),
		"PartitionsEndangered": fmt.Sprint(s.endanger),
		"PartitionsVulnerable": "0",
		"PartitionsUnbalanced": "0",
		"RequestPendingCount":  fmt.Sprint(s.pending),
	}
}

func (s serviceFixture) row() sender.ReportRow {
	a := s.attrs()
	a["Service"] = s.service
	a["NodeId"] = fmt.Sprint(s.node)
	row := make(sender.ReportRow, len(serviceReport.Columns))
	for i, c := range serviceReport.Columns {
		row[i] = a[c]
	}
	return row
}

var serviceFixtures = []serviceFixture{
	// Node 1 is storage-disabled; node 3 is the lowest storage member.
	{service: "PartitionedCache", node: 1, storage: false, statusHA: "ENDANGERED", all: 257, endanger: 257, pending: 2},
	{service: "PartitionedCache", node: 3, storage: true, statusHA: "NODE-SAFE", all: 257, endanger: 0, pending: 5},
	{service: "PartitionedCache", node: 4, storage: true, statusHA: "MACHINE-SAFE", all: 257, endanger: 0, pending: 1},
	// No storage members at all: lowest node wins.
	{service: "Proxy", node: 7, storage: false, statusHA: "n/a", all: -1, pending: 0},
	{service: "Proxy", node: 5, storage: false, statusHA: "n/a", all: -1, pending: 9},
}

func serviceFake() *sendertest.Fake {
	f := sendertest.New()
	for _, s := range serviceFixtures {
		f.Add(fmt.Sprintf("Coherence:type=Service,name=%s,nodeId=%d", s.service, s.node), s.attrs())
	}
	return f
}

func TestService_CollectDirectAggregates(t *testing.T) {
	snap, err := NewService().CollectDirect(context.Background(), serviceFake(), model.NewSession())
	require.NoError(t, err)
	require.Equal(t, 2, snap.Len())

	pc, ok := snap.Get(model.StringKey("PartitionedCache"))
	require.True(t, ok)
	assert.Equal(t, "NODE-SAFE", pc.String(ServiceColStatusHA))
	assert.Equal(t, 3, pc.Int(ServiceColMembers))
	assert.Equal(t, 2, pc.Int(ServiceColStorageEnabled))
	assert.Equal(t, 257, pc.Int(ServiceColPartitionsAll))
	assert.Equal(t, 0, pc.Int(ServiceColEndangered))
	assert.Equal(t, int64(8), pc.Long(ServiceColRequestsPending))

	px, ok := snap.Get(model.StringKey("Proxy"))
	require.True(t, ok)
	assert.Equal(t, 2, px.Int(ServiceColMembers))
	assert.Equal(t, 0, px.Int(ServiceColStorageEnabled))
	assert.Equal(t, int64(9), px.Long(ServiceColRequestsPending))
}

func TestService_ReportMatchesDirect(t *testing.T) {
	s := NewService()
	direct, err := s.CollectDirect(context.Background(), serviceFake(), model.NewSession())
	require.NoError(t, err)

	var rows []sender.ReportRow
	for i := len(serviceFixtures) - 1; i >= 0; i-- {
		rows = append(rows, serviceFixtures[i].row())
	}
	report, err := s.CollectFromReport(rows, model.NewSession())
	require.NoError(t, err)

	a, _ := json.Marshal(direct)
	b, _ := json.Marshal(report)
	assert.JSONEq(t, string(a), string(b))
}

func TestService_NoServices(t *testing.T) {
	snap, err := NewService().CollectDirect(context.Background(), sendertest.New(), model.NewSession())
	require.NoError(t, err)
	assert.Zero(t, snap.Len())
}

func TestService_DomainPartitionsStaySeparate(t *testing.T) {
	f := sendertest.New()
	for _, p := range []struct {
		partition string
		node      int
		pending   int64
	}{
		{"tenant-a", 1, 3},
		{"tenant-a", 2, 4},
		{"tenant-b", 1, 10},
	} {
		attrs := serviceFixture{storage: true, statusHA: "NODE-SAFE", all: 31, pending: p.pending}.attrs()
		f.Add(fmt.Sprintf("Coherence:type=Service,name=Dist,domainPartition=%s,nodeId=%d", p.partition, p.node), attrs)
	}

	direct, err := NewService().CollectDirect(context.Background(), f, model.NewSession())
	require.NoError(t, err)
	require.Equal(t, []model.Key{model.StringKey("tenant-a/Dist"), model.StringKey("tenant-b/Dist")}, direct.Keys())

	a, _ := direct.Get(model.StringKey("tenant-a/Dist"))
	assert.Equal(t, "tenant-a/Dist", a.String(ServiceColName))
	assert.Equal(t, 2, a.Int(ServiceColMembers))
	assert.Equal(t, int64(7), a.Long(ServiceColRequestsPending))

	b, _ := direct.Get(model.StringKey("tenant-b/Dist"))
	assert.Equal(t, 1, b.Int(ServiceColMembers))
	assert.Equal(t, int64(10), b.Long(ServiceColRequestsPending))

	row := func(partition string, node int, pending int64) sender.ReportRow {
		r := serviceFixture{service: "Dist", node: node, storage: true, statusHA: "NODE-SAFE", all: 31, pending: pending}.row()
		r[serviceReport.Index(colDomainPartition)] = partition
		return r
	}
	report, err := NewService().CollectFromReport([]sender.ReportRow{
		row("tenant-b", 1, 10), row("tenant-a", 2, 4), row("tenant-a", 1, 3),
	}, model.NewSession())
	require.NoError(t, err)

	da, _ := json.Marshal(direct)
	db, _ := json.Marshal(report)
	assert.JSONEq(t, string(da), string(db))
}

func TestService_ReportWithoutPartitionColumn(t *testing.T) {
	row := serviceFixtures[1].row()
	row = row[:serviceReport.Index(colDomainPartition)]

	snap, err := NewService().CollectFromReport([]sender.ReportRow{row}, model.NewSession())
	require.NoError(t, err)
	_, ok := snap.Get(model.StringKey("PartitionedCache"))
	assert.True(t, ok)
}
