package engine

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/dm/gridmon/internal/retriever"
	"github.com/dm/gridmon/internal/sender"
	"github.com/dm/gridmon/internal/sender/sendertest"
)

// fixtureObject is one remote object of the test cluster. extra carries the
// report columns that a direct read takes from the object name.
type fixtureObject struct {
	name  string
	attrs map[string]string
	extra map[string]string
}

func (o fixtureObject) row(r sender.Report) sender.ReportRow {
	row := make(sender.ReportRow, len(r.Columns))
	for i, col := range r.Columns {
		if v, ok := o.extra[col]; ok {
			row[i] = v
			continue
		}
		row[i] = o.attrs[col]
	}
	return row
}

type fixtureMember struct {
	id      int
	machine string
	addr    string
}

// Nodes 1 and 2 share host-a; node 3 runs alone on host-b.
var fixtureMembers = []fixtureMember{
	{1, "host-a", "10.0.0.1"},
	{2, "host-a", "10.0.0.1"},
	{3, "host-b", "10.0.0.2"},
}

func memberObjects() []fixtureObject {
	out := make([]fixtureObject, 0, len(fixtureMembers))
	for _, m := range fixtureMembers {
		out = append(out, fixtureObject{
			name: fmt.Sprintf("Coherence:type=Node,nodeId=%d", m.id),
			attrs: map[string]string{
				"Id":                   fmt.Sprint(m.id),
				"MachineName":          m.machine,
				"UnicastAddress":       m.addr,
				"UnicastPort":          fmt.Sprint(7574 + m.id),
				"RoleName":             "storage",
				"ProcessName":          fmt.Sprint(4000 + m.id),
				"PublisherSuccessRate": "1.0",
				"ReceiverSuccessRate":  "0.998",
				"SendQueueSize":        "0",
				"MemoryMaxMB":          "4096",
				"MemoryAvailableMB":    fmt.Sprint(1024 * m.id),
			},
		})
	}
	return out
}

func osObjects() []fixtureObject {
	out := make([]fixtureObject, 0, len(fixtureMembers))
	for _, m := range fixtureMembers {
		out = append(out, fixtureObject{
			name: fmt.Sprintf("Coherence:type=Platform,Domain=java.lang,subType=OperatingSystem,nodeId=%d", m.id),
			attrs: map[string]string{
				"Name":                    "Linux",
				"FreePhysicalMemorySize":  fmt.Sprint(int64(m.id) << 30),
				"TotalPhysicalMemorySize": fmt.Sprint(int64(16) << 30),
				"SystemLoadAverage":       "1.25",
				"AvailableProcessors":     "8",
				"SystemCpuLoad":           "0.4",
			},
		})
	}
	return out
}

func serviceObjects() []fixtureObject {
	var out []fixtureObject
	for _, m := range fixtureMembers {
		out = append(out, fixtureObject{
			name: fmt.Sprintf("Coherence:type=Service,name=PartitionedCache,nodeId=%d", m.id),
			attrs: map[string]string{
				"StorageEnabled":       "true",
				"StatusHA":             "NODE-SAFE",
				"PartitionsAll":        "257",
				"PartitionsEndangered": "0",
				"PartitionsVulnerable": "0",
				"PartitionsUnbalanced": "0",
				"RequestPendingCount":  fmt.Sprint(m.id),
			},
			extra: map[string]string{"Service": "PartitionedCache", "NodeId": fmt.Sprint(m.id)},
		})
	}
	return out
}

func cacheObjects() []fixtureObject {
	var out []fixtureObject
	for _, m := range fixtureMembers {
		for _, name := range []string{"orders", "customers"} {
			out = append(out, fixtureObject{
				name: fmt.Sprintf("Coherence:type=Cache,service=PartitionedCache,name=%s,nodeId=%d,tier=back", name, m.id),
				attrs: map[string]string{
					"Size":       "100",
					"Units":      "2048",
					"UnitFactor": "1",
					"TotalGets":  fmt.Sprint(10 * m.id),
					"TotalPuts":  fmt.Sprint(5 * m.id),
					"CacheHits":  fmt.Sprint(8 * m.id),
				},
				extra: map[string]string{"Service": "PartitionedCache", "Name": name, "NodeId": fmt.Sprint(m.id)},
			})
		}
	}
	return out
}

func proxyObjects() []fixtureObject {
	name := "Coherence:type=ConnectionManager,name=Proxy,nodeId=3"
	return []fixtureObject{{
		name: name,
		attrs: map[string]string{
			"HostIP":                 "10.0.0.2:9099",
			"ConnectionCount":        "4",
			"OutgoingMessageBacklog": "0",
			"TotalBytesReceived":     "1024",
			"TotalBytesSent":         "4096",
			"TotalMessagesReceived":  "10",
			"TotalMessagesSent":      "12",
		},
		extra: map[string]string{"ObjectName": name, "Service": "Proxy", "NodeId": "3"},
	}}
}

// newClusterFake returns a three-member cluster with every report seeded
// from the same objects a direct poll reads.
func newClusterFake() *sendertest.Fake {
	f := sendertest.New()
	f.Add("Coherence:type=Cluster", map[string]string{
		"ClusterName":           "test-grid",
		"Version":               "14.1.1.0.0",
		"ClusterSize":           "3",
		"LicenseMode":           "Development",
		"Running":               "true",
		"MembersDepartureCount": "0",
	})
	for _, set := range [][]fixtureObject{osObjects(), memberObjects(), serviceObjects(), cacheObjects(), proxyObjects()} {
		for _, o := range set {
			f.Add(o.name, o.attrs)
		}
	}

	seed := func(r retriever.Retriever, objs []fixtureObject) {
		rep := r.Report()
		rows := make([]sender.ReportRow, 0, len(objs))
		for _, o := range objs {
			rows = append(rows, o.row(rep))
		}
		f.SetReport(rep.Name, rows...)
	}
	seed(retriever.NewMember(), memberObjects())
	seed(retriever.NewService(), serviceObjects())
	seed(retriever.NewCache(), cacheObjects())
	seed(retriever.NewProxy(), proxyObjects())
	return f
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
