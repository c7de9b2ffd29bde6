package retriever

import (
	"context"
	"fmt"

	"github.com/dm/gridmon/internal/model"
	"github.com/dm/gridmon/internal/sender"
)

// Proxy column indices.
const (
	ProxyColHostPort = iota
	ProxyColService
	ProxyColNodeID
	ProxyColConnections
	ProxyColBacklog
	ProxyColBytesReceived
	ProxyColBytesSent
	ProxyColMessagesReceived
	ProxyColMessagesSent
)

var proxySchema = model.NewSchema(model.EntityProxy,
	model.Column{Index: ProxyColHostPort, Name: "HostPort", Kind: model.KindString},
	model.Column{Index: ProxyColService, Name: "ServiceName", Kind: model.KindString},
	model.Column{Index: ProxyColNodeID, Name: "NodeId", Kind: model.KindInt},
	model.Column{Index: ProxyColConnections, Name: "ConnectionCount", Kind: model.KindInt},
	model.Column{Index: ProxyColBacklog, Name: "OutgoingMessageBacklog", Kind: model.KindLong},
	model.Column{Index: ProxyColBytesReceived, Name: "TotalBytesReceived", Kind: model.KindLong, Unit: model.UnitBytes},
	model.Column{Index: ProxyColBytesSent, Name: "TotalBytesSent", Kind: model.KindLong, Unit: model.UnitBytes},
	model.Column{Index: ProxyColMessagesReceived, Name: "TotalMessagesReceived", Kind: model.KindLong},
	model.Column{Index: ProxyColMessagesSent, Name: "TotalMessagesSent", Kind: model.KindLong},
)

const (
	colObjectName         = "ObjectName"
	attrHostIP            = "HostIP"
	attrConnectionCount   = "ConnectionCount"
	attrOutgoingBacklog   = "OutgoingMessageBacklog"
	attrBytesReceived     = "TotalBytesReceived"
	attrBytesSent         = "TotalBytesSent"
	attrMessagesReceived  = "TotalMessagesReceived"
	attrMessagesSent      = "TotalMessagesSent"
	proxyReportDefinition = "reports/report-proxy.xml"
)

var proxyAttributes = []string{
	attrHostIP, attrConnectionCount, attrOutgoingBacklog,
	attrBytesReceived, attrBytesSent, attrMessagesReceived, attrMessagesSent,
}

var proxyReport = sender.Report{
	Name:    proxyReportDefinition,
	Columns: append([]string{colObjectName, colService, colNodeID}, proxyAttributes...),
}

var proxyProps = map[string]string{colService: "name", colNodeID: "nodeId"}

// Proxy reports one row per proxy connection manager. Rows are keyed by the
// connection manager's object name, which has no meaning beyond identity.
type Proxy struct{}

// NewProxy returns the proxy module.
func NewProxy() *Proxy { return &Proxy{} }

// Entity implements Retriever.
func (*Proxy) Entity() model.EntityType { return model.EntityProxy }

// Schema implements Retriever.
func (*Proxy) Schema() *model.Schema { return proxySchema }

// SupportsReport implements Retriever.
func (*Proxy) SupportsReport() bool { return true }

// Report implements Retriever.
func (*Proxy) Report() sender.Report { return proxyReport }

// CollectDirect implements Retriever.
func (*Proxy) CollectDirect(ctx context.Context, s sender.RequestSender, _ *model.Session) (*model.Snapshot, error) {
	objs, err := s.Discover(ctx, sender.Query{Category: sender.CategoryProxyServers})
	if err != nil {
		return nil, fmt.Errorf("discover proxies: %w", err)
	}

	b := model.NewSnapshotBuilder(proxySchema)
	for _, obj := range objs {
		attrs, err := s.FetchMany(ctx, obj, proxyAttributes)
		if err != nil {
			return nil, fmt.Errorf("proxy %s: %w", obj, err)
		}
		rec, err := buildProxy(objectGetter(obj, proxyProps, attrs))
		if err != nil {
			return nil, fmt.Errorf("proxy %s: %w", obj, err)
		}
		if err := b.Put(model.StringKey(obj.String()), rec); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// CollectFromReport implements Retriever. The ObjectName column is
// canonicalized so report and direct keys agree.
func (*Proxy) CollectFromReport(rows []sender.ReportRow, _ *model.Session) (*model.Snapshot, error) {
	b := model.NewSnapshotBuilder(proxySchema)
	err := eachRow(proxyReport, rows, func(get model.Getter) error {
		raw, err := get(colObjectName)
		if err != nil {
			return err
		}
		obj, err := sender.ParseObjectName(raw)
		if err != nil {
			return err
		}
		rec, err := buildProxy(get)
		if err != nil {
			return err
		}
		return b.Put(model.StringKey(obj.String()), rec)
	})
	if err != nil {
		return nil, err
	}
	return b.Build(), nil
}

func buildProxy(get model.Getter) (*model.Record, error) {
	f := model.NewFields(get)
	rec := model.NewRecord(proxySchema).
		Set(ProxyColHostPort, f.String(attrHostIP)).
		Set(ProxyColService, f.String(colService)).
		Set(ProxyColNodeID, f.Int(colNodeID)).
		Set(ProxyColConnections, f.Int(attrConnectionCount)).
		Set(ProxyColBacklog, f.Long(attrOutgoingBacklog)).
		Set(ProxyColBytesReceived, f.Long(attrBytesReceived)).
		Set(ProxyColBytesSent, f.Long(attrBytesSent)).
		Set(ProxyColMessagesReceived, f.Long(attrMessagesReceived)).
		Set(ProxyColMessagesSent, f.Long(attrMessagesSent))
	if err := f.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}
