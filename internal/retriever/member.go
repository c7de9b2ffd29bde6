package retriever

import (
	"context"
	"fmt"

	"github.com/blang/semver/v4"

	"github.com/dm/gridmon/internal/model"
	"github.com/dm/gridmon/internal/sender"
)

// Member column indices.
const (
	MemberColNodeID = iota
	MemberColMachine
	MemberColAddress
	MemberColPort
	MemberColRole
	MemberColProcess
	MemberColPublisherRate
	MemberColReceiverRate
	MemberColSendQueue
	MemberColMaxMemory
	MemberColUsedMemory
	MemberColFreeMemory
)

var memberSchema = model.NewSchema(model.EntityMember,
	model.Column{Index: MemberColNodeID, Name: "NodeId", Kind: model.KindInt},
	model.Column{Index: MemberColMachine, Name: "MachineName", Kind: model.KindString},
	model.Column{Index: MemberColAddress, Name: "UnicastAddress", Kind: model.KindString},
	model.Column{Index: MemberColPort, Name: "UnicastPort", Kind: model.KindInt},
	model.Column{Index: MemberColRole, Name: "RoleName", Kind: model.KindString},
	model.Column{Index: MemberColProcess, Name: "ProcessName", Kind: model.KindString},
	model.Column{Index: MemberColPublisherRate, Name: "PublisherSuccessRate", Kind: model.KindDouble, Unit: model.UnitRatio},
	model.Column{Index: MemberColReceiverRate, Name: "ReceiverSuccessRate", Kind: model.KindDouble, Unit: model.UnitRatio},
	model.Column{Index: MemberColSendQueue, Name: "SendQueueSize", Kind: model.KindInt},
	model.Column{Index: MemberColMaxMemory, Name: "MaxMemoryMB", Kind: model.KindInt, Unit: model.UnitMegabytes},
	model.Column{Index: MemberColUsedMemory, Name: "UsedMemoryMB", Kind: model.KindInt, Unit: model.UnitMegabytes},
	model.Column{Index: MemberColFreeMemory, Name: "FreeMemoryMB", Kind: model.KindInt, Unit: model.UnitMegabytes},
)

const (
	attrNodeID          = "Id"
	attrMachineName     = "MachineName"
	attrUnicastAddress  = "UnicastAddress"
	attrUnicastPort     = "UnicastPort"
	attrRoleName        = "RoleName"
	attrProcessName     = "ProcessName"
	attrPublisherRate   = "PublisherSuccessRate"
	attrReceiverRate    = "ReceiverSuccessRate"
	attrSendQueueSize   = "SendQueueSize"
	attrMemoryMaxMB     = "MemoryMaxMB"
	attrMemoryAvailMB   = "MemoryAvailableMB"
	processNameMissing  = "n/a"
	memberReportDefName = "reports/report-node.xml"
)

// ProcessName was added to the node MBean in 12.2.1.
var processNameSince = semver.MustParse("12.2.1")

var memberReport = sender.Report{
	Name: memberReportDefName,
	Columns: []string{
		attrNodeID, attrMachineName, attrUnicastAddress, attrUnicastPort, attrRoleName, attrProcessName,
		attrPublisherRate, attrReceiverRate, attrSendQueueSize, attrMemoryMaxMB, attrMemoryAvailMB,
	},
}

// Member reports one row per cluster member, keyed by node id.
type Member struct{}

// NewMember returns the member module.
func NewMember() *Member { return &Member{} }

// Entity implements Retriever.
func (*Member) Entity() model.EntityType { return model.EntityMember }

// Schema implements Retriever.
func (*Member) Schema() *model.Schema { return memberSchema }

// SupportsReport implements Retriever.
func (*Member) SupportsReport() bool { return true }

// Report implements Retriever.
func (*Member) Report() sender.Report { return memberReport }

func memberAttributes(withProcess bool) []string {
	attrs := []string{attrNodeID, attrMachineName, attrUnicastAddress, attrUnicastPort, attrRoleName}
	if withProcess {
		attrs = append(attrs, attrProcessName)
	}
	return append(attrs, attrPublisherRate, attrReceiverRate, attrSendQueueSize, attrMemoryMaxMB, attrMemoryAvailMB)
}

// CollectDirect implements Retriever.
func (*Member) CollectDirect(ctx context.Context, s sender.RequestSender, sess *model.Session) (*model.Snapshot, error) {
	objs, err := s.Discover(ctx, sender.Query{Category: sender.CategoryClusterMembers})
	if err != nil {
		return nil, fmt.Errorf("discover members: %w", err)
	}

	withProcess := sess.VersionAtLeast(processNameSince)
	attrNames := memberAttributes(withProcess)
	b := model.NewSnapshotBuilder(memberSchema)
	for _, obj := range objs {
		attrs, err := s.FetchMany(ctx, obj, attrNames)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", obj, err)
		}
		key, rec, err := buildMember(attrs.Require, withProcess)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", obj, err)
		}
		if err := b.Put(key, rec); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// CollectFromReport implements Retriever.
func (*Member) CollectFromReport(rows []sender.ReportRow, sess *model.Session) (*model.Snapshot, error) {
	withProcess := sess.VersionAtLeast(processNameSince)
	b := model.NewSnapshotBuilder(memberSchema)
	err := eachRow(memberReport, rows, func(get model.Getter) error {
		key, rec, err := buildMember(get, withProcess)
		if err != nil {
			return err
		}
		return b.Put(key, rec)
	})
	if err != nil {
		return nil, err
	}
	return b.Build(), nil
}

func buildMember(get model.Getter, withProcess bool) (model.Key, *model.Record, error) {
	f := model.NewFields(get)
	id := f.Int(attrNodeID)
	machine := f.String(attrMachineName)
	addr := f.String(attrUnicastAddress)
	port := f.Int(attrUnicastPort)
	role := f.String(attrRoleName)
	process := processNameMissing
	if withProcess {
		process = f.String(attrProcessName)
	}
	pub := f.Float(attrPublisherRate)
	recv := f.Float(attrReceiverRate)
	queue := f.Int(attrSendQueueSize)
	maxMB := f.Int(attrMemoryMaxMB)
	availMB := f.Int(attrMemoryAvailMB)
	if err := f.Err(); err != nil {
		return model.Key{}, nil, err
	}

	rec := model.NewRecord(memberSchema).
		Set(MemberColNodeID, id).
		Set(MemberColMachine, machine).
		Set(MemberColAddress, addr).
		Set(MemberColPort, port).
		Set(MemberColRole, role).
		Set(MemberColProcess, process).
		Set(MemberColPublisherRate, pub).
		Set(MemberColReceiverRate, recv).
		Set(MemberColSendQueue, queue).
		Set(MemberColMaxMemory, maxMB).
		Set(MemberColUsedMemory, maxMB-availMB).
		Set(MemberColFreeMemory, availMB)
	return model.IntKey(id), rec, nil
}
