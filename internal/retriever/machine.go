package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	errs "github.com/dm/gridmon/internal/errors"
	"github.com/dm/gridmon/internal/model"
	"github.com/dm/gridmon/internal/sender"
)

// Machine column indices.
const (
	MachineColName = iota
	MachineColProcessors
	MachineColLoadAverage
	MachineColTotalMemory
	MachineColFreeMemory
	MachineColPercentFree
)

var machineSchema = model.NewSchema(model.EntityMachine,
	model.Column{Index: MachineColName, Name: "MachineName", Kind: model.KindString},
	model.Column{Index: MachineColProcessors, Name: "ProcessorCount", Kind: model.KindInt},
	model.Column{Index: MachineColLoadAverage, Name: "SystemLoadAverage", Kind: model.KindDouble, Unit: model.UnitLoad},
	model.Column{Index: MachineColTotalMemory, Name: "TotalPhysicalMemory", Kind: model.KindLong, Unit: model.UnitBytes},
	model.Column{Index: MachineColFreeMemory, Name: "FreePhysicalMemory", Kind: model.KindLong, Unit: model.UnitBytes},
	model.Column{Index: MachineColPercentFree, Name: "PercentFreeMemory", Kind: model.KindDouble, Unit: model.UnitRatio},
)

// Operating system attributes.
const (
	attrPlatformName    = "Name"
	attrFreeMemory      = "FreePhysicalMemorySize"
	attrLoadAverage     = "SystemLoadAverage"
	attrProcessors      = "AvailableProcessors"
	attrTotalMemory     = "TotalPhysicalMemorySize"
	attrTotalMemoryAIX  = "TotalPhysicalMemory"
	attrSystemCPULoad   = "SystemCpuLoad"
	loadAverageMissing  = -1.0
	platformAIXFragment = "aix"
)

// Machine reports physical resources per machine, read from the operating
// system of one representative member per machine.
type Machine struct {
	directOnly
}

// NewMachine returns the machine module.
func NewMachine() *Machine { return &Machine{} }

// Entity implements Retriever.
func (*Machine) Entity() model.EntityType { return model.EntityMachine }

// Schema implements Retriever.
func (*Machine) Schema() *model.Schema { return machineSchema }

// CollectDirect implements Retriever. Machines whose member has no operating
// system object are skipped.
func (m *Machine) CollectDirect(ctx context.Context, s sender.RequestSender, sess *model.Session) (*model.Snapshot, error) {
	b := model.NewSnapshotBuilder(machineSchema)
	for _, mm := range sess.MachineMembers() {
		objs, err := s.Discover(ctx, sender.Query{Category: sender.CategoryMemberOS, NodeID: mm.MemberID})
		if err != nil {
			return nil, fmt.Errorf("discover os of member %d: %w", mm.MemberID, err)
		}
		for _, obj := range objs {
			rec, err := m.collect(ctx, s, sess, mm.Machine, obj)
			if err != nil {
				return nil, fmt.Errorf("machine %s: %w", mm.Machine, err)
			}
			if err := b.Put(model.StringKey(mm.Machine), rec); err != nil {
				return nil, err
			}
		}
	}
	return b.Build(), nil
}

func (m *Machine) collect(ctx context.Context, s sender.RequestSender, sess *model.Session, machine string, obj sender.ObjectName) (*model.Record, error) {
	platform, err := s.FetchOne(ctx, obj, attrPlatformName)
	if err != nil {
		return nil, err
	}
	memAttr := attrTotalMemory
	if strings.Contains(strings.ToLower(platform), platformAIXFragment) {
		memAttr = attrTotalMemoryAIX
	}

	attrs, err := s.FetchMany(ctx, obj, []string{attrFreeMemory, attrLoadAverage, attrProcessors, memAttr})
	if err != nil {
		return nil, err
	}
	f := model.NewFields(attrs.Require)
	free := f.Long(attrFreeMemory)
	load := f.Float(attrLoadAverage)
	procs := f.Int(attrProcessors)
	total := f.Long(memAttr)
	if err := f.Err(); err != nil {
		return nil, err
	}

	if load == loadAverageMissing && sess.DisableFeature(model.FeatureLoadAverage) {
		slog.Info("system load average not supported, using cpu load",
			"machine", machine, "platform", platform, "session", sess.ID())
	}
	if !sess.FeatureAvailable(model.FeatureLoadAverage) {
		v, err := s.FetchOne(ctx, obj, attrSystemCPULoad)
		if err != nil {
			return nil, err
		}
		if load, err = model.ParseFloat(attrSystemCPULoad, v); err != nil {
			return nil, err
		}
	}

	if total <= 0 {
		return nil, errs.NewWithContext(errs.ErrCodeDataShape, "total physical memory must be positive",
			map[string]any{"mbean": obj.String(), "attribute": memAttr, "value": total})
	}

	return model.NewRecord(machineSchema).
		Set(MachineColName, machine).
		Set(MachineColProcessors, procs).
		Set(MachineColLoadAverage, load).
		Set(MachineColTotalMemory, total).
		Set(MachineColFreeMemory, free).
		Set(MachineColPercentFree, float64(free)/float64(total)), nil
}
