package retriever

import (
	"context"
	"fmt"
	"sort"

	"github.com/dm/gridmon/internal/model"
	"github.com/dm/gridmon/internal/sender"
)

// Service column indices.
const (
	ServiceColName = iota
	ServiceColStatusHA
	ServiceColMembers
	ServiceColStorageEnabled
	ServiceColPartitionsAll
	ServiceColEndangered
	ServiceColVulnerable
	ServiceColUnbalanced
	ServiceColRequestsPending
)

var serviceSchema = model.NewSchema(model.EntityService,
	model.Column{Index: ServiceColName, Name: "ServiceName", Kind: model.KindString},
	model.Column{Index: ServiceColStatusHA, Name: "StatusHA", Kind: model.KindString},
	model.Column{Index: ServiceColMembers, Name: "Members", Kind: model.KindInt},
	model.Column{Index: ServiceColStorageEnabled, Name: "StorageEnabledCount", Kind: model.KindInt},
	model.Column{Index: ServiceColPartitionsAll, Name: "PartitionsAll", Kind: model.KindInt},
	model.Column{Index: ServiceColEndangered, Name: "PartitionsEndangered", Kind: model.KindInt},
	model.Column{Index: ServiceColVulnerable, Name: "PartitionsVulnerable", Kind: model.KindInt},
	model.Column{Index: ServiceColUnbalanced, Name: "PartitionsUnbalanced", Kind: model.KindInt},
	model.Column{Index: ServiceColRequestsPending, Name: "RequestsPending", Kind: model.KindLong},
)

const (
	colService               = "Service"
	colNodeID                = "NodeId"
	attrStorageEnabled       = "StorageEnabled"
	attrStatusHA             = "StatusHA"
	attrPartitionsAll        = "PartitionsAll"
	attrPartitionsEndangered = "PartitionsEndangered"
	attrPartitionsVulnerable = "PartitionsVulnerable"
	attrPartitionsUnbalanced = "PartitionsUnbalanced"
	attrRequestPending       = "RequestPendingCount"
)

var serviceAttributes = []string{
	attrStorageEnabled, attrStatusHA, attrPartitionsAll, attrPartitionsEndangered,
	attrPartitionsVulnerable, attrPartitionsUnbalanced, attrRequestPending,
}

var serviceReport = sender.Report{
	Name:     "reports/report-service.xml",
	Columns:  append(append([]string{colService, colNodeID}, serviceAttributes...), colDomainPartition),
	Optional: []string{colDomainPartition},
}

var serviceProps = map[string]string{colService: "name", colNodeID: "nodeId"}

// serviceSample is one member's view of a service.
type serviceSample struct {
	service     string
	partition   string
	nodeID      int
	storage     bool
	statusHA    string
	all         int
	endangered  int
	vulnerable  int
	unbalanced  int
	pendingReqs int64
}

// Service reports one row per clustered service, aggregated over the
// members running it.
type Service struct{}

// NewService returns the service module.
func NewService() *Service { return &Service{} }

// Entity implements Retriever.
func (*Service) Entity() model.EntityType { return model.EntityService }

// Schema implements Retriever.
func (*Service) Schema() *model.Schema { return serviceSchema }

// SupportsReport implements Retriever.
func (*Service) SupportsReport() bool { return true }

// Report implements Retriever.
func (*Service) Report() sender.Report { return serviceReport }

// CollectDirect implements Retriever.
func (*Service) CollectDirect(ctx context.Context, s sender.RequestSender, _ *model.Session) (*model.Snapshot, error) {
	objs, err := s.Discover(ctx, sender.Query{Category: sender.CategoryServices})
	if err != nil {
		return nil, fmt.Errorf("discover services: %w", err)
	}

	samples := make([]serviceSample, 0, len(objs))
	for _, obj := range objs {
		attrs, err := s.FetchMany(ctx, obj, serviceAttributes)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", obj, err)
		}
		sample, err := readServiceSample(withPartition(obj, objectGetter(obj, serviceProps, attrs)))
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", obj, err)
		}
		samples = append(samples, sample)
	}
	return aggregateServices(samples)
}

// CollectFromReport implements Retriever.
func (*Service) CollectFromReport(rows []sender.ReportRow, _ *model.Session) (*model.Snapshot, error) {
	samples := make([]serviceSample, 0, len(rows))
	err := eachRow(serviceReport, rows, func(get model.Getter) error {
		sample, err := readServiceSample(get)
		if err != nil {
			return err
		}
		samples = append(samples, sample)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return aggregateServices(samples)
}

func readServiceSample(get model.Getter) (serviceSample, error) {
	f := model.NewFields(get)
	s := serviceSample{
		service:     f.String(colService),
		partition:   f.String(colDomainPartition),
		nodeID:      f.Int(colNodeID),
		storage:     f.Bool(attrStorageEnabled),
		statusHA:    f.String(attrStatusHA),
		all:         f.Int(attrPartitionsAll),
		endangered:  f.Int(attrPartitionsEndangered),
		vulnerable:  f.Int(attrPartitionsVulnerable),
		unbalanced:  f.Int(attrPartitionsUnbalanced),
		pendingReqs: f.Long(attrRequestPending),
	}
	return s, f.Err()
}

// aggregateServices folds member samples into one record per service and
// domain partition.
// Partition state is owned by storage members, so it is taken from the
// lowest storage-enabled node, or the lowest node when none stores data.
func aggregateServices(samples []serviceSample) (*model.Snapshot, error) {
	groups := make(map[string][]serviceSample)
	for _, s := range samples {
		name := qualifiedName(s.partition, s.service)
		groups[name] = append(groups[name], s)
	}

	b := model.NewSnapshotBuilder(serviceSchema)
	for name, group := range groups {
		sort.Slice(group, func(i, j int) bool { return group[i].nodeID < group[j].nodeID })

		rep := group[0]
		storage := 0
		var pending int64
		for _, s := range group {
			if s.storage {
				if storage == 0 {
					rep = s
				}
				storage++
			}
			pending += s.pendingReqs
		}

		rec := model.NewRecord(serviceSchema).
			Set(ServiceColName, name).
			Set(ServiceColStatusHA, rep.statusHA).
			Set(ServiceColMembers, len(group)).
			Set(ServiceColStorageEnabled, storage).
			Set(ServiceColPartitionsAll, rep.all).
			Set(ServiceColEndangered, rep.endangered).
			Set(ServiceColVulnerable, rep.vulnerable).
			Set(ServiceColUnbalanced, rep.unbalanced).
			Set(ServiceColRequestsPending, pending)
		if err := b.Put(model.StringKey(name), rec); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}
