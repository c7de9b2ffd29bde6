package retriever

import (
	"context"
	"fmt"

	"github.com/dm/gridmon/internal/model"
	"github.com/dm/gridmon/internal/sender"
)

// Cluster column indices.
const (
	ClusterColName = iota
	ClusterColVersion
	ClusterColSize
	ClusterColLicenseMode
	ClusterColRunning
	ClusterColDepartures
)

var clusterSchema = model.NewSchema(model.EntityCluster,
	model.Column{Index: ClusterColName, Name: "ClusterName", Kind: model.KindString},
	model.Column{Index: ClusterColVersion, Name: "Version", Kind: model.KindString},
	model.Column{Index: ClusterColSize, Name: "ClusterSize", Kind: model.KindInt},
	model.Column{Index: ClusterColLicenseMode, Name: "LicenseMode", Kind: model.KindString},
	model.Column{Index: ClusterColRunning, Name: "Running", Kind: model.KindBool},
	model.Column{Index: ClusterColDepartures, Name: "MembersDepartureCount", Kind: model.KindLong},
)

const (
	attrClusterName = "ClusterName"
	attrVersion     = "Version"
	attrClusterSize = "ClusterSize"
	attrLicenseMode = "LicenseMode"
	attrRunning     = "Running"
	attrDepartures  = "MembersDepartureCount"
)

// Cluster reports the identity and health of the cluster itself.
type Cluster struct {
	directOnly
}

// NewCluster returns the cluster module.
func NewCluster() *Cluster { return &Cluster{} }

// Entity implements Retriever.
func (*Cluster) Entity() model.EntityType { return model.EntityCluster }

// Schema implements Retriever.
func (*Cluster) Schema() *model.Schema { return clusterSchema }

// CollectDirect implements Retriever. It reads every attribute of the
// cluster object in one request.
func (*Cluster) CollectDirect(ctx context.Context, s sender.RequestSender, _ *model.Session) (*model.Snapshot, error) {
	objs, err := s.Discover(ctx, sender.Query{Category: sender.CategoryClusters})
	if err != nil {
		return nil, fmt.Errorf("discover cluster: %w", err)
	}

	b := model.NewSnapshotBuilder(clusterSchema)
	for _, obj := range objs {
		all, err := s.FetchAll(ctx, obj)
		if err != nil {
			return nil, fmt.Errorf("cluster %s: %w", obj, err)
		}
		f := model.NewFields(sender.AttributeList(all).Require)
		name := f.String(attrClusterName)
		rec := model.NewRecord(clusterSchema).
			Set(ClusterColName, name).
			Set(ClusterColVersion, f.String(attrVersion)).
			Set(ClusterColSize, f.Int(attrClusterSize)).
			Set(ClusterColLicenseMode, f.String(attrLicenseMode)).
			Set(ClusterColRunning, f.Bool(attrRunning)).
			Set(ClusterColDepartures, f.Long(attrDepartures))
		if err := f.Err(); err != nil {
			return nil, fmt.Errorf("cluster %s: %w", obj, err)
		}
		if err := b.Put(model.StringKey(name), rec); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}
