package engine

import (
	"context"
	"fmt"
	"strconv"

	errs "github.com/dm/gridmon/internal/errors"
	"github.com/dm/gridmon/internal/model"
	"github.com/dm/gridmon/internal/sender"
)

const (
	attrMachineName    = "MachineName"
	attrUnicastAddress = "UnicastAddress"
	attrClusterVersion = "Version"
)

// DiscoverTopology refreshes the session from the live cluster: the
// machine each member runs on, keeping the lowest member id per machine as
// its representative, and the cluster version. Members without a machine
// name are grouped by unicast address.
func DiscoverTopology(ctx context.Context, s sender.RequestSender, sess *model.Session) error {
	members, err := s.Discover(ctx, sender.Query{Category: sender.CategoryClusterMembers})
	if err != nil {
		return fmt.Errorf("discover members: %w", err)
	}

	machines := make(map[string]int, len(members))
	for _, obj := range members {
		id, err := strconv.Atoi(obj.Key("nodeId"))
		if err != nil {
			return errs.WrapWithContext(errs.ErrCodeDataShape, "member name without numeric nodeId", err,
				map[string]any{"mbean": obj.String()})
		}
		attrs, err := s.FetchMany(ctx, obj, []string{attrMachineName, attrUnicastAddress})
		if err != nil {
			return fmt.Errorf("member %d: %w", id, err)
		}
		machine, _ := attrs.Get(attrMachineName)
		if machine == "" {
			machine, _ = attrs.Get(attrUnicastAddress)
		}
		if cur, ok := machines[machine]; !ok || id < cur {
			machines[machine] = id
		}
	}
	sess.SetMachineMembers(machines)

	clusters, err := s.Discover(ctx, sender.Query{Category: sender.CategoryClusters})
	if err != nil {
		return fmt.Errorf("discover cluster: %w", err)
	}
	if len(clusters) == 0 {
		return nil
	}
	version, err := s.FetchOne(ctx, clusters[0], attrClusterVersion)
	if err != nil {
		return fmt.Errorf("cluster version: %w", err)
	}
	if err := sess.SetClusterVersion(version); err != nil {
		return errs.Wrap(errs.ErrCodeDataShape, "cluster version", err)
	}
	return nil
}
