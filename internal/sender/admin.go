package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	errs "github.com/dm/gridmon/internal/errors"
)

// Persistence operations accepted by ExecutePersistenceOperation.
var PersistenceOperations = []string{
	"createSnapshot",
	"recoverSnapshot",
	"removeSnapshot",
	"archiveSnapshot",
	"retrieveArchivedSnapshot",
	"removeArchivedSnapshot",
}

// Federation operations accepted by InvokeFederationOperation.
var FederationOperations = []string{
	"start",
	"stop",
	"pause",
	"replicateAll",
	"startWithNoBacklog",
}

// first discovers q and returns the lowest-named match, or a not-found
// error when nothing matches.
func first(ctx context.Context, s RequestSender, q Query) (ObjectName, error) {
	names, err := s.Discover(ctx, q)
	if err != nil {
		return ObjectName{}, err
	}
	if len(names) == 0 {
		return ObjectName{}, errs.NewWithContext(errs.ErrCodeNotFound, "no matching object",
			map[string]any{"category": q.Category.String(), "service": q.Service, "nodeId": q.NodeID})
	}
	SortObjectNames(names)
	return names[0], nil
}

// DumpClusterHeap asks every member with the given role (all members when
// role is empty) to write a heap dump.
func DumpClusterHeap(ctx context.Context, s RequestSender, role string) error {
	cluster, err := first(ctx, s, Query{Category: CategoryClusters})
	if err != nil {
		return fmt.Errorf("dump cluster heap: %w", err)
	}
	if _, err := s.Invoke(ctx, cluster, "dumpClusterHeap", role); err != nil {
		return fmt.Errorf("dump cluster heap: %w", err)
	}
	return nil
}

// Snapshots lists the persistence snapshots of a service.
func Snapshots(ctx context.Context, s RequestSender, service, partition string) ([]string, error) {
	coord, err := first(ctx, s, Query{Category: CategoryPersistence, Service: service, DomainPartition: partition})
	if err != nil {
		return nil, fmt.Errorf("snapshots: %w", err)
	}
	v, err := s.FetchOne(ctx, coord, "Snapshots")
	if err != nil {
		return nil, fmt.Errorf("snapshots: %w", err)
	}
	return parseList(v)
}

// ArchivedSnapshots lists the archived persistence snapshots of a service.
func ArchivedSnapshots(ctx context.Context, s RequestSender, service, partition string) ([]string, error) {
	coord, err := first(ctx, s, Query{Category: CategoryPersistence, Service: service, DomainPartition: partition})
	if err != nil {
		return nil, fmt.Errorf("archived snapshots: %w", err)
	}
	v, err := s.Invoke(ctx, coord, "listArchivedSnapshots")
	if err != nil {
		return nil, fmt.Errorf("archived snapshots: %w", err)
	}
	return parseList(v)
}

// ExecutePersistenceOperation runs a snapshot operation against the
// persistence coordinator of a service.
func ExecutePersistenceOperation(ctx context.Context, s RequestSender, service, partition, operation, snapshot string) error {
	if !slices.Contains(PersistenceOperations, operation) {
		return errs.NewWithContext(errs.ErrCodeInvalidRequest, "unknown persistence operation",
			map[string]any{"operation": operation})
	}
	if snapshot == "" {
		return errs.NewWithContext(errs.ErrCodeInvalidRequest, "snapshot name is required",
			map[string]any{"operation": operation})
	}
	coord, err := first(ctx, s, Query{Category: CategoryPersistence, Service: service, DomainPartition: partition})
	if err != nil {
		return fmt.Errorf("persistence %s: %w", operation, err)
	}
	if _, err := s.Invoke(ctx, coord, operation, snapshot); err != nil {
		return fmt.Errorf("persistence %s: %w", operation, err)
	}
	return nil
}

// InvokeFederationOperation runs a federation operation for a service,
// scoped to one participant when participant is not empty.
func InvokeFederationOperation(ctx context.Context, s RequestSender, service, operation, participant string) error {
	if !slices.Contains(FederationOperations, operation) {
		return errs.NewWithContext(errs.ErrCodeInvalidRequest, "unknown federation operation",
			map[string]any{"operation": operation})
	}
	coord, err := first(ctx, s, Query{Category: CategoryFederation, Service: service})
	if err != nil {
		return fmt.Errorf("federation %s: %w", operation, err)
	}
	var args []string
	if participant != "" {
		args = append(args, participant)
	}
	if _, err := s.Invoke(ctx, coord, operation, args...); err != nil {
		return fmt.Errorf("federation %s: %w", operation, err)
	}
	return nil
}

// NodeState returns the state report of a single cluster member.
func NodeState(ctx context.Context, s RequestSender, nodeID int) (string, error) {
	node, err := first(ctx, s, Query{Category: CategoryClusterMembers, NodeID: nodeID})
	if err != nil {
		return "", fmt.Errorf("node state: %w", err)
	}
	state, err := s.Invoke(ctx, node, "reportNodeState")
	if err != nil {
		return "", fmt.Errorf("node state: %w", err)
	}
	return state, nil
}

// parseList accepts a JSON string array or a comma separated list.
func parseList(v string) ([]string, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == "null" {
		return nil, nil
	}
	if strings.HasPrefix(v, "[") {
		var out []string
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, errs.WrapWithContext(errs.ErrCodeDataShape, "parse list attribute", err,
				map[string]any{"value": v})
		}
		return out, nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
