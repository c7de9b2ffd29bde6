package sender

import (
	"strconv"
	"strings"

	errs "github.com/dm/gridmon/internal/errors"
)

// Category selects a family of remote objects for discovery.
type Category int

const (
	CategoryClusterMembers Category = iota + 1
	CategoryMemberOS
	CategoryClusters
	CategoryServices
	CategoryServiceMembers
	CategoryCaches
	CategoryCacheMembers
	CategoryCacheStorageMembers
	CategoryProxyServers
	CategoryExecutors
	CategoryGrpcProxies
	CategoryHotCaches
	CategoryJournals
	CategoryPersistence
	CategoryFederation
	CategoryReporters
)

var categoryNames = map[Category]string{
	CategoryClusterMembers:      "cluster-members",
	CategoryMemberOS:            "member-os",
	CategoryClusters:            "clusters",
	CategoryServices:            "services",
	CategoryServiceMembers:      "service-members",
	CategoryCaches:              "caches",
	CategoryCacheMembers:        "cache-members",
	CategoryCacheStorageMembers: "cache-storage-members",
	CategoryProxyServers:        "proxy-servers",
	CategoryExecutors:           "executors",
	CategoryGrpcProxies:         "grpc-proxies",
	CategoryHotCaches:           "hot-caches",
	CategoryJournals:            "journals",
	CategoryPersistence:         "persistence",
	CategoryFederation:          "federation",
	CategoryReporters:           "reporters",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return "category(" + strconv.Itoa(int(c)) + ")"
}

// Query describes a discovery request. Zero-valued filters are not applied.
type Query struct {
	Category        Category
	NodeID          int
	Service         string
	Name            string // cache name, or journal type for CategoryJournals
	DomainPartition string
}

const domain = "Coherence"

// Pattern returns the object-name pattern that selects the objects of q.
func (q Query) Pattern() (ObjectName, error) {
	var props []string
	require := func(field, v string) error {
		if v == "" {
			return errs.NewWithContext(errs.ErrCodeInvalidRequest, "query is missing a required filter",
				map[string]any{"category": q.Category.String(), "filter": field})
		}
		return nil
	}

	switch q.Category {
	case CategoryClusterMembers:
		props = append(props, "type=Node")
	case CategoryMemberOS:
		if q.NodeID <= 0 {
			return ObjectName{}, errs.NewWithContext(errs.ErrCodeInvalidRequest, "query is missing a required filter",
				map[string]any{"category": q.Category.String(), "filter": "nodeId"})
		}
		props = append(props, "type=Platform", "Domain=java.lang", "subType=OperatingSystem")
	case CategoryClusters:
		props = append(props, "type=Cluster")
	case CategoryServices:
		props = append(props, "type=Service")
	case CategoryServiceMembers:
		if err := require("service", q.Service); err != nil {
			return ObjectName{}, err
		}
		props = append(props, "type=Service", "name="+q.Service)
	case CategoryCaches:
		props = append(props, "type=Cache", "tier=back")
	case CategoryCacheMembers:
		if err := require("service", q.Service); err != nil {
			return ObjectName{}, err
		}
		if err := require("name", q.Name); err != nil {
			return ObjectName{}, err
		}
		props = append(props, "type=Cache", "service="+q.Service, "name="+q.Name)
	case CategoryCacheStorageMembers:
		if err := require("service", q.Service); err != nil {
			return ObjectName{}, err
		}
		if err := require("name", q.Name); err != nil {
			return ObjectName{}, err
		}
		props = append(props, "type=StorageManager", "service="+q.Service, "cache="+q.Name)
	case CategoryProxyServers:
		props = append(props, "type=ConnectionManager")
	case CategoryExecutors:
		props = append(props, "type=Executor")
	case CategoryGrpcProxies:
		props = append(props, "type=GrpcNamedCacheProxy")
	case CategoryHotCaches:
		props = append(props, "type=HotCache")
	case CategoryJournals:
		if err := require("name", q.Name); err != nil {
			return ObjectName{}, err
		}
		props = append(props, "type=Journal", "name="+q.Name)
	case CategoryPersistence:
		props = append(props, "type=Persistence", "responsibility=PersistenceCoordinator")
		if q.Service != "" {
			props = append(props, "service="+q.Service)
		}
	case CategoryFederation:
		props = append(props, "type=Federation", "responsibility=Coordinator")
		if q.Service != "" {
			props = append(props, "service="+q.Service)
		}
	case CategoryReporters:
		props = append(props, "type=Reporter")
	default:
		return ObjectName{}, errs.NewWithContext(errs.ErrCodeInvalidRequest, "unknown discovery category",
			map[string]any{"category": int(q.Category)})
	}

	if q.NodeID > 0 {
		props = append(props, "nodeId="+strconv.Itoa(q.NodeID))
	}
	if q.DomainPartition != "" {
		props = append(props, "domainPartition="+q.DomainPartition)
	}
	props = append(props, "*")

	return ParseObjectName(domain + ":" + strings.Join(props, ","))
}
