package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/blang/semver/v4"
	"github.com/google/uuid"
)

// Feature is an optional remote capability that can be found missing at
// runtime.
type Feature int

const (
	// FeatureLoadAverage is the OS system load average. Platforms that do
	// not support it report -1; the CPU load is used instead.
	FeatureLoadAverage Feature = iota

	featureCount
)

func (f Feature) String() string {
	switch f {
	case FeatureLoadAverage:
		return "load-average"
	default:
		return fmt.Sprintf("feature(%d)", int(f))
	}
}

// MachineMember pairs a machine with the member chosen to report for it.
type MachineMember struct {
	Machine  string
	MemberID int
}

// Session carries the state shared by every retriever during a monitoring
// session: the discovered topology, the cluster version and feature flags.
// It is safe for concurrent use.
type Session struct {
	id string

	mu       sync.RWMutex
	machines map[string]int
	version  *semver.Version
	rawVer   string

	disabled [featureCount]atomic.Bool
}

// NewSession returns a session with every feature available and an empty
// topology.
func NewSession() *Session {
	return &Session{
		id:       uuid.NewString(),
		machines: make(map[string]int),
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// MachineMembers returns the machine to representative-member mapping,
// sorted by machine name. The slice is a copy.
func (s *Session) MachineMembers() []MachineMember {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MachineMember, 0, len(s.machines))
	for m, id := range s.machines {
		out = append(out, MachineMember{Machine: m, MemberID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Machine < out[j].Machine })
	return out
}

// SetMachineMembers replaces the topology with a copy of m.
func (s *Session) SetMachineMembers(m map[string]int) {
	copied := make(map[string]int, len(m))
	for k, v := range m {
		copied[k] = v
	}
	s.mu.Lock()
	s.machines = copied
	s.mu.Unlock()
}

// SetClusterVersion parses and records the cluster version.
func (s *Session) SetClusterVersion(raw string) error {
	v, err := ParseClusterVersion(raw)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.version = &v
	s.rawVer = raw
	s.mu.Unlock()
	return nil
}

// ClusterVersion returns the recorded version and whether one is known.
func (s *Session) ClusterVersion() (semver.Version, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.version == nil {
		return semver.Version{}, false
	}
	return *s.version, true
}

// VersionAtLeast reports whether the cluster runs min or newer. An unknown
// version is treated as current.
func (s *Session) VersionAtLeast(min semver.Version) bool {
	v, ok := s.ClusterVersion()
	if !ok {
		return true
	}
	return v.GTE(min)
}

// FeatureAvailable reports whether f has not been disabled.
func (s *Session) FeatureAvailable(f Feature) bool {
	return !s.disabled[f].Load()
}

// DisableFeature marks f unavailable for the rest of the session. It
// returns true only for the call that performed the transition.
func (s *Session) DisableFeature(f Feature) bool {
	return s.disabled[f].CompareAndSwap(false, true)
}

// ParseClusterVersion parses release strings such as "14.1.1.0.0",
// "12.2.1.4.0" or "22.06.1" using their first three numeric components.
// Leading zeros and trailing qualifiers ("22.06.1-SNAPSHOT") are accepted.
func ParseClusterVersion(raw string) (semver.Version, error) {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, " -+"); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, ".")
	if s == "" || len(parts) == 0 {
		return semver.Version{}, fmt.Errorf("cluster version %q: empty", raw)
	}

	var nums [3]uint64
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.ParseUint(parts[i], 10, 64)
		if err != nil {
			return semver.Version{}, fmt.Errorf("cluster version %q: %w", raw, err)
		}
		nums[i] = n
	}

	v := semver.Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}
	if err := v.Validate(); err != nil {
		return semver.Version{}, fmt.Errorf("cluster version %q: %w", raw, err)
	}
	return v, nil
}
