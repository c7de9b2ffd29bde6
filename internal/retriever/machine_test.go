package retriever

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/dm/gridmon/internal/errors"
	"github.com/dm/gridmon/internal/model"
	"github.com/dm/gridmon/internal/sender"
	"github.com/dm/gridmon/internal/sender/sendertest"
)

const gib = int64(1 << 30)

func osObject(node int) string {
	return fmt.Sprintf("Coherence:type=Platform,Domain=java.lang,subType=OperatingSystem,nodeId=%d", node)
}

func linuxOS(total, free int64, load string) map[string]string {
	return map[string]string{
		"Name":                    "Linux",
		"TotalPhysicalMemorySize": fmt.Sprint(total),
		"FreePhysicalMemorySize":  fmt.Sprint(free),
		"SystemLoadAverage":       load,
		"AvailableProcessors":     "8",
		"SystemCpuLoad":           "0.37",
	}
}

func machineSession(topology map[string]int) *model.Session {
	sess := model.NewSession()
	sess.SetMachineMembers(topology)
	return sess
}

func TestMachine_CollectDirect(t *testing.T) {
	f := sendertest.New()
	f.Add(osObject(1), linuxOS(16*gib, 4*gib, "1.5"))
	f.Add(osObject(3), linuxOS(8*gib, 6*gib, "0.25"))
	sess := machineSession(map[string]int{"host-b": 3, "host-a": 1})

	snap, err := NewMachine().CollectDirect(context.Background(), f, sess)
	require.NoError(t, err)
	require.Equal(t, 2, snap.Len())
	assert.Equal(t, []model.Key{model.StringKey("host-a"), model.StringKey("host-b")}, snap.Keys())

	a, ok := snap.Get(model.StringKey("host-a"))
	require.True(t, ok)
	assert.Equal(t, "host-a", a.String(MachineColName))
	assert.Equal(t, 8, a.Int(MachineColProcessors))
	assert.Equal(t, 1.5, a.Float(MachineColLoadAverage))
	assert.Equal(t, 16*gib, a.Long(MachineColTotalMemory))
	assert.Equal(t, 4*gib, a.Long(MachineColFreeMemory))
	assert.Equal(t, 0.25, a.Float(MachineColPercentFree))

	b, _ := snap.Get(model.StringKey("host-b"))
	assert.Equal(t, 0.75, b.Float(MachineColPercentFree))
	assert.True(t, sess.FeatureAvailable(model.FeatureLoadAverage))
	assert.Zero(t, f.CallCount("RunReport"))
}

func TestMachine_PercentFreeIsFreeOverTotal(t *testing.T) {
	cases := []struct {
		name        string
		total, free int64
	}{
		{"quarter", 16 * gib, 4 * gib},
		{"all free", 2 * gib, 2 * gib},
		{"none free", 64 * gib, 0},
		{"odd sizes", 33_554_432_000, 1_234_567_890},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := sendertest.New()
			f.Add(osObject(1), linuxOS(tc.total, tc.free, "1.0"))

			snap, err := NewMachine().CollectDirect(context.Background(), f, machineSession(map[string]int{"m": 1}))
			require.NoError(t, err)
			rec, _ := snap.Get(model.StringKey("m"))
			ratio := rec.Float(MachineColPercentFree)
			assert.Equal(t, float64(rec.Long(MachineColFreeMemory))/float64(rec.Long(MachineColTotalMemory)), ratio)
			assert.GreaterOrEqual(t, ratio, 0.0)
			assert.LessOrEqual(t, ratio, 1.0)
		})
	}
}

func TestMachine_AIXUsesTotalPhysicalMemory(t *testing.T) {
	f := sendertest.New()
	f.Add(osObject(1), map[string]string{
		"Name":                   "AIX",
		"TotalPhysicalMemory":    fmt.Sprint(32 * gib),
		"FreePhysicalMemorySize": fmt.Sprint(8 * gib),
		"SystemLoadAverage":      "2.0",
		"AvailableProcessors":    "16",
	})

	snap, err := NewMachine().CollectDirect(context.Background(), f, machineSession(map[string]int{"aixbox": 1}))
	require.NoError(t, err)
	rec, ok := snap.Get(model.StringKey("aixbox"))
	require.True(t, ok)
	assert.Equal(t, 32*gib, rec.Long(MachineColTotalMemory))
	assert.Equal(t, 0.25, rec.Float(MachineColPercentFree))

	var many []sendertest.Call
	for _, c := range f.Calls() {
		if c.Method == "FetchMany" {
			many = append(many, c)
		}
	}
	require.Len(t, many, 1)
	assert.Contains(t, many[0].Attrs, "TotalPhysicalMemory")
	assert.NotContains(t, many[0].Attrs, "TotalPhysicalMemorySize")
}

func TestMachine_AIXMatchIsCaseInsensitive(t *testing.T) {
	f := sendertest.New()
	attrs := linuxOS(0, 1*gib, "1.0")
	attrs["Name"] = "aix 7.2"
	attrs["TotalPhysicalMemory"] = fmt.Sprint(4 * gib)
	f.Add(osObject(1), attrs)

	snap, err := NewMachine().CollectDirect(context.Background(), f, machineSession(map[string]int{"m": 1}))
	require.NoError(t, err)
	rec, _ := snap.Get(model.StringKey("m"))
	assert.Equal(t, 4*gib, rec.Long(MachineColTotalMemory))
}

func TestMachine_LoadAverageFallback(t *testing.T) {
	f := sendertest.New()
	f.Add(osObject(1), linuxOS(16*gib, 4*gib, "-1.0"))
	f.Add(osObject(2), linuxOS(16*gib, 4*gib, "3.5"))
	sess := machineSession(map[string]int{"win-a": 1, "win-b": 2})
	m := NewMachine()

	snap, err := m.CollectDirect(context.Background(), f, sess)
	require.NoError(t, err)
	assert.False(t, sess.FeatureAvailable(model.FeatureLoadAverage))

	for _, k := range []string{"win-a", "win-b"} {
		rec, ok := snap.Get(model.StringKey(k))
		require.True(t, ok)
		assert.Equal(t, 0.37, rec.Float(MachineColLoadAverage), k)
	}

	// The flag never re-enables, even once the platform reports a load.
	f.Set(osObject(1), "SystemLoadAverage", "0.5")
	snap, err = m.CollectDirect(context.Background(), f, sess)
	require.NoError(t, err)
	assert.False(t, sess.FeatureAvailable(model.FeatureLoadAverage))
	rec, _ := snap.Get(model.StringKey("win-a"))
	assert.Equal(t, 0.37, rec.Float(MachineColLoadAverage))
}

func TestMachine_LoadAveragePresentDoesNotFetchCPULoad(t *testing.T) {
	f := sendertest.New()
	f.Add(osObject(1), linuxOS(16*gib, 4*gib, "0.8"))

	_, err := NewMachine().CollectDirect(context.Background(), f, machineSession(map[string]int{"m": 1}))
	require.NoError(t, err)
	for _, c := range f.Calls() {
		assert.NotEqual(t, []string{"SystemCpuLoad"}, c.Attrs)
	}
}

func TestMachine_SharedMachineQueriedOnce(t *testing.T) {
	f := sendertest.New()
	f.Add(osObject(1), linuxOS(16*gib, 4*gib, "1.0"))
	f.Add(osObject(2), linuxOS(16*gib, 4*gib, "1.0"))
	// Members 1 and 2 share host-a; the topology keeps member 1.
	sess := machineSession(map[string]int{"host-a": 1})

	snap, err := NewMachine().CollectDirect(context.Background(), f, sess)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, 1, f.CallCount("Discover"))
	assert.Equal(t, 1, f.CallCount("FetchMany"))
}

func TestMachine_EmptyDiscoverySkipsMachine(t *testing.T) {
	f := sendertest.New()
	f.Add(osObject(1), linuxOS(16*gib, 4*gib, "1.0"))
	sess := machineSession(map[string]int{"host-a": 1, "host-gone": 7})

	snap, err := NewMachine().CollectDirect(context.Background(), f, sess)
	require.NoError(t, err)
	assert.Equal(t, []model.Key{model.StringKey("host-a")}, snap.Keys())
}

func TestMachine_EmptyTopology(t *testing.T) {
	snap, err := NewMachine().CollectDirect(context.Background(), sendertest.New(), model.NewSession())
	require.NoError(t, err)
	assert.Zero(t, snap.Len())
}

func TestMachine_FailureAbortsWithoutPartialSnapshot(t *testing.T) {
	cases := []struct {
		name     string
		setup    func(f *sendertest.Fake)
		wantCode errs.ErrorCode
	}{
		{
			name: "transport failure on second machine",
			setup: func(f *sendertest.Fake) {
				f.FetchErr = func(obj sender.ObjectName, _ []string) error {
					if obj.Key("nodeId") == "2" {
						return errs.New(errs.ErrCodeTransport, "connection reset")
					}
					return nil
				}
			},
			wantCode: errs.ErrCodeTransport,
		},
		{
			name: "discovery failure",
			setup: func(f *sendertest.Fake) {
				f.DiscoverErr = func(sender.Query) error { return errs.New(errs.ErrCodeTransport, "timeout") }
			},
			wantCode: errs.ErrCodeTransport,
		},
		{
			name:     "unparsable attribute",
			setup:    func(f *sendertest.Fake) { f.Set(osObject(2), "FreePhysicalMemorySize", "lots") },
			wantCode: errs.ErrCodeDataShape,
		},
		{
			name:     "zero total memory",
			setup:    func(f *sendertest.Fake) { f.Set(osObject(2), "TotalPhysicalMemorySize", "0") },
			wantCode: errs.ErrCodeDataShape,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := sendertest.New()
			f.Add(osObject(1), linuxOS(16*gib, 4*gib, "1.0"))
			f.Add(osObject(2), linuxOS(16*gib, 4*gib, "1.0"))
			tc.setup(f)

			snap, err := NewMachine().CollectDirect(context.Background(), f,
				machineSession(map[string]int{"host-a": 1, "host-b": 2}))
			require.Error(t, err)
			assert.Nil(t, snap)
			assert.True(t, errs.IsCode(err, tc.wantCode), "got %v", err)
		})
	}
}

func TestMachine_MissingAttributeFails(t *testing.T) {
	f := sendertest.New()
	attrs := linuxOS(16*gib, 4*gib, "1.0")
	delete(attrs, "AvailableProcessors")
	f.Add(osObject(1), attrs)

	snap, err := NewMachine().CollectDirect(context.Background(), f, machineSession(map[string]int{"m": 1}))
	assert.Error(t, err)
	assert.Nil(t, snap)
}

func TestMachine_RepeatedPollEncodesIdentically(t *testing.T) {
	f := sendertest.New()
	f.Add(osObject(1), linuxOS(16*gib, 4*gib, "1.0"))
	f.Add(osObject(2), linuxOS(8*gib, 1*gib, "2.0"))
	f.Add(osObject(5), linuxOS(4*gib, 3*gib, "0.1"))
	sess := machineSession(map[string]int{"c": 5, "a": 1, "b": 2})
	m := NewMachine()

	first, err := m.CollectDirect(context.Background(), f, sess)
	require.NoError(t, err)
	second, err := m.CollectDirect(context.Background(), f, sess)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestMachine_NoReport(t *testing.T) {
	m := NewMachine()
	assert.False(t, m.SupportsReport())
	assert.True(t, m.Report().IsZero())

	snap, err := m.CollectFromReport([]sender.ReportRow{{"x"}}, model.NewSession())
	assert.Nil(t, snap)
	assert.True(t, errors.Is(err, ErrReportUnsupported))
	assert.True(t, errs.IsCode(err, errs.ErrCodeUnsupported))
}
