package engine

import (
	"time"

	"github.com/dm/gridmon/internal/model"
	"github.com/dm/gridmon/internal/retriever"
)

// Sanity bounds for counter-derived rates.
const (
	minTimeDiffSeconds = 1.0
	maxRatePerSec      = 50_000_000.0
)

// clampRate returns 0 if r exceeds maxRatePerSec (counter wrap / bad data),
// otherwise returns r unchanged.
func clampRate(r float64) float64 {
	if r > maxRatePerSec {
		return 0
	}
	return r
}

// safeDivide returns a/b, or 0 when b is zero.
func safeDivide(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// maxFloat64 returns the larger of a and b.
func maxFloat64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// CalcMachineResources aggregates the machine snapshot across the cluster.
//
// Load averaging skips machines reporting a negative load (unsupported on
// the platform) to avoid dragging the average down. Memory is always summed
// across all machines.
func CalcMachineResources(snap *model.Snapshot) model.ClusterResources {
	if snap == nil || snap.Entity() != model.EntityMachine {
		return model.ClusterResources{}
	}

	var res model.ClusterResources
	var loadSum float64
	for _, e := range snap.Entries() {
		rec := e.Record
		res.Machines++
		res.Processors += rec.Int(retriever.MachineColProcessors)
		res.TotalMemory += rec.Long(retriever.MachineColTotalMemory)
		res.FreeMemory += rec.Long(retriever.MachineColFreeMemory)

		if load := rec.Float(retriever.MachineColLoadAverage); load >= 0 {
			loadSum += load
			res.LoadSampleSize++
		}
	}

	res.FreeRatio = safeDivide(float64(res.FreeMemory), float64(res.TotalMemory))
	res.AvgLoad = safeDivide(loadSum, float64(res.LoadSampleSize))
	return res
}

// CalcCacheRates computes per-cache get and put throughput from the delta
// between two consecutive cache snapshots. Caches absent from prev have no
// baseline and are skipped.
//
// Returns nil when:
//   - prev is nil (first snapshot, no baseline)
//   - elapsed < minTimeDiffSeconds (interval too short, data unreliable)
func CalcCacheRates(prev, curr *model.Snapshot, elapsed time.Duration) []model.CacheRate {
	if prev == nil || curr == nil || elapsed.Seconds() < minTimeDiffSeconds {
		return nil
	}
	elapsedSec := elapsed.Seconds()

	var out []model.CacheRate
	for _, e := range curr.Entries() {
		before, ok := prev.Get(e.Key)
		if !ok {
			continue
		}
		// Counter reset protection: clamp negative deltas to zero.
		gets := maxFloat64(0, float64(e.Record.Long(retriever.CacheColTotalGets)-before.Long(retriever.CacheColTotalGets)))
		puts := maxFloat64(0, float64(e.Record.Long(retriever.CacheColTotalPuts)-before.Long(retriever.CacheColTotalPuts)))

		out = append(out, model.CacheRate{
			Key:        e.Key,
			GetsPerSec: clampRate(gets / elapsedSec),
			PutsPerSec: clampRate(puts / elapsedSec),
		})
	}
	return out
}
