package model

// ClusterResources summarises the machine snapshot across the cluster.
type ClusterResources struct {
	Machines       int     `json:"machines" yaml:"machines"`
	Processors     int     `json:"processors" yaml:"processors"`
	TotalMemory    int64   `json:"total_memory" yaml:"total_memory"` // bytes
	FreeMemory     int64   `json:"free_memory" yaml:"free_memory"`   // bytes
	FreeRatio      float64 `json:"free_ratio" yaml:"free_ratio"`     // FreeMemory / TotalMemory, in [0,1]
	AvgLoad        float64 `json:"avg_load" yaml:"avg_load"`         // mean over machines reporting a non-negative load
	LoadSampleSize int     `json:"load_sample_size" yaml:"load_sample_size"`
}

// CacheRate holds per-cache throughput derived from two consecutive cache
// snapshots.
type CacheRate struct {
	Key        Key     `json:"key" yaml:"key"`
	GetsPerSec float64 `json:"gets_per_sec" yaml:"gets_per_sec"`
	PutsPerSec float64 `json:"puts_per_sec" yaml:"puts_per_sec"`
}
