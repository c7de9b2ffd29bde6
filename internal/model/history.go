package model

import "time"

const defaultHistoryCap = 60

// Cycle is the outcome of one poll across all entity types. An entity with
// an entry in Errors has no snapshot for the cycle.
type Cycle struct {
	FetchedAt time.Time
	Snapshots map[EntityType]*Snapshot
	Errors    map[EntityType]error
}

// Snapshot returns the cycle's snapshot for entity, nil when it failed or
// was not polled.
func (c *Cycle) Snapshot(entity EntityType) *Snapshot {
	if c == nil {
		return nil
	}
	return c.Snapshots[entity]
}

// CycleHistory is a fixed-size ring buffer of poll cycles.
// When the buffer is full, new pushes overwrite the oldest entry.
type CycleHistory struct {
	buf  []*Cycle
	head int // index of the next write position
	size int // number of valid entries
}

// NewCycleHistory creates a CycleHistory with the given capacity.
// If capacity <= 0, defaultHistoryCap (60) is used.
func NewCycleHistory(capacity int) *CycleHistory {
	if capacity <= 0 {
		capacity = defaultHistoryCap
	}
	return &CycleHistory{
		buf: make([]*Cycle, capacity),
	}
}

// Push appends a cycle, overwriting the oldest if full.
func (h *CycleHistory) Push(c *Cycle) {
	h.buf[h.head] = c
	h.head = (h.head + 1) % len(h.buf)
	if h.size < len(h.buf) {
		h.size++
	}
}

// Len returns the number of valid entries in the history.
func (h *CycleHistory) Len() int {
	return h.size
}

// Clear resets the history to empty.
func (h *CycleHistory) Clear() {
	for i := range h.buf {
		h.buf[i] = nil
	}
	h.head = 0
	h.size = 0
}

// at returns the i-th cycle in chronological order (0 = oldest).
func (h *CycleHistory) at(i int) *Cycle {
	// oldest entry sits at (head - size + cap) % cap
	start := (h.head - h.size + len(h.buf)) % len(h.buf)
	return h.buf[(start+i)%len(h.buf)]
}

// Latest returns the most recent cycle, nil when empty.
func (h *CycleHistory) Latest() *Cycle {
	if h.size == 0 {
		return nil
	}
	return h.at(h.size - 1)
}

// LastGood returns the newest snapshot of entity along with the time of its
// cycle. This is what a display keeps showing while polls fail.
func (h *CycleHistory) LastGood(entity EntityType) (*Snapshot, time.Time, bool) {
	for i := h.size - 1; i >= 0; i-- {
		c := h.at(i)
		if s := c.Snapshot(entity); s != nil {
			return s, c.FetchedAt, true
		}
	}
	return nil, time.Time{}, false
}

// Series returns the numeric value of column col for key across the
// history in chronological order (oldest first). Cycles where the entity
// failed or the key is absent are skipped; non-numeric columns yield nil.
func (h *CycleHistory) Series(entity EntityType, key Key, col int) []float64 {
	var out []float64
	for i := 0; i < h.size; i++ {
		s := h.at(i).Snapshot(entity)
		if s == nil {
			continue
		}
		rec, ok := s.Get(key)
		if !ok {
			continue
		}
		v, ok := rec.Numeric(col)
		if !ok {
			return nil
		}
		out = append(out, v)
	}
	return out
}
