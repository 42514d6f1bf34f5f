package strategy

import "github.com/elys-network/autocompounder/internal/types"

// DefaultLogCapacity bounds the harvest log when no capacity is configured.
const DefaultLogCapacity = 100

// harvestLog is a fixed-capacity ring buffer; the oldest entry is overwritten when full.
type harvestLog struct {
	entries []types.HarvestEntry
	start   int
	size    int
}

func newHarvestLog(capacity int) *harvestLog {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &harvestLog{entries: make([]types.HarvestEntry, capacity)}
}

func (l *harvestLog) push(e types.HarvestEntry) {
	capacity := len(l.entries)
	if l.size < capacity {
		l.entries[(l.start+l.size)%capacity] = e
		l.size++
		return
	}
	l.entries[l.start] = e
	l.start = (l.start + 1) % capacity
}

func (l *harvestLog) len() int { return l.size }

func (l *harvestLog) capacity() int { return len(l.entries) }

// last returns up to n most recent entries, oldest first.
func (l *harvestLog) last(n int) []types.HarvestEntry {
	if n > l.size {
		n = l.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]types.HarvestEntry, 0, n)
	for i := l.size - n; i < l.size; i++ {
		out = append(out, l.entries[(l.start+i)%len(l.entries)])
	}
	return out
}

func (l *harvestLog) all() []types.HarvestEntry {
	return l.last(l.size)
}
