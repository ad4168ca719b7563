package memstore

import (
	"context"
	"sync"
	"time"
)

// Sequencer keeps daily document counters in memory.
type Sequencer struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewSequencer creates an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{counters: make(map[string]int64)}
}

// Next returns the next counter value for prefix on day.
func (s *Sequencer) Next(ctx context.Context, prefix string, day time.Time) (int64, error) {
	key := prefix + ":" + day.Format("20060102")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[key]++
	return s.counters[key], nil
}
