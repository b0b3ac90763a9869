package fanout

import "sync"

// NoDataSentinel is replayed when no sweep has succeeded yet
const NoDataSentinel = "No data available"

// Aggregate is a single-slot cell holding the last successful target
// response. It is shared by every connection of a reflect server.
type Aggregate struct {
	mu    sync.RWMutex
	value []byte
	set   bool
}

// NewAggregate returns an empty cell
func NewAggregate() *Aggregate {
	return &Aggregate{}
}

// Load returns a copy of the stored payload and whether one was stored
func (a *Aggregate) Load() ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.set {
		return nil, false
	}
	return append([]byte(nil), a.value...), true
}

// Store overwrites the cell
func (a *Aggregate) Store(payload []byte) {
	value := append([]byte(nil), payload...)

	a.mu.Lock()
	a.value = value
	a.set = true
	a.mu.Unlock()
}

// Reset empties the cell
func (a *Aggregate) Reset() {
	a.mu.Lock()
	a.value = nil
	a.set = false
	a.mu.Unlock()
}
