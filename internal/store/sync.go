package store

import "sync/atomic"

// SyncCounter tracks how many mutations are currently in flight. A UI can
// watch it to show a sync spinner. The zero value is usable.
type SyncCounter struct {
	inFlight atomic.Int64
	onChange func(inFlight int)
}

// NewSyncCounter creates a counter. onChange, if non-nil, is invoked with the
// new in-flight count after every change.
func NewSyncCounter(onChange func(inFlight int)) *SyncCounter {
	return &SyncCounter{onChange: onChange}
}

// Inc marks one operation as in flight.
func (c *SyncCounter) Inc() {
	n := c.inFlight.Add(1)
	if c.onChange != nil {
		c.onChange(int(n))
	}
}

// Dec marks one operation as settled, whether it succeeded or rolled back.
func (c *SyncCounter) Dec() {
	n := c.inFlight.Add(-1)
	if c.onChange != nil {
		c.onChange(int(n))
	}
}

// InFlight returns the number of unsettled operations.
func (c *SyncCounter) InFlight() int {
	return int(c.inFlight.Load())
}

// Syncing reports whether any operation is unsettled.
func (c *SyncCounter) Syncing() bool {
	return c.InFlight() > 0
}
