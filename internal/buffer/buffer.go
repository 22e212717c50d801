package buffer

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kden/esp32-sunlight-sensor-sub000/internal/models"
)

// maxFullWarnings bounds how many consecutive full-buffer warnings are
// logged before they are suppressed. The counter resets on the next
// successful append.
const maxFullWarnings = 5

// AppendResult is the outcome of a single Append.
type AppendResult int

const (
	Appended AppendResult = iota
	Full
)

// SharedBuffer is the fixed-capacity reading buffer shared between the
// sampling task and the sender task. It is the only mutable state the
// two tasks share; both critical sections are O(1) copies with no I/O
// under the lock.
//
// When full, a new reading is rejected and the buffered data is left
// for the sender task to move into the overflow store.
type SharedBuffer struct {
	mu        sync.Mutex
	readings  []models.Reading
	capacity  int
	fullWarns int
	logger    zerolog.Logger

	// Stats
	totalAppended int64
	totalDropped  int64
	highWaterMark int
}

// Stats tracks buffer usage over the process lifetime.
type Stats struct {
	TotalAppended int64
	TotalDropped  int64
	HighWaterMark int
}

// New creates a shared buffer with the given capacity.
func New(capacity int, logger zerolog.Logger) *SharedBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &SharedBuffer{
		readings: make([]models.Reading, 0, capacity),
		capacity: capacity,
		logger:   logger,
	}
}

// Append adds one reading. Returns Full without modifying the buffer
// when at capacity; warnings about a full buffer are rate limited so a
// long network outage does not flood the log.
func (b *SharedBuffer) Append(r models.Reading) AppendResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.readings) >= b.capacity {
		b.totalDropped++
		b.warnFullLocked()
		return Full
	}

	b.readings = append(b.readings, r)
	b.totalAppended++
	b.fullWarns = 0
	if len(b.readings) > b.highWaterMark {
		b.highWaterMark = len(b.readings)
	}
	return Appended
}

// warnFullLocked logs a full-buffer warning unless suppressed. Caller
// holds the lock.
func (b *SharedBuffer) warnFullLocked() {
	if b.fullWarns < maxFullWarnings {
		b.fullWarns++
		b.logger.Warn().
			Int("count", len(b.readings)).
			Int("capacity", b.capacity).
			Msg("Reading buffer full, dropping new reading; send task should handle overflow")
		return
	}
	if b.fullWarns == maxFullWarnings {
		b.fullWarns++
		b.logger.Warn().Msg("Buffer full warnings suppressed (network appears to be down)")
	}
}

// Drain atomically copies out all buffered readings in insertion order
// and resets the buffer to empty.
func (b *SharedBuffer) Drain() ([]models.Reading, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.readings)
	if n == 0 {
		return nil, 0
	}
	out := make([]models.Reading, n)
	copy(out, b.readings)
	b.readings = b.readings[:0]
	return out, n
}

// Count returns the current number of buffered readings.
func (b *SharedBuffer) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.readings)
}

// Capacity returns the fixed buffer capacity.
func (b *SharedBuffer) Capacity() int {
	return b.capacity
}

// Stats returns a copy of the usage statistics.
func (b *SharedBuffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		TotalAppended: b.totalAppended,
		TotalDropped:  b.totalDropped,
		HighWaterMark: b.highWaterMark,
	}
}

func (b *SharedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fmt.Sprintf("Buffer[%d/%d, dropped: %d]",
		len(b.readings), b.capacity, b.totalDropped)
}
