package channel

import (
	"sync"

	"github.com/kden/esp32-sunlight-sensor-sub000/internal/models"
)

// MockChannel is a scripted test double. Each send consumes the next
// status from Script; when the script is exhausted, sends return
// StatusOK.
type MockChannel struct {
	mu sync.Mutex

	// Script is consumed one entry per send.
	Script []Status

	// TelemetryCalls records every telemetry chunk, in call order.
	TelemetryCalls [][]models.TelemetryRecord
	// StatusCalls records every status record sent.
	StatusCalls []models.StatusRecord
}

// Compile-time interface check
var _ Channel = (*MockChannel)(nil)

// NewMockChannel creates a mock that answers sends with the given
// scripted statuses.
func NewMockChannel(script ...Status) *MockChannel {
	return &MockChannel{Script: script}
}

func (m *MockChannel) nextStatus() Status {
	if len(m.Script) == 0 {
		return StatusOK
	}
	s := m.Script[0]
	m.Script = m.Script[1:]
	return s
}

func (m *MockChannel) SendTelemetry(records []models.TelemetryRecord) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]models.TelemetryRecord, len(records))
	copy(cp, records)
	m.TelemetryCalls = append(m.TelemetryCalls, cp)
	return m.nextStatus()
}

func (m *MockChannel) SendStatus(record models.StatusRecord) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusCalls = append(m.StatusCalls, record)
	return m.nextStatus()
}

// TelemetryCallCount returns how many telemetry sends happened.
func (m *MockChannel) TelemetryCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.TelemetryCalls)
}

// SentRecords returns all telemetry records across every call.
func (m *MockChannel) SentRecords() []models.TelemetryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.TelemetryRecord
	for _, call := range m.TelemetryCalls {
		all = append(all, call...)
	}
	return all
}
