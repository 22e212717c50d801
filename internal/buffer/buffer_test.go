package buffer

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kden/esp32-sunlight-sensor-sub000/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testReading(lux float64) models.Reading {
	return models.NewReading(time.Now(), lux)
}

func TestNew(t *testing.T) {
	buf := New(20, testLogger())

	if buf.Capacity() != 20 {
		t.Errorf("Capacity = %d, want 20", buf.Capacity())
	}
	if buf.Count() != 0 {
		t.Errorf("Initial count = %d, want 0", buf.Count())
	}
}

func TestBuffer_AppendAndDrain_Order(t *testing.T) {
	buf := New(10, testLogger())

	for i := 0; i < 5; i++ {
		if got := buf.Append(testReading(float64(i))); got != Appended {
			t.Fatalf("Append #%d = %v, want Appended", i, got)
		}
	}

	readings, n := buf.Drain()
	if n != 5 || len(readings) != 5 {
		t.Fatalf("Drain returned %d readings, want 5", n)
	}
	for i, r := range readings {
		if r.Lux != float64(i) {
			t.Errorf("readings[%d].Lux = %v, want %v (insertion order)", i, r.Lux, float64(i))
		}
	}
	if buf.Count() != 0 {
		t.Errorf("Count after drain = %d, want 0", buf.Count())
	}
}

func TestBuffer_DrainEmpty(t *testing.T) {
	buf := New(10, testLogger())

	readings, n := buf.Drain()
	if n != 0 || readings != nil {
		t.Errorf("Drain on empty buffer = (%v, %d), want (nil, 0)", readings, n)
	}
}

func TestBuffer_FullPolicy_RejectsNew(t *testing.T) {
	buf := New(3, testLogger())

	for i := 0; i < 3; i++ {
		buf.Append(testReading(float64(i)))
	}

	// Rejected append leaves the buffer unchanged.
	if got := buf.Append(testReading(99)); got != Full {
		t.Fatalf("Append on full buffer = %v, want Full", got)
	}
	if buf.Count() != 3 {
		t.Errorf("Count after rejected append = %d, want 3", buf.Count())
	}

	readings, _ := buf.Drain()
	for i, r := range readings {
		if r.Lux != float64(i) {
			t.Errorf("readings[%d].Lux = %v, want %v (original content preserved)", i, r.Lux, float64(i))
		}
	}
}

func TestBuffer_FullWarningCounterResets(t *testing.T) {
	buf := New(1, testLogger())
	buf.Append(testReading(1))

	for i := 0; i < 10; i++ {
		buf.Append(testReading(2))
	}
	if buf.fullWarns <= maxFullWarnings {
		t.Errorf("fullWarns = %d, want suppression past %d", buf.fullWarns, maxFullWarnings)
	}

	buf.Drain()
	buf.Append(testReading(3))
	if buf.fullWarns != 0 {
		t.Errorf("fullWarns after successful append = %d, want 0", buf.fullWarns)
	}
}

func TestBuffer_Stats(t *testing.T) {
	buf := New(2, testLogger())
	buf.Append(testReading(1))
	buf.Append(testReading(2))
	buf.Append(testReading(3)) // dropped

	stats := buf.Stats()
	if stats.TotalAppended != 2 {
		t.Errorf("TotalAppended = %d, want 2", stats.TotalAppended)
	}
	if stats.TotalDropped != 1 {
		t.Errorf("TotalDropped = %d, want 1", stats.TotalDropped)
	}
	if stats.HighWaterMark != 2 {
		t.Errorf("HighWaterMark = %d, want 2", stats.HighWaterMark)
	}
}

func TestBuffer_ConcurrentAppendAndDrain(t *testing.T) {
	buf := New(1000, testLogger())

	var wg sync.WaitGroup
	drained := 0
	var drainedMu sync.Mutex

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				buf.Append(testReading(float64(i)))
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			readings, _ := buf.Drain()
			drainedMu.Lock()
			drained += len(readings)
			drainedMu.Unlock()
		}
	}()

	wg.Wait()
	readings, _ := buf.Drain()
	drained += len(readings)

	if drained != 400 {
		t.Errorf("Total drained = %d, want 400 (no reading lost or duplicated)", drained)
	}
}
