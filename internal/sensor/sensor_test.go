package sensor

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kden/esp32-sunlight-sensor-sub000/internal/buffer"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/timesync"
)

// fakeLight returns a fixed lux value or a scripted error.
type fakeLight struct {
	lux float64
	err error
}

func (f *fakeLight) Read() (float64, error) { return f.lux, f.err }
func (f *fakeLight) Close() error           { return nil }

type zeroOffset struct{}

func (zeroOffset) Query() (time.Duration, error) { return 0, nil }

func newTestReader(t *testing.T, light LightSensor, buf *buffer.SharedBuffer) *Reader {
	t.Helper()
	clock := timesync.NewAuthority(zeroOffset{}, 1, 0, zerolog.Nop())
	return NewReader(light, buf, clock, time.Second, zerolog.Nop())
}

func TestValidateReading(t *testing.T) {
	tests := []struct {
		name    string
		lux     float64
		wantErr bool
	}{
		{"zero", 0, false},
		{"typical daylight", 12000, false},
		{"sensor ceiling", 65535, false},
		{"negative", -1, true},
		{"above range", 70000, true},
		{"NaN", math.NaN(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateReading(tt.lux)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateReading(%v) error = %v, wantErr %v", tt.lux, err, tt.wantErr)
			}
		})
	}
}

func TestReadOnce(t *testing.T) {
	buf := buffer.New(10, zerolog.Nop())
	r := newTestReader(t, &fakeLight{lux: 450.5}, buf)

	reading, err := r.ReadOnce()
	if err != nil {
		t.Fatalf("ReadOnce failed: %v", err)
	}
	if reading.Lux != 450.5 {
		t.Errorf("Lux = %v, want 450.5", reading.Lux)
	}
	if !reading.PlausibleAt(time.Now()) {
		t.Errorf("Timestamp %v is not plausible", reading.Timestamp)
	}
}

func TestSampleOnce_AppendsToBuffer(t *testing.T) {
	buf := buffer.New(10, zerolog.Nop())
	r := newTestReader(t, &fakeLight{lux: 100}, buf)

	r.sampleOnce()
	r.sampleOnce()
	if buf.Count() != 2 {
		t.Errorf("Buffer count = %d, want 2", buf.Count())
	}
}

func TestSampleOnce_SkipsOnSensorError(t *testing.T) {
	buf := buffer.New(10, zerolog.Nop())
	r := newTestReader(t, &fakeLight{err: errors.New("i2c timeout")}, buf)

	r.sampleOnce()
	if buf.Count() != 0 {
		t.Errorf("Buffer count = %d, want 0 after sensor error", buf.Count())
	}
}

func TestSimulatedLight_InRange(t *testing.T) {
	s := NewSimulatedLight(20000)
	for i := 0; i < 100; i++ {
		lux, err := s.Read()
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if err := validateReading(lux); err != nil {
			t.Fatalf("Simulated reading out of range: %v", err)
		}
	}
}
