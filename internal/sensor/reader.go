package sensor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kden/esp32-sunlight-sensor-sub000/internal/buffer"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/models"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/timesync"
)

// Reader is the producer task: it samples the light sensor on a fixed
// period and appends readings into the shared buffer. It never touches
// the network and never waits on network state.
type Reader struct {
	sensor   LightSensor
	buf      *buffer.SharedBuffer
	clock    *timesync.Authority
	interval time.Duration
	logger   zerolog.Logger
}

// NewReader creates a producer task sampling every interval.
func NewReader(sensor LightSensor, buf *buffer.SharedBuffer, clock *timesync.Authority, interval time.Duration, logger zerolog.Logger) *Reader {
	return &Reader{
		sensor:   sensor,
		buf:      buf,
		clock:    clock,
		interval: interval,
		logger:   logger,
	}
}

// Start begins periodic sampling. Blocks until the context is
// cancelled.
func (r *Reader) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.sampleOnce()
		}
	}
}

// ReadOnce performs a single sample with the authority's corrected
// clock as the timestamp.
func (r *Reader) ReadOnce() (models.Reading, error) {
	lux, err := r.sensor.Read()
	if err != nil {
		return models.Reading{}, err
	}
	return models.NewReading(r.clock.Now(), lux), nil
}

// sampleOnce reads the sensor and appends into the shared buffer. A
// full buffer is the buffer's own rate-limited warning; a sensor error
// skips this sample.
func (r *Reader) sampleOnce() {
	reading, err := r.ReadOnce()
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to read from sensor")
		return
	}
	if r.buf.Append(reading) == buffer.Appended {
		r.logger.Debug().
			Float64("lux", reading.Lux).
			Int("buffered", r.buf.Count()).
			Msg("Reading saved")
	}
}

// Close stops the reader and cleans up sensor resources.
func (r *Reader) Close() error {
	return r.sensor.Close()
}
