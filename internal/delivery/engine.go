// Package delivery runs the send cycle: connect, sync time if needed,
// drain and transmit stored and current readings, handle partial
// failure, disconnect. A reading is never lost and never duplicated
// across a full cycle: the overflow store is cleared only after
// confirmed delivery, and a failed current send moves the drained
// readings into the overflow store before the cycle ends.
package delivery

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/kden/esp32-sunlight-sensor-sub000/internal/buffer"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/channel"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/models"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/network"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/storage"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/timesync"
)

// Outcome is the result of one send cycle. It is produced once per
// cycle and never retried beyond the cycle's own bounded attempts.
type Outcome int

const (
	Success Outcome = iota
	NoNetwork
	SendFailed
	NoData
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case NoNetwork:
		return "no_network"
	case SendFailed:
		return "send_failed"
	case NoData:
		return "no_data"
	default:
		return "unknown"
	}
}

// Config holds the engine's fixed cycle parameters.
type Config struct {
	// ChunkSize bounds records per transmission to bound peak memory.
	ChunkSize int
	// MaxLoad bounds how many stored readings one cycle will load.
	MaxLoad int
	// ResyncInterval is how often the clock is refreshed even while
	// valid.
	ResyncInterval time.Duration
	// LowPower tears the network down at the end of every cycle.
	LowPower bool
}

// Engine executes send cycles. It runs entirely inside the sender
// task; all its collaborator calls are blocking.
type Engine struct {
	buf   *buffer.SharedBuffer
	store *storage.OverflowStore
	clock *timesync.Authority
	link  network.Connectivity
	ch    channel.Channel
	info  *models.SensorInfo
	cfg   Config
	retry RetryPolicy

	logger zerolog.Logger
}

// NewEngine wires a delivery engine from its collaborators.
func NewEngine(
	buf *buffer.SharedBuffer,
	store *storage.OverflowStore,
	clock *timesync.Authority,
	link network.Connectivity,
	ch channel.Channel,
	info *models.SensorInfo,
	cfg Config,
	retry RetryPolicy,
	logger zerolog.Logger,
) *Engine {
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 50
	}
	if cfg.MaxLoad < 1 {
		cfg.MaxLoad = 1000
	}
	return &Engine{
		buf:    buf,
		store:  store,
		clock:  clock,
		link:   link,
		ch:     ch,
		info:   info,
		cfg:    cfg,
		retry:  retry.normalize(),
		logger: logger,
	}
}

// RunSendCycle executes one full cycle and returns its outcome.
func (e *Engine) RunSendCycle(now time.Time) Outcome {
	storedCount, err := e.store.Count()
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to count stored readings")
		storedCount = 0
	}
	if e.buf.Count() == 0 && storedCount == 0 {
		e.logger.Info().Msg("No readings to send")
		return NoData
	}

	if !e.link.IsConnected() {
		e.logger.Info().Msg("Connecting to network")
		if !e.link.Connect() {
			e.logger.Error().Msg("Failed to connect to network, deferring current readings")
			e.deferCurrent()
			return NoNetwork
		}
	}

	if e.clock.NeedsResync(now, e.cfg.ResyncInterval) {
		e.logger.Info().Msg("Syncing time")
		if !e.clock.Sync() {
			// Not fatal: the cycle continues with best-available time
			// and the plausibility filter keeps garbage off the wire.
			e.logger.Warn().Msg("Time sync failed, continuing with best-available time")
		}
	}

	allSent := true

	if storedCount > 0 {
		if !e.sendStored(now) {
			allSent = false
		}
	}

	if !e.sendCurrent(now) {
		allSent = false
	}

	if e.cfg.LowPower {
		e.logger.Info().Msg("Disconnecting network for power saving")
		e.link.Disconnect()
	}

	if allSent {
		return Success
	}
	return SendFailed
}

// deferCurrent moves all buffered readings into the overflow store
// when no network is available.
func (e *Engine) deferCurrent() {
	readings, n := e.buf.Drain()
	if n == 0 {
		return
	}
	e.logger.Info().Int("readings", n).Msg("Saving readings to overflow store")
	if err := e.store.SaveBatch(readings); err != nil {
		e.logger.Error().Err(err).Int("readings", n).
			Msg("Failed to save readings durably, requeueing in volatile memory")
		e.requeue(readings)
	}
}

// sendStored loads overflow batches and delivers them, clearing the
// store only after every record is confirmed. On failure the store is
// left untouched.
func (e *Engine) sendStored(now time.Time) bool {
	loaded, n, err := e.store.LoadAll(e.cfg.MaxLoad)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to load stored readings")
		return false
	}
	if n == 0 {
		return true
	}

	e.logger.Info().Int("readings", n).Msg("Sending stored readings")
	if !e.deliver(loaded, now) {
		e.logger.Error().Msg("Failed to send stored readings")
		return false
	}

	if err := e.store.Clear(); err != nil {
		// Delivery succeeded but the store still holds the data; the
		// next cycle re-sends it (at-least-once, never lost).
		e.logger.Error().Err(err).Msg("Failed to clear overflow store after send")
		return false
	}
	e.logger.Info().Int("readings", n).Msg("Stored readings sent and cleared")
	return true
}

// sendCurrent drains the shared buffer and delivers the readings,
// deferring them to the overflow store on failure.
func (e *Engine) sendCurrent(now time.Time) bool {
	readings, n := e.buf.Drain()
	if n == 0 {
		return true
	}

	e.logger.Info().Int("readings", n).Msg("Sending new readings")
	if e.deliver(readings, now) {
		return true
	}

	e.logger.Error().Int("readings", n).Msg("Failed to send new readings, deferring to overflow store")
	if err := e.store.SaveBatch(readings); err != nil {
		e.logger.Error().Err(err).Int("readings", n).
			Msg("Failed to save readings durably, requeueing in volatile memory")
		e.requeue(readings)
	}
	return false
}

// requeue puts readings back into the shared buffer after a durable
// save failed, so they survive until the next cycle (at risk only if
// power is lost first).
func (e *Engine) requeue(readings []models.Reading) {
	for _, r := range readings {
		if e.buf.Append(r) == buffer.Full {
			e.logger.Error().Msg("Buffer full while requeueing, dropping reading")
		}
	}
}

// deliver filters implausible timestamps out of readings and sends the
// remainder in chunks under the retry policy. Delivering zero valid
// readings counts as success.
func (e *Engine) deliver(readings []models.Reading, now time.Time) bool {
	records := e.filter(readings, now)
	if len(records) == 0 {
		e.logger.Warn().Msg("No valid readings to send after timestamp filtering")
		return true
	}

	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		e.logger.Info().
			Int("attempt", attempt).
			Int("max_attempts", e.retry.MaxAttempts).
			Int("records", len(records)).
			Msg("Sensor data send attempt")

		status := e.sendChunks(records)
		if status == channel.StatusOK {
			return true
		}

		e.logger.Error().
			Int("attempt", attempt).
			Str("class", status.String()).
			Msg("Sensor data send attempt failed")

		if !status.Retryable() {
			e.logger.Error().Msg("Non-retryable error, aborting retry attempts")
			return false
		}
		if attempt < e.retry.MaxAttempts {
			e.retry.Sleep(e.retry.Delay)
		}
	}

	e.logger.Error().
		Int("attempts", e.retry.MaxAttempts).
		Msg("Sensor data send failed after all attempts")
	return false
}

// filter drops readings whose timestamps are implausible at now.
func (e *Engine) filter(readings []models.Reading, now time.Time) []models.TelemetryRecord {
	records := make([]models.TelemetryRecord, 0, len(readings))
	for _, r := range readings {
		if !r.PlausibleAt(now) {
			e.logger.Warn().
				Time("timestamp", r.Timestamp).
				Msg("Skipping reading with implausible timestamp")
			continue
		}
		records = append(records, r.ToRecord(e.info))
	}
	if len(records) < len(readings) {
		e.logger.Info().
			Int("kept", len(records)).
			Int("total", len(readings)).
			Msg("Filtered readings")
	}
	return records
}

// sendChunks transmits records in fixed-size chunks, stopping at the
// first failing chunk.
func (e *Engine) sendChunks(records []models.TelemetryRecord) channel.Status {
	for start := 0; start < len(records); start += e.cfg.ChunkSize {
		end := start + e.cfg.ChunkSize
		if end > len(records) {
			end = len(records)
		}
		e.logger.Debug().
			Int("from", start+1).
			Int("to", end).
			Int("total", len(records)).
			Msg("Sending chunk")

		if status := e.ch.SendTelemetry(records[start:end]); status != channel.StatusOK {
			return status
		}
	}
	return channel.StatusOK
}
