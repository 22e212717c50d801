package delivery

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kden/esp32-sunlight-sensor-sub000/internal/channel"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/models"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/power"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/timesync"
)

// StatusReporter sends status/heartbeat records through the delivery
// channel: a boot message after startup and battery reports on demand.
type StatusReporter struct {
	ch         channel.Channel
	clock      *timesync.Authority
	info       *models.SensorInfo
	wakeReason power.WakeReason
	logger     zerolog.Logger
}

// NewStatusReporter creates a reporter for the given sensor identity.
// wakeReason decorates status text so the collector can tell reboots
// from timer wakes.
func NewStatusReporter(ch channel.Channel, clock *timesync.Authority, info *models.SensorInfo, wakeReason power.WakeReason, logger zerolog.Logger) *StatusReporter {
	return &StatusReporter{
		ch:         ch,
		clock:      clock,
		info:       info,
		wakeReason: wakeReason,
		logger:     logger,
	}
}

// decorate prefixes status text with the boot/wake reason.
func (s *StatusReporter) decorate(text string) string {
	switch s.wakeReason {
	case power.TimerWake:
		return "[wake] " + text
	case power.ColdBoot:
		return "[boot] " + text
	default:
		return text
	}
}

// Report sends one status record and reports whether the collector
// accepted it. Status failures are logged, never retried; the next
// heartbeat supersedes a lost one.
func (s *StatusReporter) Report(text string) bool {
	record := models.StatusRecord{
		SensorID:     s.info.ID,
		Timestamp:    models.WireTime(s.clock.Now()),
		SensorSetID:  s.info.SetID,
		Status:       s.decorate(text),
		BuildVersion: s.info.Version,
	}

	status := s.ch.SendStatus(record)
	if status != channel.StatusOK {
		s.logger.Error().
			Str("class", status.String()).
			Str("status", record.Status).
			Msg("Failed to send status update")
		return false
	}
	s.logger.Info().Str("status", record.Status).Msg("Sent status update")
	return true
}

// ReportBattery sends a battery status record if a battery is present.
func (s *StatusReporter) ReportBattery(battery power.Battery) bool {
	if !battery.Present() {
		return false
	}
	text := fmt.Sprintf("battery %.2fV %d%%", battery.Voltage(), battery.Percent())
	return s.Report(text)
}
