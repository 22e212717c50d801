// Package power decides when the unit should deep-sleep for the night
// and classifies how the current boot came about.
package power

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kden/esp32-sunlight-sensor-sub000/internal/storage"
)

// plannedWakeKey holds the unix time the unit intended to wake at, set
// just before sleeping. Its presence on boot distinguishes a timer
// wake from a cold boot.
const plannedWakeKey = "planned_wake"

// wakeTolerance is how far an actual wake may drift from the planned
// wake time and still count as the timer firing.
const wakeTolerance = 5 * time.Minute

// Decision is the sleep recommendation for one cycle. It is recomputed
// fresh every cycle and never cached across reboots.
type Decision struct {
	Sleep    bool
	Duration time.Duration
}

// WakeReason classifies how the current boot started.
type WakeReason int

const (
	ColdBoot WakeReason = iota
	TimerWake
	ExternalWake
)

func (r WakeReason) String() string {
	switch r {
	case TimerWake:
		return "timer"
	case ExternalWake:
		return "external"
	default:
		return "cold_boot"
	}
}

// Controller owns the power/sleep scheduling decision.
type Controller struct {
	battery    Battery
	kv         storage.BlobStore
	loc        *time.Location
	nightStart int
	nightEnd   int
	checkCap   time.Duration
	logger     zerolog.Logger
}

// NewController creates a power controller. timezone names the local
// zone the night window is expressed in.
func NewController(battery Battery, kv storage.BlobStore, timezone string, nightStart, nightEnd int, checkCap time.Duration, logger zerolog.Logger) (*Controller, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return &Controller{
		battery:    battery,
		kv:         kv,
		loc:        loc,
		nightStart: nightStart,
		nightEnd:   nightEnd,
		checkCap:   checkCap,
		logger:     logger,
	}, nil
}

// isNight reports whether local time falls inside the night window.
// The window wraps midnight when start > end (e.g. 22:00-05:00).
func (c *Controller) isNight(now time.Time) bool {
	hour := now.In(c.loc).Hour()
	if c.nightStart > c.nightEnd {
		return hour >= c.nightStart || hour < c.nightEnd
	}
	return hour >= c.nightStart && hour < c.nightEnd
}

// minutesUntilWindowEnd returns how many minutes of night remain.
func (c *Controller) minutesUntilWindowEnd(now time.Time) int {
	local := now.In(c.loc)
	hour, min := local.Hour(), local.Minute()
	if hour >= c.nightStart && c.nightStart > c.nightEnd {
		// After the window opened, wake is tomorrow's end hour.
		return (24-hour)*60 - min + c.nightEnd*60
	}
	return c.nightEnd*60 - (hour*60 + min)
}

// ShouldSleep recommends deep sleep only when a battery is present and
// the local time is inside the night window. The duration is capped at
// the re-check interval so the unit periodically wakes to re-evaluate
// conditions such as battery removal.
func (c *Controller) ShouldSleep(now time.Time) Decision {
	if !c.battery.Present() {
		c.logger.Debug().Msg("No battery detected (external power), skipping deep sleep")
		return Decision{}
	}
	if !c.isNight(now) {
		c.logger.Debug().Msg("Not nighttime, skipping deep sleep")
		return Decision{}
	}

	duration := time.Duration(c.minutesUntilWindowEnd(now)) * time.Minute
	if duration > c.checkCap {
		duration = c.checkCap
	}
	if duration <= 0 {
		return Decision{}
	}

	c.logger.Info().
		Dur("duration", duration).
		Msg("Conditions met for deep sleep: battery + nighttime")
	return Decision{Sleep: true, Duration: duration}
}

// PlanWake persists the intended wake time before sleeping, so the
// next boot can recognize a timer wake.
func (c *Controller) PlanWake(wakeAt time.Time) error {
	if err := c.kv.SetCounter(plannedWakeKey, wakeAt.Unix()); err != nil {
		return fmt.Errorf("failed to record planned wake: %w", err)
	}
	return c.kv.Commit()
}

// CheckWakeupReason reports whether this boot followed a timer wake,
// an external signal during planned sleep, or a cold boot. The marker
// is consumed: a second call reports ColdBoot.
func (c *Controller) CheckWakeupReason(now time.Time) WakeReason {
	planned, err := c.kv.GetCounter(plannedWakeKey)
	if errors.Is(err, storage.ErrNotFound) {
		c.logger.Info().Msg("Normal boot (no planned wake marker)")
		return ColdBoot
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to read planned wake marker")
		return ColdBoot
	}

	if eraseErr := c.kv.Erase(plannedWakeKey); eraseErr == nil {
		c.kv.Commit()
	}

	drift := now.Sub(time.Unix(planned, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift <= wakeTolerance {
		c.logger.Info().Msg("Wakeup caused by timer")
		return TimerWake
	}
	c.logger.Info().Dur("drift", drift).Msg("Wakeup outside planned window (external)")
	return ExternalWake
}
