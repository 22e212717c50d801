// Package timesync is the time-validity authority. A daemon cannot
// assume permission to step the system clock, so the authority keeps a
// correction offset obtained from NTP and hands out corrected time.
package timesync

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kden/esp32-sunlight-sensor-sub000/internal/models"
)

// Provider is the raw time-synchronization collaborator. Query returns
// the offset to add to the local clock to obtain true time.
type Provider interface {
	Query() (time.Duration, error)
}

// Authority tracks whether the device clock is trustworthy and
// refreshes it through the provider. Once validity is achieved it
// holds for the process lifetime unless the clock later turns
// implausible again.
type Authority struct {
	provider    Provider
	maxAttempts int
	retryDelay  time.Duration
	logger      zerolog.Logger

	// wallClock and sleep are swappable for tests.
	wallClock func() time.Time
	sleep     func(time.Duration)

	mu       sync.Mutex
	offset   time.Duration
	valid    bool
	lastSync time.Time
}

// NewAuthority creates a time authority over the given provider with a
// bounded retry budget per Sync call.
func NewAuthority(provider Provider, maxAttempts int, retryDelay time.Duration, logger zerolog.Logger) *Authority {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	a := &Authority{
		provider:    provider,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		logger:      logger,
		wallClock:   time.Now,
		sleep:       time.Sleep,
	}
	// A host clock that is already plausible counts as valid from the
	// start; readings taken before the first sync then carry usable
	// timestamps.
	if !a.wallClock().Before(models.MinValidEpoch) {
		a.valid = true
	}
	return a
}

// Now returns the offset-corrected current time.
func (a *Authority) Now() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.wallClock().Add(a.offset)
}

// IsValid reports whether the clock is plausible: at or after the
// minimum valid epoch.
func (a *Authority) IsValid() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.wallClock().Add(a.offset).Before(models.MinValidEpoch) {
		// Clock went implausible again; validity is revoked.
		a.valid = false
	}
	return a.valid
}

// NeedsResync reports whether a sync should run this cycle: the clock
// is invalid or the regular resynchronization interval has elapsed.
func (a *Authority) NeedsResync(now time.Time, interval time.Duration) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.valid {
		return true
	}
	return now.Sub(a.lastSync) >= interval
}

// Sync queries the provider with bounded retries and reports whether a
// plausible time was obtained.
func (a *Authority) Sync() bool {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		offset, err := a.provider.Query()
		if err != nil {
			a.logger.Warn().
				Int("attempt", attempt).
				Int("max_attempts", a.maxAttempts).
				Err(err).
				Msg("Time sync query failed")
			if attempt < a.maxAttempts {
				a.sleep(a.retryDelay)
			}
			continue
		}

		a.mu.Lock()
		a.offset = offset
		corrected := a.wallClock().Add(a.offset)
		a.valid = !corrected.Before(models.MinValidEpoch)
		a.lastSync = corrected
		valid := a.valid
		a.mu.Unlock()

		if valid {
			a.logger.Info().
				Dur("offset", offset).
				Time("time", corrected).
				Msg("Time synchronized")
			return true
		}
		a.logger.Warn().
			Time("time", corrected).
			Msg("Time sync produced implausible time")
	}
	return false
}
