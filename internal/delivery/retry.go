package delivery

import "time"

// RetryPolicy bounds the engine's retry loops: a fixed attempt count
// with a fixed inter-attempt delay. Sleep is swappable so tests run on
// a simulated clock instead of wall-clock waits.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Sleep       func(time.Duration)
}

// DefaultRetryPolicy is 3 attempts, 5 seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       5 * time.Second,
		Sleep:       time.Sleep,
	}
}

// normalize fills in zero values so a partially built policy still
// terminates.
func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Sleep == nil {
		p.Sleep = time.Sleep
	}
	return p
}
