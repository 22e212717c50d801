package timesync

import (
	"fmt"

	"time"

	"github.com/beevik/ntp"
)

// NTPProvider queries an NTP pool server for the local clock offset.
type NTPProvider struct {
	server  string
	timeout time.Duration
}

// Compile-time interface check
var _ Provider = (*NTPProvider)(nil)

// NewNTPProvider creates a provider querying the given server
// (e.g. "pool.ntp.org").
func NewNTPProvider(server string) *NTPProvider {
	return &NTPProvider{
		server:  server,
		timeout: 10 * time.Second,
	}
}

// Query performs one NTP exchange and returns the clock offset.
func (p *NTPProvider) Query() (time.Duration, error) {
	resp, err := ntp.QueryWithOptions(p.server, ntp.QueryOptions{
		Timeout: p.timeout,
	})
	if err != nil {
		return 0, fmt.Errorf("ntp query %q: %w", p.server, err)
	}
	if err := resp.Validate(); err != nil {
		return 0, fmt.Errorf("ntp response invalid: %w", err)
	}
	return resp.ClockOffset, nil
}
