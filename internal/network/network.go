// Package network tracks whether the wireless link to the collector is
// usable. The daemon does not manage the interface itself; it probes
// reachability of the collector host, which is what the delivery
// engine actually cares about.
package network

import (
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Connectivity is the link collaborator the delivery engine consumes.
type Connectivity interface {
	// Connect makes a bounded attempt to bring the link up and
	// reports whether it succeeded.
	Connect() bool
	// IsConnected reports the last known link state.
	IsConnected() bool
	// Disconnect releases the link, used in low power mode.
	Disconnect()
}

// Manager probes the collector endpoint over TCP with a bounded number
// of attempts and fixed spacing between them.
type Manager struct {
	addr     string
	attempts int
	delay    time.Duration
	timeout  time.Duration
	logger   zerolog.Logger

	mu        sync.Mutex
	connected bool

	// dial and sleep are swappable for tests.
	dial  func(addr string, timeout time.Duration) error
	sleep func(time.Duration)
}

// Compile-time interface check
var _ Connectivity = (*Manager)(nil)

// NewManager creates a link manager probing the host of serverURL.
func NewManager(serverURL string, attempts int, delay time.Duration, logger zerolog.Logger) (*Manager, error) {
	addr, err := probeAddr(serverURL)
	if err != nil {
		return nil, err
	}
	if attempts < 1 {
		attempts = 1
	}
	return &Manager{
		addr:     addr,
		attempts: attempts,
		delay:    delay,
		timeout:  5 * time.Second,
		logger:   logger,
		dial:     dialProbe,
		sleep:    time.Sleep,
	}, nil
}

// probeAddr derives host:port to probe from the collector URL.
func probeAddr(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "http", "ws":
			port = "80"
		default:
			port = "443"
		}
	}
	return net.JoinHostPort(host, port), nil
}

func dialProbe(addr string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Connect probes until the collector is reachable or attempts are
// exhausted.
func (m *Manager) Connect() bool {
	for attempt := 1; attempt <= m.attempts; attempt++ {
		err := m.dial(m.addr, m.timeout)
		if err == nil {
			m.setConnected(true)
			m.logger.Info().Str("addr", m.addr).Int("attempt", attempt).Msg("Network link up")
			return true
		}
		m.logger.Debug().
			Str("addr", m.addr).
			Int("attempt", attempt).
			Int("max_attempts", m.attempts).
			Err(err).
			Msg("Network probe failed")
		if attempt < m.attempts {
			m.sleep(m.delay)
		}
	}
	m.setConnected(false)
	m.logger.Error().Str("addr", m.addr).Msg("Failed to reach collector")
	return false
}

// IsConnected reports the last known link state.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Disconnect marks the link released. There is no socket to tear down;
// the channel owns its own connections.
func (m *Manager) Disconnect() {
	m.setConnected(false)
	m.logger.Info().Msg("Network link released")
}

func (m *Manager) setConnected(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = v
}
