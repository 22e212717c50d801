package network

// MockConnectivity is a test double with settable link behavior.
type MockConnectivity struct {
	// Connected is the current link state.
	Connected bool
	// ConnectSucceeds controls what Connect does when the link is down.
	ConnectSucceeds bool

	ConnectCalls    int
	DisconnectCalls int
}

// Compile-time interface check
var _ Connectivity = (*MockConnectivity)(nil)

func (m *MockConnectivity) Connect() bool {
	m.ConnectCalls++
	if m.ConnectSucceeds {
		m.Connected = true
	}
	return m.Connected
}

func (m *MockConnectivity) IsConnected() bool { return m.Connected }

func (m *MockConnectivity) Disconnect() {
	m.DisconnectCalls++
	m.Connected = false
}
