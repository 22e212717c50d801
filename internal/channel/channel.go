// Package channel carries telemetry and status records to the remote
// collector. Two transports exist: an HTTP ingest API and a WebSocket
// streaming endpoint; both classify results into the same fixed status
// classes so the delivery engine can tell retryable from terminal
// failures without knowing the transport.
package channel

import "github.com/kden/esp32-sunlight-sensor-sub000/internal/models"

// Status is the classified outcome of one send.
type Status int

const (
	StatusOK Status = iota
	StatusClientError
	StatusAuthError
	StatusNotFound
	StatusServerError
	StatusTransportError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusClientError:
		return "client_error"
	case StatusAuthError:
		return "auth_error"
	case StatusNotFound:
		return "not_found"
	case StatusServerError:
		return "server_error"
	case StatusTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Retryable reports whether a later attempt could plausibly succeed.
// Bad-argument and authorization failures are terminal: retrying the
// same payload with the same credentials cannot help.
func (s Status) Retryable() bool {
	switch s {
	case StatusClientError, StatusAuthError:
		return false
	default:
		return true
	}
}

// Classify maps an HTTP result code to a status class. The mapping is
// fixed protocol behavior, shared by both transports.
func Classify(code int) Status {
	switch {
	case code >= 200 && code < 300:
		return StatusOK
	case code == 400:
		return StatusClientError
	case code == 401 || code == 403:
		return StatusAuthError
	case code == 404:
		return StatusNotFound
	case code >= 500 && code < 600:
		return StatusServerError
	default:
		return StatusTransportError
	}
}

// Channel delivers records to the collector.
type Channel interface {
	// SendTelemetry delivers one chunk of telemetry records.
	SendTelemetry(records []models.TelemetryRecord) Status

	// SendStatus delivers one status/heartbeat record.
	SendStatus(record models.StatusRecord) Status
}
