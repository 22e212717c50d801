package channel

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kden/esp32-sunlight-sensor-sub000/internal/models"
)

// WSChannel streams record batches over a WebSocket to the collector.
// Each batch is one envelope message; the collector answers with an
// ack carrying an HTTP-style result code, classified through the same
// table as the HTTP transport.
type WSChannel struct {
	url        string
	authToken  string
	timeout    time.Duration
	ackTimeout time.Duration
	logger     zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// Compile-time interface check
var _ Channel = (*WSChannel)(nil)

// NewWSChannel creates a streaming channel for ws:// or wss:// URLs.
// The connection is dialed lazily on the first send and reused until
// it fails or Close is called.
func NewWSChannel(url, authToken string, timeout time.Duration, logger zerolog.Logger) *WSChannel {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &WSChannel{
		url:        url,
		authToken:  authToken,
		timeout:    timeout,
		ackTimeout: timeout,
		logger:     logger,
	}
}

// SendTelemetry sends one chunk of telemetry records as a batch
// envelope and waits for the collector's ack.
func (c *WSChannel) SendTelemetry(records []models.TelemetryRecord) Status {
	msg, err := models.NewMessage(models.MessageTypeBatch, models.BatchMessage{
		Records: records,
		Count:   len(records),
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build batch message")
		return StatusClientError
	}
	return c.sendAndAwaitAck(msg, len(records))
}

// SendStatus sends one status record as a status envelope.
func (c *WSChannel) SendStatus(record models.StatusRecord) Status {
	msg, err := models.NewMessage(models.MessageTypeStatus, models.StatusMessage{
		Record: record,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build status message")
		return StatusClientError
	}
	return c.sendAndAwaitAck(msg, 1)
}

func (c *WSChannel) sendAndAwaitAck(msg *models.Message, count int) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnLocked(); err != nil {
		c.logger.Error().Err(err).Str("url", c.url).Msg("WebSocket dial failed")
		return StatusTransportError
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Error().Err(err).Msg("WebSocket write failed")
		c.dropConnLocked()
		return StatusTransportError
	}

	ack, err := c.readAckLocked()
	if err != nil {
		c.logger.Error().Err(err).Msg("WebSocket ack read failed")
		c.dropConnLocked()
		return StatusTransportError
	}

	status := Classify(ack.Code)
	if status == StatusOK {
		c.logger.Info().Int("records", count).Msg("WebSocket batch acknowledged")
	} else {
		c.logger.Error().
			Int("code", ack.Code).
			Str("class", status.String()).
			Str("status", ack.Status).
			Msg("WebSocket batch rejected")
	}
	return status
}

// ensureConnLocked dials the collector if no connection is open.
// Caller holds the lock.
func (c *WSChannel) ensureConnLocked() error {
	if c.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.timeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.authToken)

	conn, resp, err := dialer.Dial(c.url, header)
	if err != nil {
		return err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c.conn = conn
	c.logger.Info().Str("url", c.url).Msg("WebSocket connected")
	return nil
}

// readAckLocked reads messages until an ack or error envelope arrives.
// Caller holds the lock.
func (c *WSChannel) readAckLocked() (*models.AckMessage, error) {
	deadline := time.Now().Add(c.ackTimeout)
	c.conn.SetReadDeadline(deadline)

	for {
		var msg models.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return nil, err
		}
		switch msg.Type {
		case models.MessageTypeAck:
			var ack models.AckMessage
			if err := msg.UnmarshalPayload(&ack); err != nil {
				return nil, err
			}
			return &ack, nil
		case models.MessageTypeError:
			var errMsg models.ErrorMessage
			if err := msg.UnmarshalPayload(&errMsg); err == nil {
				c.logger.Warn().
					Str("code", errMsg.Code).
					Str("msg", errMsg.Message).
					Msg("Server error message")
			}
			// A server error envelope without an ack still ends the
			// wait; treat it as a server-side failure.
			return &models.AckMessage{Code: 500, Status: errMsg.Message}, nil
		default:
			c.logger.Debug().Str("type", string(msg.Type)).Msg("Ignoring message while awaiting ack")
		}
	}
}

func (c *WSChannel) dropConnLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close shuts the streaming connection down cleanly.
func (c *WSChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	err := c.conn.Close()
	c.conn = nil
	c.logger.Info().Msg("WebSocket closed")
	return err
}
