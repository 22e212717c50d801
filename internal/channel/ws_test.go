package channel

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kden/esp32-sunlight-sensor-sub000/internal/models"
)

// wsCollector is a fake streaming collector: it upgrades the
// connection, records incoming batch envelopes, and answers each with
// an ack carrying ackCode.
type wsCollector struct {
	ackCode int
	token   string

	batches []models.BatchMessage
}

func (c *wsCollector) handler(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		if c.token != "" && r.Header.Get("Authorization") != "Bearer "+c.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for {
			var msg models.Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type == models.MessageTypeBatch {
				var batch models.BatchMessage
				if err := msg.UnmarshalPayload(&batch); err != nil {
					t.Errorf("Bad batch payload: %v", err)
					return
				}
				c.batches = append(c.batches, batch)
			}
			ack, _ := models.NewMessage(models.MessageTypeAck, models.AckMessage{
				Code:   c.ackCode,
				Status: "ok",
			})
			if err := conn.WriteJSON(ack); err != nil {
				return
			}
		}
	}
}

// newWSFixture starts a fake collector and a channel pointed at it.
func newWSFixture(t *testing.T, collector *wsCollector, token string) (*WSChannel, func()) {
	t.Helper()
	srv := httptest.NewServer(collector.handler(t))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ch := NewWSChannel(url, token, 5*time.Second, zerolog.Nop())
	return ch, func() {
		ch.Close()
		srv.Close()
	}
}

func TestWSChannel_SendTelemetry(t *testing.T) {
	collector := &wsCollector{ackCode: 200, token: "stream-token"}
	ch, done := newWSFixture(t, collector, "stream-token")
	defer done()

	if got := ch.SendTelemetry(testRecords(3)); got != StatusOK {
		t.Fatalf("SendTelemetry = %v, want StatusOK", got)
	}
	if len(collector.batches) != 1 {
		t.Fatalf("Collector received %d batches, want 1", len(collector.batches))
	}
	batch := collector.batches[0]
	if batch.Count != 3 || len(batch.Records) != 3 {
		t.Errorf("Batch = count %d / %d records, want 3/3", batch.Count, len(batch.Records))
	}
	if batch.Records[0].SensorID != "sub000" {
		t.Errorf("SensorID = %q, want sub000", batch.Records[0].SensorID)
	}
}

func TestWSChannel_ReusesConnection(t *testing.T) {
	collector := &wsCollector{ackCode: 200}
	ch, done := newWSFixture(t, collector, "")
	defer done()

	for i := 0; i < 3; i++ {
		if got := ch.SendTelemetry(testRecords(1)); got != StatusOK {
			t.Fatalf("Send #%d = %v, want StatusOK", i, got)
		}
	}
	if len(collector.batches) != 3 {
		t.Errorf("Collector received %d batches, want 3", len(collector.batches))
	}
}

func TestWSChannel_AckRejection(t *testing.T) {
	collector := &wsCollector{ackCode: 401}
	ch, done := newWSFixture(t, collector, "")
	defer done()

	if got := ch.SendTelemetry(testRecords(1)); got != StatusAuthError {
		t.Errorf("SendTelemetry = %v, want StatusAuthError from ack code 401", got)
	}
}

func TestWSChannel_HandshakeRejected(t *testing.T) {
	collector := &wsCollector{ackCode: 200, token: "right"}
	ch, done := newWSFixture(t, collector, "wrong")
	defer done()

	if got := ch.SendTelemetry(testRecords(1)); got != StatusTransportError {
		t.Errorf("SendTelemetry = %v, want StatusTransportError on failed handshake", got)
	}
}

func TestWSChannel_DialFailure(t *testing.T) {
	ch := NewWSChannel("ws://127.0.0.1:1/ws", "t", time.Second, zerolog.Nop())
	if got := ch.SendTelemetry(testRecords(1)); got != StatusTransportError {
		t.Errorf("SendTelemetry = %v, want StatusTransportError", got)
	}
}

func TestWSChannel_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var msg models.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		errMsg, _ := models.NewMessage(models.MessageTypeError, models.ErrorMessage{
			Code:    "ingest_overloaded",
			Message: "try later",
		})
		conn.WriteJSON(errMsg)
	}))
	defer srv.Close()

	ch := NewWSChannel("ws"+strings.TrimPrefix(srv.URL, "http"), "", 5*time.Second, zerolog.Nop())
	defer ch.Close()

	got := ch.SendTelemetry(testRecords(1))
	if got != StatusServerError {
		t.Errorf("SendTelemetry = %v, want StatusServerError from error envelope", got)
	}
	if !got.Retryable() {
		t.Error("Server error envelope must be retryable")
	}
}
