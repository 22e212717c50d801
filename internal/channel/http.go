package channel

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/kden/esp32-sunlight-sensor-sub000/internal/models"
)

// HTTPChannel posts JSON record arrays to the collector's ingest API.
type HTTPChannel struct {
	client *resty.Client
	url    string
	logger zerolog.Logger
}

// Compile-time interface check
var _ Channel = (*HTTPChannel)(nil)

// NewHTTPChannel creates a channel posting to url with bearer auth.
// Retries are owned by the delivery engine's retry policy, not the
// HTTP client.
func NewHTTPChannel(url, authToken string, timeout time.Duration, logger zerolog.Logger) *HTTPChannel {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetAuthToken(authToken)

	return &HTTPChannel{
		client: client,
		url:    url,
		logger: logger,
	}
}

// SendTelemetry posts one chunk of telemetry records.
func (c *HTTPChannel) SendTelemetry(records []models.TelemetryRecord) Status {
	return c.post(records, len(records))
}

// SendStatus posts one status record. The ingest API takes arrays, so
// a single record still travels as a one-element array.
func (c *HTTPChannel) SendStatus(record models.StatusRecord) Status {
	return c.post([]models.StatusRecord{record}, 1)
}

func (c *HTTPChannel) post(body interface{}, count int) Status {
	resp, err := c.client.R().
		SetBody(body).
		Post(c.url)
	if err != nil {
		c.logger.Error().Err(err).Int("records", count).Msg("HTTP POST failed")
		return StatusTransportError
	}

	status := Classify(resp.StatusCode())
	if status == StatusOK {
		c.logger.Info().
			Int("code", resp.StatusCode()).
			Int("records", count).
			Msg("HTTP POST completed")
	} else {
		c.logger.Error().
			Int("code", resp.StatusCode()).
			Str("class", status.String()).
			Int("records", count).
			Msg("HTTP POST rejected")
	}
	return status
}
