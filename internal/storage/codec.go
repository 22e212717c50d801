package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/kden/esp32-sunlight-sensor-sub000/internal/models"
)

// recordSize is the fixed on-disk size of one reading: int64 unix
// seconds followed by a float64 lux value, little endian. A blob whose
// length is not a multiple of recordSize is corrupt.
const recordSize = 16

// encodeReadings packs readings into a fixed-record-size binary blob.
func encodeReadings(readings []models.Reading) []byte {
	buf := make([]byte, len(readings)*recordSize)
	for i, r := range readings {
		off := i * recordSize
		binary.LittleEndian.PutUint64(buf[off:], uint64(r.Timestamp.Unix()))
		binary.LittleEndian.PutUint64(buf[off+8:], math.Float64bits(r.Lux))
	}
	return buf
}

// decodeReadings unpacks a blob written by encodeReadings.
func decodeReadings(blob []byte) ([]models.Reading, error) {
	if len(blob)%recordSize != 0 {
		return nil, fmt.Errorf("corrupt batch: %d bytes is not a multiple of record size %d",
			len(blob), recordSize)
	}
	n := len(blob) / recordSize
	readings := make([]models.Reading, n)
	for i := 0; i < n; i++ {
		off := i * recordSize
		sec := int64(binary.LittleEndian.Uint64(blob[off:]))
		lux := math.Float64frombits(binary.LittleEndian.Uint64(blob[off+8:]))
		if math.IsNaN(lux) || math.IsInf(lux, 0) {
			return nil, fmt.Errorf("corrupt batch: record %d has invalid lux value", i)
		}
		readings[i] = models.Reading{
			Timestamp: time.Unix(sec, 0).UTC(),
			Lux:       lux,
		}
	}
	return readings, nil
}
