package models

import "time"

// wireTimeFormat is the timestamp layout the collector's ingest API
// expects on every record.
const wireTimeFormat = "2006-01-02T15:04:05Z"

// TelemetryRecord is one reading as the collector ingests it.
type TelemetryRecord struct {
	LightIntensity float64 `json:"light_intensity"`
	SensorID       string  `json:"sensor_id"`
	Timestamp      string  `json:"timestamp"`
	SensorSetID    string  `json:"sensor_set_id"`
}

// StatusRecord is a status/heartbeat message for the collector.
type StatusRecord struct {
	SensorID     string `json:"sensor_id"`
	Timestamp    string `json:"timestamp"`
	SensorSetID  string `json:"sensor_set_id"`
	Status       string `json:"status"`
	BuildVersion string `json:"build_version"`
}

// WireTime formats t the way the collector expects (ISO-8601 UTC,
// second precision).
func WireTime(t time.Time) string {
	return t.UTC().Format(wireTimeFormat)
}

// ToRecord converts a reading into its wire form for the given sensor
// identity.
func (r Reading) ToRecord(info *SensorInfo) TelemetryRecord {
	return TelemetryRecord{
		LightIntensity: r.Lux,
		SensorID:       info.ID,
		Timestamp:      WireTime(r.Timestamp),
		SensorSetID:    info.SetID,
	}
}

// ToRecords converts a slice of readings into wire records.
func ToRecords(readings []Reading, info *SensorInfo) []TelemetryRecord {
	records := make([]TelemetryRecord, len(readings))
	for i, r := range readings {
		records[i] = r.ToRecord(info)
	}
	return records
}
