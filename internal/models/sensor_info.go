package models

import "time"

// SensorInfo contains the identity of this sensor unit.
type SensorInfo struct {
	ID        string    `json:"id"`
	SetID     string    `json:"set_id"`
	Version   string    `json:"version"`
	StartTime time.Time `json:"start_time"`
}

// NewSensorInfo creates a SensorInfo with the current time as start time.
func NewSensorInfo(id, setID, version string) *SensorInfo {
	return &SensorInfo{
		ID:        id,
		SetID:     setID,
		Version:   version,
		StartTime: time.Now(),
	}
}

// Uptime returns the duration since the sensor started.
func (s *SensorInfo) Uptime() time.Duration {
	return time.Since(s.StartTime)
}
