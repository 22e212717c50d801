package sensor

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// LightSensor defines the interface for reading illuminance.
type LightSensor interface {
	// Read performs a single reading and returns illuminance in lux.
	Read() (float64, error)

	// Close cleans up sensor resources.
	Close() error
}

// maxPlausibleLux bounds a sane BH1750 reading; the part saturates at
// about 65k lux in its default mode.
const maxPlausibleLux = 65535.0

// validateReading checks a lux value for sanity before it enters the
// pipeline.
func validateReading(lux float64) error {
	if math.IsNaN(lux) || lux < 0 {
		return fmt.Errorf("lux %.2f is not a valid illuminance", lux)
	}
	if lux > maxPlausibleLux {
		return fmt.Errorf("lux %.2f exceeds sensor range of %.0f", lux, maxPlausibleLux)
	}
	return nil
}

// SimulatedLight produces a daylight-shaped illuminance curve with
// noise. It stands in for the BH1750 on hardware-less deployments and
// in development.
type SimulatedLight struct {
	peak float64
	rng  *rand.Rand
}

// Compile-time interface check
var _ LightSensor = (*SimulatedLight)(nil)

// NewSimulatedLight creates a simulated sensor peaking at peak lux
// around local noon.
func NewSimulatedLight(peak float64) *SimulatedLight {
	if peak <= 0 {
		peak = 20000
	}
	return &SimulatedLight{
		peak: peak,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Read returns a lux value following a half-sine day curve: zero
// before 06:00 and after 18:00, peaking at noon, with ±5% noise.
func (s *SimulatedLight) Read() (float64, error) {
	hour := float64(time.Now().Hour()) + float64(time.Now().Minute())/60
	if hour < 6 || hour > 18 {
		return s.rng.Float64(), nil // moonlight
	}
	base := s.peak * math.Sin((hour-6)/12*math.Pi)
	noise := 1 + (s.rng.Float64()-0.5)*0.1
	lux := base * noise
	if err := validateReading(lux); err != nil {
		return 0, err
	}
	return lux, nil
}

// Close is a no-op for the simulated sensor.
func (s *SimulatedLight) Close() error { return nil }
