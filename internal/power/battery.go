package power

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Battery reports whether a durable power source is attached. A unit
// on USB power never deep-sleeps; a battery unit must.
type Battery interface {
	Present() bool
	Voltage() float64
	Percent() int
}

// SysfsBattery reads battery state from the kernel power-supply class.
type SysfsBattery struct {
	base string
}

// Compile-time interface check
var _ Battery = (*SysfsBattery)(nil)

// NewSysfsBattery creates a battery reader for the named supply,
// e.g. "BAT0". Missing sysfs entries read as no battery.
func NewSysfsBattery(name string) *SysfsBattery {
	return &SysfsBattery{base: filepath.Join("/sys/class/power_supply", name)}
}

func (b *SysfsBattery) readAttr(attr string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(b.base, attr))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func (b *SysfsBattery) Present() bool {
	v, ok := b.readAttr("present")
	return ok && v == "1"
}

func (b *SysfsBattery) Voltage() float64 {
	v, ok := b.readAttr("voltage_now")
	if !ok {
		return 0
	}
	microvolts, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return microvolts / 1e6
}

func (b *SysfsBattery) Percent() int {
	v, ok := b.readAttr("capacity")
	if !ok {
		return 0
	}
	pct, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return pct
}

// MockBattery is a test double with fixed values.
type MockBattery struct {
	IsPresent  bool
	VoltageV   float64
	PercentVal int
}

// Compile-time interface check
var _ Battery = (*MockBattery)(nil)

func (m *MockBattery) Present() bool    { return m.IsPresent }
func (m *MockBattery) Voltage() float64 { return m.VoltageV }
func (m *MockBattery) Percent() int     { return m.PercentVal }
