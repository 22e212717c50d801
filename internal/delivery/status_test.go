package delivery

import (
	"strings"
	"testing"
	"time"

	"github.com/kden/esp32-sunlight-sensor-sub000/internal/channel"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/models"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/power"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/timesync"
)

func newReporter(t *testing.T, reason power.WakeReason, script ...channel.Status) (*StatusReporter, *channel.MockChannel) {
	t.Helper()
	ch := channel.NewMockChannel(script...)
	clock := timesync.NewAuthority(stubTime{}, 1, 0, testLogger())
	info := models.NewSensorInfo("sub000", "garden", "1.2.0")
	return NewStatusReporter(ch, clock, info, reason, testLogger()), ch
}

func TestReport(t *testing.T) {
	r, ch := newReporter(t, power.ExternalWake)

	if !r.Report("online") {
		t.Fatal("Report returned false for accepted status")
	}
	if len(ch.StatusCalls) != 1 {
		t.Fatalf("StatusCalls = %d, want 1", len(ch.StatusCalls))
	}

	rec := ch.StatusCalls[0]
	if rec.Status != "online" {
		t.Errorf("Status = %q, want online", rec.Status)
	}
	if rec.SensorID != "sub000" || rec.SensorSetID != "garden" {
		t.Errorf("Identity = %s/%s, want sub000/garden", rec.SensorID, rec.SensorSetID)
	}
	if rec.BuildVersion != "1.2.0" {
		t.Errorf("BuildVersion = %q, want 1.2.0", rec.BuildVersion)
	}
	if _, err := time.Parse("2006-01-02T15:04:05Z", rec.Timestamp); err != nil {
		t.Errorf("Timestamp %q not in wire format: %v", rec.Timestamp, err)
	}
}

func TestReport_DecoratesWakeReason(t *testing.T) {
	tests := []struct {
		name   string
		reason power.WakeReason
		prefix string
	}{
		{"cold boot", power.ColdBoot, "[boot] "},
		{"timer wake", power.TimerWake, "[wake] "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ch := newReporter(t, tt.reason)
			r.Report("online")
			got := ch.StatusCalls[0].Status
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("Status = %q, want prefix %q", got, tt.prefix)
			}
		})
	}
}

func TestReport_FailureNotRetried(t *testing.T) {
	r, ch := newReporter(t, power.ExternalWake, channel.StatusServerError)

	if r.Report("online") {
		t.Error("Report returned true for rejected status")
	}
	if len(ch.StatusCalls) != 1 {
		t.Errorf("StatusCalls = %d, want exactly 1 (no retry)", len(ch.StatusCalls))
	}
}

func TestReportBattery(t *testing.T) {
	r, ch := newReporter(t, power.ExternalWake)
	bat := &power.MockBattery{IsPresent: true, VoltageV: 3.87, PercentVal: 76}

	if !r.ReportBattery(bat) {
		t.Fatal("ReportBattery returned false")
	}
	if got := ch.StatusCalls[0].Status; got != "battery 3.87V 76%" {
		t.Errorf("Status = %q, want battery 3.87V 76%%", got)
	}
}

func TestReportBattery_NoBattery(t *testing.T) {
	r, ch := newReporter(t, power.ExternalWake)

	if r.ReportBattery(&power.MockBattery{IsPresent: false}) {
		t.Error("ReportBattery returned true with no battery present")
	}
	if len(ch.StatusCalls) != 0 {
		t.Errorf("StatusCalls = %d, want 0", len(ch.StatusCalls))
	}
}
