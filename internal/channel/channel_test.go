package channel

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		code int
		want Status
	}{
		{"created", 201, StatusOK},
		{"ok", 200, StatusOK},
		{"bad request", 400, StatusClientError},
		{"unauthorized", 401, StatusAuthError},
		{"forbidden", 403, StatusAuthError},
		{"not found", 404, StatusNotFound},
		{"server error", 500, StatusServerError},
		{"bad gateway", 502, StatusServerError},
		{"unavailable", 503, StatusServerError},
		{"teapot", 418, StatusTransportError},
		{"redirect", 302, StatusTransportError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.code); got != tt.want {
				t.Errorf("Classify(%d) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestStatus_Retryable(t *testing.T) {
	terminal := []Status{StatusClientError, StatusAuthError}
	for _, s := range terminal {
		if s.Retryable() {
			t.Errorf("%v.Retryable() = true, want false (terminal class)", s)
		}
	}

	retryable := []Status{StatusNotFound, StatusServerError, StatusTransportError}
	for _, s := range retryable {
		if !s.Retryable() {
			t.Errorf("%v.Retryable() = false, want true (transient class)", s)
		}
	}
}

func TestMockChannel_Script(t *testing.T) {
	mock := NewMockChannel(StatusServerError, StatusOK)

	if got := mock.SendTelemetry(nil); got != StatusServerError {
		t.Errorf("First send = %v, want StatusServerError", got)
	}
	if got := mock.SendTelemetry(nil); got != StatusOK {
		t.Errorf("Second send = %v, want StatusOK", got)
	}
	// Exhausted script defaults to OK.
	if got := mock.SendTelemetry(nil); got != StatusOK {
		t.Errorf("Post-script send = %v, want StatusOK", got)
	}
	if mock.TelemetryCallCount() != 3 {
		t.Errorf("TelemetryCallCount = %d, want 3", mock.TelemetryCallCount())
	}
}
