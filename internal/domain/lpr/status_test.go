package lpr

import (
	"testing"
	"time"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name     string
		input    DecodeStatus
		expected CameraStatus
	}{
		{
			name:     "running with frames",
			input:    DecodeStatus{Status: "running", FrameCount: 42},
			expected: StatusLive,
		},
		{
			name:     "running without frames",
			input:    DecodeStatus{Status: "running", FrameCount: 0},
			expected: StatusNoSignal,
		},
		{
			name:     "error reported",
			input:    DecodeStatus{Status: "error", FrameCount: 10},
			expected: StatusError,
		},
		{
			name:     "stopped",
			input:    DecodeStatus{Status: "stopped"},
			expected: StatusNoSignal,
		},
		{
			name:     "starting",
			input:    DecodeStatus{Status: "starting", FrameCount: 3},
			expected: StatusNoSignal,
		},
		{
			name:     "empty response",
			input:    DecodeStatus{},
			expected: StatusNoSignal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DeriveStatus(tt.input)
			if result != tt.expected {
				t.Errorf("DeriveStatus(%+v) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestCameraViewShowSnapshot(t *testing.T) {
	tests := []struct {
		name     string
		view     CameraView
		expected bool
	}{
		{
			name:     "live with snapshot",
			view:     CameraView{Status: StatusLive, SnapshotURL: "/dashboard/cameras/1/snapshot?_ts=1"},
			expected: true,
		},
		{
			name:     "live without snapshot",
			view:     CameraView{Status: StatusLive},
			expected: false,
		},
		{
			name:     "stale snapshot under no-signal",
			view:     CameraView{Status: StatusNoSignal, SnapshotURL: "/dashboard/cameras/1/snapshot?_ts=1"},
			expected: false,
		},
		{
			name:     "stale snapshot under error",
			view:     CameraView{Status: StatusError, SnapshotURL: "/dashboard/cameras/1/snapshot?_ts=1"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.view.ShowSnapshot(); got != tt.expected {
				t.Errorf("ShowSnapshot() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNewCameraViewDefaultsToNoSignal(t *testing.T) {
	view := NewCameraView(Camera{ID: 7, Name: "Gate1"})
	if view.Status != StatusNoSignal {
		t.Errorf("initial status = %q, want %q", view.Status, StatusNoSignal)
	}
	if view.SnapshotURL != "" {
		t.Errorf("initial snapshot = %q, want empty", view.SnapshotURL)
	}
	if view.Title() != "Gate1" {
		t.Errorf("Title() = %q, want Gate1", view.Title())
	}
}

func TestClassifyConfidence(t *testing.T) {
	tests := []struct {
		confidence float64
		expected   Band
	}{
		{0.81, BandHigh},
		{0.80, BandMedium},
		{0.61, BandMedium},
		{0.60, BandLow},
		{0.59, BandLow},
		{1.0, BandHigh},
		{0, BandLow},
	}

	for _, tt := range tests {
		if got := ClassifyConfidence(tt.confidence); got != tt.expected {
			t.Errorf("ClassifyConfidence(%v) = %q, want %q", tt.confidence, got, tt.expected)
		}
	}
}

func TestSnapshotPath(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	if got, want := SnapshotPath(3, ts), "/dashboard/cameras/3/snapshot?_ts=1700000000123"; got != want {
		t.Errorf("SnapshotPath() = %q, want %q", got, want)
	}
}

func TestFormatClock(t *testing.T) {
	ts := time.Date(2024, time.January, 7, 14, 30, 25, 0, time.UTC)
	if got, want := FormatClock(ts), "Sun, Jan 7, 2024, 02:30:25 PM"; got != want {
		t.Errorf("FormatClock() = %q, want %q", got, want)
	}
}
