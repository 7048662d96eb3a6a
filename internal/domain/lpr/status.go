package lpr

import (
	"fmt"
	"time"
)

type CameraStatus string

const (
	StatusLive     CameraStatus = "live"
	StatusNoSignal CameraStatus = "no-signal"
	StatusError    CameraStatus = "error"
)

func (s CameraStatus) Label() string {
	switch s {
	case StatusLive:
		return "Live"
	case StatusError:
		return "Error"
	default:
		return "No Signal"
	}
}

// DeriveStatus maps a decode-status response to the liveness badge.
// "stopped", "starting" and anything unknown fall through to no-signal.
func DeriveStatus(ds DecodeStatus) CameraStatus {
	switch {
	case ds.Status == "running" && ds.FrameCount > 0:
		return StatusLive
	case ds.Status == "error":
		return StatusError
	default:
		return StatusNoSignal
	}
}

// CameraView is a camera plus the state rebuilt from poll responses.
type CameraView struct {
	Camera
	SnapshotURL string       `json:"snapshot_url,omitempty"`
	Status      CameraStatus `json:"status"`
}

func NewCameraView(c Camera) CameraView {
	return CameraView{Camera: c, Status: StatusNoSignal}
}

// ShowSnapshot reports whether the image should be rendered instead of the
// placeholder. A cached URL is ignored unless the camera is live.
func (v CameraView) ShowSnapshot() bool {
	return v.Status == StatusLive && v.SnapshotURL != ""
}

func (v CameraView) Title() string {
	if v.Location != "" {
		return v.Location
	}
	return v.Name
}

// SnapshotPath is the dashboard URL of a cached frame, cache-busted by ts.
func SnapshotPath(cameraID int, ts time.Time) string {
	return fmt.Sprintf("/dashboard/cameras/%d/snapshot?_ts=%d", cameraID, ts.UnixMilli())
}

type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// ClassifyConfidence uses strictly-greater thresholds: 0.8 is medium, 0.6 is low.
func ClassifyConfidence(confidence float64) Band {
	switch {
	case confidence > 0.8:
		return BandHigh
	case confidence > 0.6:
		return BandMedium
	default:
		return BandLow
	}
}

const clockLayout = "Mon, Jan 2, 2006, 03:04:05 PM"

// FormatClock renders the header clock.
func FormatClock(t time.Time) string {
	return t.Format(clockLayout)
}
