package lpr

import (
	"encoding/json"
	"time"
)

// Positions a camera can be mounted at.
var Positions = []string{"Front", "Back", "Left", "Right"}

func IsValidPosition(location string) bool {
	for _, p := range Positions {
		if p == location {
			return true
		}
	}
	return false
}

type Camera struct {
	ID                     int             `json:"id"`
	Name                   string          `json:"name"`
	Location               string          `json:"location,omitempty"`
	RTSPURL                string          `json:"rtsp_url,omitempty"`
	IsActive               bool            `json:"is_active"`
	VehicleTrackingEnabled bool            `json:"vehicle_tracking_enabled"`
	VideoInfo              json.RawMessage `json:"video_info,omitempty"`
}

// CameraPatch is the partial body accepted by the camera update endpoint.
// Nil fields are left untouched by the backend.
type CameraPatch struct {
	Name                   *string `json:"name,omitempty"`
	Location               *string `json:"location,omitempty"`
	RTSPURL                *string `json:"rtsp_url,omitempty"`
	IsActive               *bool   `json:"is_active,omitempty"`
	VehicleTrackingEnabled *bool   `json:"vehicle_tracking_enabled,omitempty"`
}

// Apply returns a copy of c with the non-nil patch fields set.
func (p CameraPatch) Apply(c Camera) Camera {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Location != nil {
		c.Location = *p.Location
	}
	if p.RTSPURL != nil {
		c.RTSPURL = *p.RTSPURL
	}
	if p.IsActive != nil {
		c.IsActive = *p.IsActive
	}
	if p.VehicleTrackingEnabled != nil {
		c.VehicleTrackingEnabled = *p.VehicleTrackingEnabled
	}
	return c
}

type DecodeStatus struct {
	Status     string `json:"status"`
	FrameCount int64  `json:"frame_count"`
}

// Frame is a single still image returned by the latest-frame endpoint.
type Frame struct {
	Data        []byte
	ContentType string
	FetchedAt   time.Time
}

type SourceType string

const (
	SourceCamera SourceType = "camera"
	SourceFile   SourceType = "file"
)

func ParseSourceType(value string) (SourceType, bool) {
	switch SourceType(value) {
	case "":
		return "", true
	case SourceCamera, SourceFile:
		return SourceType(value), true
	}
	return "", false
}

type Detection struct {
	ID              string     `json:"id"`
	SourceType      SourceType `json:"source_type"`
	SourceName      string     `json:"source_name,omitempty"`
	PlateNumber     string     `json:"plate_number"`
	Confidence      float64    `json:"confidence"`
	ThumbnailPath   string     `json:"thumbnail_path,omitempty"`
	FullImagePath   string     `json:"full_image_path,omitempty"`
	Location        string     `json:"location,omitempty"`
	DetectedAt      time.Time  `json:"detected_at"`
	VideoPath       *string    `json:"video_path,omitempty"`
	VideoTimestamp  *float64   `json:"video_timestamp,omitempty"`
	StartTimeOffset *string    `json:"start_time_offset,omitempty"`
}

// ConfidenceBand renders the detection confidence as high, medium or low.
func (d Detection) ConfidenceBand() Band {
	return ClassifyConfidence(d.Confidence)
}

type RepeatedPlateGroup struct {
	PlateNumber string      `json:"plate_number"`
	Count       int         `json:"count"`
	Detections  []Detection `json:"detections"`
}

// DetectionPage is one page of detections as requested from the backend.
type DetectionPage struct {
	Items    []Detection `json:"items"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	// Total is nil when the backend answered with a bare list.
	Total      *int       `json:"total,omitempty"`
	SourceType SourceType `json:"source_type,omitempty"`
}

func (p DetectionPage) HasPrev() bool {
	return p.Page > 1
}

func (p DetectionPage) HasNext() bool {
	if p.Total != nil {
		return p.Page*p.PageSize < *p.Total
	}
	return len(p.Items) >= p.PageSize && p.PageSize > 0
}

// TotalPages is zero when the total is unknown.
func (p DetectionPage) TotalPages() int {
	if p.Total == nil || p.PageSize <= 0 {
		return 0
	}
	pages := (*p.Total + p.PageSize - 1) / p.PageSize
	if pages == 0 {
		pages = 1
	}
	return pages
}

// Timeframe is a backend lookback window in hours.
type Timeframe struct {
	Hours int    `json:"hours"`
	Label string `json:"label"`
}

var Timeframes = []Timeframe{
	{Hours: 24, Label: "1 Day"},
	{Hours: 72, Label: "3 Days"},
	{Hours: 168, Label: "7 Days"},
}

const DefaultTimeframeHours = 24

func IsValidTimeframe(hours int) bool {
	for _, tf := range Timeframes {
		if tf.Hours == hours {
			return true
		}
	}
	return false
}

// PageSizes offered by the detection table.
var PageSizes = []int{10, 20, 40}

func IsValidPageSize(size int) bool {
	for _, s := range PageSizes {
		if s == size {
			return true
		}
	}
	return false
}
