package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"lpr-dashboard/internal/domain/lpr"
	"lpr-dashboard/internal/export"
	"lpr-dashboard/internal/service"
)

type cameraStateBody struct {
	Data struct {
		Cameras []struct {
			ID           int    `json:"id"`
			Name         string `json:"name"`
			Status       string `json:"status"`
			StatusLabel  string `json:"status_label"`
			SnapshotURL  string `json:"snapshot_url"`
			ShowSnapshot bool   `json:"show_snapshot"`
		} `json:"cameras"`
		Banner string `json:"banner"`
		Clock  string `json:"clock"`
	} `json:"data"`
}

func decodeBody(t *testing.T, raw []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
}

func TestCameraStateAndSnapshot(t *testing.T) {
	app := newTestApp(t)
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 'f', 'r', 'a', 'm', 'e'}
	app.backend.AddCamera(lpr.Camera{Name: "Gate1", Location: "Front", IsActive: true})
	app.backend.AddCamera(lpr.Camera{Name: "Yard", Location: "Back", IsActive: false})
	app.backend.SetDecodeStatus(1, lpr.DecodeStatus{Status: "running", FrameCount: 12})
	app.backend.SetFrame(1, jpeg)
	app.load(t)

	before := app.do(http.MethodGet, "/dashboard/cameras/1/snapshot", nil, "")
	if before.Code != http.StatusNotFound {
		t.Errorf("snapshot before first poll: status = %d", before.Code)
	}

	app.poller.PollOnce(t.Context())

	w := app.do(http.MethodGet, "/dashboard/api/cameras", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var state cameraStateBody
	decodeBody(t, w.Body.Bytes(), &state)

	if len(state.Data.Cameras) != 2 {
		t.Fatalf("cameras = %+v", state.Data.Cameras)
	}
	live, idle := state.Data.Cameras[0], state.Data.Cameras[1]
	if live.Status != "live" || live.StatusLabel != "Live" || !live.ShowSnapshot {
		t.Errorf("camera 1 = %+v", live)
	}
	if !strings.HasPrefix(live.SnapshotURL, "/dashboard/cameras/1/snapshot?_ts=") {
		t.Errorf("snapshot url = %q", live.SnapshotURL)
	}
	if idle.Status != "no-signal" || idle.ShowSnapshot {
		t.Errorf("inactive camera = %+v", idle)
	}
	if state.Data.Clock == "" {
		t.Errorf("clock should be set")
	}

	snap := app.do(http.MethodGet, live.SnapshotURL, nil, "")
	if snap.Code != http.StatusOK {
		t.Fatalf("snapshot status = %d", snap.Code)
	}
	if !bytes.Equal(snap.Body.Bytes(), jpeg) {
		t.Errorf("snapshot body = %v", snap.Body.Bytes())
	}
	if ct := snap.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if app.backend.CountRequests("GET /api/v1/cameras/2/") != 0 {
		t.Errorf("inactive camera must not be polled")
	}
}

func TestListDetections(t *testing.T) {
	app := newTestApp(t)
	detections := make([]lpr.Detection, 0, 25)
	for i := 0; i < 25; i++ {
		source := lpr.SourceCamera
		if i%5 == 0 {
			source = lpr.SourceFile
		}
		detections = append(detections, lpr.Detection{
			ID:          string(rune('a' + i)),
			PlateNumber: "ABC" + string(rune('0'+i%10)),
			SourceType:  source,
			Confidence:  0.9,
			DetectedAt:  time.Date(2024, 5, 1, 12, i, 0, 0, time.UTC),
		})
	}
	app.backend.SetDetections(detections, false)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantItems  int
		wantNext   bool
		wantPrev   bool
	}{
		{name: "defaults", query: "", wantStatus: http.StatusOK, wantItems: 10, wantNext: true},
		{name: "second page of twenty", query: "?page=2&size=20", wantStatus: http.StatusOK, wantItems: 5, wantPrev: true},
		{name: "file only", query: "?source_type=file", wantStatus: http.StatusOK, wantItems: 5},
		{name: "size not offered", query: "?size=15", wantStatus: http.StatusBadRequest},
		{name: "unknown source", query: "?source_type=drone", wantStatus: http.StatusBadRequest},
		{name: "page zero", query: "?page=0", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(http.MethodGet, "/dashboard/api/detections"+tt.query, nil, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body struct {
				Data struct {
					Items   []lpr.Detection `json:"items"`
					HasNext bool            `json:"has_next"`
					HasPrev bool            `json:"has_prev"`
				} `json:"data"`
			}
			decodeBody(t, w.Body.Bytes(), &body)
			if len(body.Data.Items) != tt.wantItems {
				t.Errorf("items = %d, want %d", len(body.Data.Items), tt.wantItems)
			}
			if body.Data.HasNext != tt.wantNext || body.Data.HasPrev != tt.wantPrev {
				t.Errorf("has_next = %v, has_prev = %v", body.Data.HasNext, body.Data.HasPrev)
			}
		})
	}
}

func TestListDetectionsBackendDown(t *testing.T) {
	app := newTestApp(t)
	app.backend.Fail(http.MethodGet, "/api/v1/license-plates", http.StatusServiceUnavailable)

	w := app.do(http.MethodGet, "/dashboard/api/detections", nil, "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}

	page := app.do(http.MethodGet, "/", nil, "")
	if page.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", page.Code)
	}
	if !strings.Contains(page.Body.String(), "Failed to load detections: simulated failure") {
		t.Errorf("dashboard should show the detections error")
	}
}

func multipartUpload(t *testing.T, filename, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestUpload(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		fields      map[string]string
		wantStatus  int
		wantError   string
		wantUploads int
	}{
		{
			name:        "png rejected",
			filename:    "photo.png",
			contentType: "image/png",
			wantStatus:  http.StatusBadRequest,
			wantError:   "Invalid file type: please select a video file.",
		},
		{
			name:       "no file",
			fields:     map[string]string{"location": "Gate"},
			wantStatus: http.StatusBadRequest,
			wantError:  "No file selected: please select a video file to upload.",
		},
		{
			name:        "mp4 forwarded",
			filename:    "clip.mp4",
			contentType: "video/mp4",
			fields:      map[string]string{"location": "Gate", "start_time_offset": "00:05:00"},
			wantStatus:  http.StatusCreated,
			wantUploads: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			body, ct := multipartUpload(t, tt.filename, tt.contentType, []byte("video-bytes"), tt.fields)

			w := app.do(http.MethodPost, "/dashboard/api/uploads", body, ct)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			if tt.wantError != "" {
				var resp struct {
					Error string `json:"error"`
				}
				decodeBody(t, w.Body.Bytes(), &resp)
				if resp.Error != tt.wantError {
					t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
				}
			}

			uploads := app.backend.Uploads()
			if len(uploads) != tt.wantUploads {
				t.Fatalf("uploads = %d, want %d", len(uploads), tt.wantUploads)
			}
			if tt.wantUploads == 1 {
				if uploads[0].Location != "Gate" || uploads[0].StartTimeOffset != "00:05:00" || uploads[0].Filename != "clip.mp4" {
					t.Errorf("upload = %+v", uploads[0])
				}
			}
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	tests := []struct {
		name          string
		contentLength int64
	}{
		{name: "far over the limit", contentLength: 502 << 20},
		{name: "form just over the limit", contentLength: service.MaxUploadBytes + uploadFormOverhead + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			body, ct := multipartUpload(t, "long.mp4", "video/mp4", []byte("video-bytes"), nil)

			req := httptest.NewRequest(http.MethodPost, "/dashboard/api/uploads", body)
			req.Header.Set("Content-Type", ct)
			req.ContentLength = tt.contentLength
			w := httptest.NewRecorder()
			app.router.ServeHTTP(w, req)

			if w.Code != http.StatusRequestEntityTooLarge {
				t.Fatalf("status = %d", w.Code)
			}
			var resp struct {
				Error string `json:"error"`
			}
			decodeBody(t, w.Body.Bytes(), &resp)
			// The multipart length is not the file size, so no size is reported.
			if resp.Error != "File is too large. Maximum allowed size is 500MB." {
				t.Errorf("error = %q", resp.Error)
			}
			if n := len(app.backend.Uploads()); n != 0 {
				t.Errorf("oversized upload reached the backend")
			}
		})
	}
}

func TestRepeatedPlates(t *testing.T) {
	app := newTestApp(t)
	app.backend.SetRepeated(72, []lpr.RepeatedPlateGroup{
		{PlateNumber: "KZ123", Count: 2, Detections: []lpr.Detection{{ID: "1", PlateNumber: "KZ123"}, {ID: "2", PlateNumber: "KZ123"}}},
	})

	tests := []struct {
		name       string
		timeframe  string
		wantStatus int
		wantGroups int
	}{
		{name: "three days", timeframe: "72", wantStatus: http.StatusOK, wantGroups: 1},
		{name: "one day empty", timeframe: "24", wantStatus: http.StatusOK},
		{name: "unsupported window", timeframe: "12", wantStatus: http.StatusBadRequest},
		{name: "not a number", timeframe: "week", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(http.MethodGet, "/dashboard/api/repeated/"+tt.timeframe, nil, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body struct {
				Data      []lpr.RepeatedPlateGroup `json:"data"`
				Timeframe lpr.Timeframe            `json:"timeframe"`
			}
			decodeBody(t, w.Body.Bytes(), &body)
			if len(body.Data) != tt.wantGroups {
				t.Errorf("groups = %d, want %d", len(body.Data), tt.wantGroups)
			}
		})
	}
}

func TestActivityFeed(t *testing.T) {
	app := newTestApp(t)
	app.load(t)
	app.postForm("/cameras", url.Values{"name": {"Gate1"}, "location": {"Front"}})
	app.postForm("/cameras", url.Values{"name": {"Gate2"}, "location": {"Back"}})

	w := app.do(http.MethodGet, "/dashboard/api/activity?action=camera.create&limit=1", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Data []struct {
			Subject string `json:"subject"`
			Outcome string `json:"outcome"`
		} `json:"data"`
		Enabled bool `json:"enabled"`
	}
	decodeBody(t, w.Body.Bytes(), &body)
	if !body.Enabled {
		t.Errorf("journal should be enabled")
	}
	if len(body.Data) != 1 || body.Data[0].Subject != "Gate2" {
		t.Errorf("activity = %+v", body.Data)
	}

	bad := app.do(http.MethodGet, "/dashboard/api/activity?camera_id=x", nil, "")
	if bad.Code != http.StatusBadRequest {
		t.Errorf("bad camera_id status = %d", bad.Code)
	}
}

func TestExportWorkbooks(t *testing.T) {
	app := newTestApp(t)
	app.backend.SetDetections([]lpr.Detection{
		{ID: "1", PlateNumber: "KZ123", SourceType: lpr.SourceCamera, Confidence: 0.95, DetectedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)},
	}, true)
	app.backend.SetRepeated(24, []lpr.RepeatedPlateGroup{{PlateNumber: "KZ123", Count: 3}})

	tests := []struct {
		name  string
		path  string
		sheet string
		plate string
	}{
		{name: "detections", path: "/dashboard/export/detections.xlsx?page=1&size=10", sheet: export.DetectionsSheet, plate: "KZ123"},
		{name: "repeated", path: "/dashboard/export/repeated.xlsx?timeframe=24", sheet: export.RepeatedSheet, plate: "KZ123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(http.MethodGet, tt.path, nil, "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
				t.Errorf("Content-Type = %q", ct)
			}
			if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
				t.Errorf("Content-Disposition = %q", cd)
			}

			f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
			if err != nil {
				t.Fatalf("open workbook: %v", err)
			}
			defer f.Close()
			rows, err := f.GetRows(tt.sheet)
			if err != nil {
				t.Fatalf("rows: %v", err)
			}
			if len(rows) < 2 || rows[1][0] != tt.plate {
				t.Errorf("rows = %v", rows)
			}
		})
	}

	bad := app.do(http.MethodGet, "/dashboard/export/repeated.xlsx?timeframe=5", nil, "")
	if bad.Code != http.StatusBadRequest {
		t.Errorf("unsupported timeframe status = %d", bad.Code)
	}
}
