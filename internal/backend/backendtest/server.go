// Package backendtest provides an in-memory recognition backend for tests.
package backendtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"lpr-dashboard/internal/domain/lpr"
)

type Upload struct {
	Filename        string
	ContentType     string
	Size            int64
	StartTimeOffset string
	Location        string
}

type Server struct {
	*httptest.Server

	mu         sync.Mutex
	nextID     int
	cameras    map[int]lpr.Camera
	decode     map[int]lpr.DecodeStatus
	frames     map[int][]byte
	detections []lpr.Detection
	envelope   bool
	repeated   map[int][]lpr.RepeatedPlateGroup
	uploads    []Upload
	failures   map[string]int
	requests   []string
	hold       map[string]chan struct{}
}

func New() *Server {
	s := &Server{
		nextID:   1,
		cameras:  map[int]lpr.Camera{},
		decode:   map[int]lpr.DecodeStatus{},
		frames:   map[int][]byte{},
		repeated: map[int][]lpr.RepeatedPlateGroup{},
		failures: map[string]int{},
		hold:     map[string]chan struct{}{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/cameras/{$}", s.listCameras)
	mux.HandleFunc("POST /api/v1/cameras/{$}", s.createCamera)
	mux.HandleFunc("GET /api/v1/cameras/{id}/{$}", s.getCamera)
	mux.HandleFunc("PUT /api/v1/cameras/{id}/{$}", s.updateCamera)
	mux.HandleFunc("DELETE /api/v1/cameras/{id}/{$}", s.deleteCamera)
	mux.HandleFunc("GET /api/v1/cameras/{id}/decode-status/{$}", s.decodeStatus)
	mux.HandleFunc("GET /api/v1/cameras/{id}/latest-frame/{$}", s.latestFrame)
	mux.HandleFunc("GET /api/v1/license-plates", s.listDetections)
	mux.HandleFunc("POST /api/v1/license-plates/upload-file", s.uploadFile)
	mux.HandleFunc("GET /api/v1/license-plates/repeated/{timeframe}", s.repeatedPlates)

	s.Server = httptest.NewServer(s.intercept(mux))
	return s
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		s.mu.Lock()
		s.requests = append(s.requests, key)
		status, failing := s.failures[key]
		gate := s.hold[key]
		s.mu.Unlock()

		if gate != nil {
			<-gate
		}
		if failing {
			writeJSON(w, status, map[string]string{"detail": "simulated failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Fail makes every request matching method and path answer with status
// until Recover is called.
func (s *Server) Fail(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = status
}

func (s *Server) Recover(method, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, method+" "+path)
}

// Hold blocks requests matching method and path until the returned release
// function is called.
func (s *Server) Hold(method, path string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.hold[method+" "+path] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.hold, method+" "+path)
			s.mu.Unlock()
			close(gate)
		})
	}
}

func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// CountRequests counts recorded requests whose "METHOD path" starts with prefix.
func (s *Server) CountRequests(prefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *Server) AddCamera(c lpr.Camera) lpr.Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.nextID
	}
	if c.ID >= s.nextID {
		s.nextID = c.ID + 1
	}
	s.cameras[c.ID] = c
	return c
}

func (s *Server) Cameras() []lpr.Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedCameras()
}

func (s *Server) sortedCameras() []lpr.Camera {
	out := make([]lpr.Camera, 0, len(s.cameras))
	for _, c := range s.cameras {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) SetDecodeStatus(id int, ds lpr.DecodeStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decode[id] = ds
}

func (s *Server) SetFrame(id int, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data == nil {
		delete(s.frames, id)
		return
	}
	s.frames[id] = data
}

// SetDetections replaces the detection store. With envelope set the listing
// answers {"items": [...], "total": N} instead of a bare array.
func (s *Server) SetDetections(detections []lpr.Detection, envelope bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detections = detections
	s.envelope = envelope
}

func (s *Server) SetRepeated(hours int, groups []lpr.RepeatedPlateGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeated[hours] = groups
}

func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

func (s *Server) listCameras(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cameras := s.sortedCameras()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, cameras)
}

func (s *Server) cameraID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid id"})
		return 0, false
	}
	return id, true
}

func (s *Server) getCamera(w http.ResponseWriter, r *http.Request) {
	id, ok := s.cameraID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	c, found := s.cameras[id]
	s.mu.Unlock()
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Camera not found"})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) createCamera(w http.ResponseWriter, r *http.Request) {
	var patch lpr.CameraPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	created := s.AddCamera(patch.Apply(lpr.Camera{}))
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateCamera(w http.ResponseWriter, r *http.Request) {
	id, ok := s.cameraID(w, r)
	if !ok {
		return
	}
	var patch lpr.CameraPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	c, found := s.cameras[id]
	if found {
		c = patch.Apply(c)
		s.cameras[id] = c
	}
	s.mu.Unlock()

	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Camera not found"})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteCamera(w http.ResponseWriter, r *http.Request) {
	id, ok := s.cameraID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	_, found := s.cameras[id]
	delete(s.cameras, id)
	s.mu.Unlock()
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Camera not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decodeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.cameraID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	ds, found := s.decode[id]
	s.mu.Unlock()
	if !found {
		ds = lpr.DecodeStatus{Status: "stopped"}
	}
	writeJSON(w, http.StatusOK, ds)
}

func (s *Server) latestFrame(w http.ResponseWriter, r *http.Request) {
	id, ok := s.cameraID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	frame, found := s.frames[id]
	s.mu.Unlock()
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "No frame available"})
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(frame)
}

func (s *Server) listDetections(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	sourceType := r.URL.Query().Get("source_type")

	s.mu.Lock()
	filtered := make([]lpr.Detection, 0, len(s.detections))
	for _, d := range s.detections {
		if sourceType == "" || string(d.SourceType) == sourceType {
			filtered = append(filtered, d)
		}
	}
	envelope := s.envelope
	s.mu.Unlock()

	total := len(filtered)
	if skip > len(filtered) {
		skip = len(filtered)
	}
	end := skip + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	page := filtered[skip:end]

	if envelope {
		writeJSON(w, http.StatusOK, map[string]any{"items": page, "total": total})
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "file part is required"})
		return
	}
	defer file.Close()
	size, _ := io.Copy(io.Discard, file)

	upload := Upload{
		Filename:        header.Filename,
		ContentType:     header.Header.Get("Content-Type"),
		Size:            size,
		StartTimeOffset: r.FormValue("start_time_offset"),
		Location:        r.FormValue("location"),
	}

	s.mu.Lock()
	s.uploads = append(s.uploads, upload)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "File uploaded successfully",
		"filename": upload.Filename,
	})
}

func (s *Server) repeatedPlates(w http.ResponseWriter, r *http.Request) {
	hours, err := strconv.Atoi(r.PathValue("timeframe"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid timeframe"})
		return
	}
	s.mu.Lock()
	groups := s.repeated[hours]
	s.mu.Unlock()
	if groups == nil {
		groups = []lpr.RepeatedPlateGroup{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
