package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "generated", incoming: ""},
		{name: "propagated", incoming: "abc-123", keep: true},
		{name: "oversized replaced", incoming: strings.Repeat("x", 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if got == "" || got != rec.Body.String() {
				t.Fatalf("header %q, body %q", got, rec.Body.String())
			}
			if tt.keep && got != tt.incoming {
				t.Errorf("request id = %q, want %q", got, tt.incoming)
			}
			if !tt.keep && got == tt.incoming {
				t.Errorf("expected a fresh id")
			}
		})
	}
}

func TestRequestLoggerSkipsQuietReads(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	router := gin.New()
	router.Use(RequestID(), RequestLogger(log))
	router.GET("/dashboard/api/cameras", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/broken", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	router.POST("/cameras", func(c *gin.Context) { c.Status(http.StatusSeeOther) })

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/dashboard/api/cameras"},
		{http.MethodGet, "/broken"},
		{http.MethodPost, "/cameras"},
	} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(r.method, r.path, nil))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"status":502`) || !strings.Contains(lines[0], `"level":"error"`) {
		t.Errorf("first line = %s", lines[0])
	}
	if !strings.Contains(lines[1], `"path":"/cameras"`) {
		t.Errorf("second line = %s", lines[1])
	}
}
