package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"lpr-dashboard/internal/config"
)

func TestArchiveKey(t *testing.T) {
	at := time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC)
	id := uuid.MustParse("6f1c2b7e-8a55-4c36-9d2e-0b8f3a1c4d5e")

	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{name: "plain", filename: "gate.mp4", want: "uploads/2024/03/09/6f1c2b7e-8a55-4c36-9d2e-0b8f3a1c4d5e-gate.mp4"},
		{name: "spaces and unicode", filename: "въезд 1.mov", want: "uploads/2024/03/09/6f1c2b7e-8a55-4c36-9d2e-0b8f3a1c4d5e-______1.mov"},
		{name: "windows path", filename: `C:\clips\yard.mp4`, want: "uploads/2024/03/09/6f1c2b7e-8a55-4c36-9d2e-0b8f3a1c4d5e-yard.mp4"},
		{name: "traversal", filename: "../../etc/passwd", want: "uploads/2024/03/09/6f1c2b7e-8a55-4c36-9d2e-0b8f3a1c4d5e-passwd"},
		{name: "empty", filename: "", want: "uploads/2024/03/09/6f1c2b7e-8a55-4c36-9d2e-0b8f3a1c4d5e-video"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ArchiveKey(at, id, tt.filename); got != tt.want {
				t.Errorf("ArchiveKey(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestNewR2ClientNotConfigured(t *testing.T) {
	cfg := config.ArchiveConfig{
		Endpoint: "https://account.r2.cloudflarestorage.com",
		Bucket:   "lpr-archive",
		Region:   "auto",
	}
	if _, err := NewR2Client(cfg); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestObjectURL(t *testing.T) {
	cfg := config.ArchiveConfig{
		Endpoint:        "https://account.r2.cloudflarestorage.com/",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Bucket:          "lpr-archive",
		Region:          "auto",
	}
	client, err := NewR2Client(cfg)
	if err != nil {
		t.Fatalf("NewR2Client: %v", err)
	}
	if got := client.objectURL("/uploads/a.mp4"); got != "https://account.r2.cloudflarestorage.com/lpr-archive/uploads/a.mp4" {
		t.Errorf("objectURL = %q", got)
	}

	cfg.PublicBaseURL = "https://files.example"
	client, err = NewR2Client(cfg)
	if err != nil {
		t.Fatalf("NewR2Client: %v", err)
	}
	if got := client.objectURL("uploads/a.mp4"); got != "https://files.example/lpr-archive/uploads/a.mp4" {
		t.Errorf("public objectURL = %q", got)
	}
}

func TestUploadRequiresClient(t *testing.T) {
	var client *R2Client
	_, err := client.Upload(context.Background(), "k", strings.NewReader("x"), 1, "video/mp4")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}
