package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"lpr-dashboard/internal/backend"
	"lpr-dashboard/internal/backend/backendtest"
	"lpr-dashboard/internal/repository"
)

func TestValidateVideo(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		size        int64
		wantErr     string
	}{
		{
			name:        "png rejected regardless of size",
			contentType: "image/png",
			size:        1024,
			wantErr:     "Invalid file type: please select a video file.",
		},
		{
			name:        "600MB mp4 rejected",
			contentType: "video/mp4",
			size:        600 << 20,
			wantErr:     "File size is 600.0MB. Maximum allowed size is 500MB.",
		},
		{
			name:        "100MB mp4 accepted",
			contentType: "video/mp4",
			size:        100 << 20,
		},
		{
			name:        "exactly at the ceiling",
			contentType: "video/quicktime",
			size:        524288000,
		},
		{
			name:        "one byte over",
			contentType: "video/mp4",
			size:        524288001,
			wantErr:     "File size is 500.0MB. Maximum allowed size is 500MB.",
		},
		{
			name:        "missing type",
			contentType: "",
			size:        10,
			wantErr:     "Invalid file type: please select a video file.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVideo(tt.contentType, tt.size)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %q", tt.wantErr)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("error = %q, want %q", err.Error(), tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput")
			}
		})
	}
}

type fakeArchiver struct {
	body []byte
	err  error
}

func (a *fakeArchiver) ArchiveVideo(_ context.Context, filename string, body io.Reader, _ int64, _ string) (string, string, error) {
	if a.err != nil {
		return "", "", a.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", "", err
	}
	a.body = data
	return "uploads/" + filename, "https://files.example/uploads/" + filename, nil
}

func newUploadFixture(t *testing.T, archiver Archiver) (*UploadService, *backendtest.Server, *ActivityJournal) {
	t.Helper()
	srv := backendtest.New()
	t.Cleanup(srv.Close)

	journal := newJournal(t)
	client := backend.NewClient(srv.URL, 5*time.Second)
	return NewUploadService(client, archiver, journal, zerolog.Nop()), srv, journal
}

func TestUploadForwardsAndArchives(t *testing.T) {
	archiver := &fakeArchiver{}
	svc, srv, journal := newUploadFixture(t, archiver)
	payload := strings.Repeat("x", 2048)

	result, err := svc.Upload(context.Background(), UploadInput{
		Filename:    "clip.mp4",
		ContentType: "video/mp4",
		Size:        int64(len(payload)),
		Body:        strings.NewReader(payload),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	uploads := srv.Uploads()
	if len(uploads) != 1 {
		t.Fatalf("expected one upload, got %d", len(uploads))
	}
	if uploads[0].Location != DefaultUploadLocation || uploads[0].StartTimeOffset != "" || uploads[0].Size != 2048 {
		t.Errorf("upload = %+v", uploads[0])
	}

	if string(archiver.body) != payload {
		t.Errorf("archived %d bytes, want %d", len(archiver.body), len(payload))
	}
	if result.ArchiveURL != "https://files.example/uploads/clip.mp4" {
		t.Errorf("archive url = %q", result.ArchiveURL)
	}

	entries, _ := journal.List(context.Background(), repository.ActivityFilter{Action: ActionUpload})
	if len(entries) != 1 || entries[0].Outcome != repository.OutcomeOK {
		t.Errorf("journal = %+v", entries)
	}
}

func TestUploadRejectedBeforeNetwork(t *testing.T) {
	svc, srv, _ := newUploadFixture(t, nil)

	_, err := svc.Upload(context.Background(), UploadInput{
		Filename:    "photo.png",
		ContentType: "image/png",
		Size:        10,
		Body:        strings.NewReader("0123456789"),
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if n := len(srv.Requests()); n != 0 {
		t.Errorf("expected no backend calls, got %d", n)
	}
}

func TestUploadNoFile(t *testing.T) {
	svc, _, _ := newUploadFixture(t, nil)

	_, err := svc.Upload(context.Background(), UploadInput{})
	if err != ErrNoFileSelected {
		t.Fatalf("expected ErrNoFileSelected, got %v", err)
	}
}

func TestUploadBackendFailure(t *testing.T) {
	archiver := &fakeArchiver{}
	svc, srv, journal := newUploadFixture(t, archiver)
	srv.Fail(http.MethodPost, "/api/v1/license-plates/upload-file", http.StatusBadRequest)

	_, err := svc.Upload(context.Background(), UploadInput{
		Filename:        "clip.mp4",
		ContentType:     "video/mp4",
		Size:            4,
		Body:            strings.NewReader("data"),
		StartTimeOffset: "00:10:00",
		Location:        "Gate",
	})
	if !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
	if Message(err) != "simulated failure" {
		t.Errorf("Message = %q", Message(err))
	}
	if archiver.body != nil {
		t.Errorf("failed upload must not be archived")
	}

	entries, _ := journal.List(context.Background(), repository.ActivityFilter{})
	if len(entries) != 1 || entries[0].Outcome != repository.OutcomeFailed {
		t.Errorf("journal = %+v", entries)
	}
}

func TestUploadArchiveFailureIsNotFatal(t *testing.T) {
	svc, _, _ := newUploadFixture(t, &fakeArchiver{err: errors.New("bucket down")})

	result, err := svc.Upload(context.Background(), UploadInput{
		Filename:    "clip.mp4",
		ContentType: "video/mp4",
		Size:        4,
		Body:        strings.NewReader("data"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if result.ArchiveURL != "" {
		t.Errorf("archive url = %q", result.ArchiveURL)
	}
}
