package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"lpr-dashboard/internal/backend"
)

const (
	MaxUploadBytes int64 = 500 << 20

	DefaultUploadLocation = "File Upload"
)

var ErrNoFileSelected = &ValidationError{Message: "No file selected: please select a video file to upload."}

// ValidateVideo checks the declared type and size of a file before anything
// is sent to the backend.
func ValidateVideo(contentType string, size int64) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "video/") {
		return &ValidationError{Message: "Invalid file type: please select a video file."}
	}
	if size > MaxUploadBytes {
		return &ValidationError{Message: fmt.Sprintf(
			"File size is %.1fMB. Maximum allowed size is %dMB.",
			float64(size)/(1<<20), MaxUploadBytes>>20,
		)}
	}
	return nil
}

// Archiver keeps a copy of every forwarded video.
type Archiver interface {
	ArchiveVideo(ctx context.Context, filename string, body io.Reader, size int64, contentType string) (key, url string, err error)
}

type UploadInput struct {
	Filename        string
	ContentType     string
	Size            int64
	Body            io.ReadSeeker
	StartTimeOffset string
	Location        string
}

type UploadResult struct {
	Response   json.RawMessage `json:"response,omitempty"`
	ArchiveKey string          `json:"archive_key,omitempty"`
	ArchiveURL string          `json:"archive_url,omitempty"`
}

type UploadService struct {
	client   *backend.Client
	archiver Archiver
	journal  *ActivityJournal
	log      zerolog.Logger
}

// NewUploadService accepts a nil archiver.
func NewUploadService(client *backend.Client, archiver Archiver, journal *ActivityJournal, log zerolog.Logger) *UploadService {
	return &UploadService{
		client:   client,
		archiver: archiver,
		journal:  journal,
		log:      log.With().Str("component", "upload_service").Logger(),
	}
}

func (s *UploadService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if in.Body == nil {
		return nil, ErrNoFileSelected
	}
	if err := ValidateVideo(in.ContentType, in.Size); err != nil {
		return nil, err
	}

	location := strings.TrimSpace(in.Location)
	if location == "" {
		location = DefaultUploadLocation
	}
	offset := strings.TrimSpace(in.StartTimeOffset)

	detail := map[string]any{
		"size":              in.Size,
		"location":          location,
		"start_time_offset": offset,
	}

	resp, err := s.client.UploadFile(ctx, backend.UploadRequest{
		Filename:        in.Filename,
		ContentType:     in.ContentType,
		Body:            in.Body,
		StartTimeOffset: offset,
		Location:        location,
	})
	if err != nil {
		err = backendErr("upload file", err)
		s.log.Error().Err(err).Str("filename", in.Filename).Int64("size", in.Size).Msg("upload failed")
		s.journal.Record(ctx, Activity{Action: ActionUpload, Subject: in.Filename, Err: err, Detail: detail})
		return nil, err
	}

	result := &UploadResult{Response: resp}
	if len(resp) == 0 || !json.Valid(resp) {
		result.Response = nil
	}

	if s.archiver != nil {
		s.archive(ctx, in, result)
		if result.ArchiveURL != "" {
			detail["archive_url"] = result.ArchiveURL
		}
	}

	s.log.Info().
		Str("filename", in.Filename).
		Int64("size", in.Size).
		Str("location", location).
		Msg("video forwarded for detection")

	s.journal.Record(ctx, Activity{Action: ActionUpload, Subject: in.Filename, Detail: detail})
	return result, nil
}

// archive failures are logged only; the backend already has the file.
func (s *UploadService) archive(ctx context.Context, in UploadInput, result *UploadResult) {
	if _, err := in.Body.Seek(0, io.SeekStart); err != nil {
		s.log.Warn().Err(err).Str("filename", in.Filename).Msg("cannot rewind upload for archiving")
		return
	}
	key, url, err := s.archiver.ArchiveVideo(ctx, in.Filename, in.Body, in.Size, in.ContentType)
	if err != nil {
		s.log.Warn().Err(err).Str("filename", in.Filename).Msg("failed to archive upload")
		return
	}
	result.ArchiveKey = key
	result.ArchiveURL = url
}
