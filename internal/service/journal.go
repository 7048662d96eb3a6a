package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"lpr-dashboard/internal/repository"
)

const (
	ActionCameraCreate         = "camera.create"
	ActionCameraUpdate         = "camera.update"
	ActionCameraDelete         = "camera.delete"
	ActionCameraToggleActive   = "camera.toggle_active"
	ActionCameraToggleTracking = "camera.toggle_tracking"
	ActionUpload               = "upload"
)

type Activity struct {
	Action   string
	CameraID *int
	Subject  string
	Err      error
	Detail   map[string]any
}

// ActivityJournal records operator actions. A journal without a repository
// drops every entry, so callers never need to check whether it is enabled.
type ActivityJournal struct {
	repo *repository.ActivityRepository
	log  zerolog.Logger
}

func NewActivityJournal(repo *repository.ActivityRepository, log zerolog.Logger) *ActivityJournal {
	return &ActivityJournal{
		repo: repo,
		log:  log,
	}
}

func (j *ActivityJournal) Enabled() bool {
	return j != nil && j.repo != nil
}

// Record stores the activity. Journal failures are logged and never reach
// the caller.
func (j *ActivityJournal) Record(ctx context.Context, a Activity) {
	if !j.Enabled() {
		return
	}

	entry := &repository.ActivityEntry{
		Action:   a.Action,
		CameraID: a.CameraID,
		Subject:  a.Subject,
		Outcome:  repository.OutcomeOK,
	}

	detail := a.Detail
	if a.Err != nil {
		entry.Outcome = repository.OutcomeFailed
		detail = make(map[string]any, len(a.Detail)+1)
		for k, v := range a.Detail {
			detail[k] = v
		}
		detail["error"] = Message(a.Err)
	}
	if len(detail) > 0 {
		raw, err := json.Marshal(detail)
		if err != nil {
			j.log.Warn().Err(err).Str("action", a.Action).Msg("failed to encode activity detail")
		} else {
			entry.Detail = datatypes.JSON(raw)
		}
	}

	if err := j.repo.Record(context.WithoutCancel(ctx), entry); err != nil {
		j.log.Error().Err(err).Str("action", a.Action).Msg("failed to record activity")
	}
}

func (j *ActivityJournal) List(ctx context.Context, filter repository.ActivityFilter) ([]repository.ActivityEntry, error) {
	if !j.Enabled() {
		return []repository.ActivityEntry{}, nil
	}
	entries, err := j.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []repository.ActivityEntry{}
	}
	return entries, nil
}
