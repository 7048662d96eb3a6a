package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"lpr-dashboard/internal/backend"
	"lpr-dashboard/internal/domain/lpr"
	"lpr-dashboard/internal/poller"
)

// CameraInput is the camera dialog form.
type CameraInput struct {
	Name                   string
	Location               string
	RTSPURL                string
	IsActive               bool
	VehicleTrackingEnabled bool
}

func (in CameraInput) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "Camera name is required"
	}
	switch {
	case strings.TrimSpace(in.Location) == "":
		fields["location"] = "Location is required"
	case !lpr.IsValidPosition(strings.TrimSpace(in.Location)):
		fields["location"] = "Location must be one of " + strings.Join(lpr.Positions, ", ")
	}
	if len(fields) == 0 {
		return nil
	}

	msg := "Please fix the highlighted fields"
	if len(fields) == 1 {
		for _, m := range fields {
			msg = m
		}
	}
	return &ValidationError{Message: msg, Fields: fields}
}

func (in CameraInput) patch(includeEmptyURL bool) lpr.CameraPatch {
	name := strings.TrimSpace(in.Name)
	location := strings.TrimSpace(in.Location)
	active := in.IsActive
	tracking := in.VehicleTrackingEnabled

	p := lpr.CameraPatch{
		Name:                   &name,
		Location:               &location,
		IsActive:               &active,
		VehicleTrackingEnabled: &tracking,
	}
	if url := strings.TrimSpace(in.RTSPURL); url != "" || includeEmptyURL {
		p.RTSPURL = &url
	}
	return p
}

// InputFromCamera pre-fills the edit dialog.
func InputFromCamera(c lpr.Camera) CameraInput {
	return CameraInput{
		Name:                   c.Name,
		Location:               c.Location,
		RTSPURL:                c.RTSPURL,
		IsActive:               c.IsActive,
		VehicleTrackingEnabled: c.VehicleTrackingEnabled,
	}
}

// CameraService mirrors camera mutations to the backend and re-fetches the
// whole list after each successful write. Failed writes leave the list as it
// was and raise the section banner.
type CameraService struct {
	client  *backend.Client
	poller  *poller.Poller
	journal *ActivityJournal
	log     zerolog.Logger

	writeMu sync.Mutex

	bannerMu sync.RWMutex
	banner   string
}

func NewCameraService(client *backend.Client, p *poller.Poller, journal *ActivityJournal, log zerolog.Logger) *CameraService {
	return &CameraService{
		client:  client,
		poller:  p,
		journal: journal,
		log:     log.With().Str("component", "camera_service").Logger(),
	}
}

// Load fetches the camera list and replaces the local model.
func (s *CameraService) Load(ctx context.Context) error {
	if err := s.refresh(ctx); err != nil {
		s.setBanner("Failed to load cameras: " + Message(err))
		return err
	}
	return nil
}

func (s *CameraService) refresh(ctx context.Context) error {
	cameras, err := s.client.ListCameras(ctx)
	if err != nil {
		return backendErr("list cameras", err)
	}
	s.poller.Replace(cameras)
	return nil
}

// Views returns the camera grid state and marks the section as watched.
func (s *CameraService) Views() []lpr.CameraView {
	s.poller.Touch()
	return s.poller.Views()
}

func (s *CameraService) Cameras() []lpr.Camera {
	return s.poller.Cameras()
}

// Get fetches a single camera from the backend, bypassing the local list.
func (s *CameraService) Get(ctx context.Context, id int) (*lpr.Camera, error) {
	camera, err := s.client.GetCamera(ctx, id)
	if err != nil {
		err = backendErr(fmt.Sprintf("get camera %d", id), err)
		s.setBanner("Failed to load camera: " + Message(err))
		return nil, err
	}
	return camera, nil
}

func (s *CameraService) Create(ctx context.Context, in CameraInput) (*lpr.Camera, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	camera, err := s.client.CreateCamera(ctx, in.patch(false))
	if err != nil {
		err = backendErr("create camera", err)
		s.writeFailed(ctx, Activity{Action: ActionCameraCreate, Subject: in.Name, Err: err}, "Failed to create camera")
		return nil, err
	}

	s.log.Info().
		Int("camera_id", camera.ID).
		Str("name", camera.Name).
		Str("location", camera.Location).
		Msg("camera created")

	s.writeSucceeded(ctx, Activity{
		Action:   ActionCameraCreate,
		CameraID: &camera.ID,
		Subject:  camera.Name,
		Detail:   map[string]any{"location": camera.Location, "is_active": camera.IsActive},
	})
	return camera, nil
}

func (s *CameraService) Update(ctx context.Context, id int, in CameraInput) (*lpr.Camera, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	camera, err := s.client.UpdateCamera(ctx, id, in.patch(true))
	if err != nil {
		err = backendErr(fmt.Sprintf("update camera %d", id), err)
		s.writeFailed(ctx, Activity{Action: ActionCameraUpdate, CameraID: &id, Subject: in.Name, Err: err}, "Failed to update camera")
		return nil, err
	}

	s.log.Info().Int("camera_id", id).Msg("camera updated")

	s.writeSucceeded(ctx, Activity{Action: ActionCameraUpdate, CameraID: &id, Subject: camera.Name})
	return camera, nil
}

func (s *CameraService) Delete(ctx context.Context, id int) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	subject := ""
	if view, ok := s.poller.View(id); ok {
		subject = view.Name
	}

	if err := s.client.DeleteCamera(ctx, id); err != nil {
		err = backendErr(fmt.Sprintf("delete camera %d", id), err)
		s.writeFailed(ctx, Activity{Action: ActionCameraDelete, CameraID: &id, Subject: subject, Err: err}, "Failed to delete camera")
		return err
	}

	s.log.Info().Int("camera_id", id).Msg("camera deleted")

	s.writeSucceeded(ctx, Activity{Action: ActionCameraDelete, CameraID: &id, Subject: subject})
	return nil
}

func (s *CameraService) ToggleActive(ctx context.Context, id int) error {
	return s.toggle(ctx, id, ActionCameraToggleActive, func(c *lpr.Camera, p *lpr.CameraPatch) {
		c.IsActive = !c.IsActive
		value := c.IsActive
		p.IsActive = &value
	})
}

func (s *CameraService) ToggleTracking(ctx context.Context, id int) error {
	return s.toggle(ctx, id, ActionCameraToggleTracking, func(c *lpr.Camera, p *lpr.CameraPatch) {
		c.VehicleTrackingEnabled = !c.VehicleTrackingEnabled
		value := c.VehicleTrackingEnabled
		p.VehicleTrackingEnabled = &value
	})
}

// toggle flips a flag locally before the write, then reconciles with the
// backend. When the write and the reconciling fetch both fail the
// pre-toggle record is put back.
func (s *CameraService) toggle(ctx context.Context, id int, action string, flip func(*lpr.Camera, *lpr.CameraPatch)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	view, ok := s.poller.View(id)
	if !ok {
		return fmt.Errorf("%w: camera %d", ErrNotFound, id)
	}
	previous := view.Camera

	next := previous
	var patch lpr.CameraPatch
	flip(&next, &patch)
	s.poller.Update(next)

	detail := map[string]any{}
	if patch.IsActive != nil {
		detail["is_active"] = *patch.IsActive
	}
	if patch.VehicleTrackingEnabled != nil {
		detail["vehicle_tracking_enabled"] = *patch.VehicleTrackingEnabled
	}

	if _, err := s.client.UpdateCamera(ctx, id, patch); err != nil {
		err = backendErr(fmt.Sprintf("toggle camera %d", id), err)
		s.log.Warn().Err(err).Int("camera_id", id).Str("action", action).Msg("camera toggle failed")
		s.setBanner("Failed to update camera: " + Message(err))
		s.journal.Record(ctx, Activity{Action: action, CameraID: &id, Subject: previous.Name, Err: err, Detail: detail})

		if refreshErr := s.refresh(ctx); refreshErr != nil {
			s.log.Warn().Err(refreshErr).Int("camera_id", id).Msg("reconcile after failed toggle failed, restoring")
			s.poller.Update(previous)
		}
		return err
	}

	s.writeSucceeded(ctx, Activity{Action: action, CameraID: &id, Subject: previous.Name, Detail: detail})
	return nil
}

func (s *CameraService) writeSucceeded(ctx context.Context, a Activity) {
	s.clearBanner()
	s.journal.Record(ctx, a)

	if err := s.refresh(ctx); err != nil {
		s.log.Warn().Err(err).Str("action", a.Action).Msg("camera list refresh failed")
		s.setBanner("Failed to refresh cameras: " + Message(err))
	}
}

func (s *CameraService) writeFailed(ctx context.Context, a Activity, prefix string) {
	event := s.log.Error()
	var status *backend.StatusError
	if errors.As(a.Err, &status) && status.StatusCode < 500 {
		event = s.log.Warn()
	}
	event.Err(a.Err).Str("action", a.Action).Msg("camera write failed")

	s.setBanner(prefix + ": " + Message(a.Err))
	s.journal.Record(ctx, a)
}

// Banner is the page-level error of the camera section, empty when there is none.
func (s *CameraService) Banner() string {
	s.bannerMu.RLock()
	defer s.bannerMu.RUnlock()
	return s.banner
}

func (s *CameraService) DismissBanner() {
	s.clearBanner()
}

func (s *CameraService) setBanner(msg string) {
	s.bannerMu.Lock()
	s.banner = msg
	s.bannerMu.Unlock()
}

func (s *CameraService) clearBanner() {
	s.bannerMu.Lock()
	s.banner = ""
	s.bannerMu.Unlock()
}
