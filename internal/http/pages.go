package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lpr-dashboard/internal/domain/lpr"
	"lpr-dashboard/internal/service"
)

func (h *Handler) clock() string {
	return lpr.FormatClock(h.now())
}

func (h *Handler) dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	q := parseDashboardQuery(c, h.detections.DefaultPageSize())

	page := dashboardPage{
		Layout:                h.layout(c, "Dashboard", q.URL()),
		PollIntervalMs:        h.config.Poller.Interval.Milliseconds(),
		Cameras:               h.cameras.Views(),
		RefreshURL:            q.URL(),
		Sources:               q.sourceLinks(),
		PageSizes:             q.pageSizeLinks(),
		Timeframes:            q.timeframeLinks(),
		ExportDetectionsURL:   q.detectionsExportURL(),
		ExportRepeatedURL:     q.repeatedExportURL(),
		MaxUploadBytes:        service.MaxUploadBytes,
		DefaultUploadLocation: service.DefaultUploadLocation,
	}

	detections, err := h.detections.List(ctx, service.DetectionQuery{
		Page:       q.Page,
		PageSize:   q.Size,
		SourceType: q.Source,
	})
	if err != nil {
		page.DetectionErr = "Failed to load detections: " + service.Message(err)
	} else {
		page.Detections = detections
		if detections.HasPrev() {
			page.PrevURL = q.with(func(n *dashboardQuery) { n.Page-- })
		}
		if detections.HasNext() {
			page.NextURL = q.with(func(n *dashboardQuery) { n.Page++ })
		}
	}

	groups, err := h.repeated.Groups(ctx, q.Timeframe)
	if err != nil {
		page.RepeatedErr = "Failed to load repeated plates: " + service.Message(err)
	} else {
		page.Repeated = q.groupViews(groups)
	}

	page.Banner = h.cameras.Banner()

	c.HTML(http.StatusOK, "dashboard.html", page)
}

func (h *Handler) toggleTheme(c *gin.Context) {
	next := h.theme.Toggle(c.Writer, c.Request)
	h.log.Debug().Str("theme", string(next)).Msg("theme toggled")
	c.Redirect(http.StatusSeeOther, safeReturn(c.PostForm("return")))
}

func (h *Handler) dismissBanner(c *gin.Context) {
	h.cameras.DismissBanner()
	c.Redirect(http.StatusSeeOther, safeReturn(c.PostForm("return")))
}

func (h *Handler) newCameraForm(c *gin.Context) {
	returnURL := safeReturn(c.Query("return"))
	h.renderCameraForm(c, http.StatusOK, h.cameraForm(c, 0, returnURL, service.CameraInput{IsActive: true}))
}

func (h *Handler) editCameraForm(c *gin.Context) {
	returnURL := safeReturn(c.Query("return"))
	id, ok := cameraID(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, returnURL)
		return
	}

	camera, err := h.cameras.Get(c.Request.Context(), id)
	if err != nil {
		h.log.Warn().Err(err).Int("camera_id", id).Msg("failed to load camera for editing")
		c.Redirect(http.StatusSeeOther, returnURL)
		return
	}

	h.renderCameraForm(c, http.StatusOK, h.cameraForm(c, id, returnURL, service.InputFromCamera(*camera)))
}

func (h *Handler) createCamera(c *gin.Context) {
	input := bindCameraInput(c)
	returnURL := safeReturn(c.PostForm("return"))

	if _, err := h.cameras.Create(c.Request.Context(), input); err != nil {
		h.cameraFormError(c, 0, returnURL, input, err)
		return
	}
	c.Redirect(http.StatusSeeOther, returnURL)
}

func (h *Handler) updateCamera(c *gin.Context) {
	input := bindCameraInput(c)
	returnURL := safeReturn(c.PostForm("return"))
	id, ok := cameraID(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, returnURL)
		return
	}

	if _, err := h.cameras.Update(c.Request.Context(), id, input); err != nil {
		h.cameraFormError(c, id, returnURL, input, err)
		return
	}
	c.Redirect(http.StatusSeeOther, returnURL)
}

// The camera section banner carries the outcome of delete and toggles.
func (h *Handler) deleteCamera(c *gin.Context) {
	h.cameraAction(c, h.cameras.Delete)
}

func (h *Handler) toggleActive(c *gin.Context) {
	h.cameraAction(c, h.cameras.ToggleActive)
}

func (h *Handler) toggleTracking(c *gin.Context) {
	h.cameraAction(c, h.cameras.ToggleTracking)
}

func (h *Handler) cameraAction(c *gin.Context, action func(ctx context.Context, id int) error) {
	returnURL := safeReturn(c.PostForm("return"))
	id, ok := cameraID(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, returnURL)
		return
	}
	if err := action(c.Request.Context(), id); err != nil {
		h.log.Warn().Err(err).Int("camera_id", id).Str("path", c.FullPath()).Msg("camera action failed")
	}
	c.Redirect(http.StatusSeeOther, returnURL)
}

func (h *Handler) cameraForm(c *gin.Context, id int, returnURL string, input service.CameraInput) cameraFormPage {
	page := cameraFormPage{
		Layout:    h.layout(c, "Add Camera", returnURL),
		Heading:   "Add Camera",
		Action:    "/cameras",
		Submit:    "Add Camera",
		Input:     input,
		Errors:    map[string]string{},
		Positions: lpr.Positions,
	}
	if id != 0 {
		page.Title = "Edit Camera"
		page.Heading = "Edit Camera"
		page.Action = "/cameras/" + strconv.Itoa(id)
		page.Submit = "Save Changes"
	}
	return page
}

func (h *Handler) cameraFormError(c *gin.Context, id int, returnURL string, input service.CameraInput, err error) {
	page := h.cameraForm(c, id, returnURL, input)

	var validation *service.ValidationError
	status := http.StatusBadGateway
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
		if len(validation.Fields) > 0 {
			page.Errors = validation.Fields
		} else {
			page.Error = validation.Message
		}
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
		page.Error = service.Message(err)
	default:
		page.Error = h.cameras.Banner()
		if page.Error == "" {
			page.Error = service.Message(err)
		}
	}

	h.renderCameraForm(c, status, page)
}

func (h *Handler) renderCameraForm(c *gin.Context, status int, page cameraFormPage) {
	c.HTML(status, "camera_form.html", page)
}

func bindCameraInput(c *gin.Context) service.CameraInput {
	return service.CameraInput{
		Name:                   c.PostForm("name"),
		Location:               c.PostForm("location"),
		RTSPURL:                c.PostForm("rtsp_url"),
		IsActive:               formBool(c.PostForm("is_active")),
		VehicleTrackingEnabled: formBool(c.PostForm("vehicle_tracking_enabled")),
	}
}

func formBool(value string) bool {
	switch value {
	case "true", "on", "1":
		return true
	}
	return false
}

func cameraID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
