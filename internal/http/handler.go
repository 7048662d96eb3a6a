package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lpr-dashboard/internal/config"
	"lpr-dashboard/internal/poller"
	"lpr-dashboard/internal/service"
	"lpr-dashboard/internal/theme"
)

type Services struct {
	Cameras    *service.CameraService
	Detections *service.DetectionService
	Uploads    *service.UploadService
	Repeated   *service.RepeatedPlatesService
	Journal    *service.ActivityJournal
}

type Handler struct {
	cameras    *service.CameraService
	detections *service.DetectionService
	uploads    *service.UploadService
	repeated   *service.RepeatedPlatesService
	journal    *service.ActivityJournal
	poller     *poller.Poller
	theme      *theme.Provider
	config     *config.Config
	log        zerolog.Logger
	now        func() time.Time
}

func NewHandler(
	services Services,
	cameraPoller *poller.Poller,
	themeProvider *theme.Provider,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		cameras:    services.Cameras,
		detections: services.Detections,
		uploads:    services.Uploads,
		repeated:   services.Repeated,
		journal:    services.Journal,
		poller:     cameraPoller,
		theme:      themeProvider,
		config:     cfg,
		log:        log,
		now:        time.Now,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", h.dashboard)
	r.POST("/theme", h.toggleTheme)
	r.POST("/banner/dismiss", h.dismissBanner)

	cameras := r.Group("/cameras")
	{
		cameras.GET("/new", h.newCameraForm)
		cameras.POST("", h.createCamera)
		cameras.GET("/:id/edit", h.editCameraForm)
		cameras.POST("/:id", h.updateCamera)
		cameras.POST("/:id/delete", h.deleteCamera)
		cameras.POST("/:id/toggle-active", h.toggleActive)
		cameras.POST("/:id/toggle-tracking", h.toggleTracking)
	}

	dashboard := r.Group("/dashboard")
	{
		dashboard.GET("/api/cameras", h.cameraState)
		dashboard.GET("/cameras/:id/snapshot", h.snapshot)
		dashboard.GET("/api/detections", h.listDetections)
		dashboard.POST("/api/uploads", h.upload)
		dashboard.GET("/api/repeated/:timeframe", h.repeatedPlates)
		dashboard.GET("/api/activity", h.listActivity)
		dashboard.GET("/export/detections.xlsx", h.exportDetections)
		dashboard.GET("/export/repeated.xlsx", h.exportRepeated)
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(service.Message(err)))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(service.Message(err)))
	case errors.Is(err, service.ErrBackend):
		h.log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("backend request failed")
		c.JSON(http.StatusBadGateway, errorResponse(service.Message(err)))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func errorResponse(message string) gin.H {
	return gin.H{"error": message}
}

func successResponse(data interface{}) gin.H {
	return gin.H{"data": data}
}

func (h *Handler) layout(c *gin.Context, title, returnURL string) Layout {
	return Layout{
		Title:     title,
		Theme:     h.theme.Resolve(c.Request),
		ThemeKey:  h.theme.StorageKey(),
		Clock:     h.clock(),
		ReturnURL: returnURL,
	}
}
