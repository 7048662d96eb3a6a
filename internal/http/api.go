package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"lpr-dashboard/internal/domain/lpr"
	"lpr-dashboard/internal/export"
	"lpr-dashboard/internal/repository"
	"lpr-dashboard/internal/service"
)

const (
	uploadFormOverhead = 1 << 20
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type cameraStateItem struct {
	lpr.CameraView
	ShowSnapshot bool   `json:"show_snapshot"`
	StatusLabel  string `json:"status_label"`
}

type cameraState struct {
	Cameras []cameraStateItem `json:"cameras"`
	Banner  string            `json:"banner"`
	Clock   string            `json:"clock"`
}

// cameraState is polled by every open dashboard once per second.
func (h *Handler) cameraState(c *gin.Context) {
	views := h.cameras.Views()
	items := make([]cameraStateItem, 0, len(views))
	for _, v := range views {
		items = append(items, cameraStateItem{
			CameraView:   v,
			ShowSnapshot: v.ShowSnapshot(),
			StatusLabel:  v.Status.Label(),
		})
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, successResponse(cameraState{
		Cameras: items,
		Banner:  h.cameras.Banner(),
		Clock:   h.clock(),
	}))
}

func (h *Handler) snapshot(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse("invalid camera id"))
		return
	}

	frame, ok := h.poller.Frame(id)
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse("no snapshot available"))
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, frame.ContentType, frame.Data)
}

type detectionPageResponse struct {
	*lpr.DetectionPage
	HasPrev    bool `json:"has_prev"`
	HasNext    bool `json:"has_next"`
	TotalPages int  `json:"total_pages,omitempty"`
}

func (h *Handler) listDetections(c *gin.Context) {
	q, err := parseDetectionQuery(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	page, err := h.detections.List(c.Request.Context(), q)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(detectionPageResponse{
		DetectionPage: page,
		HasPrev:       page.HasPrev(),
		HasNext:       page.HasNext(),
		TotalPages:    page.TotalPages(),
	}))
}

// parseDetectionQuery is strict, unlike the dashboard page.
func parseDetectionQuery(c *gin.Context) (service.DetectionQuery, error) {
	var q service.DetectionQuery

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return q, fmt.Errorf("%w: page must be a positive integer", service.ErrInvalidInput)
		}
		q.Page = page
	}
	if raw := c.Query("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("%w: page size must be one of 10, 20, 40", service.ErrInvalidInput)
		}
		q.PageSize = size
	}
	source, ok := lpr.ParseSourceType(c.Query("source_type"))
	if !ok {
		return q, fmt.Errorf("%w: source type must be camera or file", service.ErrInvalidInput)
	}
	q.SourceType = source
	return q, nil
}

func (h *Handler) upload(c *gin.Context) {
	// ContentLength covers the whole multipart body, not the file itself.
	if c.Request.ContentLength > service.MaxUploadBytes+uploadFormOverhead {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse(uploadTooLargeMessage()))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, service.MaxUploadBytes+uploadFormOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse(
				fmt.Sprintf("File is too large. Maximum allowed size is %dMB.", service.MaxUploadBytes>>20),
			))
		case errors.Is(err, http.ErrMissingFile):
			h.handleError(c, service.ErrNoFileSelected)
		default:
			c.JSON(http.StatusBadRequest, errorResponse("invalid multipart payload"))
		}
		return
	}

	file, err := header.Open()
	if err != nil {
		h.log.Error().Err(err).Str("filename", header.Filename).Msg("failed to open uploaded file")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	defer file.Close()

	result, err := h.uploads.Upload(c.Request.Context(), service.UploadInput{
		Filename:        header.Filename,
		ContentType:     header.Header.Get("Content-Type"),
		Size:            header.Size,
		Body:            file,
		StartTimeOffset: c.PostForm("start_time_offset"),
		Location:        c.PostForm("location"),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(result))
}

func uploadTooLargeMessage() string {
	return fmt.Sprintf("File is too large. Maximum allowed size is %dMB.", service.MaxUploadBytes>>20)
}

func (h *Handler) repeatedPlates(c *gin.Context) {
	hours, err := strconv.Atoi(c.Param("timeframe"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("timeframe must be a number of hours"))
		return
	}

	groups, err := h.repeated.Groups(c.Request.Context(), hours)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      groups,
		"timeframe": timeframeLabel(hours),
	})
}

func (h *Handler) listActivity(c *gin.Context) {
	filter := repository.ActivityFilter{
		Action: c.Query("action"),
	}
	if raw := c.Query("camera_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("camera_id must be a number"))
			return
		}
		filter.CameraID = &id
	}
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		filter.Limit = l
	}
	if o, err := strconv.Atoi(c.Query("offset")); err == nil && o >= 0 {
		filter.Offset = o
	}

	entries, err := h.journal.List(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    entries,
		"enabled": h.journal.Enabled(),
	})
}

func (h *Handler) exportDetections(c *gin.Context) {
	q, err := parseDetectionQuery(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	page, err := h.detections.List(c.Request.Context(), q)
	if err != nil {
		h.handleError(c, err)
		return
	}

	workbook, err := export.Detections(page.Items)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.sendWorkbook(c, fmt.Sprintf("detections-page-%d.xlsx", page.Page), workbook)
}

func (h *Handler) exportRepeated(c *gin.Context) {
	hours := lpr.DefaultTimeframeHours
	if raw := c.Query("timeframe"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("timeframe must be a number of hours"))
			return
		}
		hours = v
	}

	groups, err := h.repeated.Groups(c.Request.Context(), hours)
	if err != nil {
		h.handleError(c, err)
		return
	}

	workbook, err := export.Repeated(timeframeLabel(hours), groups)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.sendWorkbook(c, fmt.Sprintf("repeated-plates-%dh.xlsx", hours), workbook)
}

func (h *Handler) sendWorkbook(c *gin.Context, filename string, workbook *excelize.File) {
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)
	if err := export.Write(c.Writer, workbook); err != nil {
		h.log.Error().Err(err).Str("filename", filename).Msg("failed to write workbook")
	}
}
