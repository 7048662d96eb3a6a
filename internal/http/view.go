package http

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"lpr-dashboard/internal/domain/lpr"
	"lpr-dashboard/internal/service"
	"lpr-dashboard/internal/theme"
	"lpr-dashboard/internal/utils"
)

// Layout is shared by every page.
type Layout struct {
	Title     string
	Theme     theme.Theme
	ThemeKey  string
	Clock     string
	ReturnURL string
}

type link struct {
	Label    string
	URL      string
	Selected bool
}

type repeatedGroupView struct {
	lpr.RepeatedPlateGroup
	Expanded  bool
	ToggleURL string
}

type dashboardPage struct {
	Layout
	PollIntervalMs int64
	Banner         string
	Cameras        []lpr.CameraView

	Detections   *lpr.DetectionPage
	DetectionErr string
	RefreshURL   string
	PrevURL      string
	NextURL      string
	Sources      []link
	PageSizes    []link

	Timeframes  []link
	Repeated    []repeatedGroupView
	RepeatedErr string

	ExportDetectionsURL string
	ExportRepeatedURL   string

	MaxUploadBytes        int64
	DefaultUploadLocation string
}

type cameraFormPage struct {
	Layout
	Heading   string
	Action    string
	Submit    string
	Error     string
	Input     service.CameraInput
	Errors    map[string]string
	Positions []string
}

// dashboardQuery is the page state carried in the URL. The expansion set of
// the repeated plates lives here so that reloads keep it.
type dashboardQuery struct {
	Page      int
	Size      int
	Source    lpr.SourceType
	Timeframe int
	Expanded  utils.PlateSet
}

// parseDashboardQuery never fails: unknown values fall back to defaults.
func parseDashboardQuery(c *gin.Context, defaultSize int) dashboardQuery {
	q := dashboardQuery{
		Page:      1,
		Size:      defaultSize,
		Timeframe: lpr.DefaultTimeframeHours,
	}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		q.Page = v
	}
	if v, err := strconv.Atoi(c.Query("size")); err == nil && lpr.IsValidPageSize(v) {
		q.Size = v
	}
	if st, ok := lpr.ParseSourceType(c.Query("source_type")); ok {
		q.Source = st
	}
	if v, err := strconv.Atoi(c.Query("timeframe")); err == nil && lpr.IsValidTimeframe(v) {
		q.Timeframe = v
	}
	q.Expanded = utils.ParsePlateSet(c.Query("expanded"))
	return q
}

func (q dashboardQuery) values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("size", strconv.Itoa(q.Size))
	if q.Source != "" {
		v.Set("source_type", string(q.Source))
	}
	v.Set("timeframe", strconv.Itoa(q.Timeframe))
	if len(q.Expanded) > 0 {
		v.Set("expanded", q.Expanded.String())
	}
	return v
}

func (q dashboardQuery) URL() string {
	return "/?" + q.values().Encode()
}

func (q dashboardQuery) with(fn func(*dashboardQuery)) string {
	fn(&q)
	return q.URL()
}

func (q dashboardQuery) sourceLinks() []link {
	options := []struct {
		label string
		value lpr.SourceType
	}{
		{"All", ""},
		{"Camera", lpr.SourceCamera},
		{"File", lpr.SourceFile},
	}
	links := make([]link, 0, len(options))
	for _, o := range options {
		value := o.value
		links = append(links, link{
			Label:    o.label,
			Selected: q.Source == value,
			URL: q.with(func(n *dashboardQuery) {
				n.Source = value
				n.Page = 1
			}),
		})
	}
	return links
}

func (q dashboardQuery) pageSizeLinks() []link {
	links := make([]link, 0, len(lpr.PageSizes))
	for _, size := range lpr.PageSizes {
		size := size
		links = append(links, link{
			Label:    strconv.Itoa(size),
			Selected: q.Size == size,
			URL: q.with(func(n *dashboardQuery) {
				n.Size = size
				n.Page = 1
			}),
		})
	}
	return links
}

// timeframeLinks drop the expansion set: a new window starts collapsed.
func (q dashboardQuery) timeframeLinks() []link {
	links := make([]link, 0, len(lpr.Timeframes))
	for _, tf := range lpr.Timeframes {
		hours := tf.Hours
		links = append(links, link{
			Label:    tf.Label,
			Selected: q.Timeframe == hours,
			URL: q.with(func(n *dashboardQuery) {
				n.Timeframe = hours
				n.Expanded = nil
			}),
		})
	}
	return links
}

func (q dashboardQuery) groupViews(groups []lpr.RepeatedPlateGroup) []repeatedGroupView {
	views := make([]repeatedGroupView, 0, len(groups))
	for _, g := range groups {
		plate := g.PlateNumber
		views = append(views, repeatedGroupView{
			RepeatedPlateGroup: g,
			Expanded:           q.Expanded.Has(plate),
			ToggleURL: q.with(func(n *dashboardQuery) {
				n.Expanded = q.Expanded.Toggled(plate)
			}),
		})
	}
	return views
}

func (q dashboardQuery) detectionsExportURL() string {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("size", strconv.Itoa(q.Size))
	if q.Source != "" {
		v.Set("source_type", string(q.Source))
	}
	return "/dashboard/export/detections.xlsx?" + v.Encode()
}

func (q dashboardQuery) repeatedExportURL() string {
	return "/dashboard/export/repeated.xlsx?timeframe=" + strconv.Itoa(q.Timeframe)
}

// safeReturn only follows same-origin paths.
func safeReturn(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "/"
	}
	return raw
}

func timeframeLabel(hours int) lpr.Timeframe {
	for _, tf := range lpr.Timeframes {
		if tf.Hours == hours {
			return tf
		}
	}
	return lpr.Timeframe{Hours: hours, Label: strconv.Itoa(hours) + " hours"}
}
