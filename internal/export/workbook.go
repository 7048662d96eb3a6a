package export

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"lpr-dashboard/internal/domain/lpr"
)

const (
	DetectionsSheet = "Detections"
	RepeatedSheet   = "Repeated plates"
	SightingsSheet  = "Sightings"

	timeLayout = "2006-01-02 15:04:05"
)

var (
	detectionHeader = []any{"Plate", "Confidence", "Band", "Source", "Source name", "Location", "Detected at", "Video timestamp", "Start offset", "Thumbnail", "Full image"}
	repeatedHeader  = []any{"Plate", "Count", "First seen", "Last seen", "Locations"}
	sightingHeader  = []any{"Plate", "Detected at", "Source", "Location", "Confidence"}
)

// Detections builds a workbook with one row per detection.
func Detections(items []lpr.Detection) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", DetectionsSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeDetections(f, items); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Repeated builds a workbook with a summary sheet and a sheet listing every
// sighting of the grouped plates.
func Repeated(tf lpr.Timeframe, groups []lpr.RepeatedPlateGroup) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", RepeatedSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeRepeated(f, tf, groups); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Report combines the repeated plates of tf with a list of recent detections.
func Report(tf lpr.Timeframe, groups []lpr.RepeatedPlateGroup, detections []lpr.Detection) (*excelize.File, error) {
	f, err := Repeated(tf, groups)
	if err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(DetectionsSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeDetections(f, detections); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Write streams the workbook and closes it.
func Write(w io.Writer, f *excelize.File) error {
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeDetections(f *excelize.File, items []lpr.Detection) error {
	if err := writeHeader(f, DetectionsSheet, detectionHeader); err != nil {
		return err
	}
	for i, d := range items {
		row := []any{
			d.PlateNumber,
			d.Confidence,
			string(d.ConfidenceBand()),
			string(d.SourceType),
			d.SourceName,
			d.Location,
			formatTime(d),
			optionalFloat(d.VideoTimestamp),
			optionalString(d.StartTimeOffset),
			d.ThumbnailPath,
			d.FullImagePath,
		}
		if err := setRow(f, DetectionsSheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(DetectionsSheet, "A", "K", 18)
}

func writeRepeated(f *excelize.File, tf lpr.Timeframe, groups []lpr.RepeatedPlateGroup) error {
	if err := writeHeader(f, RepeatedSheet, repeatedHeader); err != nil {
		return err
	}
	if _, err := f.NewSheet(SightingsSheet); err != nil {
		return err
	}
	if err := writeHeader(f, SightingsSheet, sightingHeader); err != nil {
		return err
	}

	sightingRow := 2
	for i, g := range groups {
		first, last := span(g.Detections)
		row := []any{g.PlateNumber, g.Count, first, last, locations(g.Detections)}
		if err := setRow(f, RepeatedSheet, i+2, row); err != nil {
			return err
		}

		for _, d := range g.Detections {
			row := []any{g.PlateNumber, formatTime(d), string(d.SourceType), d.Location, d.Confidence}
			if err := setRow(f, SightingsSheet, sightingRow, row); err != nil {
				return err
			}
			sightingRow++
		}
	}

	footer := len(groups) + 3
	if err := setRow(f, RepeatedSheet, footer, []any{"Timeframe", tf.Label}); err != nil {
		return err
	}
	if err := f.SetColWidth(RepeatedSheet, "A", "E", 20); err != nil {
		return err
	}
	return f.SetColWidth(SightingsSheet, "A", "E", 20)
}

func writeHeader(f *excelize.File, sheet string, header []any) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func formatTime(d lpr.Detection) string {
	if d.DetectedAt.IsZero() {
		return ""
	}
	return d.DetectedAt.UTC().Format(timeLayout)
}

func span(detections []lpr.Detection) (first, last string) {
	var minT, maxT lpr.Detection
	for i, d := range detections {
		if i == 0 || d.DetectedAt.Before(minT.DetectedAt) {
			minT = d
		}
		if i == 0 || d.DetectedAt.After(maxT.DetectedAt) {
			maxT = d
		}
	}
	return formatTime(minT), formatTime(maxT)
}

func locations(detections []lpr.Detection) string {
	seen := map[string]struct{}{}
	for _, d := range detections {
		if d.Location != "" {
			seen[d.Location] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

func optionalString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optionalFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
