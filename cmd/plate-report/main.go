package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"lpr-dashboard/internal/backend"
	"lpr-dashboard/internal/domain/lpr"
	"lpr-dashboard/internal/export"
	"lpr-dashboard/internal/logger"
)

func main() {
	backendURL := pflag.String("backend", envOr("BACKEND_URL", "http://localhost:8000"), "recognition backend base URL")
	hours := pflag.Int("timeframe", lpr.DefaultTimeframeHours, "repeated plates lookback in hours (24, 72 or 168)")
	limit := pflag.Int("limit", 100, "number of recent detections to include")
	source := pflag.String("source", "", "restrict detections to camera or file")
	out := pflag.StringP("out", "o", "", "output file (default plate-report-<timeframe>h.xlsx)")
	timeout := pflag.Duration("timeout", 30*time.Second, "backend request timeout")
	pflag.Parse()

	log := logger.New(envOr("APP_ENV", "development"))

	if !lpr.IsValidTimeframe(*hours) {
		log.Fatal().Int("timeframe", *hours).Msg("timeframe must be one of 24, 72, 168")
	}
	sourceType, ok := lpr.ParseSourceType(*source)
	if !ok {
		log.Fatal().Str("source", *source).Msg("source must be camera or file")
	}
	if *limit < 0 {
		log.Fatal().Int("limit", *limit).Msg("limit cannot be negative")
	}
	if *out == "" {
		*out = fmt.Sprintf("plate-report-%dh.xlsx", *hours)
	}

	client := backend.NewClient(*backendURL, *timeout)
	ctx := context.Background()

	groups, err := client.RepeatedPlates(ctx, *hours)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to fetch repeated plates")
	}

	detections := []lpr.Detection{}
	if *limit > 0 {
		detections, _, err = client.ListDetections(ctx, backend.DetectionQuery{Limit: *limit, SourceType: sourceType})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to fetch detections")
		}
	}

	var tf lpr.Timeframe
	for _, candidate := range lpr.Timeframes {
		if candidate.Hours == *hours {
			tf = candidate
		}
	}

	workbook, err := export.Report(tf, groups, detections)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build report")
	}

	file, err := os.Create(*out)
	if err != nil {
		log.Fatal().Err(err).Str("out", *out).Msg("failed to create output file")
	}
	if err := export.Write(file, workbook); err != nil {
		file.Close()
		log.Fatal().Err(err).Msg("failed to write report")
	}
	if err := file.Close(); err != nil {
		log.Fatal().Err(err).Msg("failed to close output file")
	}

	log.Info().
		Str("out", *out).
		Int("repeated_plates", len(groups)).
		Int("detections", len(detections)).
		Msg("report written")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
