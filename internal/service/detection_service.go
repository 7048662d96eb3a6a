package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"lpr-dashboard/internal/backend"
	"lpr-dashboard/internal/domain/lpr"
)

type DetectionQuery struct {
	Page       int
	PageSize   int
	SourceType lpr.SourceType
}

type DetectionService struct {
	client          *backend.Client
	defaultPageSize int
	log             zerolog.Logger
}

func NewDetectionService(client *backend.Client, defaultPageSize int, log zerolog.Logger) *DetectionService {
	if !lpr.IsValidPageSize(defaultPageSize) {
		defaultPageSize = lpr.PageSizes[0]
	}
	return &DetectionService{
		client:          client,
		defaultPageSize: defaultPageSize,
		log:             log,
	}
}

func (s *DetectionService) DefaultPageSize() int {
	return s.defaultPageSize
}

// List fetches exactly one page; offset and filtering are applied by the backend.
func (s *DetectionService) List(ctx context.Context, q DetectionQuery) (*lpr.DetectionPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = s.defaultPageSize
	}
	if !lpr.IsValidPageSize(q.PageSize) {
		return nil, fmt.Errorf("%w: page size must be one of 10, 20, 40", ErrInvalidInput)
	}
	if _, ok := lpr.ParseSourceType(string(q.SourceType)); !ok {
		return nil, fmt.Errorf("%w: source type must be camera or file", ErrInvalidInput)
	}

	items, total, err := s.client.ListDetections(ctx, backend.DetectionQuery{
		Skip:       (q.Page - 1) * q.PageSize,
		Limit:      q.PageSize,
		SourceType: q.SourceType,
	})
	if err != nil {
		s.log.Warn().
			Err(err).
			Int("page", q.Page).
			Int("page_size", q.PageSize).
			Str("source_type", string(q.SourceType)).
			Msg("failed to fetch detections")
		return nil, backendErr("list detections", err)
	}

	return &lpr.DetectionPage{
		Items:      items,
		Page:       q.Page,
		PageSize:   q.PageSize,
		Total:      total,
		SourceType: q.SourceType,
	}, nil
}
