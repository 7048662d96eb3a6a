package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"lpr-dashboard/internal/backend"
	"lpr-dashboard/internal/domain/lpr"
)

type RepeatedPlatesService struct {
	client *backend.Client
	log    zerolog.Logger
}

func NewRepeatedPlatesService(client *backend.Client, log zerolog.Logger) *RepeatedPlatesService {
	return &RepeatedPlatesService{
		client: client,
		log:    log,
	}
}

// Groups returns the backend's groups for the window. Groups are shown as
// returned; the count >= 2 threshold is the backend's.
func (s *RepeatedPlatesService) Groups(ctx context.Context, hours int) ([]lpr.RepeatedPlateGroup, error) {
	if !lpr.IsValidTimeframe(hours) {
		return nil, fmt.Errorf("%w: timeframe must be one of 24, 72, 168 hours", ErrInvalidInput)
	}

	groups, err := s.client.RepeatedPlates(ctx, hours)
	if err != nil {
		s.log.Warn().Err(err).Int("timeframe", hours).Msg("failed to fetch repeated plates")
		return nil, backendErr("repeated plates", err)
	}

	s.log.Debug().Int("timeframe", hours).Int("groups", len(groups)).Msg("fetched repeated plates")
	return groups, nil
}
