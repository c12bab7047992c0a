package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Service looks a city up across the region pages.
type Service struct {
	fetcher   DocumentFetcher
	regions   []Region
	extractor Extractor
	logger    *zap.Logger
}

// NewService creates a new Service. now supplies the report date; nil means time.Now.
func NewService(fetcher DocumentFetcher, regions []Region, now func() time.Time, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		fetcher:   fetcher,
		regions:   regions,
		extractor: Extractor{Now: now},
		logger:    logger,
	}
}

// Lookup walks the regions in order and returns the first match.
// It returns ErrNotFound when at least one region answered without the city,
// and ErrSourcesUnavailable when no region could be fetched.
func (s *Service) Lookup(ctx context.Context, city string) (Record, error) {
	log := s.logger.With(zap.String("city", city))

	var unreachable int
	for _, region := range s.regions {
		if err := ctx.Err(); err != nil {
			return Record{}, err
		}

		doc, err := s.fetcher.GetText(ctx, region.URL, browserHeader())
		if err != nil {
			unreachable++
			log.Warn("region fetch failed", zap.String("region", region.Name), zap.Error(err))
			continue
		}

		rec, err := s.extractor.Extract(doc, city)
		switch {
		case err == nil:
			log.Info("city found", zap.String("region", region.Name), zap.String("matched", rec.City))
			return rec, nil
		case errors.Is(err, ErrNotFound):
			log.Debug("city not in region", zap.String("region", region.Name), zap.Error(err))
		default:
			log.Warn("region document unusable", zap.String("region", region.Name), zap.Error(err))
		}
	}

	if len(s.regions) > 0 && unreachable == len(s.regions) {
		return Record{}, fmt.Errorf("%w: %d region(s) failed", ErrSourcesUnavailable, unreachable)
	}
	return Record{}, fmt.Errorf("%w: %s", ErrNotFound, city)
}
