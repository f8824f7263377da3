package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/cache"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/metrics"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/models"
)

const (
	defaultJobCacheTTL = 10 * time.Minute
	maxJobQueryLength  = 200
)

// JobService serves listings from the external job search API through cache, which is
// injected so several instances can share it.
type JobService struct {
	client  JobSearchClient
	cache   cache.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewJobService(
	client JobSearchClient,
	c cache.Cache,
	ttl time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *JobService {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = defaultJobCacheTTL
	}
	if m == nil {
		m = metrics.New()
	}
	return &JobService{
		client:  client,
		cache:   c,
		ttl:     ttl,
		metrics: m,
		logger:  logger.With().Str("component", "job_service").Logger(),
	}
}

func (s *JobService) Search(ctx context.Context, query string, location string) ([]models.JobListing, error) {
	query = normalizeJobTerm(query)
	location = normalizeJobTerm(location)
	if query == "" {
		return nil, ErrValidation.WithMessage("q is required")
	}
	if len(query) > maxJobQueryLength || len(location) > maxJobQueryLength {
		return nil, ErrValidation.WithMessage("q and location must be at most 200 characters")
	}

	key := jobCacheKey(query, location)
	if cached, err := s.cache.Get(ctx, key); err == nil {
		var listings []models.JobListing
		if err := json.Unmarshal(cached, &listings); err == nil {
			s.metrics.JobCacheLookups.WithLabelValues("hit").Inc()
			return listings, nil
		}
		s.logger.Warn().Str("key", key).Msg("discarding undecodable cached job listings")
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn().Err(err).Str("key", key).Msg("job cache read failed")
	}
	s.metrics.JobCacheLookups.WithLabelValues("miss").Inc()

	listings, err := s.client.Search(ctx, query, location)
	if err != nil {
		s.logger.Error().Err(err).Str("query", query).Msg("job search failed")
		return nil, ErrJobSearchUnavailable.Wrap(err)
	}

	encoded, err := json.Marshal(listings)
	if err == nil {
		err = s.cache.Set(ctx, key, encoded, s.ttl)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("job cache write failed")
	}
	return listings, nil
}

func normalizeJobTerm(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}

func jobCacheKey(query, location string) string {
	return "jobs:" + query + "|" + location
}
