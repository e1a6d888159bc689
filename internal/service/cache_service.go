package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduler/internal/models"
	"github.com/noah-isme/sma-scheduler/internal/scheduler"
	appErrors "github.com/noah-isme/sma-scheduler/pkg/errors"
)

const comparisonKeyPrefix = "comparison:"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService stores comparison reports keyed by the inputs that produced them.
// Cache failures are logged and treated as misses.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// LoadComparison returns the cached report for key, if any.
func (s *CacheService) LoadComparison(ctx context.Context, key string) (*models.ComparisonReport, bool) {
	if !s.Enabled() || key == "" {
		return nil, false
	}
	var report models.ComparisonReport
	start := time.Now()
	err := s.repo.Get(ctx, key, &report)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	s.metrics.RecordCacheOperation(true, duration)
	return &report, true
}

// StoreComparison caches report under key. ttl <= 0 uses the default.
func (s *CacheService) StoreComparison(ctx context.Context, key string, report *models.ComparisonReport, ttl time.Duration) {
	if !s.Enabled() || key == "" || report == nil {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, report, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// PurgeComparisons drops every cached comparison report.
func (s *CacheService) PurgeComparisons(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, comparisonKeyPrefix+"*"); err != nil {
		s.logger.Warn("cache invalidate failed", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, false, "purge cached comparisons")
	}
	s.logger.Info("cached comparisons purged")
	return nil
}

// ComparisonKey derives the cache key from the snapshot content, the effective weights
// and the timeout. Any change to one of them yields a different key.
func ComparisonKey(snapshot *models.Snapshot, scoring scheduler.ScoringConfig, timeoutSeconds int) (string, error) {
	fingerprint, err := snapshot.Fingerprint()
	if err != nil {
		return "", err
	}
	weights, err := json.Marshal(scoring)
	if err != nil {
		return "", fmt.Errorf("marshal scoring: %w", err)
	}
	weightsID := uuid.NewSHA1(uuid.NameSpaceOID, weights)
	return fmt.Sprintf("%s%s:%s:%d", comparisonKeyPrefix, fingerprint, weightsID, timeoutSeconds), nil
}
