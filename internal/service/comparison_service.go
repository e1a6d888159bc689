package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduler/internal/dto"
	"github.com/noah-isme/sma-scheduler/internal/models"
	"github.com/noah-isme/sma-scheduler/internal/scheduler"
	appErrors "github.com/noah-isme/sma-scheduler/pkg/errors"
	"github.com/noah-isme/sma-scheduler/pkg/logger"
)

// ComparisonService runs every algorithm against the same snapshot and ranks them.
type ComparisonService struct {
	source       SnapshotSource
	cache        *CacheService
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          SchedulingConfig
	newScheduler schedulerFactory
	now          func() time.Time
}

// NewComparisonService wires the harness. cache and metrics may be nil.
func NewComparisonService(
	source SnapshotSource,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SchedulingConfig,
) *ComparisonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComparisonService{
		source:       source,
		cache:        cache,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
		newScheduler: scheduler.New,
		now:          time.Now,
	}
}

// Compare runs greedy, genetic and hybrid concurrently on one term under the same timeout.
func (s *ComparisonService) Compare(ctx context.Context, semester, academicYear string, timeoutSeconds int) (*models.ComparisonReport, error) {
	return s.CompareWith(ctx, dto.CompareRequest{
		Semester:       semester,
		AcademicYear:   academicYear,
		TimeoutSeconds: timeoutSeconds,
	})
}

// CompareWith is Compare with a course filter and weight overrides.
// Only reports in which every algorithm completed are cached.
func (s *ComparisonService) CompareWith(ctx context.Context, req dto.CompareRequest) (*models.ComparisonReport, error) {
	if req.TimeoutSeconds < 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, fmt.Sprintf("timeout must not be negative, got %d", req.TimeoutSeconds))
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, true, "invalid comparison payload")
	}

	query := models.SnapshotQuery{Semester: req.Semester, AcademicYear: req.AcademicYear, CourseIDs: req.CourseIDs}
	snapshot, scoring, err := prepareRun(ctx, s.source, query, s.cfg.Scoring, req.Weights)
	if err != nil {
		return nil, err
	}

	cacheKey := ""
	if s.cache.Enabled() {
		if key, err := ComparisonKey(snapshot, scoring, req.TimeoutSeconds); err == nil {
			cacheKey = key
		}
	}
	if cached, hit := s.cache.LoadComparison(ctx, cacheKey); hit {
		s.logger.Debug("comparison served from cache", zap.String("key", cacheKey))
		return cached, nil
	}

	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	results := s.runAll(ctx, snapshot, scoring, timeout)

	report := &models.ComparisonReport{
		Semester:       snapshot.Semester,
		AcademicYear:   snapshot.AcademicYear,
		TimeoutSeconds: req.TimeoutSeconds,
		Results:        results,
		BestOverall:    BestOverall(results),
		GeneratedAt:    s.now().UTC(),
	}
	s.metrics.ObserveComparison(report.BestOverall)
	s.logger.Info("comparison completed",
		zap.String("semester", report.Semester),
		zap.String("academic_year", report.AcademicYear),
		zap.String("best", string(report.BestOverall)),
	)

	if allCompleted(results) {
		s.cache.StoreComparison(ctx, cacheKey, report, s.cfg.CacheTTL)
	}
	return report, nil
}

// runAll starts one runner per algorithm and waits until each reports or the hard deadline passes.
func (s *ComparisonService) runAll(ctx context.Context, snapshot *models.Snapshot, scoring scheduler.ScoringConfig, timeout time.Duration) map[models.Algorithm]models.AlgorithmOutcome {
	type finished struct {
		algorithm models.Algorithm
		outcome   models.AlgorithmOutcome
	}
	done := make(chan finished, len(models.Algorithms))
	for _, algorithm := range models.Algorithms {
		clone := snapshot.Clone()
		go func(algorithm models.Algorithm) {
			done <- finished{algorithm: algorithm, outcome: s.runOne(ctx, algorithm, clone, scoring, timeout)}
		}(algorithm)
	}

	guard := time.NewTimer(timeout + s.cfg.HardDeadlineGrace)
	defer guard.Stop()

	results := make(map[models.Algorithm]models.AlgorithmOutcome, len(models.Algorithms))
	for len(results) < len(models.Algorithms) {
		select {
		case f := <-done:
			results[f.algorithm] = f.outcome
		case <-guard.C:
			s.abandon(results, "exceeded hard deadline")
			return results
		}
	}
	return results
}

// abandon marks every runner that has not reported as failed.
func (s *ComparisonService) abandon(results map[models.Algorithm]models.AlgorithmOutcome, reason string) {
	for _, algorithm := range models.Algorithms {
		if _, ok := results[algorithm]; ok {
			continue
		}
		s.logger.Error("runner abandoned", zap.String("algorithm", string(algorithm)), zap.String("reason", reason))
		s.metrics.ObserveFailure(algorithm, 0)
		results[algorithm] = models.AlgorithmOutcome{
			Algorithm: algorithm,
			Status:    models.RunStatusFailed,
			Error:     reason,
			ErrorCode: appErrors.ErrTimeout.Code,
			TimedOut:  true,
		}
	}
}

func (s *ComparisonService) runOne(ctx context.Context, algorithm models.Algorithm, snapshot *models.Snapshot, scoring scheduler.ScoringConfig, timeout time.Duration) (outcome models.AlgorithmOutcome) {
	runID := uuid.NewString()
	log := logger.WithRun(s.logger, runID, string(algorithm))
	start := time.Now()

	fail := func(err error) models.AlgorithmOutcome {
		appErr := appErrors.FromError(err)
		elapsed := time.Since(start)
		s.metrics.ObserveFailure(algorithm, elapsed)
		log.Error("runner failed", zap.Error(err))
		return models.AlgorithmOutcome{
			Algorithm:            algorithm,
			Status:               models.RunStatusFailed,
			Error:                appErr.Error(),
			ErrorCode:            appErr.Code,
			ExecutionTimeSeconds: elapsed.Seconds(),
		}
	}
	defer func() {
		if r := recover(); r != nil {
			outcome = fail(appErrors.Clone(appErrors.ErrAlgorithmInternal, fmt.Sprintf("panic: %v", r)))
		}
	}()

	constraints, _ := scheduler.BuildConstraints(snapshot)
	sched, err := s.newScheduler(algorithm, scheduler.Options{Genetic: s.cfg.Genetic, Hybrid: s.cfg.Hybrid, Logger: log})
	if err != nil {
		return fail(err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	result, err := sched.Schedule(runCtx, scheduler.Input{Snapshot: snapshot, Constraints: constraints, Scoring: scoring})
	if err != nil {
		return fail(err)
	}

	report := scheduler.NewRunReport(result, snapshot, scheduler.ReportMeta{
		RunID:        runID,
		Semester:     snapshot.Semester,
		AcademicYear: snapshot.AcademicYear,
	})
	s.metrics.ObserveRun(report, result.Duration)
	return models.AlgorithmOutcome{
		Algorithm:            algorithm,
		Status:               models.RunStatusCompleted,
		ExecutionTimeSeconds: report.ExecutionTimeSeconds,
		SuccessRate:          report.SuccessRate,
		Fitness:              report.Fitness,
		TimedOut:             report.TimedOut,
		Report:               &report,
		Result:               result.Result,
	}
}

// BestOverall picks the completed algorithm with the highest success rate, then fitness.
// Remaining ties go to the earlier algorithm in canonical order.
func BestOverall(results map[models.Algorithm]models.AlgorithmOutcome) models.Algorithm {
	var (
		best  models.Algorithm
		top   models.AlgorithmOutcome
		found bool
	)
	for _, algorithm := range models.Algorithms {
		o, ok := results[algorithm]
		if !ok || o.Status != models.RunStatusCompleted {
			continue
		}
		if !found || o.SuccessRate > top.SuccessRate || (o.SuccessRate == top.SuccessRate && o.Fitness > top.Fitness) {
			best, top, found = algorithm, o, true
		}
	}
	return best
}

func allCompleted(results map[models.Algorithm]models.AlgorithmOutcome) bool {
	for _, o := range results {
		if o.Status != models.RunStatusCompleted {
			return false
		}
	}
	return true
}
