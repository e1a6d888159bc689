package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduler/internal/dto"
	"github.com/noah-isme/sma-scheduler/internal/models"
	"github.com/noah-isme/sma-scheduler/internal/scheduler"
	"github.com/noah-isme/sma-scheduler/pkg/config"
	appErrors "github.com/noah-isme/sma-scheduler/pkg/errors"
	"github.com/noah-isme/sma-scheduler/pkg/logger"
)

// SnapshotSource supplies the input entities of a term.
type SnapshotSource interface {
	Load(ctx context.Context, query models.SnapshotQuery) (*models.Snapshot, error)
}

// ResultPublisher forwards finished runs to downstream consumers.
type ResultPublisher interface {
	Publish(ctx context.Context, messageType string, payload any) error
}

type schedulerFactory func(models.Algorithm, scheduler.Options) (scheduler.Scheduler, error)

// SchedulingConfig carries engine defaults applied to every run.
type SchedulingConfig struct {
	DefaultAlgorithm  models.Algorithm
	Timeout           time.Duration
	HardDeadlineGrace time.Duration
	CacheTTL          time.Duration
	Scoring           scheduler.ScoringConfig
	Genetic           scheduler.GeneticParameters
	Hybrid            scheduler.HybridParameters
}

// DefaultSchedulingConfig returns the documented defaults.
func DefaultSchedulingConfig() SchedulingConfig {
	return SchedulingConfig{
		DefaultAlgorithm:  models.AlgorithmHybrid,
		Timeout:           60 * time.Second,
		HardDeadlineGrace: 5 * time.Second,
		CacheTTL:          30 * time.Minute,
		Scoring:           scheduler.DefaultScoringConfig(),
		Genetic:           scheduler.DefaultGeneticParameters(),
		Hybrid:            scheduler.DefaultHybridParameters(),
	}
}

// SchedulingConfigFromSettings maps environment settings onto engine defaults.
func SchedulingConfigFromSettings(s config.SchedulerConfig) SchedulingConfig {
	cfg := DefaultSchedulingConfig()
	if algorithm, ok := models.ParseAlgorithm(s.DefaultAlgorithm); ok {
		cfg.DefaultAlgorithm = algorithm
	}
	if s.Timeout > 0 {
		cfg.Timeout = s.Timeout
	}
	if s.HardDeadlineGrace > 0 {
		cfg.HardDeadlineGrace = s.HardDeadlineGrace
	}
	if s.CacheTTL > 0 {
		cfg.CacheTTL = s.CacheTTL
	}
	cfg.Scoring = scheduler.ScoringConfigFromSettings(s.Weights)
	cfg.Genetic = scheduler.GeneticParametersFromSettings(s.Genetic)
	if s.HybridSeedCount > 0 {
		cfg.Hybrid.SeedCount = s.HybridSeedCount
	}
	return cfg
}

// SchedulingService executes a single algorithm against a term snapshot.
type SchedulingService struct {
	source       SnapshotSource
	publisher    ResultPublisher
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          SchedulingConfig
	newScheduler schedulerFactory
}

// NewSchedulingService wires the run pipeline. publisher and metrics may be nil.
func NewSchedulingService(
	source SnapshotSource,
	publisher ResultPublisher,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SchedulingConfig,
) *SchedulingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulingService{
		source:       source,
		publisher:    publisher,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
		newScheduler: scheduler.New,
	}
}

// Run loads the term, schedules it with the requested algorithm and reports the outcome.
// Unplaced sessions are part of the report, not an error.
func (s *SchedulingService) Run(ctx context.Context, req dto.ScheduleRunRequest) (*models.RunOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, true, "invalid schedule run payload")
	}

	algorithm := s.cfg.DefaultAlgorithm
	if req.Algorithm != "" {
		algorithm, _ = models.ParseAlgorithm(req.Algorithm)
	}
	timeout := s.cfg.Timeout
	if req.TimeoutSeconds != nil {
		timeout = time.Duration(*req.TimeoutSeconds) * time.Second
	}

	query := models.SnapshotQuery{Semester: req.Semester, AcademicYear: req.AcademicYear, CourseIDs: req.CourseIDs}
	snapshot, scoring, err := prepareRun(ctx, s.source, query, s.cfg.Scoring, req.Weights)
	if err != nil {
		return nil, err
	}
	constraints, orphaned := scheduler.BuildConstraints(snapshot)

	runID := uuid.NewString()
	log := logger.WithRun(s.logger, runID, string(algorithm))
	if len(orphaned) > 0 {
		log.Warn("courses without a qualified teacher skipped", zap.Int64s("course_ids", orphaned))
	}

	sched, err := s.newScheduler(algorithm, scheduler.Options{Genetic: s.cfg.Genetic, Hybrid: s.cfg.Hybrid, Logger: log})
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	outcome, err := sched.Schedule(runCtx, scheduler.Input{Snapshot: snapshot, Constraints: constraints, Scoring: scoring})
	if err != nil {
		s.metrics.ObserveFailure(algorithm, time.Since(start))
		log.Error("schedule run failed", zap.Error(err))
		return nil, err
	}

	report := scheduler.NewRunReport(outcome, snapshot, scheduler.ReportMeta{
		RunID:        runID,
		Semester:     snapshot.Semester,
		AcademicYear: snapshot.AcademicYear,
	})
	s.metrics.ObserveRun(report, outcome.Duration)
	log.Info("schedule run completed",
		zap.Int("constraints", report.TotalConstraints),
		zap.Float64("success_rate", report.SuccessRate),
		zap.Float64("fitness", report.Fitness),
		zap.Bool("timed_out", report.TimedOut),
	)

	result := &models.RunOutcome{Report: report, Result: outcome.Result, Snapshot: snapshot}
	if req.Publish && s.publisher != nil {
		if err := s.publisher.Publish(ctx, "run", result); err != nil {
			log.Warn("publish run outcome failed", zap.Error(err))
		}
	}
	return result, nil
}

// prepareRun loads and checks the snapshot and resolves the weights for one invocation.
func prepareRun(ctx context.Context, source SnapshotSource, query models.SnapshotQuery, base scheduler.ScoringConfig, overrides *dto.WeightOverrides) (*models.Snapshot, scheduler.ScoringConfig, error) {
	scoring := base.ApplyOverrides(overrides)
	if err := scoring.Validate(); err != nil {
		return nil, scoring, err
	}
	if source == nil {
		return nil, scoring, appErrors.Clone(appErrors.ErrInvalidConfiguration, "no snapshot source configured")
	}
	snapshot, err := source.Load(ctx, query)
	if err != nil {
		return nil, scoring, appErrors.FromError(err)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, scoring, err
	}
	return snapshot, scoring, nil
}
