package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-scheduler/pkg/errors"
)

// Input is everything a scheduler reads. The snapshot must not be shared with a concurrent run.
type Input struct {
	Snapshot    *models.Snapshot
	Constraints []models.Constraint
	Scoring     ScoringConfig
}

// Outcome is the result of one run.
type Outcome struct {
	Algorithm   models.Algorithm
	Result      *models.ScheduleResult
	Fitness     float64
	SeedFitness float64
	Generations int
	TimedOut    bool
	Duration    time.Duration
}

// Scheduler places constraints. Genetic strategies stop at ctx's deadline and return the best schedule so far.
type Scheduler interface {
	Name() models.Algorithm
	Schedule(ctx context.Context, in Input) (*Outcome, error)
}

// Options bundles the strategy-specific parameters.
type Options struct {
	Genetic GeneticParameters
	Hybrid  HybridParameters
	Logger  *zap.Logger
}

// New builds the scheduler for algorithm.
func New(algorithm models.Algorithm, opts Options) (Scheduler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	switch algorithm {
	case models.AlgorithmGreedy:
		return NewGreedyScheduler(logger), nil
	case models.AlgorithmGenetic:
		return NewGeneticScheduler(opts.Genetic, logger), nil
	case models.AlgorithmHybrid:
		return NewHybridScheduler(opts.Genetic, opts.Hybrid, logger), nil
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, fmt.Sprintf("unknown algorithm %q", algorithm))
	}
}

// verify runs the default hard-rule validator over a finished schedule.
func verify(cat *catalog, result *models.ScheduleResult) error {
	if err := NewConstraintValidator(cat.snapshot).Validate(result.Placements()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrAlgorithmInternal.Code, true, "schedule failed hard-rule validation")
	}
	return nil
}
