package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduler/internal/models"
)

// HybridScheduler seeds the genetic population with greedy schedules.
type HybridScheduler struct {
	params GeneticParameters
	hybrid HybridParameters
	greedy *GreedyScheduler
	logger *zap.Logger
}

// NewHybridScheduler constructs the hybrid strategy.
func NewHybridScheduler(params GeneticParameters, hybrid HybridParameters, logger *zap.Logger) *HybridScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridScheduler{
		params: params,
		hybrid: hybrid,
		greedy: NewGreedyScheduler(logger),
		logger: logger,
	}
}

// Name implements Scheduler.
func (h *HybridScheduler) Name() models.Algorithm {
	return models.AlgorithmHybrid
}

// Schedule implements Scheduler. The first seed follows the canonical greedy order; further
// seeds shuffle constraints of equal priority.
func (h *HybridScheduler) Schedule(ctx context.Context, in Input) (*Outcome, error) {
	start := time.Now()
	if err := h.params.Validate(); err != nil {
		return nil, err
	}
	if err := h.hybrid.Validate(); err != nil {
		return nil, err
	}
	cat, err := newCatalog(in.Snapshot, in.Constraints, in.Scoring)
	if err != nil {
		return nil, err
	}

	evo := newEvolution(cat, h.params, h.logger)
	seedCount := min(h.hybrid.SeedCount, h.params.PopulationSize)
	seeds := make([]*chromosome, 0, seedCount)
	for i := 0; i < seedCount; i++ {
		order := cat.priorityOrder()
		if i > 0 {
			order = evo.shuffleTies(order)
		}
		seed := evo.encode(h.greedy.run(evo.scorer, order))
		seed.fitness = evo.fitnessOf(seed)
		seeds = append(seeds, seed)
	}
	seedFitness := seeds[0].fitness

	best, generations, timedOut := evo.run(ctx, seeds)

	result := evo.decode(best)
	if err := verify(cat, result); err != nil {
		return nil, err
	}
	h.logger.Debug("hybrid schedule evolved",
		zap.Int("seeds", len(seeds)),
		zap.Float64("seed_fitness", seedFitness),
		zap.Float64("fitness", best.fitness),
		zap.Int("generations", generations),
	)
	return &Outcome{
		Algorithm:   models.AlgorithmHybrid,
		Result:      result,
		Fitness:     best.fitness,
		SeedFitness: seedFitness,
		Generations: generations,
		TimedOut:    timedOut,
		Duration:    time.Since(start),
	}, nil
}

// shuffleTies permutes runs of equal priority inside a priority-sorted order.
func (e *evolution) shuffleTies(order []int) []int {
	out := append([]int(nil), order...)
	for start := 0; start < len(out); {
		end := start + 1
		priority := e.cat.constraints[out[start]].Priority
		for end < len(out) && e.cat.constraints[out[end]].Priority == priority {
			end++
		}
		group := out[start:end]
		e.rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		start = end
	}
	return out
}
