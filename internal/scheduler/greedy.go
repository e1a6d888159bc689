package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduler/internal/models"
)

// GreedyScheduler places constraints one session at a time in priority order.
// It is deterministic and runs to completion regardless of ctx.
type GreedyScheduler struct {
	logger *zap.Logger
}

// NewGreedyScheduler constructs the greedy strategy.
func NewGreedyScheduler(logger *zap.Logger) *GreedyScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GreedyScheduler{logger: logger}
}

// Name implements Scheduler.
func (g *GreedyScheduler) Name() models.Algorithm {
	return models.AlgorithmGreedy
}

// Schedule implements Scheduler.
func (g *GreedyScheduler) Schedule(_ context.Context, in Input) (*Outcome, error) {
	start := time.Now()
	cat, err := newCatalog(in.Snapshot, in.Constraints, in.Scoring)
	if err != nil {
		return nil, err
	}
	scorer := &Scorer{cat: cat}

	result := g.run(scorer, cat.priorityOrder())
	if err := verify(cat, result); err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Algorithm: models.AlgorithmGreedy,
		Result:    result,
		Fitness:   scorer.Fitness(result),
		Duration:  time.Since(start),
	}
	g.logger.Debug("greedy schedule built",
		zap.Int("constraints", len(cat.constraints)),
		zap.Int("failed", len(result.Failed)),
		zap.Float64("fitness", outcome.Fitness),
	)
	return outcome, nil
}

// run places every constraint following order. Unmet constraints keep their partial
// placements and are also listed as failures.
func (g *GreedyScheduler) run(scorer *Scorer, order []int) *models.ScheduleResult {
	cat := scorer.cat
	result := models.NewScheduleResult(cat.constraints)
	occ := NewOccupancy()

	for _, idx := range order {
		required := cat.constraints[idx].SessionsPerWeek
		entry := &result.Entries[idx]
		for len(entry.Assignments) < required {
			a, ok := g.next(scorer, idx, occ)
			if !ok {
				break
			}
			occ.Add(cat.placement(idx, a))
			entry.Assignments = append(entry.Assignments, a)
		}
	}

	result.Failed = cat.failures(result, occ, order)
	return result
}

// next picks the session slot for constraint idx: the teacher's preferred (day, slot) pairs
// first, then the best scored feasible candidate of the full grid.
func (g *GreedyScheduler) next(scorer *Scorer, idx int, occ *Occupancy) (models.SlotAssignment, bool) {
	cat := scorer.cat
	teacherID := cat.constraints[idx].Teacher.ID

	for _, pref := range cat.preferred[teacherID] {
		if a, ok := g.bestRoom(scorer, idx, pref.Day, pref.TimeSlotID, occ); ok {
			return a, true
		}
	}

	var (
		best      models.SlotAssignment
		bestScore float64
		found     bool
	)
	for _, day := range cat.days {
		for _, slot := range cat.slots {
			for _, room := range cat.suitableRooms[idx] {
				a := models.SlotAssignment{Day: day, TimeSlotID: slot.ID, ClassroomID: room.ID}
				if !cat.allows(idx, a, occ) {
					continue
				}
				score := scorer.Score(idx, a, occ)
				if !found || scorer.better(score, a, bestScore, best) {
					best, bestScore, found = a, score, true
				}
			}
		}
	}
	return best, found
}

func (g *GreedyScheduler) bestRoom(scorer *Scorer, idx, day int, slotID int64, occ *Occupancy) (models.SlotAssignment, bool) {
	cat := scorer.cat
	var (
		best      models.SlotAssignment
		bestScore float64
		found     bool
	)
	for _, room := range cat.suitableRooms[idx] {
		a := models.SlotAssignment{Day: day, TimeSlotID: slotID, ClassroomID: room.ID}
		if !cat.allows(idx, a, occ) {
			continue
		}
		score := scorer.Score(idx, a, occ)
		if !found || scorer.better(score, a, bestScore, best) {
			best, bestScore, found = a, score, true
		}
	}
	return best, found
}
