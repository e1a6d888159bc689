package scheduler

import (
	"context"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduler/internal/models"
)

// randomProbes bounds the random draws tried before a full candidate scan.
const randomProbes = 32

// chromosome is a full candidate schedule: one gene per (constraint, session).
// A gene with a zero Day is an unplaced session.
type chromosome struct {
	genes   []models.SlotAssignment
	fitness float64
}

func (c *chromosome) clone() *chromosome {
	genes := make([]models.SlotAssignment, len(c.genes))
	copy(genes, c.genes)
	return &chromosome{genes: genes, fitness: c.fitness}
}

// GeneticScheduler searches whole schedules with a generational, elitist genetic algorithm.
type GeneticScheduler struct {
	params GeneticParameters
	logger *zap.Logger
}

// NewGeneticScheduler constructs the genetic strategy.
func NewGeneticScheduler(params GeneticParameters, logger *zap.Logger) *GeneticScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeneticScheduler{params: params, logger: logger}
}

// Name implements Scheduler.
func (g *GeneticScheduler) Name() models.Algorithm {
	return models.AlgorithmGenetic
}

// Schedule implements Scheduler. The deadline of ctx is checked once per generation.
func (g *GeneticScheduler) Schedule(ctx context.Context, in Input) (*Outcome, error) {
	start := time.Now()
	if err := g.params.Validate(); err != nil {
		return nil, err
	}
	cat, err := newCatalog(in.Snapshot, in.Constraints, in.Scoring)
	if err != nil {
		return nil, err
	}

	evo := newEvolution(cat, g.params, g.logger)
	best, generations, timedOut := evo.run(ctx, nil)

	result := evo.decode(best)
	if err := verify(cat, result); err != nil {
		return nil, err
	}
	return &Outcome{
		Algorithm:   models.AlgorithmGenetic,
		Result:      result,
		Fitness:     best.fitness,
		Generations: generations,
		TimedOut:    timedOut,
		Duration:    time.Since(start),
	}, nil
}

// evolution is the state of one genetic run. Selection, crossover and mutation happen on the
// calling goroutine; only fitness evaluation fans out.
type evolution struct {
	cat    *catalog
	scorer *Scorer
	params GeneticParameters
	layout []int
	rng    *rand.Rand
	logger *zap.Logger
}

func newEvolution(cat *catalog, params GeneticParameters, logger *zap.Logger) *evolution {
	seed := params.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	layout := make([]int, 0)
	for idx, c := range cat.constraints {
		for s := 0; s < c.SessionsPerWeek; s++ {
			layout = append(layout, idx)
		}
	}
	return &evolution{
		cat:    cat,
		scorer: &Scorer{cat: cat},
		params: params,
		layout: layout,
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger,
	}
}

// run evolves a population and returns the best chromosome ever seen. Seeds replace the
// weakest random individuals of the initial population.
func (e *evolution) run(ctx context.Context, seeds []*chromosome) (*chromosome, int, bool) {
	size := e.params.PopulationSize
	pop := make([]*chromosome, size)
	for i := range pop {
		pop[i] = e.randomChromosome()
	}
	e.evaluate(pop)

	if len(seeds) > 0 {
		sort.SliceStable(pop, func(i, j int) bool { return pop[i].fitness < pop[j].fitness })
		for i, seed := range seeds {
			if i >= size {
				break
			}
			pop[i] = seed.clone()
		}
	}

	best := fittest(pop).clone()
	generations := 0
	timedOut := false

	for generations < e.params.MaxGenerations {
		if ctx.Err() != nil {
			timedOut = true
			break
		}

		sort.SliceStable(pop, func(i, j int) bool { return pop[i].fitness > pop[j].fitness })
		next := make([]*chromosome, 0, size)
		for i := 0; i < e.params.EliteCount && i < len(pop); i++ {
			next = append(next, pop[i].clone())
		}
		elites := len(next)

		for len(next) < size {
			child := e.crossover(e.tournament(pop), e.tournament(pop))
			e.repair(child)
			e.mutate(child)
			next = append(next, child)
		}
		e.evaluate(next[elites:])

		pop = next
		generations++

		if current := fittest(pop); current.fitness > best.fitness {
			best = current.clone()
		}
		if generations%25 == 0 {
			e.logger.Debug("generation evolved",
				zap.Int("generation", generations),
				zap.Float64("best_fitness", best.fitness),
			)
		}
	}

	return best, generations, timedOut
}

func fittest(pop []*chromosome) *chromosome {
	best := pop[0]
	for _, c := range pop[1:] {
		if c.fitness > best.fitness {
			best = c
		}
	}
	return best
}

// evaluate scores chromosomes in parallel chunks.
func (e *evolution) evaluate(pop []*chromosome) {
	if len(pop) == 0 {
		return
	}
	workers := e.params.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(pop) {
		workers = len(pop)
	}
	chunk := (len(pop) + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < len(pop); start += chunk {
		end := min(start+chunk, len(pop))
		wg.Add(1)
		go func(part []*chromosome) {
			defer wg.Done()
			for _, c := range part {
				c.fitness = e.fitnessOf(c)
			}
		}(pop[start:end])
	}
	wg.Wait()
}

func (e *evolution) fitnessOf(c *chromosome) float64 {
	placements := make([]indexedPlacement, 0, len(c.genes))
	unplaced := 0
	for gi, a := range c.genes {
		if !a.Placed() {
			unplaced++
			continue
		}
		idx := e.layout[gi]
		placements = append(placements, indexedPlacement{idx: idx, placement: e.cat.placement(idx, a)})
	}
	return e.scorer.fitness(placements, unplaced)
}

func (e *evolution) occupancyOf(c *chromosome) *Occupancy {
	occ := NewOccupancy()
	for gi, a := range c.genes {
		if a.Placed() {
			occ.Add(e.cat.placement(e.layout[gi], a))
		}
	}
	return occ
}

// randomChromosome places genes in random order on random feasible candidates.
func (e *evolution) randomChromosome() *chromosome {
	c := &chromosome{genes: make([]models.SlotAssignment, len(e.layout))}
	occ := NewOccupancy()
	for _, gi := range e.rng.Perm(len(e.layout)) {
		idx := e.layout[gi]
		if a, ok := e.randomCandidate(idx, occ); ok {
			c.genes[gi] = a
			occ.Add(e.cat.placement(idx, a))
		}
	}
	return c
}

func (e *evolution) randomCandidate(idx int, occ *Occupancy) (models.SlotAssignment, bool) {
	rooms := e.cat.suitableRooms[idx]
	if len(rooms) == 0 {
		return models.SlotAssignment{}, false
	}
	for i := 0; i < randomProbes; i++ {
		a := models.SlotAssignment{
			Day:         e.cat.days[e.rng.Intn(len(e.cat.days))],
			TimeSlotID:  e.cat.slots[e.rng.Intn(len(e.cat.slots))].ID,
			ClassroomID: rooms[e.rng.Intn(len(rooms))].ID,
		}
		if e.cat.allows(idx, a, occ) {
			return a, true
		}
	}
	candidates := e.cat.candidates(idx, occ)
	if len(candidates) == 0 {
		return models.SlotAssignment{}, false
	}
	return candidates[e.rng.Intn(len(candidates))], true
}

func (e *evolution) tournament(pop []*chromosome) *chromosome {
	best := pop[e.rng.Intn(len(pop))]
	for i := 1; i < e.params.TournamentSize; i++ {
		if c := pop[e.rng.Intn(len(pop))]; c.fitness > best.fitness {
			best = c
		}
	}
	return best
}

// crossover cuts both parents at one point. The child may hold conflicts until repaired.
func (e *evolution) crossover(a, b *chromosome) *chromosome {
	child := a.clone()
	if len(child.genes) > 1 && e.rng.Float64() < e.params.CrossoverRate {
		point := 1 + e.rng.Intn(len(child.genes)-1)
		copy(child.genes[point:], b.genes[point:])
	}
	return child
}

// mutate moves each gene with probability MutationRate to another feasible candidate.
func (e *evolution) mutate(c *chromosome) {
	if e.params.MutationRate == 0 {
		return
	}
	occ := e.occupancyOf(c)
	for gi := range c.genes {
		if e.rng.Float64() >= e.params.MutationRate {
			continue
		}
		idx := e.layout[gi]
		old := c.genes[gi]
		if old.Placed() {
			occ.Remove(e.cat.placement(idx, old))
		}
		if a, ok := e.randomCandidate(idx, occ); ok {
			c.genes[gi] = a
			occ.Add(e.cat.placement(idx, a))
		} else if old.Placed() {
			occ.Add(e.cat.placement(idx, old))
		}
	}
}

// encode turns a schedule into a chromosome with the evolution's gene layout.
func (e *evolution) encode(result *models.ScheduleResult) *chromosome {
	c := &chromosome{genes: make([]models.SlotAssignment, len(e.layout))}
	next := make([]int, len(e.cat.constraints))
	for gi, idx := range e.layout {
		session := next[idx]
		next[idx]++
		if session < len(result.Entries[idx].Assignments) {
			c.genes[gi] = result.Entries[idx].Assignments[session]
		}
	}
	return c
}

// decode turns a chromosome back into a schedule with diagnosed failures.
func (e *evolution) decode(c *chromosome) *models.ScheduleResult {
	result := models.NewScheduleResult(e.cat.constraints)
	for gi, a := range c.genes {
		if !a.Placed() {
			continue
		}
		idx := e.layout[gi]
		result.Entries[idx].Assignments = append(result.Entries[idx].Assignments, a)
	}
	result.Failed = e.cat.failures(result, e.occupancyOf(c), e.cat.priorityOrder())
	return result
}
