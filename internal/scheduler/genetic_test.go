package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduler/internal/models"
)

func TestGeneticProducesConflictFreeSchedule(t *testing.T) {
	snapshot := busySnapshot()

	out, err := NewGeneticScheduler(testGeneticParameters(), nil).Schedule(context.Background(), testInput(t, snapshot))
	require.NoError(t, err)

	assert.Equal(t, models.AlgorithmGenetic, out.Algorithm)
	assert.Equal(t, 15, out.Generations)
	assert.False(t, out.TimedOut)
	requireNoDoubleBooking(t, out.Result)
	require.NoError(t, NewConstraintValidator(snapshot).Validate(out.Result.Placements()))

	scorer, err := NewScorer(snapshot, testInput(t, snapshot).Constraints, DefaultScoringConfig())
	require.NoError(t, err)
	assert.InDelta(t, scorer.Fitness(out.Result), out.Fitness, 1e-6)
}

func TestGeneticStopsAtGenerationZeroWhenDeadlinePassed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	params := testGeneticParameters()
	params.MaxGenerations = 1000

	out, err := NewGeneticScheduler(params, nil).Schedule(ctx, testInput(t, busySnapshot()))
	require.NoError(t, err)
	assert.True(t, out.TimedOut)
	assert.Equal(t, 0, out.Generations)
	requireNoDoubleBooking(t, out.Result)
}

func TestGeneticOverrunsDeadlineByAtMostOneGeneration(t *testing.T) {
	params := testGeneticParameters()
	params.MaxGenerations = 1_000_000
	in := testInput(t, busySnapshot())

	// Measure one unconstrained generation first.
	probe := params
	probe.MaxGenerations = 1
	start := time.Now()
	_, err := NewGeneticScheduler(probe, nil).Schedule(context.Background(), in)
	require.NoError(t, err)
	generation := time.Since(start)

	budget := 50 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()
	start = time.Now()
	out, err := NewGeneticScheduler(params, nil).Schedule(ctx, testInput(t, busySnapshot()))
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.True(t, out.TimedOut)
	assert.Less(t, elapsed, budget+4*generation+50*time.Millisecond)
}

func TestGeneticRejectsInvalidParameters(t *testing.T) {
	params := testGeneticParameters()
	params.EliteCount = params.PopulationSize

	_, err := NewGeneticScheduler(params, nil).Schedule(context.Background(), testInput(t, busySnapshot()))
	require.Error(t, err)
	assert.True(t, isInvalidConfiguration(err))
}

func TestEncodeDecodeRoundTripsSchedule(t *testing.T) {
	snapshot := busySnapshot()
	in := testInput(t, snapshot)
	greedy, err := NewGreedyScheduler(nil).Schedule(context.Background(), in)
	require.NoError(t, err)

	cat, err := newCatalog(snapshot, in.Constraints, in.Scoring)
	require.NoError(t, err)
	evo := newEvolution(cat, testGeneticParameters(), zap.NewNop())

	c := evo.encode(greedy.Result)
	assert.InDelta(t, greedy.Fitness, evo.fitnessOf(c), 1e-6)

	decoded := evo.decode(c)
	assert.Equal(t, greedy.Result.Entries, decoded.Entries)
	assert.Equal(t, len(greedy.Result.Failed), len(decoded.Failed))
}
