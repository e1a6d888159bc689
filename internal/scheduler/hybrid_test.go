package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-scheduler/internal/models"
)

func TestHybridNeverWorseThanGreedySeed(t *testing.T) {
	for _, generations := range []int{0, 1, 10} {
		params := testGeneticParameters()
		params.MaxGenerations = generations

		snapshot := busySnapshot()
		greedy, err := NewGreedyScheduler(nil).Schedule(context.Background(), testInput(t, snapshot.Clone()))
		require.NoError(t, err)

		out, err := NewHybridScheduler(params, DefaultHybridParameters(), nil).Schedule(context.Background(), testInput(t, snapshot))
		require.NoError(t, err)

		assert.Equal(t, models.AlgorithmHybrid, out.Algorithm)
		assert.Equal(t, generations, out.Generations)
		assert.GreaterOrEqual(t, out.Fitness, out.SeedFitness)
		assert.InDelta(t, greedy.Fitness, out.SeedFitness, 1e-6)
		assert.GreaterOrEqual(t, out.Fitness, greedy.Fitness-1e-6)
		requireNoDoubleBooking(t, out.Result)
	}
}

func TestHybridReturnsSeedWhenDeadlinePassed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := NewHybridScheduler(testGeneticParameters(), DefaultHybridParameters(), nil).Schedule(ctx, testInput(t, busySnapshot()))
	require.NoError(t, err)
	assert.True(t, out.TimedOut)
	assert.Equal(t, 0, out.Generations)
	assert.GreaterOrEqual(t, out.Fitness, out.SeedFitness)
}

func TestHybridRejectsInvalidSeedCount(t *testing.T) {
	_, err := NewHybridScheduler(testGeneticParameters(), HybridParameters{}, nil).Schedule(context.Background(), testInput(t, busySnapshot()))
	require.Error(t, err)
	assert.True(t, isInvalidConfiguration(err))
}

func TestShuffleTiesKeepsPriorityBlocks(t *testing.T) {
	snapshot := busySnapshot()
	in := testInput(t, snapshot)
	cat, err := newCatalog(snapshot, in.Constraints, in.Scoring)
	require.NoError(t, err)
	evo := newEvolution(cat, testGeneticParameters(), nil)

	order := cat.priorityOrder()
	shuffled := evo.shuffleTies(order)
	require.ElementsMatch(t, order, shuffled)
	for i := 1; i < len(shuffled); i++ {
		assert.GreaterOrEqual(t, cat.constraints[shuffled[i-1]].Priority, cat.constraints[shuffled[i]].Priority)
	}
}

func TestNewBuildsEveryAlgorithm(t *testing.T) {
	opts := Options{Genetic: testGeneticParameters(), Hybrid: DefaultHybridParameters()}
	for _, algorithm := range models.Algorithms {
		s, err := New(algorithm, opts)
		require.NoError(t, err)
		assert.Equal(t, algorithm, s.Name())
	}

	_, err := New("annealing", opts)
	require.Error(t, err)
	assert.True(t, isInvalidConfiguration(err))
}
