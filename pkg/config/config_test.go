package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "hybrid", cfg.Scheduler.DefaultAlgorithm)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Timeout)
	assert.Equal(t, [2]int{1, 4}, cfg.Scheduler.Weights.GoodTimeSlotOrderRange)
	assert.Equal(t, [2]int{90, 120}, cfg.Scheduler.Weights.TwoHourMinuteRange)
	assert.Equal(t, 1, cfg.Scheduler.Weights.MaxDailySessionsPerCourse)
	assert.True(t, cfg.Scheduler.Weights.AvoidNoonDefault)
	assert.Equal(t, 50, cfg.Scheduler.Genetic.PopulationSize)
	assert.InDelta(t, 0.8, cfg.Scheduler.Genetic.CrossoverRate, 1e-9)
	assert.Equal(t, "schedule.requests", cfg.RabbitMQ.RequestQueue)
}

func TestLoadReadsEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SCHEDULER_NOON_PENALTY", "12.5")
	t.Setenv("SCHEDULER_GOOD_TIME_SLOT_ORDER_RANGE", "2-3")
	t.Setenv("SCHEDULER_TIMEOUT", "90s")
	t.Setenv("SCHEDULER_GA_SEED", "42")

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 12.5, cfg.Scheduler.Weights.NoonPenalty, 1e-9)
	assert.Equal(t, [2]int{2, 3}, cfg.Scheduler.Weights.GoodTimeSlotOrderRange)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.Timeout)
	assert.Equal(t, int64(42), cfg.Scheduler.Genetic.Seed)
}

func TestParseRange(t *testing.T) {
	fallback := [2]int{1, 2}
	assert.Equal(t, [2]int{3, 5}, parseRange("3-5", fallback))
	assert.Equal(t, [2]int{4, 4}, parseRange(" 4 ", fallback))
	assert.Equal(t, fallback, parseRange("", fallback))
	assert.Equal(t, fallback, parseRange("5-3", fallback))
	assert.Equal(t, fallback, parseRange("a-b", fallback))
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("bogus", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
