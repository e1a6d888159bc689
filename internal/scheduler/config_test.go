package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-scheduler/internal/dto"
	"github.com/noah-isme/sma-scheduler/internal/models"
	"github.com/noah-isme/sma-scheduler/pkg/config"
	appErrors "github.com/noah-isme/sma-scheduler/pkg/errors"
)

func isInvalidConfiguration(err error) bool {
	return errors.Is(err, appErrors.ErrInvalidConfiguration)
}

func TestScoringConfigValidate(t *testing.T) {
	require.NoError(t, DefaultScoringConfig().Validate())

	negative := DefaultScoringConfig()
	negative.NoonPenalty = -1
	assert.True(t, isInvalidConfiguration(negative.Validate()))

	zeroLimit := DefaultScoringConfig()
	zeroLimit.TeacherDayLoadLimit = 0
	assert.True(t, isInvalidConfiguration(zeroLimit.Validate()))

	inverted := DefaultScoringConfig()
	inverted.GoodTimeSlotOrderRange = [2]int{4, 1}
	err := inverted.Validate()
	require.Error(t, err)
	assert.True(t, isInvalidConfiguration(err))
	assert.Contains(t, err.Error(), "good_time_slot_order_range")
}

func TestGeneticParametersValidate(t *testing.T) {
	require.NoError(t, DefaultGeneticParameters().Validate())
	require.NoError(t, DefaultHybridParameters().Validate())

	tests := map[string]func(p *GeneticParameters){
		"tiny population":    func(p *GeneticParameters) { p.PopulationSize = 1 },
		"rate above one":     func(p *GeneticParameters) { p.MutationRate = 1.5 },
		"elites fill all":    func(p *GeneticParameters) { p.EliteCount = p.PopulationSize },
		"no tournament":      func(p *GeneticParameters) { p.TournamentSize = 0 },
		"negative workers":   func(p *GeneticParameters) { p.Workers = -1 },
		"negative crossover": func(p *GeneticParameters) { p.CrossoverRate = -0.1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			p := DefaultGeneticParameters()
			mutate(&p)
			assert.True(t, isInvalidConfiguration(p.Validate()))
		})
	}
}

func TestSettingsMapping(t *testing.T) {
	weights := config.WeightsConfig{
		TeacherSameDayPenalty:     7,
		TeacherDayLoadLimit:       3,
		GoodTimeSlotOrderRange:    [2]int{2, 3},
		TwoHourMinuteRange:        [2]int{60, 90},
		NoonTimeSlotOrderRange:    [2]int{4, 4},
		MaxDailySessionsPerCourse: 2,
		ConflictPenalty:           100,
		UnplacedPenalty:           200,
	}
	cfg := ScoringConfigFromSettings(weights)
	assert.Equal(t, 7.0, cfg.TeacherSameDayPenalty)
	assert.Equal(t, 3, cfg.TeacherDayLoadLimit)
	assert.Equal(t, [2]int{2, 3}, cfg.GoodTimeSlotOrderRange)
	require.NoError(t, cfg.Validate())

	params := GeneticParametersFromSettings(config.GeneticConfig{
		PopulationSize: 10, MaxGenerations: 5, CrossoverRate: 0.5, MutationRate: 0.2,
		EliteCount: 1, TournamentSize: 2, Workers: 4, Seed: 9,
	})
	assert.Equal(t, GeneticParameters{
		PopulationSize: 10, MaxGenerations: 5, CrossoverRate: 0.5, MutationRate: 0.2,
		EliteCount: 1, TournamentSize: 2, Workers: 4, Seed: 9,
	}, params)
}

func TestSessionsPerWeekCap(t *testing.T) {
	snapshot := testSnapshot(nil, 4, 2,
		[]models.Teacher{{ID: 1}},
		[]models.Course{{ID: 1, WeeklySessions: 9, TeacherIDs: []int64{1}}},
	)
	in := testInput(t, snapshot)
	in.Scoring.SessionsPerWeekCap = 3

	cat, err := newCatalog(snapshot, in.Constraints, in.Scoring)
	require.NoError(t, err)
	assert.Equal(t, 3, cat.constraints[0].SessionsPerWeek)
	assert.Equal(t, 9, in.Constraints[0].SessionsPerWeek, "caller's constraints stay untouched")
}

func TestBuildConstraints(t *testing.T) {
	snapshot := testSnapshot(nil, 1, 1,
		[]models.Teacher{{ID: 1}, {ID: 2}},
		[]models.Course{
			{ID: 10, WeeklySessions: 2, Priority: 4, TeacherIDs: []int64{1, 2}, PreferredDays: []int{2}},
			{ID: 11, WeeklySessions: 1, TeacherIDs: []int64{99}},
		},
	)

	constraints, orphaned := BuildConstraints(snapshot)
	require.Len(t, constraints, 2)
	assert.Equal(t, []int64{11}, orphaned)
	for i, c := range constraints {
		assert.Equal(t, i, c.ID)
		assert.Equal(t, int64(10), c.CourseID())
		assert.Equal(t, 2, c.SessionsPerWeek)
		assert.Equal(t, 4, c.Priority)
		assert.Equal(t, []int{2}, c.PreferredDays)
	}
	assert.Equal(t, int64(1), constraints[0].TeacherID())
	assert.Equal(t, int64(2), constraints[1].TeacherID())
}

func TestApplyOverrides(t *testing.T) {
	noon := false
	penalty := 3.5
	limit := 2
	base := DefaultScoringConfig()

	cfg := base.ApplyOverrides(&dto.WeightOverrides{
		AvoidNoonDefault:       &noon,
		NoonPenalty:            &penalty,
		TeacherDayLoadLimit:    &limit,
		GoodTimeSlotOrderRange: []int{2, 6},
	})
	assert.False(t, cfg.AvoidNoonDefault)
	assert.Equal(t, 3.5, cfg.NoonPenalty)
	assert.Equal(t, 2, cfg.TeacherDayLoadLimit)
	assert.Equal(t, [2]int{2, 6}, cfg.GoodTimeSlotOrderRange)
	assert.Equal(t, base.PreferredDayBonus, cfg.PreferredDayBonus)
	assert.True(t, base.AvoidNoonDefault, "base config is not mutated")
	assert.Equal(t, base, base.ApplyOverrides(nil))
}
