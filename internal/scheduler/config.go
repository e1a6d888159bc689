package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-scheduler/internal/dto"
	"github.com/noah-isme/sma-scheduler/pkg/config"
	appErrors "github.com/noah-isme/sma-scheduler/pkg/errors"
)

var validate = validator.New()

// ScoringConfig holds every weight of the scoring function. It is passed explicitly into each run.
type ScoringConfig struct {
	TeacherSameDayPenalty     float64 `json:"teacher_same_day_penalty" validate:"gte=0"`
	TimeSlotUsagePenalty      float64 `json:"time_slot_usage_penalty" validate:"gte=0"`
	TeacherDayLoadLimit       int     `json:"teacher_day_load_limit" validate:"gte=1"`
	PreferredClassroomBonus   float64 `json:"preferred_classroom_bonus" validate:"gte=0"`
	PreferredTimeSlotBonus    float64 `json:"preferred_time_slot_bonus" validate:"gte=0"`
	PreferredDayBonus         float64 `json:"preferred_day_bonus" validate:"gte=0"`
	PriorityWeight            float64 `json:"priority_weight" validate:"gte=0"`
	NoonPenalty               float64 `json:"noon_penalty" validate:"gte=0"`
	GoodTimeSlotOrderRange    [2]int  `json:"good_time_slot_order_range" validate:"dive,gte=0"`
	GoodTimeSlotBonus         float64 `json:"good_time_slot_bonus" validate:"gte=0"`
	TwoHourMinuteRange        [2]int  `json:"two_hour_minute_range" validate:"dive,gte=0"`
	MaxDailySessionsPerCourse int     `json:"max_daily_sessions_per_course" validate:"gte=1"`
	AvoidNoonDefault          bool    `json:"avoid_noon_default"`
	SessionsPerWeekCap        int     `json:"sessions_per_week_cap" validate:"gte=0"`
	NoonTimeSlotOrderRange    [2]int  `json:"noon_time_slot_order_range" validate:"dive,gte=0"`
	TeacherPreferenceWeight   float64 `json:"teacher_preference_weight" validate:"gte=0"`
	ConflictPenalty           float64 `json:"conflict_penalty" validate:"gt=0"`
	UnplacedPenalty           float64 `json:"unplaced_penalty" validate:"gt=0"`
}

// DefaultScoringConfig returns the documented default weights.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		TeacherSameDayPenalty:     5,
		TimeSlotUsagePenalty:      1,
		TeacherDayLoadLimit:       4,
		PreferredClassroomBonus:   10,
		PreferredTimeSlotBonus:    15,
		PreferredDayBonus:         10,
		PriorityWeight:            2,
		NoonPenalty:               8,
		GoodTimeSlotOrderRange:    [2]int{1, 4},
		GoodTimeSlotBonus:         5,
		TwoHourMinuteRange:        [2]int{90, 120},
		MaxDailySessionsPerCourse: 1,
		AvoidNoonDefault:          true,
		SessionsPerWeekCap:        5,
		NoonTimeSlotOrderRange:    [2]int{5, 5},
		TeacherPreferenceWeight:   1,
		ConflictPenalty:           500,
		UnplacedPenalty:           1000,
	}
}

// Validate rejects malformed weights before a run starts.
func (c ScoringConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidConfiguration.Code, true, "invalid scoring weights")
	}
	ranges := map[string][2]int{
		"good_time_slot_order_range": c.GoodTimeSlotOrderRange,
		"two_hour_minute_range":      c.TwoHourMinuteRange,
		"noon_time_slot_order_range": c.NoonTimeSlotOrderRange,
	}
	var bad []string
	for name, r := range ranges {
		if r[0] > r[1] {
			bad = append(bad, name)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return appErrors.Clone(appErrors.ErrInvalidConfiguration, fmt.Sprintf("inverted range: %s", strings.Join(bad, ", ")))
	}
	return nil
}

// GeneticParameters tunes the population search.
type GeneticParameters struct {
	PopulationSize int     `json:"population_size" validate:"gte=2"`
	MaxGenerations int     `json:"max_generations" validate:"gte=0"`
	CrossoverRate  float64 `json:"crossover_rate" validate:"gte=0,lte=1"`
	MutationRate   float64 `json:"mutation_rate" validate:"gte=0,lte=1"`
	EliteCount     int     `json:"elite_count" validate:"gte=0,ltfield=PopulationSize"`
	TournamentSize int     `json:"tournament_size" validate:"gte=1"`
	// Workers bounds parallel fitness evaluation; zero uses every CPU.
	Workers int `json:"workers" validate:"gte=0"`
	// Seed fixes the random source; zero derives one from the clock.
	Seed int64 `json:"seed"`
}

// DefaultGeneticParameters returns the default population settings.
func DefaultGeneticParameters() GeneticParameters {
	return GeneticParameters{
		PopulationSize: 50,
		MaxGenerations: 200,
		CrossoverRate:  0.8,
		MutationRate:   0.1,
		EliteCount:     2,
		TournamentSize: 3,
	}
}

// Validate rejects unusable population settings.
func (p GeneticParameters) Validate() error {
	if err := validate.Struct(p); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidConfiguration.Code, true, "invalid genetic parameters")
	}
	return nil
}

// HybridParameters controls greedy seeding.
type HybridParameters struct {
	SeedCount int `json:"seed_count" validate:"gte=1"`
}

// DefaultHybridParameters returns the default seeding settings.
func DefaultHybridParameters() HybridParameters {
	return HybridParameters{SeedCount: 3}
}

// Validate rejects unusable seeding settings.
func (p HybridParameters) Validate() error {
	if err := validate.Struct(p); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidConfiguration.Code, true, "invalid hybrid parameters")
	}
	return nil
}

// ScoringConfigFromSettings maps environment settings onto scoring weights.
func ScoringConfigFromSettings(s config.WeightsConfig) ScoringConfig {
	return ScoringConfig{
		TeacherSameDayPenalty:     s.TeacherSameDayPenalty,
		TimeSlotUsagePenalty:      s.TimeSlotUsagePenalty,
		TeacherDayLoadLimit:       s.TeacherDayLoadLimit,
		PreferredClassroomBonus:   s.PreferredClassroomBonus,
		PreferredTimeSlotBonus:    s.PreferredTimeSlotBonus,
		PreferredDayBonus:         s.PreferredDayBonus,
		PriorityWeight:            s.PriorityWeight,
		NoonPenalty:               s.NoonPenalty,
		GoodTimeSlotOrderRange:    s.GoodTimeSlotOrderRange,
		GoodTimeSlotBonus:         s.GoodTimeSlotBonus,
		TwoHourMinuteRange:        s.TwoHourMinuteRange,
		MaxDailySessionsPerCourse: s.MaxDailySessionsPerCourse,
		AvoidNoonDefault:          s.AvoidNoonDefault,
		SessionsPerWeekCap:        s.SessionsPerWeekCap,
		NoonTimeSlotOrderRange:    s.NoonTimeSlotOrderRange,
		TeacherPreferenceWeight:   s.TeacherPreferenceWeight,
		ConflictPenalty:           s.ConflictPenalty,
		UnplacedPenalty:           s.UnplacedPenalty,
	}
}

// GeneticParametersFromSettings maps environment settings onto population parameters.
func GeneticParametersFromSettings(s config.GeneticConfig) GeneticParameters {
	return GeneticParameters{
		PopulationSize: s.PopulationSize,
		MaxGenerations: s.MaxGenerations,
		CrossoverRate:  s.CrossoverRate,
		MutationRate:   s.MutationRate,
		EliteCount:     s.EliteCount,
		TournamentSize: s.TournamentSize,
		Workers:        s.Workers,
		Seed:           s.Seed,
	}
}

// ApplyOverrides returns a copy of c with every non-nil override applied.
func (c ScoringConfig) ApplyOverrides(o *dto.WeightOverrides) ScoringConfig {
	if o == nil {
		return c
	}
	setFloat := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setRange := func(dst *[2]int, v []int) {
		if len(v) == 2 {
			*dst = [2]int{v[0], v[1]}
		}
	}

	setFloat(&c.TeacherSameDayPenalty, o.TeacherSameDayPenalty)
	setFloat(&c.TimeSlotUsagePenalty, o.TimeSlotUsagePenalty)
	setInt(&c.TeacherDayLoadLimit, o.TeacherDayLoadLimit)
	setFloat(&c.PreferredClassroomBonus, o.PreferredClassroomBonus)
	setFloat(&c.PreferredTimeSlotBonus, o.PreferredTimeSlotBonus)
	setFloat(&c.PreferredDayBonus, o.PreferredDayBonus)
	setFloat(&c.PriorityWeight, o.PriorityWeight)
	setFloat(&c.NoonPenalty, o.NoonPenalty)
	setRange(&c.GoodTimeSlotOrderRange, o.GoodTimeSlotOrderRange)
	setFloat(&c.GoodTimeSlotBonus, o.GoodTimeSlotBonus)
	setRange(&c.TwoHourMinuteRange, o.TwoHourMinuteRange)
	setInt(&c.MaxDailySessionsPerCourse, o.MaxDailySessionsPerCourse)
	if o.AvoidNoonDefault != nil {
		c.AvoidNoonDefault = *o.AvoidNoonDefault
	}
	setInt(&c.SessionsPerWeekCap, o.SessionsPerWeekCap)
	setRange(&c.NoonTimeSlotOrderRange, o.NoonTimeSlotOrderRange)
	setFloat(&c.TeacherPreferenceWeight, o.TeacherPreferenceWeight)
	setFloat(&c.ConflictPenalty, o.ConflictPenalty)
	setFloat(&c.UnplacedPenalty, o.UnplacedPenalty)
	return c
}
