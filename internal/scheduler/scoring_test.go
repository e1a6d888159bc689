package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-scheduler/internal/models"
)

func scoringSnapshot() *models.Snapshot {
	s := testSnapshot([]int{1, 2}, 5, 2,
		[]models.Teacher{{ID: 1, Name: "Rina", Preferences: []models.TeacherPreference{
			{TeacherID: 1, Day: 1, TimeSlotID: 100, Score: 2, Available: true},
		}}},
		[]models.Course{{
			ID: 1, Code: "MATH", WeeklySessions: 2, Priority: 3, TeacherIDs: []int64{1},
			PreferredDays: []int{1}, PreferredTimeSlotIDs: []int64{101}, PreferredClassroomIDs: []int64{1, 2},
		}},
	)
	s.Classrooms[0].PreferenceEligible = true
	return s
}

func TestScoreBreakdown(t *testing.T) {
	snapshot := scoringSnapshot()
	constraints, _ := BuildConstraints(snapshot)
	scorer, err := NewScorer(snapshot, constraints, DefaultScoringConfig())
	require.NoError(t, err)

	b := scorer.Breakdown(0, models.SlotAssignment{Day: 1, TimeSlotID: 100, ClassroomID: 1}, NewOccupancy())
	assert.Equal(t, 6.0, b.Priority)
	assert.Equal(t, 10.0, b.PreferredDay)
	assert.Equal(t, 0.0, b.PreferredTimeSlot)
	assert.Equal(t, 10.0, b.PreferredClassroom)
	assert.Equal(t, 2.0, b.TeacherPreference)
	assert.Equal(t, 5.0, b.GoodTimeSlot)
	assert.Equal(t, 0.0, b.Noon)
	assert.Equal(t, 33.0, b.Total())

	// room 2 is preferred by the course but not eligible for the bonus
	b = scorer.Breakdown(0, models.SlotAssignment{Day: 2, TimeSlotID: 101, ClassroomID: 2}, NewOccupancy())
	assert.Equal(t, 0.0, b.PreferredClassroom)
	assert.Equal(t, 15.0, b.PreferredTimeSlot)
	assert.Equal(t, 0.0, b.PreferredDay)

	b = scorer.Breakdown(0, models.SlotAssignment{Day: 2, TimeSlotID: 104, ClassroomID: 2}, nil)
	assert.Equal(t, -8.0, b.Noon)
	assert.Equal(t, 0.0, b.GoodTimeSlot)
}

func TestScorePenalisesLoad(t *testing.T) {
	snapshot := scoringSnapshot()
	constraints, _ := BuildConstraints(snapshot)
	scorer, err := NewScorer(snapshot, constraints, DefaultScoringConfig())
	require.NoError(t, err)

	occ := OccupancyOf([]models.Placement{
		placementAt(0, 1, 1, 102, 2),
		placementAt(5, 9, 2, 100, 2),
	})
	b := scorer.Breakdown(0, models.SlotAssignment{Day: 1, TimeSlotID: 100, ClassroomID: 1}, occ)
	assert.Equal(t, -5.0, b.TeacherSameDay)
	assert.Equal(t, -1.0, b.TimeSlotUsage)
}

func TestScoreRespectsCustomWeights(t *testing.T) {
	snapshot := scoringSnapshot()
	constraints, _ := BuildConstraints(snapshot)
	cfg := DefaultScoringConfig()
	cfg.AvoidNoonDefault = false
	cfg.PriorityWeight = 0
	scorer, err := NewScorer(snapshot, constraints, cfg)
	require.NoError(t, err)

	b := scorer.Breakdown(0, models.SlotAssignment{Day: 2, TimeSlotID: 104, ClassroomID: 2}, nil)
	assert.Equal(t, 0.0, b.Noon)
	assert.Equal(t, 0.0, b.Priority)
}

func TestFitnessPenalisesConflictsAndGaps(t *testing.T) {
	snapshot := scoringSnapshot()
	constraints, _ := BuildConstraints(snapshot)
	cfg := DefaultScoringConfig()
	scorer, err := NewScorer(snapshot, constraints, cfg)
	require.NoError(t, err)

	full := models.NewScheduleResult(constraints)
	full.Entries[0].Assignments = []models.SlotAssignment{
		{Day: 1, TimeSlotID: 100, ClassroomID: 1},
		{Day: 2, TimeSlotID: 101, ClassroomID: 1},
	}
	half := models.NewScheduleResult(constraints)
	half.Entries[0].Assignments = full.Entries[0].Assignments[:1]
	clash := models.NewScheduleResult(constraints)
	clash.Entries[0].Assignments = []models.SlotAssignment{
		{Day: 1, TimeSlotID: 100, ClassroomID: 1},
		{Day: 1, TimeSlotID: 100, ClassroomID: 1},
	}

	occ := NewOccupancy()
	first := scorer.Score(0, full.Entries[0].Assignments[0], occ)
	second := scorer.Score(0, full.Entries[0].Assignments[1], occ)
	assert.InDelta(t, first+second, scorer.Fitness(full), 1e-9)
	assert.InDelta(t, first-cfg.UnplacedPenalty, scorer.Fitness(half), 1e-9)
	assert.Less(t, scorer.Fitness(clash), scorer.Fitness(full)-2*cfg.ConflictPenalty+1)
}
