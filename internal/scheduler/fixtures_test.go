package scheduler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-scheduler/internal/models"
)

func testSlots(n int) []models.TimeSlot {
	slots := make([]models.TimeSlot, n)
	for i := range slots {
		slots[i] = models.TimeSlot{
			ID:        int64(100 + i),
			Order:     i + 1,
			StartTime: fmt.Sprintf("%02d:00", 7+2*i),
			EndTime:   fmt.Sprintf("%02d:30", 8+2*i),
		}
	}
	return slots
}

func testRooms(n int) []models.Classroom {
	rooms := make([]models.Classroom, n)
	for i := range rooms {
		rooms[i] = models.Classroom{ID: int64(i + 1), Name: fmt.Sprintf("R%d", i+1), Capacity: 40}
	}
	return rooms
}

func testSnapshot(days []int, slots, rooms int, teachers []models.Teacher, courses []models.Course) *models.Snapshot {
	s := &models.Snapshot{
		Semester:     "1",
		AcademicYear: "2025/2026",
		Days:         days,
		Courses:      courses,
		Teachers:     teachers,
		Classrooms:   testRooms(rooms),
		TimeSlots:    testSlots(slots),
	}
	s.Normalize()
	return s
}

// busySnapshot is a school week tight enough to force trade-offs.
func busySnapshot() *models.Snapshot {
	teachers := []models.Teacher{
		{ID: 1, Name: "Rina", MaxDailyLoad: 2, Preferences: []models.TeacherPreference{
			{TeacherID: 1, Day: 1, TimeSlotID: 100, Score: 3, Available: true},
			{TeacherID: 1, Day: 2, TimeSlotID: 101, Score: 2, Available: true},
			{TeacherID: 1, Day: 5, TimeSlotID: 103, Available: false},
		}},
		{ID: 2, Name: "Budi", MaxWeeklyLoad: 6},
		{ID: 3, Name: "Sari"},
	}
	courses := []models.Course{
		{ID: 1, Code: "MATH", WeeklySessions: 3, Priority: 3, TeacherIDs: []int64{1}, PreferredDays: []int{1, 3}},
		{ID: 2, Code: "PHYS", WeeklySessions: 2, Priority: 2, TeacherIDs: []int64{2}, RoomType: "lab"},
		{ID: 3, Code: "CHEM", WeeklySessions: 2, Priority: 2, TeacherIDs: []int64{2}},
		{ID: 4, Code: "BIO", WeeklySessions: 2, Priority: 1, TeacherIDs: []int64{3}},
		{ID: 5, Code: "HIST", WeeklySessions: 2, Priority: 1, TeacherIDs: []int64{1, 3}},
		{ID: 6, Code: "ART", WeeklySessions: 1, Priority: 0, TeacherIDs: []int64{3}, Enrollment: 35},
	}
	s := testSnapshot([]int{1, 2, 3, 4, 5}, 4, 3, teachers, courses)
	s.Classrooms[2].RoomType = "lab"
	s.Classrooms[2].Capacity = 30
	s.Normalize()
	return s
}

func testInput(t *testing.T, snapshot *models.Snapshot) Input {
	t.Helper()
	constraints, orphaned := BuildConstraints(snapshot)
	require.Empty(t, orphaned)
	return Input{Snapshot: snapshot, Constraints: constraints, Scoring: DefaultScoringConfig()}
}

func testGeneticParameters() GeneticParameters {
	return GeneticParameters{
		PopulationSize: 12,
		MaxGenerations: 15,
		CrossoverRate:  0.8,
		MutationRate:   0.1,
		EliteCount:     2,
		TournamentSize: 3,
		Workers:        2,
		Seed:           42,
	}
}

func requireNoDoubleBooking(t *testing.T, result *models.ScheduleResult) {
	t.Helper()
	placements := result.Placements()
	for i, p := range placements {
		rest := placements[i+1:]
		require.False(t, HasTeacherConflict(p.TeacherID, p.SlotAssignment, rest), "teacher %d double-booked", p.TeacherID)
		require.False(t, HasClassroomConflict(p.ClassroomID, p.SlotAssignment, rest), "classroom %d double-booked", p.ClassroomID)
	}
}
