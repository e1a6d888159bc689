package scheduler

import (
	"github.com/noah-isme/sma-scheduler/internal/models"
)

// BuildConstraints derives one constraint per (course, qualified teacher) pairing, in course order.
// Courses without a known teacher are returned separately.
func BuildConstraints(snapshot *models.Snapshot) ([]models.Constraint, []int64) {
	constraints := make([]models.Constraint, 0, len(snapshot.Courses))
	var orphaned []int64
	for i := range snapshot.Courses {
		course := &snapshot.Courses[i]
		paired := false
		for _, teacherID := range course.TeacherIDs {
			teacher, ok := snapshot.Teacher(teacherID)
			if !ok {
				continue
			}
			paired = true
			constraints = append(constraints, models.Constraint{
				ID:                    len(constraints),
				Course:                course,
				Teacher:               teacher,
				SessionsPerWeek:       course.WeeklySessions,
				Priority:              course.Priority,
				PreferredDays:         course.PreferredDays,
				PreferredTimeSlotIDs:  course.PreferredTimeSlotIDs,
				PreferredClassroomIDs: course.PreferredClassroomIDs,
			})
		}
		if !paired {
			orphaned = append(orphaned, course.ID)
		}
	}
	return constraints, orphaned
}
