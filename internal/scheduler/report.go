package scheduler

import (
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/noah-isme/sma-scheduler/internal/models"
)

// ReportMeta identifies the run a report belongs to.
type ReportMeta struct {
	RunID        string
	Semester     string
	AcademicYear string
}

// SuccessRate is the fulfilled share of constraints as a percentage; zero without constraints.
func SuccessRate(fulfilled, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(fulfilled) / float64(total) * 100
}

// NewRunReport summarises an outcome. The snapshot provides names for suggestions.
func NewRunReport(outcome *Outcome, snapshot *models.Snapshot, meta ReportMeta) models.RunReport {
	result := outcome.Result
	total := 0
	if result != nil {
		total = len(result.Entries)
	}
	fulfilled := result.FulfilledCount()
	failed := make([]models.FailedAssignment, 0)
	if result != nil {
		failed = append(failed, result.Failed...)
	}

	return models.RunReport{
		RunID:                 meta.RunID,
		Algorithm:             outcome.Algorithm,
		Semester:              meta.Semester,
		AcademicYear:          meta.AcademicYear,
		TotalConstraints:      total,
		SuccessfulAssignments: fulfilled,
		FailedAssignments:     failed,
		SuccessRate:           SuccessRate(fulfilled, total),
		ExecutionTimeSeconds:  math.Round(outcome.Duration.Seconds()*1000) / 1000,
		Fitness:               outcome.Fitness,
		Generations:           outcome.Generations,
		TimedOut:              outcome.TimedOut,
		Suggestions:           Suggestions(result, snapshot),
	}
}

// Suggestions derives operator hints from the failure reasons of result.
func Suggestions(result *models.ScheduleResult, snapshot *models.Snapshot) []string {
	if result == nil || len(result.Failed) == 0 {
		return []string{}
	}
	occ := OccupancyOf(result.Placements())
	saturated := saturatedSlots(occ, snapshot)

	hints := make([]string, 0, len(result.Failed))
	for _, f := range result.Failed {
		course := courseLabel(snapshot, f.CourseID)
		teacher := teacherLabel(snapshot, f.TeacherID)
		switch f.Reason {
		case models.ReasonNoSuitableClassroom:
			hints = append(hints, noRoomHint(snapshot, f.CourseID, course))
		case models.ReasonTeacherLoadExceeded:
			hints = append(hints, fmt.Sprintf("teacher %s reached the weekly load limit; assign another teacher to %s", teacher, course))
		case models.ReasonTeacherUnavailable:
			hints = append(hints, fmt.Sprintf("teacher %s is unavailable in every time slot; review availability for %s", teacher, course))
		default:
			if len(saturated) == 0 {
				hints = append(hints, fmt.Sprintf("teacher %s has no free time slot left for %s; add time slots or relax daily limits", teacher, course))
				continue
			}
			for _, slot := range saturated {
				hints = append(hints, fmt.Sprintf("classroom supply insufficient for time slot %s", slot))
			}
		}
	}
	return lo.Uniq(hints)
}

// saturatedSlots lists time slots whose classrooms are all booked on some day.
func saturatedSlots(occ *Occupancy, snapshot *models.Snapshot) []string {
	if snapshot == nil || len(snapshot.Classrooms) == 0 {
		return nil
	}
	var out []string
	for _, slot := range snapshot.TimeSlots {
		full := lo.ContainsBy(snapshot.Days, func(day int) bool {
			return occ.RoomsInUse(day, slot.ID) >= len(snapshot.Classrooms)
		})
		if full {
			out = append(out, slot.Label())
		}
	}
	return out
}

func noRoomHint(snapshot *models.Snapshot, courseID int64, label string) string {
	if snapshot != nil {
		if c, ok := snapshot.Course(courseID); ok {
			if c.RoomType != "" {
				return fmt.Sprintf("no %s classroom seats %d students for %s", c.RoomType, c.Enrollment, label)
			}
			return fmt.Sprintf("no classroom seats %d students for %s", c.Enrollment, label)
		}
	}
	return fmt.Sprintf("no suitable classroom for %s", label)
}

func courseLabel(snapshot *models.Snapshot, id int64) string {
	if snapshot != nil {
		if c, ok := snapshot.Course(id); ok && c.Code != "" {
			return c.Code
		}
	}
	return fmt.Sprintf("course %d", id)
}

func teacherLabel(snapshot *models.Snapshot, id int64) string {
	if snapshot != nil {
		if t, ok := snapshot.Teacher(id); ok && t.Name != "" {
			return t.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}
