package scheduler

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/noah-isme/sma-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-scheduler/pkg/errors"
)

// catalog holds the read-only lookups of one run. It is safe for concurrent readers.
type catalog struct {
	snapshot    *models.Snapshot
	cfg         ScoringConfig
	constraints []models.Constraint

	days       []int
	slots      []models.TimeSlot
	classrooms []models.Classroom

	unavailable map[slotKey]struct{}
	preference  map[slotKey]float64
	preferred   map[int64][]models.TeacherPreference

	preferredDays  []map[int]struct{}
	preferredSlots []map[int64]struct{}
	preferredRooms []map[int64]struct{}
	suitableRooms  [][]models.Classroom
}

func newCatalog(snapshot *models.Snapshot, constraints []models.Constraint, cfg ScoringConfig) (*catalog, error) {
	if snapshot == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, "snapshot is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	snapshot.Normalize()
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}

	cat := &catalog{
		snapshot:    snapshot,
		cfg:         cfg,
		constraints: make([]models.Constraint, len(constraints)),
		days:        snapshot.Days,
		slots:       snapshot.TimeSlots,
		classrooms:  snapshot.Classrooms,
		unavailable: make(map[slotKey]struct{}),
		preference:  make(map[slotKey]float64),
		preferred:   make(map[int64][]models.TeacherPreference),
	}

	for i, c := range constraints {
		if c.Course == nil || c.Teacher == nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, fmt.Sprintf("constraint %d lacks a course or teacher", c.ID))
		}
		if c.SessionsPerWeek < 0 {
			return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, fmt.Sprintf("constraint %d requires negative sessions", c.ID))
		}
		if cfg.SessionsPerWeekCap > 0 && c.SessionsPerWeek > cfg.SessionsPerWeekCap {
			c.SessionsPerWeek = cfg.SessionsPerWeekCap
		}
		cat.constraints[i] = c
	}

	seen := make(map[int64]bool)
	for _, c := range cat.constraints {
		if seen[c.Teacher.ID] {
			continue
		}
		seen[c.Teacher.ID] = true
		cat.indexTeacher(c.Teacher)
	}

	cat.preferredDays = make([]map[int]struct{}, len(cat.constraints))
	cat.preferredSlots = make([]map[int64]struct{}, len(cat.constraints))
	cat.preferredRooms = make([]map[int64]struct{}, len(cat.constraints))
	cat.suitableRooms = make([][]models.Classroom, len(cat.constraints))
	for i := range cat.constraints {
		c := &cat.constraints[i]
		cat.preferredDays[i] = lo.SliceToMap(c.PreferredDays, func(d int) (int, struct{}) { return d, struct{}{} })
		cat.preferredSlots[i] = lo.SliceToMap(c.PreferredTimeSlotIDs, func(id int64) (int64, struct{}) { return id, struct{}{} })
		cat.preferredRooms[i] = lo.SliceToMap(c.PreferredClassroomIDs, func(id int64) (int64, struct{}) { return id, struct{}{} })
		cat.suitableRooms[i] = lo.Filter(cat.classrooms, func(room models.Classroom, _ int) bool { return room.Suits(c.Course) })
	}

	return cat, nil
}

func (c *catalog) indexTeacher(t *models.Teacher) {
	available := make([]models.TeacherPreference, 0, len(t.Preferences))
	for _, pref := range t.Preferences {
		key := slotKey{t.ID, pref.Day, pref.TimeSlotID}
		if !pref.Available {
			c.unavailable[key] = struct{}{}
			continue
		}
		if c.snapshot.SlotPosition(pref.TimeSlotID) < 0 || !c.snapshot.HasDay(pref.Day) {
			continue
		}
		c.preference[key] = pref.Score
		available = append(available, pref)
	}
	sort.SliceStable(available, func(i, j int) bool {
		if available[i].Score != available[j].Score {
			return available[i].Score > available[j].Score
		}
		if available[i].Day != available[j].Day {
			return available[i].Day < available[j].Day
		}
		return c.snapshot.SlotPosition(available[i].TimeSlotID) < c.snapshot.SlotPosition(available[j].TimeSlotID)
	})
	c.preferred[t.ID] = available
}

func (c *catalog) placement(idx int, a models.SlotAssignment) models.Placement {
	con := &c.constraints[idx]
	return models.Placement{
		ConstraintID:   con.ID,
		CourseID:       con.Course.ID,
		TeacherID:      con.Teacher.ID,
		SlotAssignment: a,
	}
}

func (c *catalog) dailyLimit(t *models.Teacher) int {
	limit := c.cfg.TeacherDayLoadLimit
	if t.MaxDailyLoad > 0 && t.MaxDailyLoad < limit {
		limit = t.MaxDailyLoad
	}
	return limit
}

func (c *catalog) teacherUnavailable(teacherID int64, day int, slotID int64) bool {
	_, blocked := c.unavailable[slotKey{teacherID, day, slotID}]
	return blocked
}

// allows applies every hard rule to placing constraint idx at a.
func (c *catalog) allows(idx int, a models.SlotAssignment, occ *Occupancy) bool {
	con := &c.constraints[idx]
	teacher := con.Teacher
	if occ.HasTeacherConflict(teacher.ID, a) || occ.HasClassroomConflict(a.ClassroomID, a) {
		return false
	}
	if c.teacherUnavailable(teacher.ID, a.Day, a.TimeSlotID) {
		return false
	}
	if occ.ConstraintDayLoad(con.ID, a.Day) >= c.cfg.MaxDailySessionsPerCourse {
		return false
	}
	if occ.TeacherDayLoad(teacher.ID, a.Day) >= c.dailyLimit(teacher) {
		return false
	}
	if teacher.MaxWeeklyLoad > 0 && occ.TeacherWeekLoad(teacher.ID) >= teacher.MaxWeeklyLoad {
		return false
	}
	room, ok := c.snapshot.Classroom(a.ClassroomID)
	return ok && room.Suits(con.Course)
}

// candidates lists every feasible assignment for constraint idx in scan order:
// day, then slot order, then classroom id.
func (c *catalog) candidates(idx int, occ *Occupancy) []models.SlotAssignment {
	out := make([]models.SlotAssignment, 0)
	for _, day := range c.days {
		for _, slot := range c.slots {
			for _, room := range c.suitableRooms[idx] {
				a := models.SlotAssignment{Day: day, TimeSlotID: slot.ID, ClassroomID: room.ID}
				if c.allows(idx, a, occ) {
					out = append(out, a)
				}
			}
		}
	}
	return out
}

// diagnose explains why constraint idx cannot take another session under occ.
func (c *catalog) diagnose(idx int, occ *Occupancy) models.FailureReason {
	con := &c.constraints[idx]
	teacher := con.Teacher
	if len(c.suitableRooms[idx]) == 0 {
		return models.ReasonNoSuitableClassroom
	}
	if teacher.MaxWeeklyLoad > 0 && occ.TeacherWeekLoad(teacher.ID) >= teacher.MaxWeeklyLoad {
		return models.ReasonTeacherLoadExceeded
	}
	blocked := 0
	for _, day := range c.days {
		for _, slot := range c.slots {
			if c.teacherUnavailable(teacher.ID, day, slot.ID) {
				blocked++
			}
		}
	}
	if blocked == len(c.days)*len(c.slots) {
		return models.ReasonTeacherUnavailable
	}
	return models.ReasonInsufficientSlots
}

// lessCandidate orders candidates of equal score: lowest classroom id, then lowest slot order, then day.
func (c *catalog) lessCandidate(a, b models.SlotAssignment) bool {
	if a.ClassroomID != b.ClassroomID {
		return a.ClassroomID < b.ClassroomID
	}
	pa, pb := c.snapshot.SlotPosition(a.TimeSlotID), c.snapshot.SlotPosition(b.TimeSlotID)
	if pa != pb {
		return pa < pb
	}
	return a.Day < b.Day
}

// priorityOrder returns constraint indexes by descending priority, stable on input order.
func (c *catalog) priorityOrder() []int {
	order := lo.Range(len(c.constraints))
	sort.SliceStable(order, func(i, j int) bool {
		return c.constraints[order[i]].Priority > c.constraints[order[j]].Priority
	})
	return order
}

// failures builds FailedAssignment records for every unmet entry of result.
func (c *catalog) failures(result *models.ScheduleResult, occ *Occupancy, order []int) []models.FailedAssignment {
	failed := make([]models.FailedAssignment, 0)
	for _, idx := range order {
		entry := result.Entries[idx]
		if entry.Fulfilled() {
			continue
		}
		failed = append(failed, models.FailedAssignment{
			ConstraintID: entry.ConstraintID,
			CourseID:     entry.CourseID,
			TeacherID:    entry.TeacherID,
			Reason:       c.diagnose(idx, occ),
			Required:     entry.Required,
			Achieved:     len(entry.Assignments),
		})
	}
	return failed
}
