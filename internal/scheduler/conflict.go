package scheduler

import (
	"github.com/samber/lo"

	"github.com/noah-isme/sma-scheduler/internal/models"
)

// HasTeacherConflict reports whether the teacher already teaches at the candidate's (day, slot).
func HasTeacherConflict(teacherID int64, candidate models.SlotAssignment, existing []models.Placement) bool {
	return lo.ContainsBy(existing, func(p models.Placement) bool {
		return p.TeacherID == teacherID && p.Day == candidate.Day && p.TimeSlotID == candidate.TimeSlotID
	})
}

// HasClassroomConflict reports whether the classroom is already booked at the candidate's (day, slot).
func HasClassroomConflict(classroomID int64, candidate models.SlotAssignment, existing []models.Placement) bool {
	return lo.ContainsBy(existing, func(p models.Placement) bool {
		return p.ClassroomID == classroomID && p.Day == candidate.Day && p.TimeSlotID == candidate.TimeSlotID
	})
}

// slotKey identifies an owner (teacher or classroom) at a (day, slot).
type slotKey struct {
	owner int64
	day   int
	slot  int64
}

type dayKey struct {
	owner int64
	day   int
}

// Occupancy indexes a set of placements for O(1) conflict and load lookups.
// It is owned by a single goroutine.
type Occupancy struct {
	teachers      map[slotKey]int
	classrooms    map[slotKey]int
	teacherDay    map[dayKey]int
	teacherWeek   map[int64]int
	constraintDay map[dayKey]int
	slotUsage     map[int64]int
	size          int
}

// NewOccupancy returns an empty index.
func NewOccupancy() *Occupancy {
	return &Occupancy{
		teachers:      make(map[slotKey]int),
		classrooms:    make(map[slotKey]int),
		teacherDay:    make(map[dayKey]int),
		teacherWeek:   make(map[int64]int),
		constraintDay: make(map[dayKey]int),
		slotUsage:     make(map[int64]int),
	}
}

// OccupancyOf indexes existing placements.
func OccupancyOf(placements []models.Placement) *Occupancy {
	occ := NewOccupancy()
	for _, p := range placements {
		occ.Add(p)
	}
	return occ
}

// Add books a placement.
func (o *Occupancy) Add(p models.Placement) {
	o.teachers[slotKey{p.TeacherID, p.Day, p.TimeSlotID}]++
	o.classrooms[slotKey{p.ClassroomID, p.Day, p.TimeSlotID}]++
	o.teacherDay[dayKey{p.TeacherID, p.Day}]++
	o.teacherWeek[p.TeacherID]++
	o.constraintDay[dayKey{int64(p.ConstraintID), p.Day}]++
	o.slotUsage[p.TimeSlotID]++
	o.size++
}

// Remove releases a placement previously added.
func (o *Occupancy) Remove(p models.Placement) {
	decrement(o.teachers, slotKey{p.TeacherID, p.Day, p.TimeSlotID})
	decrement(o.classrooms, slotKey{p.ClassroomID, p.Day, p.TimeSlotID})
	decrement(o.teacherDay, dayKey{p.TeacherID, p.Day})
	decrement(o.teacherWeek, p.TeacherID)
	decrement(o.constraintDay, dayKey{int64(p.ConstraintID), p.Day})
	decrement(o.slotUsage, p.TimeSlotID)
	o.size--
}

func decrement[K comparable](m map[K]int, key K) {
	if m[key] <= 1 {
		delete(m, key)
		return
	}
	m[key]--
}

// HasTeacherConflict is the indexed form of the package-level predicate.
func (o *Occupancy) HasTeacherConflict(teacherID int64, candidate models.SlotAssignment) bool {
	return o.teachers[slotKey{teacherID, candidate.Day, candidate.TimeSlotID}] > 0
}

// HasClassroomConflict is the indexed form of the package-level predicate.
func (o *Occupancy) HasClassroomConflict(classroomID int64, candidate models.SlotAssignment) bool {
	return o.classrooms[slotKey{classroomID, candidate.Day, candidate.TimeSlotID}] > 0
}

// TeacherDayLoad counts sessions the teacher holds on a day.
func (o *Occupancy) TeacherDayLoad(teacherID int64, day int) int {
	return o.teacherDay[dayKey{teacherID, day}]
}

// TeacherWeekLoad counts sessions the teacher holds across the week.
func (o *Occupancy) TeacherWeekLoad(teacherID int64) int {
	return o.teacherWeek[teacherID]
}

// ConstraintDayLoad counts sessions of one constraint on a day.
func (o *Occupancy) ConstraintDayLoad(constraintID int, day int) int {
	return o.constraintDay[dayKey{int64(constraintID), day}]
}

// SlotUsage counts placements in a time slot across all days.
func (o *Occupancy) SlotUsage(slotID int64) int {
	return o.slotUsage[slotID]
}

// RoomsInUse counts classrooms booked at a (day, slot).
func (o *Occupancy) RoomsInUse(day int, slotID int64) int {
	count := 0
	for key := range o.classrooms {
		if key.day == day && key.slot == slotID {
			count++
		}
	}
	return count
}

// Conflicts counts surplus bookings: every placement beyond the first on a teacher or classroom slot.
func (o *Occupancy) Conflicts() int {
	total := 0
	for _, n := range o.teachers {
		total += n - 1
	}
	for _, n := range o.classrooms {
		total += n - 1
	}
	return total
}

// Len returns the number of placements indexed.
func (o *Occupancy) Len() int {
	return o.size
}

// Clone copies the index.
func (o *Occupancy) Clone() *Occupancy {
	return &Occupancy{
		teachers:      lo.Assign(o.teachers),
		classrooms:    lo.Assign(o.classrooms),
		teacherDay:    lo.Assign(o.teacherDay),
		teacherWeek:   lo.Assign(o.teacherWeek),
		constraintDay: lo.Assign(o.constraintDay),
		slotUsage:     lo.Assign(o.slotUsage),
		size:          o.size,
	}
}
