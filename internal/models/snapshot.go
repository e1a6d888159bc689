package models

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	appErrors "github.com/noah-isme/sma-scheduler/pkg/errors"
)

// SnapshotQuery selects the input for a run.
type SnapshotQuery struct {
	Semester     string  `json:"semester"`
	AcademicYear string  `json:"academic_year"`
	CourseIDs    []int64 `json:"course_ids,omitempty"`
}

// Snapshot is the read-only input of a scheduling run.
type Snapshot struct {
	Semester     string      `json:"semester"`
	AcademicYear string      `json:"academic_year"`
	Days         []int       `json:"days"`
	Courses      []Course    `json:"courses"`
	Teachers     []Teacher   `json:"teachers"`
	Classrooms   []Classroom `json:"classrooms"`
	TimeSlots    []TimeSlot  `json:"time_slots"`

	teacherIndex   map[int64]int
	classroomIndex map[int64]int
	slotIndex      map[int64]int
	courseIndex    map[int64]int
}

// Normalize sorts rooms by id and slots by order, fills defaults and rebuilds lookups.
// Courses keep their input order; it is the tie-break for equal priorities.
func (s *Snapshot) Normalize() {
	if len(s.Days) == 0 {
		s.Days = []int{1, 2, 3, 4, 5, 6, 7}
	}
	sort.Ints(s.Days)
	sort.SliceStable(s.Classrooms, func(i, j int) bool { return s.Classrooms[i].ID < s.Classrooms[j].ID })
	sort.SliceStable(s.TimeSlots, func(i, j int) bool { return s.TimeSlots[i].Order < s.TimeSlots[j].Order })

	for i := range s.TimeSlots {
		if s.TimeSlots[i].DurationMinutes == 0 {
			if minutes, err := s.TimeSlots[i].Duration(); err == nil {
				s.TimeSlots[i].DurationMinutes = minutes
			}
		}
	}

	s.teacherIndex = make(map[int64]int, len(s.Teachers))
	for i, t := range s.Teachers {
		s.teacherIndex[t.ID] = i
	}
	s.classroomIndex = make(map[int64]int, len(s.Classrooms))
	for i, c := range s.Classrooms {
		s.classroomIndex[c.ID] = i
	}
	s.slotIndex = make(map[int64]int, len(s.TimeSlots))
	for i, ts := range s.TimeSlots {
		s.slotIndex[ts.ID] = i
	}
	s.courseIndex = make(map[int64]int, len(s.Courses))
	for i, c := range s.Courses {
		s.courseIndex[c.ID] = i
	}
}

// Validate rejects inputs no scheduler can run on.
func (s *Snapshot) Validate() error {
	invalid := func(format string, args ...any) error {
		return appErrors.Clone(appErrors.ErrInvalidConfiguration, fmt.Sprintf(format, args...))
	}

	if len(s.TimeSlots) == 0 {
		return invalid("snapshot has no time slots")
	}
	if len(s.Classrooms) == 0 {
		return invalid("snapshot has no classrooms")
	}
	for _, day := range s.Days {
		if day < MinDay || day > MaxDay {
			return invalid("day %d outside %d..%d", day, MinDay, MaxDay)
		}
	}

	orders := make(map[int]int64, len(s.TimeSlots))
	ids := make(map[int64]struct{}, len(s.TimeSlots))
	for _, ts := range s.TimeSlots {
		if other, dup := orders[ts.Order]; dup {
			return invalid("time slots %d and %d share order %d", other, ts.ID, ts.Order)
		}
		if _, dup := ids[ts.ID]; dup {
			return invalid("duplicate time slot id %d", ts.ID)
		}
		orders[ts.Order] = ts.ID
		ids[ts.ID] = struct{}{}
		if _, err := ts.Duration(); err != nil {
			return invalid("time slot %d: %v", ts.ID, err)
		}
	}

	for _, c := range s.Classrooms {
		if c.Capacity < 0 {
			return invalid("classroom %d has negative capacity", c.ID)
		}
	}
	for _, t := range s.Teachers {
		if t.MaxDailyLoad < 0 || t.MaxWeeklyLoad < 0 {
			return invalid("teacher %d has negative load limits", t.ID)
		}
	}
	for _, c := range s.Courses {
		if c.WeeklySessions < 0 {
			return invalid("course %d has negative weekly sessions", c.ID)
		}
	}
	return nil
}

// Clone deep-copies the snapshot so concurrent runs never share slices.
func (s *Snapshot) Clone() *Snapshot {
	clone := &Snapshot{
		Semester:     s.Semester,
		AcademicYear: s.AcademicYear,
		Days:         append([]int(nil), s.Days...),
		Classrooms:   append([]Classroom(nil), s.Classrooms...),
		TimeSlots:    append([]TimeSlot(nil), s.TimeSlots...),
		Courses:      make([]Course, len(s.Courses)),
		Teachers:     make([]Teacher, len(s.Teachers)),
	}
	for i, c := range s.Courses {
		c.TeacherIDs = append([]int64(nil), c.TeacherIDs...)
		c.PreferredDays = append([]int(nil), c.PreferredDays...)
		c.PreferredTimeSlotIDs = append([]int64(nil), c.PreferredTimeSlotIDs...)
		c.PreferredClassroomIDs = append([]int64(nil), c.PreferredClassroomIDs...)
		clone.Courses[i] = c
	}
	for i, t := range s.Teachers {
		t.Preferences = append([]TeacherPreference(nil), t.Preferences...)
		clone.Teachers[i] = t
	}
	clone.Normalize()
	return clone
}

// Fingerprint is a stable digest of the snapshot content, used for cache keys.
func (s *Snapshot) Fingerprint() (string, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, payload).String(), nil
}

func (s *Snapshot) ensureIndexed() {
	if s.slotIndex == nil {
		s.Normalize()
	}
}

// Teacher returns the teacher with the given id.
func (s *Snapshot) Teacher(id int64) (*Teacher, bool) {
	s.ensureIndexed()
	i, ok := s.teacherIndex[id]
	if !ok {
		return nil, false
	}
	return &s.Teachers[i], true
}

// Course returns the course with the given id.
func (s *Snapshot) Course(id int64) (*Course, bool) {
	s.ensureIndexed()
	i, ok := s.courseIndex[id]
	if !ok {
		return nil, false
	}
	return &s.Courses[i], true
}

// Classroom returns the classroom with the given id.
func (s *Snapshot) Classroom(id int64) (*Classroom, bool) {
	s.ensureIndexed()
	i, ok := s.classroomIndex[id]
	if !ok {
		return nil, false
	}
	return &s.Classrooms[i], true
}

// TimeSlot returns the time slot with the given id.
func (s *Snapshot) TimeSlot(id int64) (*TimeSlot, bool) {
	s.ensureIndexed()
	i, ok := s.slotIndex[id]
	if !ok {
		return nil, false
	}
	return &s.TimeSlots[i], true
}

// SlotPosition returns the canonical position of a time slot, or -1.
func (s *Snapshot) SlotPosition(id int64) int {
	s.ensureIndexed()
	i, ok := s.slotIndex[id]
	if !ok {
		return -1
	}
	return i
}

// HasDay reports whether the day is schedulable in this snapshot.
func (s *Snapshot) HasDay(day int) bool {
	for _, d := range s.Days {
		if d == day {
			return true
		}
	}
	return false
}
