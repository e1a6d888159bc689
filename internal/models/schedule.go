package models

// Constraint is one course×teacher pairing that must receive SessionsPerWeek placements.
type Constraint struct {
	ID                    int      `json:"id"`
	Course                *Course  `json:"-"`
	Teacher               *Teacher `json:"-"`
	SessionsPerWeek       int      `json:"sessions_per_week"`
	Priority              int      `json:"priority"`
	PreferredDays         []int    `json:"preferred_days,omitempty"`
	PreferredTimeSlotIDs  []int64  `json:"preferred_time_slot_ids,omitempty"`
	PreferredClassroomIDs []int64  `json:"preferred_classroom_ids,omitempty"`
}

// CourseID returns the referenced course id or zero.
func (c *Constraint) CourseID() int64 {
	if c.Course == nil {
		return 0
	}
	return c.Course.ID
}

// TeacherID returns the referenced teacher id or zero.
func (c *Constraint) TeacherID() int64 {
	if c.Teacher == nil {
		return 0
	}
	return c.Teacher.ID
}

// SlotAssignment is the atomic (day, time slot, classroom) placement.
type SlotAssignment struct {
	Day         int   `json:"day"`
	TimeSlotID  int64 `json:"time_slot_id"`
	ClassroomID int64 `json:"classroom_id"`
}

// Placed reports whether the assignment points at a real slot.
func (a SlotAssignment) Placed() bool {
	return a.Day != 0
}

// Placement is a SlotAssignment flattened with the owners it books.
type Placement struct {
	ConstraintID int   `json:"constraint_id"`
	CourseID     int64 `json:"course_id"`
	TeacherID    int64 `json:"teacher_id"`
	SlotAssignment
}

// FailureReason codes why a constraint fell short.
type FailureReason string

const (
	ReasonInsufficientSlots   FailureReason = "INSUFFICIENT_AVAILABLE_SLOTS"
	ReasonTeacherLoadExceeded FailureReason = "TEACHER_LOAD_EXCEEDED"
	ReasonTeacherUnavailable  FailureReason = "TEACHER_UNAVAILABLE"
	ReasonNoSuitableClassroom FailureReason = "NO_SUITABLE_CLASSROOM"
)

// FailedAssignment records an unmet constraint.
type FailedAssignment struct {
	ConstraintID int           `json:"constraint_id"`
	CourseID     int64         `json:"course_id"`
	TeacherID    int64         `json:"teacher_id"`
	Reason       FailureReason `json:"reason"`
	Required     int           `json:"required"`
	Achieved     int           `json:"achieved"`
}

// ScheduleEntry lists the sessions placed for one constraint in session order.
type ScheduleEntry struct {
	ConstraintID int              `json:"constraint_id"`
	CourseID     int64            `json:"course_id"`
	TeacherID    int64            `json:"teacher_id"`
	Required     int              `json:"required"`
	Assignments  []SlotAssignment `json:"assignments"`
}

// Fulfilled reports whether the entry reached its required session count.
func (e ScheduleEntry) Fulfilled() bool {
	return len(e.Assignments) >= e.Required
}

// ScheduleResult is the output of one scheduler run. Entries follow constraint order.
type ScheduleResult struct {
	Entries []ScheduleEntry    `json:"entries"`
	Failed  []FailedAssignment `json:"failed"`
}

// NewScheduleResult prepares one empty entry per constraint.
func NewScheduleResult(constraints []Constraint) *ScheduleResult {
	result := &ScheduleResult{
		Entries: make([]ScheduleEntry, len(constraints)),
		Failed:  make([]FailedAssignment, 0),
	}
	for i := range constraints {
		c := &constraints[i]
		result.Entries[i] = ScheduleEntry{
			ConstraintID: c.ID,
			CourseID:     c.CourseID(),
			TeacherID:    c.TeacherID(),
			Required:     c.SessionsPerWeek,
			Assignments:  make([]SlotAssignment, 0, c.SessionsPerWeek),
		}
	}
	return result
}

// Placements flattens every assignment in entry order.
func (r *ScheduleResult) Placements() []Placement {
	if r == nil {
		return nil
	}
	placements := make([]Placement, 0, len(r.Entries))
	for _, entry := range r.Entries {
		for _, a := range entry.Assignments {
			placements = append(placements, Placement{
				ConstraintID:   entry.ConstraintID,
				CourseID:       entry.CourseID,
				TeacherID:      entry.TeacherID,
				SlotAssignment: a,
			})
		}
	}
	return placements
}

// FulfilledCount counts constraints that reached their required sessions.
func (r *ScheduleResult) FulfilledCount() int {
	if r == nil {
		return 0
	}
	count := 0
	for _, entry := range r.Entries {
		if entry.Fulfilled() {
			count++
		}
	}
	return count
}

// UnplacedSessions sums the sessions still missing across all entries.
func (r *ScheduleResult) UnplacedSessions() int {
	if r == nil {
		return 0
	}
	missing := 0
	for _, entry := range r.Entries {
		if gap := entry.Required - len(entry.Assignments); gap > 0 {
			missing += gap
		}
	}
	return missing
}
