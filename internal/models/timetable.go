package models

import (
	"fmt"
	"time"
)

// Days of the week follow ISO-8601 numbering, Monday = 1.
const (
	MinDay = 1
	MaxDay = 7
)

// Course is a catalog entry that needs a fixed number of weekly sessions.
type Course struct {
	ID                    int64   `db:"id" json:"id"`
	Code                  string  `db:"code" json:"code"`
	Name                  string  `db:"name" json:"name"`
	WeeklySessions        int     `db:"weekly_sessions" json:"weekly_sessions"`
	Priority              int     `db:"priority" json:"priority"`
	Enrollment            int     `db:"enrollment" json:"enrollment"`
	RoomType              string  `db:"room_type" json:"room_type"`
	TeacherIDs            []int64 `db:"-" json:"teacher_ids"`
	PreferredDays         []int   `db:"-" json:"preferred_days,omitempty"`
	PreferredTimeSlotIDs  []int64 `db:"-" json:"preferred_time_slot_ids,omitempty"`
	PreferredClassroomIDs []int64 `db:"-" json:"preferred_classroom_ids,omitempty"`
}

// Teacher carries load limits and day/slot preferences.
type Teacher struct {
	ID            int64               `db:"id" json:"id"`
	Name          string              `db:"name" json:"name"`
	MaxDailyLoad  int                 `db:"max_daily_load" json:"max_daily_load"`
	MaxWeeklyLoad int                 `db:"max_weekly_load" json:"max_weekly_load"`
	Preferences   []TeacherPreference `db:"-" json:"preferences"`
}

// TeacherPreference scores a (day, slot) pair. Available=false blocks the pair outright.
type TeacherPreference struct {
	TeacherID  int64   `db:"teacher_id" json:"teacher_id"`
	Day        int     `db:"day_of_week" json:"day"`
	TimeSlotID int64   `db:"time_slot_id" json:"time_slot_id"`
	Score      float64 `db:"score" json:"score"`
	Available  bool    `db:"available" json:"available"`
	Reason     string  `db:"reason" json:"reason"`
}

// Classroom is a bookable room.
type Classroom struct {
	ID                 int64  `db:"id" json:"id"`
	Name               string `db:"name" json:"name"`
	Capacity           int    `db:"capacity" json:"capacity"`
	RoomType           string `db:"room_type" json:"room_type"`
	PreferenceEligible bool   `db:"preference_eligible" json:"preference_eligible"`
}

// Suits reports whether the room can host the course.
func (c Classroom) Suits(course *Course) bool {
	if course == nil {
		return true
	}
	if course.RoomType != "" && course.RoomType != c.RoomType {
		return false
	}
	return course.Enrollment <= 0 || c.Capacity >= course.Enrollment
}

// TimeSlot is one period of a teaching day. Order is unique and defines the canonical sequence.
type TimeSlot struct {
	ID              int64  `db:"id" json:"id"`
	Order           int    `db:"slot_order" json:"order"`
	StartTime       string `db:"start_time" json:"start_time"`
	EndTime         string `db:"end_time" json:"end_time"`
	DurationMinutes int    `db:"duration_minutes" json:"duration_minutes"`
}

const clockLayout = "15:04"

// Duration returns the slot length, deriving it from start/end when not stored.
func (s TimeSlot) Duration() (int, error) {
	if s.DurationMinutes > 0 {
		return s.DurationMinutes, nil
	}
	if s.StartTime == "" || s.EndTime == "" {
		return 0, nil
	}
	start, err := time.Parse(clockLayout, s.StartTime)
	if err != nil {
		return 0, fmt.Errorf("parse start time %q: %w", s.StartTime, err)
	}
	end, err := time.Parse(clockLayout, s.EndTime)
	if err != nil {
		return 0, fmt.Errorf("parse end time %q: %w", s.EndTime, err)
	}
	if !end.After(start) {
		return 0, fmt.Errorf("time slot %d ends before it starts", s.ID)
	}
	return int(end.Sub(start).Minutes()), nil
}

// Label renders the slot for reports.
func (s TimeSlot) Label() string {
	if s.StartTime == "" {
		return fmt.Sprintf("slot %d", s.Order)
	}
	return fmt.Sprintf("%s-%s", s.StartTime, s.EndTime)
}

var dayNames = map[int]string{
	1: "Monday",
	2: "Tuesday",
	3: "Wednesday",
	4: "Thursday",
	5: "Friday",
	6: "Saturday",
	7: "Sunday",
}

// DayName returns the English weekday for an ISO day number.
func DayName(day int) string {
	if name, ok := dayNames[day]; ok {
		return name
	}
	return fmt.Sprintf("day %d", day)
}
