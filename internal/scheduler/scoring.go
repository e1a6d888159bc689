package scheduler

import (
	"github.com/noah-isme/sma-scheduler/internal/models"
)

// ScoreBreakdown itemises a placement score. Penalties are stored as negative values.
type ScoreBreakdown struct {
	Priority           float64 `json:"priority"`
	PreferredDay       float64 `json:"preferred_day"`
	PreferredTimeSlot  float64 `json:"preferred_time_slot"`
	PreferredClassroom float64 `json:"preferred_classroom"`
	TeacherPreference  float64 `json:"teacher_preference"`
	GoodTimeSlot       float64 `json:"good_time_slot"`
	Noon               float64 `json:"noon"`
	TeacherSameDay     float64 `json:"teacher_same_day"`
	TimeSlotUsage      float64 `json:"time_slot_usage"`
}

// Total sums every component.
func (b ScoreBreakdown) Total() float64 {
	return b.Priority + b.PreferredDay + b.PreferredTimeSlot + b.PreferredClassroom +
		b.TeacherPreference + b.GoodTimeSlot + b.Noon + b.TeacherSameDay + b.TimeSlotUsage
}

// Scorer turns placements and whole schedules into numbers.
type Scorer struct {
	cat *catalog
}

// NewScorer prepares a scorer for the given run input.
func NewScorer(snapshot *models.Snapshot, constraints []models.Constraint, cfg ScoringConfig) (*Scorer, error) {
	cat, err := newCatalog(snapshot, constraints, cfg)
	if err != nil {
		return nil, err
	}
	return &Scorer{cat: cat}, nil
}

// Score rates placing the constraint at position idx on candidate, given what occ already holds.
func (s *Scorer) Score(idx int, candidate models.SlotAssignment, occ *Occupancy) float64 {
	return s.Breakdown(idx, candidate, occ).Total()
}

// Breakdown returns the per-component score of a candidate.
func (s *Scorer) Breakdown(idx int, candidate models.SlotAssignment, occ *Occupancy) ScoreBreakdown {
	cat := s.cat
	cfg := cat.cfg
	con := &cat.constraints[idx]
	var b ScoreBreakdown

	b.Priority = float64(con.Priority) * cfg.PriorityWeight
	if _, ok := cat.preferredDays[idx][candidate.Day]; ok {
		b.PreferredDay = cfg.PreferredDayBonus
	}
	if _, ok := cat.preferredSlots[idx][candidate.TimeSlotID]; ok {
		b.PreferredTimeSlot = cfg.PreferredTimeSlotBonus
	}
	if _, ok := cat.preferredRooms[idx][candidate.ClassroomID]; ok {
		if room, found := cat.snapshot.Classroom(candidate.ClassroomID); found && room.PreferenceEligible {
			b.PreferredClassroom = cfg.PreferredClassroomBonus
		}
	}
	if score, ok := cat.preference[slotKey{con.Teacher.ID, candidate.Day, candidate.TimeSlotID}]; ok {
		b.TeacherPreference = score * cfg.TeacherPreferenceWeight
	}

	if slot, ok := cat.snapshot.TimeSlot(candidate.TimeSlotID); ok {
		if inRange(slot.Order, cfg.GoodTimeSlotOrderRange) && inRange(slot.DurationMinutes, cfg.TwoHourMinuteRange) {
			b.GoodTimeSlot = cfg.GoodTimeSlotBonus
		}
		if cfg.AvoidNoonDefault && inRange(slot.Order, cfg.NoonTimeSlotOrderRange) {
			b.Noon = -cfg.NoonPenalty
		}
	}

	if occ != nil {
		b.TeacherSameDay = -float64(occ.TeacherDayLoad(con.Teacher.ID, candidate.Day)) * cfg.TeacherSameDayPenalty
		b.TimeSlotUsage = -float64(occ.SlotUsage(candidate.TimeSlotID)) * cfg.TimeSlotUsagePenalty
	}
	return b
}

// Fitness rates a complete schedule: the sum of placement scores, each taken against the
// rest of the schedule, minus conflict and unplaced-session penalties.
func (s *Scorer) Fitness(result *models.ScheduleResult) float64 {
	placements := make([]indexedPlacement, 0, len(result.Entries))
	for idx, entry := range result.Entries {
		for _, a := range entry.Assignments {
			placements = append(placements, indexedPlacement{idx: idx, placement: s.cat.placement(idx, a)})
		}
	}
	return s.fitness(placements, result.UnplacedSessions())
}

type indexedPlacement struct {
	idx       int
	placement models.Placement
}

func (s *Scorer) fitness(placements []indexedPlacement, unplaced int) float64 {
	occ := NewOccupancy()
	for _, p := range placements {
		occ.Add(p.placement)
	}
	total := 0.0
	for _, p := range placements {
		occ.Remove(p.placement)
		total += s.Score(p.idx, p.placement.SlotAssignment, occ)
		occ.Add(p.placement)
	}
	total -= float64(occ.Conflicts()) * s.cat.cfg.ConflictPenalty
	total -= float64(unplaced) * s.cat.cfg.UnplacedPenalty
	return total
}

// better reports whether candidate a outranks b for constraint idx.
func (s *Scorer) better(scoreA float64, a models.SlotAssignment, scoreB float64, b models.SlotAssignment) bool {
	if scoreA != scoreB {
		return scoreA > scoreB
	}
	return s.cat.lessCandidate(a, b)
}

func inRange(v int, r [2]int) bool {
	return v >= r[0] && v <= r[1]
}
