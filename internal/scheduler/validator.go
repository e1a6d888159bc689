package scheduler

import (
	"fmt"
	"strings"

	"github.com/noah-isme/sma-scheduler/internal/models"
)

// Violation describes one broken hard rule.
type Violation struct {
	Rule      string           `json:"rule"`
	Message   string           `json:"message"`
	Placement models.Placement `json:"placement"`
}

// ViolationError carries every violation found in a schedule.
type ViolationError struct {
	Violations []Violation
}

func (e *ViolationError) Error() string {
	messages := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		messages = append(messages, fmt.Sprintf("%s: %s", v.Rule, v.Message))
	}
	return fmt.Sprintf("%d hard rule violation(s): %s", len(e.Violations), strings.Join(messages, "; "))
}

// ConstraintValidator checks a set of placements against hard rules.
type ConstraintValidator interface {
	Validate(placements []models.Placement) error
}

// Rule is a named hard-rule check.
type Rule struct {
	Name  string
	Check func(placements []models.Placement) []Violation
}

// RuleValidator runs a fixed list of rules.
type RuleValidator struct {
	rules []Rule
}

// NewConstraintValidator wires the teacher, classroom and time rules plus any extras.
func NewConstraintValidator(snapshot *models.Snapshot, extra ...Rule) *RuleValidator {
	rules := []Rule{TeacherConflictRule(), ClassroomConflictRule(), TimeValidityRule(snapshot)}
	return &RuleValidator{rules: append(rules, extra...)}
}

// Validate returns a *ViolationError when any rule fails.
func (v *RuleValidator) Validate(placements []models.Placement) error {
	var violations []Violation
	for _, rule := range v.rules {
		violations = append(violations, rule.Check(placements)...)
	}
	if len(violations) > 0 {
		return &ViolationError{Violations: violations}
	}
	return nil
}

// TeacherConflictRule flags a teacher booked twice at the same (day, slot).
func TeacherConflictRule() Rule {
	return Rule{
		Name: "teacher_conflict",
		Check: func(placements []models.Placement) []Violation {
			seen := make(map[slotKey]struct{}, len(placements))
			var out []Violation
			for _, p := range placements {
				key := slotKey{p.TeacherID, p.Day, p.TimeSlotID}
				if _, dup := seen[key]; dup {
					out = append(out, Violation{
						Rule:      "teacher_conflict",
						Message:   fmt.Sprintf("teacher %d double-booked on day %d slot %d", p.TeacherID, p.Day, p.TimeSlotID),
						Placement: p,
					})
					continue
				}
				seen[key] = struct{}{}
			}
			return out
		},
	}
}

// ClassroomConflictRule flags a classroom booked twice at the same (day, slot).
func ClassroomConflictRule() Rule {
	return Rule{
		Name: "classroom_conflict",
		Check: func(placements []models.Placement) []Violation {
			seen := make(map[slotKey]struct{}, len(placements))
			var out []Violation
			for _, p := range placements {
				key := slotKey{p.ClassroomID, p.Day, p.TimeSlotID}
				if _, dup := seen[key]; dup {
					out = append(out, Violation{
						Rule:      "classroom_conflict",
						Message:   fmt.Sprintf("classroom %d double-booked on day %d slot %d", p.ClassroomID, p.Day, p.TimeSlotID),
						Placement: p,
					})
					continue
				}
				seen[key] = struct{}{}
			}
			return out
		},
	}
}

// TimeValidityRule flags placements on unknown days, slots or classrooms.
func TimeValidityRule(snapshot *models.Snapshot) Rule {
	return Rule{
		Name: "time_validity",
		Check: func(placements []models.Placement) []Violation {
			var out []Violation
			for _, p := range placements {
				var problem string
				switch {
				case p.Day < models.MinDay || p.Day > models.MaxDay || !snapshot.HasDay(p.Day):
					problem = fmt.Sprintf("day %d is not schedulable", p.Day)
				case snapshot.SlotPosition(p.TimeSlotID) < 0:
					problem = fmt.Sprintf("time slot %d does not exist", p.TimeSlotID)
				default:
					if _, ok := snapshot.Classroom(p.ClassroomID); !ok {
						problem = fmt.Sprintf("classroom %d does not exist", p.ClassroomID)
					}
				}
				if problem != "" {
					out = append(out, Violation{Rule: "time_validity", Message: problem, Placement: p})
				}
			}
			return out
		},
	}
}
