package models

import "time"

// Algorithm names a scheduling strategy.
type Algorithm string

const (
	AlgorithmGreedy  Algorithm = "greedy"
	AlgorithmGenetic Algorithm = "genetic"
	AlgorithmHybrid  Algorithm = "hybrid"
)

// Algorithms lists strategies in canonical order; the order breaks ranking ties.
var Algorithms = []Algorithm{AlgorithmGreedy, AlgorithmGenetic, AlgorithmHybrid}

// ParseAlgorithm validates an algorithm name.
func ParseAlgorithm(raw string) (Algorithm, bool) {
	for _, a := range Algorithms {
		if string(a) == raw {
			return a, true
		}
	}
	return "", false
}

// RunReport summarises a single scheduler run for the caller.
type RunReport struct {
	RunID                 string             `json:"run_id"`
	Algorithm             Algorithm          `json:"algorithm"`
	Semester              string             `json:"semester"`
	AcademicYear          string             `json:"academic_year"`
	TotalConstraints      int                `json:"total_constraints"`
	SuccessfulAssignments int                `json:"successful_assignments"`
	FailedAssignments     []FailedAssignment `json:"failed_assignments"`
	SuccessRate           float64            `json:"success_rate"`
	ExecutionTimeSeconds  float64            `json:"execution_time_seconds"`
	Fitness               float64            `json:"fitness"`
	Generations           int                `json:"generations"`
	TimedOut              bool               `json:"timed_out"`
	Suggestions           []string           `json:"suggestions"`
}

// RunOutcome pairs the schedule with its report. Snapshot is the input the run read.
type RunOutcome struct {
	Report   RunReport       `json:"report"`
	Result   *ScheduleResult `json:"result"`
	Snapshot *Snapshot       `json:"-"`
}

// RunStatus is the terminal state of one algorithm inside a comparison.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// AlgorithmOutcome is one entry of a comparison.
type AlgorithmOutcome struct {
	Algorithm            Algorithm       `json:"algorithm"`
	Status               RunStatus       `json:"status"`
	Error                string          `json:"error,omitempty"`
	ErrorCode            string          `json:"error_code,omitempty"`
	ExecutionTimeSeconds float64         `json:"execution_time_seconds"`
	SuccessRate          float64         `json:"success_rate"`
	Fitness              float64         `json:"fitness"`
	TimedOut             bool            `json:"timed_out"`
	Report               *RunReport      `json:"report,omitempty"`
	Result               *ScheduleResult `json:"result,omitempty"`
}

// ComparisonReport ranks the strategies run against the same snapshot.
type ComparisonReport struct {
	Semester       string                         `json:"semester"`
	AcademicYear   string                         `json:"academic_year"`
	TimeoutSeconds int                            `json:"timeout_seconds"`
	Results        map[Algorithm]AlgorithmOutcome `json:"results"`
	BestOverall    Algorithm                      `json:"best_overall,omitempty"`
	GeneratedAt    time.Time                      `json:"generated_at"`
}
