package dto

// WeightOverrides replaces individual scoring weights for one run. Nil fields keep the default.
type WeightOverrides struct {
	TeacherSameDayPenalty     *float64 `json:"teacherSameDayPenalty" validate:"omitempty,gte=0"`
	TimeSlotUsagePenalty      *float64 `json:"timeSlotUsagePenalty" validate:"omitempty,gte=0"`
	TeacherDayLoadLimit       *int     `json:"teacherDayLoadLimit" validate:"omitempty,min=1"`
	PreferredClassroomBonus   *float64 `json:"preferredClassroomBonus" validate:"omitempty,gte=0"`
	PreferredTimeSlotBonus    *float64 `json:"preferredTimeSlotBonus" validate:"omitempty,gte=0"`
	PreferredDayBonus         *float64 `json:"preferredDayBonus" validate:"omitempty,gte=0"`
	PriorityWeight            *float64 `json:"priorityWeight" validate:"omitempty,gte=0"`
	NoonPenalty               *float64 `json:"noonPenalty" validate:"omitempty,gte=0"`
	GoodTimeSlotOrderRange    []int    `json:"goodTimeSlotOrderRange" validate:"omitempty,len=2,dive,min=0"`
	GoodTimeSlotBonus         *float64 `json:"goodTimeSlotBonus" validate:"omitempty,gte=0"`
	TwoHourMinuteRange        []int    `json:"twoHourMinuteRange" validate:"omitempty,len=2,dive,min=0"`
	MaxDailySessionsPerCourse *int     `json:"maxDailySessionsPerCourse" validate:"omitempty,min=1"`
	AvoidNoonDefault          *bool    `json:"avoidNoonDefault"`
	SessionsPerWeekCap        *int     `json:"sessionsPerWeekCap" validate:"omitempty,min=0"`
	NoonTimeSlotOrderRange    []int    `json:"noonTimeSlotOrderRange" validate:"omitempty,len=2,dive,min=0"`
	TeacherPreferenceWeight   *float64 `json:"teacherPreferenceWeight" validate:"omitempty,gte=0"`
	ConflictPenalty           *float64 `json:"conflictPenalty" validate:"omitempty,gt=0"`
	UnplacedPenalty           *float64 `json:"unplacedPenalty" validate:"omitempty,gt=0"`
}

// ScheduleRunRequest asks for one algorithm to schedule a term.
type ScheduleRunRequest struct {
	Semester       string           `json:"semester" validate:"required"`
	AcademicYear   string           `json:"academicYear" validate:"required"`
	CourseIDs      []int64          `json:"courseIds" validate:"omitempty,dive,min=1"`
	Algorithm      string           `json:"algorithm" validate:"omitempty,oneof=greedy genetic hybrid"`
	TimeoutSeconds *int             `json:"timeoutSeconds" validate:"omitempty,min=0"`
	Weights        *WeightOverrides `json:"weights"`
	// Publish forwards the outcome to the result queue when a publisher is configured.
	Publish bool `json:"publish"`
}

// CompareRequest asks the harness to run every algorithm against the same term.
type CompareRequest struct {
	Semester       string           `json:"semester" validate:"required"`
	AcademicYear   string           `json:"academicYear" validate:"required"`
	CourseIDs      []int64          `json:"courseIds" validate:"omitempty,dive,min=1"`
	TimeoutSeconds int              `json:"timeoutSeconds" validate:"min=0"`
	Weights        *WeightOverrides `json:"weights"`
}

// WorkerMessage is the envelope consumed from the request queue.
// Kind "invalidate" carries no body and drops cached comparisons.
type WorkerMessage struct {
	Kind    string              `json:"kind" validate:"required,oneof=run compare invalidate"`
	Run     *ScheduleRunRequest `json:"run,omitempty" validate:"required_if=Kind run"`
	Compare *CompareRequest     `json:"compare,omitempty" validate:"required_if=Kind compare"`
}

// WorkerResult is published on the result queue once a message is processed.
type WorkerResult struct {
	JobID   string `json:"jobId"`
	Kind    string `json:"kind"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Payload any    `json:"payload,omitempty"`
}
