package service

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-scheduler/pkg/errors"
	"github.com/noah-isme/sma-scheduler/pkg/export"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	Retention time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Format       string
	Bytes        int
}

// ExportService renders schedules and comparisons and persists the files.
type ExportService struct {
	storage fileStorage
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(storage fileStorage, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	return &ExportService{storage: storage, logger: logger, cfg: cfg, now: time.Now}
}

// ExportRun writes one run outcome in format (json, csv, pdf or xlsx).
func (s *ExportService) ExportRun(outcome *models.RunOutcome, format string) (*ExportResult, error) {
	if outcome == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "run outcome is required")
	}
	report := outcome.Report
	name := s.buildFilename("schedule", report.Semester, report.AcademicYear, string(report.Algorithm))
	return s.write(name, format, outcome, func() export.Dataset {
		return ScheduleDataset(outcome)
	})
}

// ExportComparison writes a comparison report in format.
func (s *ExportService) ExportComparison(report *models.ComparisonReport, format string) (*ExportResult, error) {
	if report == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comparison report is required")
	}
	name := s.buildFilename("comparison", report.Semester, report.AcademicYear, "")
	return s.write(name, format, report, func() export.Dataset {
		return ComparisonDataset(report)
	})
}

// Cleanup removes files older than ttl (defaults to the configured retention when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.Retention
	}
	removed, err := s.storage.CleanupOlderThan(ttl)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
	return removed, nil
}

func (s *ExportService) write(name, format string, raw any, dataset func() export.Dataset) (*ExportResult, error) {
	format = strings.ToLower(format)
	var (
		payload []byte
		err     error
	)
	if format == "json" {
		payload, err = json.MarshalIndent(raw, "", "  ")
	} else {
		var renderer export.Renderer
		renderer, err = export.ForFormat(format)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, true, "unsupported export format")
		}
		payload, err = renderer.Render(dataset())
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, true, "render export")
	}

	relPath, err := s.storage.Save(name+"."+format, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, true, "store export")
	}
	s.logger.Info("export written", zap.String("path", relPath), zap.String("format", format), zap.Int("bytes", len(payload)))
	return &ExportResult{RelativePath: relPath, Format: format, Bytes: len(payload)}, nil
}

func (s *ExportService) buildFilename(kind, semester, academicYear, algorithm string) string {
	parts := []string{kind, sanitizeFilename(semester), sanitizeFilename(academicYear)}
	if algorithm != "" {
		parts = append(parts, algorithm)
	}
	parts = append(parts, s.now().UTC().Format("20060102_150405"))
	return strings.Join(parts, "_")
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

var scheduleHeaders = []string{"Day", "Time Slot", "Course", "Teacher", "Classroom", "Session"}

// ScheduleDataset lays out every placed session in (day, slot order, classroom) order.
// Names come from the run snapshot when present; ids are printed otherwise.
func ScheduleDataset(outcome *models.RunOutcome) export.Dataset {
	report := outcome.Report
	snapshot := outcome.Snapshot

	type line struct {
		day, order int
		room       int64
		values     map[string]string
	}
	var lines []line
	if outcome.Result != nil {
		for _, entry := range outcome.Result.Entries {
			for n, a := range entry.Assignments {
				order := 0
				if snapshot != nil {
					order = snapshot.SlotPosition(a.TimeSlotID)
				}
				lines = append(lines, line{
					day:   a.Day,
					order: order,
					room:  a.ClassroomID,
					values: map[string]string{
						"Day":       models.DayName(a.Day),
						"Time Slot": slotName(snapshot, a.TimeSlotID),
						"Course":    courseName(snapshot, entry.CourseID),
						"Teacher":   teacherName(snapshot, entry.TeacherID),
						"Classroom": classroomName(snapshot, a.ClassroomID),
						"Session":   fmt.Sprintf("%d/%d", n+1, entry.Required),
					},
				})
			}
		}
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].day != lines[j].day {
			return lines[i].day < lines[j].day
		}
		if lines[i].order != lines[j].order {
			return lines[i].order < lines[j].order
		}
		return lines[i].room < lines[j].room
	})

	rows := make([]map[string]string, len(lines))
	for i, l := range lines {
		rows[i] = l.values
	}

	notes := []string{
		fmt.Sprintf("Algorithm: %s", report.Algorithm),
		fmt.Sprintf("Success rate: %.2f%% (%d of %d constraints)", report.SuccessRate, report.SuccessfulAssignments, report.TotalConstraints),
		fmt.Sprintf("Fitness: %.2f", report.Fitness),
	}
	for _, f := range report.FailedAssignments {
		notes = append(notes, fmt.Sprintf("Unmet: %s with %s, %d of %d sessions (%s)",
			courseName(snapshot, f.CourseID), teacherName(snapshot, f.TeacherID), f.Achieved, f.Required, f.Reason))
	}
	for _, hint := range report.Suggestions {
		notes = append(notes, "Suggestion: "+hint)
	}

	return export.Dataset{
		Title:   fmt.Sprintf("Schedule %s %s", report.Semester, report.AcademicYear),
		Notes:   notes,
		Headers: scheduleHeaders,
		Rows:    rows,
	}
}

var comparisonHeaders = []string{"Algorithm", "Status", "Success Rate (%)", "Fitness", "Time (s)", "Generations", "Timed Out", "Error"}

// ComparisonDataset lists one row per algorithm in canonical order.
func ComparisonDataset(report *models.ComparisonReport) export.Dataset {
	rows := make([]map[string]string, 0, len(report.Results))
	for _, algorithm := range models.Algorithms {
		o, ok := report.Results[algorithm]
		if !ok {
			continue
		}
		generations := "-"
		if o.Report != nil && algorithm != models.AlgorithmGreedy {
			generations = strconv.Itoa(o.Report.Generations)
		}
		rows = append(rows, map[string]string{
			"Algorithm":        string(algorithm),
			"Status":           string(o.Status),
			"Success Rate (%)": fmt.Sprintf("%.2f", o.SuccessRate),
			"Fitness":          fmt.Sprintf("%.2f", o.Fitness),
			"Time (s)":         fmt.Sprintf("%.3f", o.ExecutionTimeSeconds),
			"Generations":      generations,
			"Timed Out":        strconv.FormatBool(o.TimedOut),
			"Error":            o.Error,
		})
	}

	best := string(report.BestOverall)
	if best == "" {
		best = "none"
	}
	return export.Dataset{
		Title: fmt.Sprintf("Algorithm comparison %s %s", report.Semester, report.AcademicYear),
		Notes: []string{
			fmt.Sprintf("Timeout: %ds", report.TimeoutSeconds),
			fmt.Sprintf("Best overall: %s", best),
			fmt.Sprintf("Generated at: %s", report.GeneratedAt.UTC().Format(time.RFC3339)),
		},
		Headers: comparisonHeaders,
		Rows:    rows,
	}
}

func courseName(snapshot *models.Snapshot, id int64) string {
	if snapshot != nil {
		if c, ok := snapshot.Course(id); ok && c.Code != "" {
			return c.Code
		}
	}
	return fmt.Sprintf("course %d", id)
}

func teacherName(snapshot *models.Snapshot, id int64) string {
	if snapshot != nil {
		if t, ok := snapshot.Teacher(id); ok && t.Name != "" {
			return t.Name
		}
	}
	return fmt.Sprintf("teacher %d", id)
}

func classroomName(snapshot *models.Snapshot, id int64) string {
	if snapshot != nil {
		if c, ok := snapshot.Classroom(id); ok && c.Name != "" {
			return c.Name
		}
	}
	return fmt.Sprintf("room %d", id)
}

func slotName(snapshot *models.Snapshot, id int64) string {
	if snapshot != nil {
		if ts, ok := snapshot.TimeSlot(id); ok {
			return ts.Label()
		}
	}
	return fmt.Sprintf("slot %d", id)
}
