package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"

	"github.com/noah-isme/sma-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-scheduler/pkg/errors"
)

// FileSnapshotSource loads a snapshot exported as JSON. The file holds a single term.
type FileSnapshotSource struct {
	path string
}

// NewFileSnapshotSource constructs a source reading path on every Load.
func NewFileSnapshotSource(path string) *FileSnapshotSource {
	return &FileSnapshotSource{path: path}
}

// Load reads the file and narrows it to the query. A term mismatch is reported as not found.
func (s *FileSnapshotSource) Load(_ context.Context, query models.SnapshotQuery) (*models.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	snapshot, err := DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}

	if query.Semester != "" && snapshot.Semester != "" && query.Semester != snapshot.Semester {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("snapshot file holds semester %s", snapshot.Semester))
	}
	if query.AcademicYear != "" && snapshot.AcademicYear != "" && query.AcademicYear != snapshot.AcademicYear {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("snapshot file holds academic year %s", snapshot.AcademicYear))
	}
	if snapshot.Semester == "" {
		snapshot.Semester = query.Semester
	}
	if snapshot.AcademicYear == "" {
		snapshot.AcademicYear = query.AcademicYear
	}
	if len(query.CourseIDs) > 0 {
		snapshot.Courses = lo.Filter(snapshot.Courses, func(c models.Course, _ int) bool {
			return lo.Contains(query.CourseIDs, c.ID)
		})
	}
	snapshot.Normalize()
	return snapshot, nil
}

// DecodeSnapshot parses snapshot JSON through a generic map so loosely typed exports
// (numbers for ids, missing optional fields) still decode.
func DecodeSnapshot(data []byte) (*models.Snapshot, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidConfiguration.Code, true, "snapshot is not valid JSON")
	}

	var snapshot models.Snapshot
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &snapshot,
	})
	if err != nil {
		return nil, fmt.Errorf("build snapshot decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidConfiguration.Code, true, "snapshot has an unexpected shape")
	}
	return &snapshot, nil
}
