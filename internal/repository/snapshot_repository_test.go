package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-scheduler/internal/models"
)

func newSnapshotMock(t *testing.T) (*SnapshotRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewSnapshotRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func expectRoomsAndSlots(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, capacity, room_type, preference_eligible FROM classrooms")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "capacity", "room_type", "preference_eligible"}).
			AddRow(2, "Lab", 30, "lab", false).
			AddRow(1, "A-101", 40, "", true))
	mock.ExpectQuery("FROM time_slots ORDER BY slot_order").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slot_order", "start_time", "end_time", "duration_minutes"}).
			AddRow(100, 1, "07:00", "08:30", 90).
			AddRow(101, 2, "09:00", "10:30", 0))
}

func TestSnapshotRepositoryLoad(t *testing.T) {
	repo, mock, cleanup := newSnapshotMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE semester = ? AND academic_year = ? AND active = TRUE ORDER BY id")).
		WithArgs("1", "2025/2026").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "weekly_sessions", "priority", "enrollment", "room_type"}).
			AddRow(10, "MATH", "Mathematics", 3, 2, 32, "").
			AddRow(11, "CHEM", "Chemistry", 2, 1, 24, "lab"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_teachers WHERE course_id IN (?, ?)")).
		WithArgs(int64(10), int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "teacher_id"}).
			AddRow(10, 1).
			AddRow(10, 2).
			AddRow(11, 2))
	mock.ExpectQuery(regexp.QuoteMeta("FROM teachers WHERE id IN (?, ?)")).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "max_daily_load", "max_weekly_load"}).
			AddRow(1, "Rina", 4, 20).
			AddRow(2, "Budi", 3, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM teacher_preferences WHERE teacher_id IN (?, ?)")).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"teacher_id", "day_of_week", "time_slot_id", "score", "available", "reason"}).
			AddRow(1, 1, 100, 3.0, true, "").
			AddRow(2, 5, 101, 0.0, false, "training"))
	expectRoomsAndSlots(mock)
	mock.ExpectCommit()

	snapshot, err := repo.Load(context.Background(), models.SnapshotQuery{Semester: "1", AcademicYear: "2025/2026"})
	require.NoError(t, err)

	require.Len(t, snapshot.Courses, 2)
	assert.Equal(t, []int64{1, 2}, snapshot.Courses[0].TeacherIDs)
	assert.Equal(t, []int64{2}, snapshot.Courses[1].TeacherIDs)
	assert.Equal(t, "lab", snapshot.Courses[1].RoomType)

	require.Len(t, snapshot.Teachers, 2)
	assert.Len(t, snapshot.Teachers[0].Preferences, 1)
	require.Len(t, snapshot.Teachers[1].Preferences, 1)
	assert.False(t, snapshot.Teachers[1].Preferences[0].Available)
	assert.Equal(t, "training", snapshot.Teachers[1].Preferences[0].Reason)

	assert.Equal(t, int64(1), snapshot.Classrooms[0].ID, "normalized by id")
	assert.Equal(t, 90, snapshot.TimeSlots[1].DurationMinutes, "duration derived from clock times")
	require.NoError(t, snapshot.Validate())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryLoadNarrowedToCourses(t *testing.T) {
	repo, mock, cleanup := newSnapshotMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("AND active = TRUE AND id IN (?) ORDER BY id")).
		WithArgs("2", "2025/2026", int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "weekly_sessions", "priority", "enrollment", "room_type"}))
	expectRoomsAndSlots(mock)
	mock.ExpectCommit()

	snapshot, err := repo.Load(context.Background(), models.SnapshotQuery{Semester: "2", AcademicYear: "2025/2026", CourseIDs: []int64{42}})
	require.NoError(t, err)
	assert.Empty(t, snapshot.Courses)
	assert.Empty(t, snapshot.Teachers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryLoadPropagatesErrors(t *testing.T) {
	repo, mock, cleanup := newSnapshotMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM courses").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err := repo.Load(context.Background(), models.SnapshotQuery{Semester: "1", AcademicYear: "2025/2026"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list courses")
	assert.NoError(t, mock.ExpectationsWereMet())
}
