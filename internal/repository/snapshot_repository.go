package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/noah-isme/sma-scheduler/internal/models"
)

// SnapshotRepository reads the scheduling input of a term from PostgreSQL.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository constructs the repository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

type courseTeacherRow struct {
	CourseID  int64 `db:"course_id"`
	TeacherID int64 `db:"teacher_id"`
}

// Load fetches every active course of the term with its teachers, plus the classrooms and time
// slots, inside one read-only transaction so the snapshot is consistent.
func (r *SnapshotRepository) Load(ctx context.Context, query models.SnapshotQuery) (*models.Snapshot, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	snapshot := &models.Snapshot{Semester: query.Semester, AcademicYear: query.AcademicYear}

	if snapshot.Courses, err = r.courses(ctx, tx, query); err != nil {
		return nil, err
	}
	if err := r.attachTeachers(ctx, tx, snapshot); err != nil {
		return nil, err
	}

	const classroomQuery = `SELECT id, name, capacity, room_type, preference_eligible FROM classrooms WHERE active = TRUE ORDER BY id`
	if err := tx.SelectContext(ctx, &snapshot.Classrooms, classroomQuery); err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}

	const slotQuery = `SELECT id, slot_order, to_char(start_time, 'HH24:MI') AS start_time, to_char(end_time, 'HH24:MI') AS end_time, duration_minutes FROM time_slots ORDER BY slot_order`
	if err := tx.SelectContext(ctx, &snapshot.TimeSlots, slotQuery); err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot tx: %w", err)
	}
	snapshot.Normalize()
	return snapshot, nil
}

func (r *SnapshotRepository) courses(ctx context.Context, tx *sqlx.Tx, query models.SnapshotQuery) ([]models.Course, error) {
	base := `SELECT id, code, name, weekly_sessions, priority, enrollment, room_type FROM courses WHERE semester = ? AND academic_year = ? AND active = TRUE`
	args := []interface{}{query.Semester, query.AcademicYear}
	if len(query.CourseIDs) > 0 {
		base += " AND id IN (?)"
		args = append(args, query.CourseIDs)
	}
	base += " ORDER BY id"

	stmt, args, err := sqlx.In(base, args...)
	if err != nil {
		return nil, fmt.Errorf("build course query: %w", err)
	}
	courses := make([]models.Course, 0)
	if err := tx.SelectContext(ctx, &courses, tx.Rebind(stmt), args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

func (r *SnapshotRepository) attachTeachers(ctx context.Context, tx *sqlx.Tx, snapshot *models.Snapshot) error {
	snapshot.Teachers = make([]models.Teacher, 0)
	if len(snapshot.Courses) == 0 {
		return nil
	}
	courseIDs := lo.Map(snapshot.Courses, func(c models.Course, _ int) int64 { return c.ID })

	var links []courseTeacherRow
	if err := r.selectIn(ctx, tx, &links, `SELECT course_id, teacher_id FROM course_teachers WHERE course_id IN (?) ORDER BY course_id, teacher_id`, courseIDs); err != nil {
		return fmt.Errorf("list course teachers: %w", err)
	}
	byCourse := lo.GroupBy(links, func(l courseTeacherRow) int64 { return l.CourseID })
	for i := range snapshot.Courses {
		snapshot.Courses[i].TeacherIDs = lo.Map(byCourse[snapshot.Courses[i].ID], func(l courseTeacherRow, _ int) int64 { return l.TeacherID })
	}

	teacherIDs := lo.Uniq(lo.Map(links, func(l courseTeacherRow, _ int) int64 { return l.TeacherID }))
	if len(teacherIDs) == 0 {
		return nil
	}
	if err := r.selectIn(ctx, tx, &snapshot.Teachers, `SELECT id, name, max_daily_load, max_weekly_load FROM teachers WHERE id IN (?) ORDER BY id`, teacherIDs); err != nil {
		return fmt.Errorf("list teachers: %w", err)
	}

	var prefs []models.TeacherPreference
	if err := r.selectIn(ctx, tx, &prefs, `SELECT teacher_id, day_of_week, time_slot_id, score, available, COALESCE(reason, '') AS reason FROM teacher_preferences WHERE teacher_id IN (?) ORDER BY teacher_id, day_of_week, time_slot_id`, teacherIDs); err != nil {
		return fmt.Errorf("list teacher preferences: %w", err)
	}
	byTeacher := lo.GroupBy(prefs, func(p models.TeacherPreference) int64 { return p.TeacherID })
	for i := range snapshot.Teachers {
		snapshot.Teachers[i].Preferences = byTeacher[snapshot.Teachers[i].ID]
	}
	return nil
}

func (r *SnapshotRepository) selectIn(ctx context.Context, tx *sqlx.Tx, dest interface{}, query string, ids []int64) error {
	stmt, args, err := sqlx.In(query, ids)
	if err != nil {
		return err
	}
	return tx.SelectContext(ctx, dest, tx.Rebind(stmt), args...)
}
