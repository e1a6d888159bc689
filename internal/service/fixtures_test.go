package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/noah-isme/sma-scheduler/internal/models"
	"github.com/noah-isme/sma-scheduler/internal/scheduler"
	appErrors "github.com/noah-isme/sma-scheduler/pkg/errors"
)

type snapshotSourceStub struct {
	mu       sync.Mutex
	snapshot *models.Snapshot
	err      error
	queries  []models.SnapshotQuery
}

func (s *snapshotSourceStub) Load(_ context.Context, query models.SnapshotQuery) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshot.Clone(), nil
}

type publisherStub struct {
	mu       sync.Mutex
	types    []string
	payloads []any
	err      error
}

func (p *publisherStub) Publish(_ context.Context, messageType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, messageType)
	p.payloads = append(p.payloads, payload)
	return p.err
}

type memoryCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = map[string][]byte{}
	return nil
}

// panicScheduler blows up mid-run.
type panicScheduler struct{ name models.Algorithm }

func (p panicScheduler) Name() models.Algorithm { return p.name }

func (p panicScheduler) Schedule(context.Context, scheduler.Input) (*scheduler.Outcome, error) {
	panic("index out of range")
}

// stuckScheduler ignores its context until release is closed.
type stuckScheduler struct {
	name    models.Algorithm
	release chan struct{}
}

func (s stuckScheduler) Name() models.Algorithm { return s.name }

func (s stuckScheduler) Schedule(context.Context, scheduler.Input) (*scheduler.Outcome, error) {
	<-s.release
	return nil, appErrors.Clone(appErrors.ErrAlgorithmInternal, "released")
}

// failingScheduler returns err immediately.
type failingScheduler struct {
	name models.Algorithm
	err  error
}

func (f failingScheduler) Name() models.Algorithm { return f.name }

func (f failingScheduler) Schedule(context.Context, scheduler.Input) (*scheduler.Outcome, error) {
	return nil, f.err
}

// replacing swaps the scheduler built for one algorithm and keeps the rest real.
func replacing(target models.Algorithm, replacement scheduler.Scheduler) schedulerFactory {
	return func(algorithm models.Algorithm, opts scheduler.Options) (scheduler.Scheduler, error) {
		if algorithm == target {
			return replacement, nil
		}
		return scheduler.New(algorithm, opts)
	}
}

// termSnapshot fits every course with room to spare.
func termSnapshot() *models.Snapshot {
	s := &models.Snapshot{
		Semester:     "1",
		AcademicYear: "2025/2026",
		Days:         []int{1, 2, 3},
		Teachers: []models.Teacher{
			{ID: 1, Name: "Rina", MaxDailyLoad: 3},
			{ID: 2, Name: "Budi"},
		},
		Courses: []models.Course{
			{ID: 10, Code: "MATH", WeeklySessions: 2, Priority: 2, TeacherIDs: []int64{1}},
			{ID: 11, Code: "PHYS", WeeklySessions: 2, Priority: 1, TeacherIDs: []int64{2}},
			{ID: 12, Code: "ART", WeeklySessions: 1, TeacherIDs: []int64{2}},
		},
		Classrooms: []models.Classroom{
			{ID: 1, Name: "A", Capacity: 40},
			{ID: 2, Name: "B", Capacity: 40},
		},
		TimeSlots: []models.TimeSlot{
			{ID: 100, Order: 1, StartTime: "07:00", EndTime: "08:30"},
			{ID: 101, Order: 2, StartTime: "09:00", EndTime: "10:30"},
		},
	}
	s.Normalize()
	return s
}

func testSchedulingConfig() SchedulingConfig {
	cfg := DefaultSchedulingConfig()
	cfg.Timeout = 5 * time.Second
	cfg.HardDeadlineGrace = 2 * time.Second
	cfg.Genetic = scheduler.GeneticParameters{
		PopulationSize: 10,
		MaxGenerations: 5,
		CrossoverRate:  0.8,
		MutationRate:   0.1,
		EliteCount:     2,
		TournamentSize: 3,
		Workers:        2,
		Seed:           7,
	}
	cfg.Hybrid = scheduler.HybridParameters{SeedCount: 2}
	return cfg
}

func intPtr(v int) *int { return &v }
