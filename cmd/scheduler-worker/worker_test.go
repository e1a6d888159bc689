package main

import (
	"context"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduler/internal/dto"
	"github.com/noah-isme/sma-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-scheduler/pkg/errors"
	"github.com/noah-isme/sma-scheduler/pkg/jobs"
)

type runnerStub struct {
	req dto.ScheduleRunRequest
	err error
}

func (r *runnerStub) Run(_ context.Context, req dto.ScheduleRunRequest) (*models.RunOutcome, error) {
	r.req = req
	if r.err != nil {
		return nil, r.err
	}
	return &models.RunOutcome{Report: models.RunReport{Algorithm: models.AlgorithmGreedy, SuccessRate: 100}}, nil
}

type comparerStub struct {
	req dto.CompareRequest
}

func (c *comparerStub) CompareWith(_ context.Context, req dto.CompareRequest) (*models.ComparisonReport, error) {
	c.req = req
	return &models.ComparisonReport{BestOverall: models.AlgorithmHybrid}, nil
}

type purgerStub struct {
	calls int
}

func (p *purgerStub) PurgeComparisons(context.Context) error {
	p.calls++
	return nil
}

type publisherStub struct {
	mu      sync.Mutex
	results []dto.WorkerResult
	err     error
}

func (p *publisherStub) Publish(_ context.Context, _ string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.results = append(p.results, payload.(dto.WorkerResult))
	return nil
}

type enqueuerStub struct {
	jobs []jobs.Job
	err  error
}

func (e *enqueuerStub) Enqueue(job jobs.Job) error {
	if e.err != nil {
		return e.err
	}
	e.jobs = append(e.jobs, job)
	return nil
}

func newTestWorker() (*worker, *runnerStub, *comparerStub, *publisherStub) {
	runs := &runnerStub{}
	compare := &comparerStub{}
	results := &publisherStub{}
	return newWorker(runs, compare, &purgerStub{}, results, zap.NewNop()), runs, compare, results
}

const runBody = `{"kind":"run","run":{"semester":"1","academicYear":"2025/2026","algorithm":"greedy"}}`

func TestAcceptEnqueuesValidMessage(t *testing.T) {
	w, _, _, _ := newTestWorker()
	queue := &enqueuerStub{}

	err := w.accept(queue)(context.Background(), amqp.Delivery{MessageId: "m-1", Body: []byte(runBody)})
	require.NoError(t, err)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "m-1", queue.jobs[0].ID)
	assert.Equal(t, "run", queue.jobs[0].Kind)
}

func TestAcceptRejectsInvalidMessagesAsFatal(t *testing.T) {
	w, _, _, _ := newTestWorker()
	queue := &enqueuerStub{}
	handle := w.accept(queue)

	for name, body := range map[string]string{
		"malformed":    `{"kind":`,
		"unknown kind": `{"kind":"delete"}`,
		"missing run":  `{"kind":"run"}`,
	} {
		err := handle(context.Background(), amqp.Delivery{Body: []byte(body)})
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, appErrors.ErrValidation), name)
		assert.True(t, appErrors.IsFatal(err), name)
	}
	assert.Empty(t, queue.jobs)
}

func TestAcceptRequeuesWhenQueueIsFull(t *testing.T) {
	w, _, _, _ := newTestWorker()
	queue := &enqueuerStub{err: errors.New("queue full")}

	err := w.accept(queue)(context.Background(), amqp.Delivery{Body: []byte(runBody)})
	require.Error(t, err)
	assert.False(t, appErrors.IsFatal(err))
}

func TestProcessRunPublishesResult(t *testing.T) {
	w, runs, _, results := newTestWorker()

	err := w.process(context.Background(), jobs.Job{ID: "j-1", Kind: "run", Payload: []byte(runBody)})
	require.NoError(t, err)
	assert.Equal(t, "greedy", runs.req.Algorithm)
	require.Len(t, results.results, 1)
	assert.Equal(t, "j-1", results.results[0].JobID)
	assert.Equal(t, statusCompleted, results.results[0].Status)
	outcome, ok := results.results[0].Payload.(*models.RunOutcome)
	require.True(t, ok)
	assert.Equal(t, 100.0, outcome.Report.SuccessRate)
}

func TestProcessCompare(t *testing.T) {
	w, _, compare, results := newTestWorker()
	body := `{"kind":"compare","compare":{"semester":"2","academicYear":"2025/2026","timeoutSeconds":10}}`

	err := w.process(context.Background(), jobs.Job{ID: "j-2", Kind: "compare", Payload: []byte(body)})
	require.NoError(t, err)
	assert.Equal(t, 10, compare.req.TimeoutSeconds)
	require.Len(t, results.results, 1)
	assert.Equal(t, "compare", results.results[0].Kind)
}

func TestProcessInvalidate(t *testing.T) {
	w, _, _, results := newTestWorker()

	err := w.process(context.Background(), jobs.Job{ID: "j-6", Payload: []byte(`{"kind":"invalidate"}`)})
	require.NoError(t, err)
	assert.Equal(t, 1, w.cache.(*purgerStub).calls)
	require.Len(t, results.results, 1)
	assert.Equal(t, "invalidate", results.results[0].Kind)
	assert.Nil(t, results.results[0].Payload)
}

func TestProcessReturnsSchedulerError(t *testing.T) {
	w, runs, _, results := newTestWorker()
	runs.err = appErrors.Clone(appErrors.ErrConstraintUnsatisfiable, "no classrooms")

	err := w.process(context.Background(), jobs.Job{ID: "j-3", Payload: []byte(runBody)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConstraintUnsatisfiable))
	assert.Empty(t, results.results)
}

func TestProcessPublishFailureIsRetryable(t *testing.T) {
	w, _, _, results := newTestWorker()
	results.err = errors.New("channel closed")

	err := w.process(context.Background(), jobs.Job{ID: "j-4", Payload: []byte(runBody)})
	require.Error(t, err)
	assert.False(t, appErrors.IsFatal(err))
}

func TestGiveUpPublishesFailure(t *testing.T) {
	w, _, _, results := newTestWorker()

	w.giveUp(jobs.Job{ID: "j-5", Kind: "compare"}, errors.New("boom"))
	require.Len(t, results.results, 1)
	assert.Equal(t, dto.WorkerResult{JobID: "j-5", Kind: "compare", Status: statusFailed, Error: "boom"}, results.results[0])
}
