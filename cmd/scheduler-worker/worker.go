package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduler/internal/dto"
	"github.com/noah-isme/sma-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-scheduler/pkg/errors"
	"github.com/noah-isme/sma-scheduler/pkg/jobs"
)

const (
	kindRun        = "run"
	kindCompare    = "compare"
	kindInvalidate = "invalidate"

	statusCompleted = "completed"
	statusFailed    = "failed"
)

type runner interface {
	Run(ctx context.Context, req dto.ScheduleRunRequest) (*models.RunOutcome, error)
}

type comparer interface {
	CompareWith(ctx context.Context, req dto.CompareRequest) (*models.ComparisonReport, error)
}

type cachePurger interface {
	PurgeComparisons(ctx context.Context) error
}

type publisher interface {
	Publish(ctx context.Context, messageType string, payload any) error
}

type enqueuer interface {
	Enqueue(job jobs.Job) error
}

// worker turns request messages into queued jobs and publishes their results.
type worker struct {
	runs      runner
	compare   comparer
	cache     cachePurger
	results   publisher
	validator *validator.Validate
	logger    *zap.SugaredLogger
}

func newWorker(runs runner, compare comparer, cache cachePurger, results publisher, logger *zap.Logger) *worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &worker{
		runs:      runs,
		compare:   compare,
		cache:     cache,
		results:   results,
		validator: validator.New(),
		logger:    logger.Sugar(),
	}
}

// accept validates a delivery and hands it to the queue. Malformed messages are fatal so
// the broker drops them instead of redelivering.
func (w *worker) accept(queue enqueuer) func(context.Context, amqp.Delivery) error {
	return func(_ context.Context, d amqp.Delivery) error {
		msg, err := w.decode(d.Body)
		if err != nil {
			w.logger.Warnw("request rejected", "message_id", d.MessageId, "error", err)
			return err
		}
		if err := queue.Enqueue(jobs.Job{ID: d.MessageId, Kind: msg.Kind, Payload: d.Body}); err != nil {
			return appErrors.Wrap(err, "QUEUE_UNAVAILABLE", false, "enqueue request")
		}
		return nil
	}
}

func (w *worker) decode(body []byte) (*dto.WorkerMessage, error) {
	var msg dto.WorkerMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, true, "malformed request body")
	}
	if err := w.validator.Struct(msg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, true, "invalid request")
	}
	return &msg, nil
}

// process executes one job and publishes the completed result.
func (w *worker) process(ctx context.Context, job jobs.Job) error {
	msg, err := w.decode(job.Payload)
	if err != nil {
		return err
	}

	var payload any
	switch msg.Kind {
	case kindRun:
		payload, err = w.runs.Run(ctx, *msg.Run)
	case kindCompare:
		payload, err = w.compare.CompareWith(ctx, *msg.Compare)
	case kindInvalidate:
		err = w.cache.PurgeComparisons(ctx)
	default:
		err = appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown request kind %q", msg.Kind))
	}
	if err != nil {
		return err
	}

	result := dto.WorkerResult{JobID: job.ID, Kind: msg.Kind, Status: statusCompleted, Payload: payload}
	if err := w.results.Publish(ctx, msg.Kind, result); err != nil {
		return appErrors.Wrap(err, "PUBLISH_FAILED", false, "publish result")
	}
	w.logger.Infow("job completed", "job_id", job.ID, "kind", msg.Kind, "attempt", job.Attempt)
	return nil
}

// giveUp reports a job that will not be retried.
func (w *worker) giveUp(job jobs.Job, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := dto.WorkerResult{JobID: job.ID, Kind: job.Kind, Status: statusFailed, Error: cause.Error()}
	if err := w.results.Publish(ctx, job.Kind, result); err != nil {
		w.logger.Errorw("failed to publish job failure", "job_id", job.ID, "error", err)
	}
}
