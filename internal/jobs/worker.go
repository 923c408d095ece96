package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"thirdcoast.systems/reverb/internal/db"
	"thirdcoast.systems/reverb/internal/metrics"
)

// Store is the slice of the job table the worker needs. Implemented by
// *db.DatabaseConnection.
type Store interface {
	DequeueNextJob(ctx context.Context) (*db.Job, error)
	CompleteJob(ctx context.Context, id uuid.UUID, result []byte) error
	FailJob(ctx context.Context, id uuid.UUID, errMsg string) error
	FailJobTerminal(ctx context.Context, id uuid.UUID, errMsg string) error
}

// HandlerFunc executes one job to completion and returns its typed result.
type HandlerFunc func(ctx context.Context, job *db.Job) (any, error)

// Worker claims and runs one due job per tick. The atomic claim in
// DequeueNextJob is the only mutual exclusion in the system; concurrent
// ticks are safe and will simply claim disjoint jobs.
type Worker struct {
	store    Store
	handlers map[db.JobType]HandlerFunc
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewWorker(store Store, m *metrics.Metrics) *Worker {
	return &Worker{
		store:    store,
		handlers: make(map[db.JobType]HandlerFunc),
		metrics:  m,
		log:      slog.Default().With("component", "worker"),
	}
}

func (w *Worker) Register(jobType db.JobType, h HandlerFunc) {
	w.handlers[jobType] = h
}

// Tick claims at most one due job and runs it to completion or failure.
// Returns false when no job was due.
func (w *Worker) Tick(ctx context.Context) (bool, error) {
	job, err := w.store.DequeueNextJob(ctx)
	if err != nil {
		return false, fmt.Errorf("dequeue: %w", err)
	}
	if job == nil {
		return false, nil
	}

	start := time.Now()
	w.log.Info("job claimed", "job_id", job.ID, "type", job.Type, "retry_count", job.RetryCount)

	handler, ok := w.handlers[job.Type]
	if !ok {
		w.log.Error("no handler registered for job type", "job_id", job.ID, "type", job.Type)
		w.metrics.JobsProcessed.WithLabelValues(string(job.Type), "failed").Inc()
		return true, w.store.FailJobTerminal(ctx, job.ID, fmt.Sprintf("no handler for job type %q", job.Type))
	}

	result, err := handler(ctx, job)
	if err != nil {
		if IsTerminal(err) {
			w.log.Error("job failed terminally", "job_id", job.ID, "type", job.Type, "error", err)
			w.metrics.JobsProcessed.WithLabelValues(string(job.Type), "failed").Inc()
			return true, w.store.FailJobTerminal(ctx, job.ID, err.Error())
		}
		w.log.Warn("job failed", "job_id", job.ID, "type", job.Type, "retry_count", job.RetryCount, "error", err)
		w.metrics.JobsProcessed.WithLabelValues(string(job.Type), "error").Inc()
		return true, w.store.FailJob(ctx, job.ID, err.Error())
	}

	var resultJSON []byte
	if result != nil {
		resultJSON, err = json.Marshal(result)
		if err != nil {
			return true, w.store.FailJobTerminal(ctx, job.ID, fmt.Sprintf("marshal result: %v", err))
		}
	}

	w.metrics.JobsProcessed.WithLabelValues(string(job.Type), "completed").Inc()
	w.metrics.TickDuration.Observe(time.Since(start).Seconds())
	w.log.Info("job completed", "job_id", job.ID, "type", job.Type, "duration", time.Since(start))
	return true, w.store.CompleteJob(ctx, job.ID, resultJSON)
}

// Run ticks on the given interval until the context is cancelled. A tick
// that finds no due job is a no-op.
func (w *Worker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			claimed, err := w.Tick(ctx)
			if err != nil {
				w.log.Error("tick failed", "error", err)
				continue
			}
			// Drain consecutive due jobs without waiting out the interval.
			for claimed && ctx.Err() == nil {
				claimed, err = w.Tick(ctx)
				if err != nil {
					w.log.Error("tick failed", "error", err)
					break
				}
			}
		}
	}
}
