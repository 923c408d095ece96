package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"thirdcoast.systems/reverb/internal/db"
	"thirdcoast.systems/reverb/internal/metrics"
)

type fakeJobStore struct {
	queue []*db.Job

	completed map[uuid.UUID][]byte
	failed    map[uuid.UUID]string
	terminal  map[uuid.UUID]string
}

func newFakeJobStore(jobs ...*db.Job) *fakeJobStore {
	return &fakeJobStore{
		queue:     jobs,
		completed: map[uuid.UUID][]byte{},
		failed:    map[uuid.UUID]string{},
		terminal:  map[uuid.UUID]string{},
	}
}

func (s *fakeJobStore) DequeueNextJob(ctx context.Context) (*db.Job, error) {
	if len(s.queue) == 0 {
		return nil, nil
	}
	job := s.queue[0]
	s.queue = s.queue[1:]
	job.Status = db.JobStatusRunning
	return job, nil
}

func (s *fakeJobStore) CompleteJob(ctx context.Context, id uuid.UUID, result []byte) error {
	s.completed[id] = result
	return nil
}

func (s *fakeJobStore) FailJob(ctx context.Context, id uuid.UUID, errMsg string) error {
	s.failed[id] = errMsg
	return nil
}

func (s *fakeJobStore) FailJobTerminal(ctx context.Context, id uuid.UUID, errMsg string) error {
	s.terminal[id] = errMsg
	return nil
}

func newTestWorker(store Store) *Worker {
	return NewWorker(store, metrics.New(prometheus.NewRegistry()))
}

func testJob(jobType db.JobType) *db.Job {
	return &db.Job{
		ID:         uuid.New(),
		Type:       jobType,
		Payload:    []byte(`{}`),
		Status:     db.JobStatusPending,
		MaxRetries: 3,
	}
}

func TestTickNoDueJob(t *testing.T) {
	w := newTestWorker(newFakeJobStore())

	claimed, err := w.Tick(context.Background())
	require.NoError(t, err)
	require.False(t, claimed)
}

func TestTickCompletesJobWithResult(t *testing.T) {
	job := testJob(db.JobTypeDiscovery)
	store := newFakeJobStore(job)
	w := newTestWorker(store)
	w.Register(db.JobTypeDiscovery, func(ctx context.Context, j *db.Job) (any, error) {
		return DiscoveryResult{NewVideos: 2, HasMore: true}, nil
	})

	claimed, err := w.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, claimed)
	require.JSONEq(t, `{"new_videos":2,"has_more":true}`, string(store.completed[job.ID]))
	require.Empty(t, store.failed)
	require.Empty(t, store.terminal)
}

func TestTickRetryableFailureGoesToBackoffPath(t *testing.T) {
	job := testJob(db.JobTypeExtraction)
	store := newFakeJobStore(job)
	w := newTestWorker(store)
	w.Register(db.JobTypeExtraction, func(ctx context.Context, j *db.Job) (any, error) {
		return nil, errors.New("upstream timeout")
	})

	claimed, err := w.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, claimed)
	require.Equal(t, "upstream timeout", store.failed[job.ID])
	require.Empty(t, store.terminal)
	require.Empty(t, store.completed)
}

func TestTickTerminalFailureSkipsRetry(t *testing.T) {
	job := testJob(db.JobTypeExtraction)
	store := newFakeJobStore(job)
	w := newTestWorker(store)
	w.Register(db.JobTypeExtraction, func(ctx context.Context, j *db.Job) (any, error) {
		return nil, Terminal(errors.New("video not found"))
	})

	claimed, err := w.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, claimed)
	require.Equal(t, "video not found", store.terminal[job.ID])
	require.Empty(t, store.failed)
}

func TestTickUnregisteredTypeFailsTerminally(t *testing.T) {
	job := testJob(db.JobTypeEmbedding)
	store := newFakeJobStore(job)
	w := newTestWorker(store)

	claimed, err := w.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, claimed)
	require.Contains(t, store.terminal[job.ID], "no handler")
}

func TestTickDrainsJobsInOrder(t *testing.T) {
	first := testJob(db.JobTypeDiscovery)
	second := testJob(db.JobTypeDiscovery)
	store := newFakeJobStore(first, second)
	w := newTestWorker(store)

	var seen []uuid.UUID
	w.Register(db.JobTypeDiscovery, func(ctx context.Context, j *db.Job) (any, error) {
		seen = append(seen, j.ID)
		return nil, nil
	})

	for {
		claimed, err := w.Tick(context.Background())
		require.NoError(t, err)
		if !claimed {
			break
		}
	}
	require.Equal(t, []uuid.UUID{first.ID, second.ID}, seen)
}
