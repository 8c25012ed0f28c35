package core_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakebake-xr/printd/internal/core"
	"github.com/bakebake-xr/printd/internal/queue"
)

// scriptedRenderer fails its first `failures` renders, then succeeds.
type scriptedRenderer struct {
	mu       sync.Mutex
	calls    int
	failures int
}

func (r *scriptedRenderer) Render(dev core.Device, job *core.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.failures {
		return errors.New("device error")
	}
	_, err := dev.Write([]byte(job.Label))
	return err
}

func (r *scriptedRenderer) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type memHistory struct {
	mu        sync.Mutex
	completed []core.Job
	discarded []core.Job
	reasons   []string
}

func (h *memHistory) RecordCompleted(job core.Job) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completed = append(h.completed, job)
	return nil
}

func (h *memHistory) RecordDiscarded(job core.Job, reason string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.discarded = append(h.discarded, job)
	h.reasons = append(h.reasons, reason)
	return nil
}

type fakeAcker struct {
	mu    sync.Mutex
	acked []string
	err   error
}

func (a *fakeAcker) MarkCompleted(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, id)
	return a.err
}

func newTestExecutor(t *testing.T, renderer core.Renderer, acker core.Acker, maxRetries int) (*core.Executor, *queue.Store, *memHistory) {
	t.Helper()
	store := queue.New(filepath.Join(t.TempDir(), "queue.json"))
	hist := &memHistory{}
	lock := core.NewDeviceLock(&trackedOpener{})
	return core.NewExecutor(lock, renderer, store, hist, acker, maxRetries), store, hist
}

func TestExecuteLocalJobSuccess(t *testing.T) {
	renderer := &scriptedRenderer{}
	acker := &fakeAcker{}
	exec, store, hist := newTestExecutor(t, renderer, acker, 3)

	out := exec.Execute(context.Background(), core.Job{ID: "local-1", Label: "Kappa", Source: core.SourceLocal})

	assert.Equal(t, core.OutcomeDelivered, out.Status)
	assert.Equal(t, 1, renderer.callCount())
	assert.Equal(t, 0, store.Len(), "durable queue must stay empty")
	require.Len(t, hist.completed, 1)
	assert.Equal(t, "local-1", hist.completed[0].ID)
	assert.Empty(t, acker.acked, "no remote record to acknowledge")
}

func TestRetryCountSequence(t *testing.T) {
	renderer := &scriptedRenderer{failures: 2}
	exec, store, hist := newTestExecutor(t, renderer, nil, 3)
	ctx := context.Background()

	out := exec.Execute(ctx, core.Job{ID: "x", Label: "Oni"})
	assert.Equal(t, core.OutcomeQueued, out.Status)
	jobs, err := store.Load()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 1, jobs[0].RetryCount)

	exec.ReplayQueued(ctx)
	jobs, err = store.Load()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 2, jobs[0].RetryCount)

	exec.ReplayQueued(ctx)
	assert.Equal(t, 0, store.Len())

	completions := 0
	for _, job := range hist.completed {
		if job.ID == "x" {
			completions++
		}
	}
	assert.Equal(t, 1, completions, "x must appear in history exactly once")
}

func TestDiscardIsTerminal(t *testing.T) {
	renderer := &scriptedRenderer{failures: 1000}
	exec, store, hist := newTestExecutor(t, renderer, nil, 3)
	ctx := context.Background()

	out := exec.Execute(ctx, core.Job{ID: "doomed", Label: "Nue"})
	assert.Equal(t, core.OutcomeQueued, out.Status)

	for i := 0; i < 3; i++ {
		exec.ReplayQueued(ctx)
	}

	assert.Equal(t, 0, store.Len(), "discarded job must leave the queue")
	require.Len(t, hist.discarded, 1)
	assert.Equal(t, "doomed", hist.discarded[0].ID)
	assert.Empty(t, hist.completed)

	attempts := renderer.callCount()

	// Further replays find nothing; the job is never retried again.
	exec.ReplayQueued(ctx)
	exec.ReplayQueued(ctx)
	assert.Equal(t, attempts, renderer.callCount())
}

func TestRemoteJobIsAcknowledged(t *testing.T) {
	acker := &fakeAcker{}
	exec, _, _ := newTestExecutor(t, &scriptedRenderer{}, acker, 3)

	out := exec.Execute(context.Background(), core.Job{
		ID:       "r1",
		RemoteID: "r1",
		Label:    "Rokurokubi",
		Source:   core.SourceRemote,
	})

	assert.Equal(t, core.OutcomeDelivered, out.Status)
	assert.Equal(t, []string{"r1"}, acker.acked)
}

func TestAckFailureDoesNotFailTheJob(t *testing.T) {
	acker := &fakeAcker{err: errors.New("network down")}
	exec, store, hist := newTestExecutor(t, &scriptedRenderer{}, acker, 3)

	out := exec.Execute(context.Background(), core.Job{ID: "r2", RemoteID: "r2", Label: "Yuki-onna"})

	assert.Equal(t, core.OutcomeDelivered, out.Status, "print happened, ack is best effort")
	assert.Equal(t, 0, store.Len(), "ack failure must not queue a reprint")
	assert.Len(t, hist.completed, 1)
}

func TestDeviceOpenFailureQueuesJob(t *testing.T) {
	store := queue.New(filepath.Join(t.TempDir(), "queue.json"))
	hist := &memHistory{}
	lock := core.NewDeviceLock(&trackedOpener{openErr: errors.New("connection refused")})
	exec := core.NewExecutor(lock, &scriptedRenderer{}, store, hist, nil, 3)

	out := exec.Execute(context.Background(), core.Job{ID: "q1", Label: "Kasa-obake"})

	assert.Equal(t, core.OutcomeQueued, out.Status)
	jobs, err := store.Load()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 1, jobs[0].RetryCount)
}

func TestMaxRetriesZeroDiscardsImmediately(t *testing.T) {
	renderer := &scriptedRenderer{failures: 1}
	exec, store, hist := newTestExecutor(t, renderer, nil, 0)

	out := exec.Execute(context.Background(), core.Job{ID: "once", Label: "Tsuchinoko"})

	assert.Equal(t, core.OutcomeDiscarded, out.Status)
	assert.Equal(t, 0, store.Len())
	assert.Len(t, hist.discarded, 1)
}
