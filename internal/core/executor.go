package core

import (
	"context"
	"log"
)

// Executor owns the job lifecycle: it funnels every render through the
// device lock, classifies the outcome, and keeps the durable queue and
// the remote completion flag consistent with what actually printed.
type Executor struct {
	lock       *DeviceLock
	renderer   Renderer
	queue      JobQueue
	history    History
	acker      Acker
	maxRetries int
}

// NewExecutor wires the executor. acker may be nil when no remote store
// is reachable; completed jobs are then only recorded locally.
func NewExecutor(lock *DeviceLock, renderer Renderer, queue JobQueue, history History, acker Acker, maxRetries int) *Executor {
	return &Executor{
		lock:       lock,
		renderer:   renderer,
		queue:      queue,
		history:    history,
		acker:      acker,
		maxRetries: maxRetries,
	}
}

// Execute runs a single delivery attempt for job and returns its
// terminal state for this attempt: delivered, queued for retry, or
// discarded. It never returns a process-fatal error.
func (e *Executor) Execute(ctx context.Context, job Job) Outcome {
	log.Printf("print: job %s: %s", job.ID, job.Label)

	err := e.lock.WithDevice(func(dev Device) error {
		return e.renderer.Render(dev, &job)
	})
	if err != nil {
		return e.handleFailure(job, err)
	}

	log.Printf("print: done: %s", job.ID)

	if err := e.queue.RemoveByID(job.ID); err != nil {
		log.Printf("queue: failed to remove %s: %v", job.ID, err)
	}

	if err := e.history.RecordCompleted(job); err != nil {
		log.Printf("history: failed to record %s: %v", job.ID, err)
	}

	// Best effort only. The paper is already out of the printer; a
	// failed flag update means the record may be delivered again.
	if e.acker != nil && job.RemoteID != "" {
		if err := e.acker.MarkCompleted(ctx, job.RemoteID); err != nil {
			log.Printf("remote: completion update failed for %s (print was ok): %v", job.RemoteID, err)
		}
	}

	return Outcome{Status: OutcomeDelivered}
}

func (e *Executor) handleFailure(job Job, cause error) Outcome {
	if job.RetryCount < e.maxRetries {
		job.RetryCount++
		if err := e.queue.Upsert(job); err != nil {
			log.Printf("queue: failed to persist %s: %v", job.ID, err)
		}
		log.Printf("print: job %s failed, retry %d/%d: %v", job.ID, job.RetryCount, e.maxRetries, cause)
		return Outcome{Status: OutcomeQueued, Err: cause}
	}

	if err := e.queue.RemoveByID(job.ID); err != nil {
		log.Printf("queue: failed to remove %s: %v", job.ID, err)
	}
	if err := e.history.RecordDiscarded(job, cause.Error()); err != nil {
		log.Printf("history: failed to record %s: %v", job.ID, err)
	}
	log.Printf("print: job %s failed after %d retries, discarding: %v", job.ID, e.maxRetries, cause)
	return Outcome{Status: OutcomeDiscarded, Err: cause}
}

// ReplayQueued drains every persisted entry through Execute. It runs
// once before either intake source starts, so crash-interrupted retries
// are not starved by fresh traffic, and again on the retry ticker.
func (e *Executor) ReplayQueued(ctx context.Context) {
	jobs, err := e.queue.Load()
	if err != nil {
		log.Printf("queue: failed to load: %v", err)
		return
	}
	if len(jobs) == 0 {
		return
	}

	log.Printf("queue: replaying %d pending job(s)", len(jobs))
	for _, job := range jobs {
		e.Execute(ctx, job)
	}
}
