package remote

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bakebake-xr/printd/internal/config"
	"github.com/bakebake-xr/printd/internal/core"
)

// Executor is the slice of the job executor the adapter needs.
type Executor interface {
	Execute(ctx context.Context, job core.Job) core.Outcome
}

// Store is the remote record store surface consumed by the adapter.
type Store interface {
	ListPending(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, id string) (*Record, error)
	RegisterWebhook(ctx context.Context, callbackURL string) error
}

// heartbeatEvery logs one idle line per this many empty polls, so the
// log shows the poller is alive without a line every tick.
const heartbeatEvery = 6

// Adapter discovers jobs in the remote store. Polling always runs; a
// push subscription is layered on top when registration succeeds, and
// both paths funnel through the same guarded Submit.
type Adapter struct {
	store        Store
	executor     Executor
	pollInterval time.Duration
	callbackURL  string

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]bool
}

func NewAdapter(store Store, executor Executor, cfg *config.RemoteConfig) *Adapter {
	return &Adapter{
		store:        store,
		executor:     executor,
		pollInterval: cfg.PollInterval,
		callbackURL:  cfg.CallbackURL,
		stopCh:       make(chan struct{}),
		inflight:     make(map[string]bool),
	}
}

func (a *Adapter) Start() {
	if a.callbackURL != "" {
		err := a.store.RegisterWebhook(context.Background(), a.callbackURL)
		if err != nil {
			log.Printf("remote: push registration failed (polling only): %v", err)
		} else {
			log.Printf("remote: push subscription active: %s", a.callbackURL)
		}
	}

	log.Printf("remote: polling every %s", a.pollInterval)
	a.wg.Add(1)
	go a.pollLoop()
}

func (a *Adapter) Stop() {
	close(a.stopCh)
	a.wg.Wait()
}

func (a *Adapter) pollLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	idleTicks := 0
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			n := a.pollOnce(context.Background())
			if n == 0 {
				idleTicks++
				if idleTicks%heartbeatEvery == 0 {
					log.Printf("remote: heartbeat: no pending jobs")
				}
			} else {
				idleTicks = 0
			}
		}
	}
}

// pollOnce runs one discovery pass and returns how many records it
// submitted. Transient remote errors are logged and mutate nothing;
// the next tick retries from scratch.
func (a *Adapter) pollOnce(ctx context.Context) int {
	ids, err := a.store.ListPending(ctx)
	if err != nil {
		log.Printf("remote: poll error: %v", err)
		return 0
	}
	if len(ids) == 0 {
		return 0
	}

	log.Printf("remote: %d pending job(s)", len(ids))
	submitted := 0
	for _, id := range ids {
		rec, err := a.store.Fetch(ctx, id)
		if err != nil {
			log.Printf("remote: failed to fetch %s: %v", id, err)
			continue
		}
		if a.Submit(ctx, rec) {
			submitted++
		}
	}
	return submitted
}

// HandlePush is the push-subscription callback. It runs on the HTTP
// handler's goroutine, concurrently with the poll loop.
func (a *Adapter) HandlePush(rec *Record) {
	a.Submit(context.Background(), rec)
}

// Submit applies the idempotency guard and hands the record to the
// executor. Records already completed, or currently being handled by
// the racing acquisition path, are silently dropped.
func (a *Adapter) Submit(ctx context.Context, rec *Record) bool {
	if rec == nil || rec.ID == "" || !rec.PrintRequested || rec.PrintCompleted {
		return false
	}

	a.mu.Lock()
	if a.inflight[rec.ID] {
		a.mu.Unlock()
		return false
	}
	a.inflight[rec.ID] = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.inflight, rec.ID)
		a.mu.Unlock()
	}()

	job := core.Job{
		ID:        rec.ID,
		RemoteID:  rec.ID,
		Label:     rec.Label,
		Body:      rec.Body,
		ImageData: rec.ImageData,
		Source:    core.SourceRemote,
	}
	a.executor.Execute(ctx, job)
	return true
}
