package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

const drainTimeout = 5 * time.Second

type Job struct {
	Msg *nats.Msg
	Ctx context.Context
}

// Dispatcher decodes received events on a fixed pool of workers and hands
// the ones accepted by its match function to every notifier.
type Dispatcher struct {
	numWorkers int
	jobs       chan Job
	wg         sync.WaitGroup
	mu         sync.RWMutex
	stopped    bool
	match      func(Event) bool
	notifiers  []Notifier
	logger     *slog.Logger
}

func NewDispatcher(numWorkers, jobQueueSize int, match func(Event) bool, notifiers ...Notifier) *Dispatcher {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if match == nil {
		match = func(Event) bool { return true }
	}
	return &Dispatcher{
		numWorkers: numWorkers,
		jobs:       make(chan Job, jobQueueSize),
		match:      match,
		notifiers:  notifiers,
		logger:     slog.Default(),
	}
}

func (d *Dispatcher) Start() {
	for i := 1; i <= d.numWorkers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Debug("started event workers", "count", d.numWorkers)
}

// Stop waits for queued jobs to finish. Jobs submitted afterwards are
// dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.jobs)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Submit queues job, blocking while the queue is full. It reports false when
// the dispatcher has already been stopped.
func (d *Dispatcher) Submit(job Job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return false
	}
	d.jobs <- job
	return true
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for job := range d.jobs {
		ctx := job.Ctx
		if ctx == nil {
			ctx = context.Background()
		}

		var ev Event
		if err := json.Unmarshal(job.Msg.Data, &ev); err != nil {
			d.logger.Warn("dropping undecodable event", "worker", id, "subject", job.Msg.Subject, "error", err)
			continue
		}

		if !d.match(ev) {
			continue
		}

		for _, n := range d.notifiers {
			if err := n.Notify(ctx, ev); err != nil {
				d.logger.Error("event notification failed", "worker", id, "event_id", ev.ID, "error", err)
			}
		}
	}
}

// Subscribe feeds every event under prefix into d until ctx is done, then
// drains the subscription.
func Subscribe(ctx context.Context, nc *nats.Conn, prefix string, d *Dispatcher) error {
	sub, err := nc.Subscribe(Wildcard(prefix), func(msg *nats.Msg) {
		if !d.Submit(Job{Msg: msg, Ctx: context.WithoutCancel(ctx)}) {
			slog.Warn("dropping event received after shutdown", "subject", msg.Subject)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", Wildcard(prefix), err)
	}
	slog.Info("subscribed to change events", "subject", sub.Subject)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain error: %w", err)
	}

	// Drain is asynchronous; give pending callbacks a chance to reach the
	// dispatcher before the caller stops it.
	deadline := time.Now().Add(drainTimeout)
	for sub.IsValid() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}
