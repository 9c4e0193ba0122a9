// Package scheduler runs background tasks on named queues. Each queue is a
// buffered channel drained by a worker pool; delayed tasks are armed with a
// timer and enqueued when it fires, so a worker never blocks on a delay.
package scheduler

import (
	"context"
	"sync"
	"time"

	"flight-alert-service/internal/logging"
	"flight-alert-service/internal/utils"
)

// Queue names. Alert creation work and notification delivery work run on
// independent pools so a burst of deliveries cannot starve escalation.
const (
	QueueAlerts        = "alerts"
	QueueNotifications = "notifications"
)

// Task is one unit of queued work. A task is retried MaxAttempts times with
// exponential backoff starting at Backoff; when every attempt fails,
// OnExhausted (if set) is invoked with the final error.
type Task struct {
	Name        string
	MaxAttempts int
	Backoff     time.Duration
	Run         func(ctx context.Context) error
	OnExhausted func(err error)
}

// Runner owns the queues and their worker pools.
type Runner struct {
	logger  *logging.Logger
	queues  map[string]chan Task
	workers map[string]int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      *sync.WaitGroup
}

// New constructs a Runner with one queue per entry in workers, each with the
// given buffer size.
func New(logger *logging.Logger, queueSize int, workers map[string]int) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		logger:  logger,
		queues:  make(map[string]chan Task, len(workers)),
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
	}
	for name := range workers {
		r.queues[name] = make(chan Task, queueSize)
	}
	return r
}

// Start launches the worker pools.
func (r *Runner) Start(wg *sync.WaitGroup) {
	r.wg = wg
	for name, count := range r.workers {
		for i := 0; i < count; i++ {
			wg.Add(1)
			go r.worker(name, i)
		}
	}
}

// Stop cancels all workers. Pending delayed tasks are dropped; they are
// re-derived from persisted state on the next periodic scan.
func (r *Runner) Stop() {
	r.cancel()
}

// Enqueue places a task on the named queue. A full queue drops the task with
// an error log rather than blocking the caller.
func (r *Runner) Enqueue(queue string, t Task) {
	ch, ok := r.queues[queue]
	if !ok {
		r.logger.Errorf("Unknown queue %q for task %s", queue, t.Name)
		return
	}
	select {
	case ch <- t:
		r.logger.Debugf("Queued task %s on %s", t.Name, queue)
	default:
		r.logger.Errorf("Queue %s full, dropping task %s", queue, t.Name)
	}
}

// EnqueueAfter arms a timer and enqueues the task when it fires. The caller
// returns immediately.
func (r *Runner) EnqueueAfter(queue string, delay time.Duration, t Task) {
	time.AfterFunc(delay, func() {
		select {
		case <-r.ctx.Done():
			return
		default:
		}
		r.Enqueue(queue, t)
	})
	r.logger.Debugf("Scheduled task %s on %s in %v", t.Name, queue, delay)
}

// worker drains its queue until the runner is stopped.
func (r *Runner) worker(queue string, id int) {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Worker %s/%d stopped", queue, id)
			return
		case task := <-r.queues[queue]:
			r.runTask(task)
		}
	}
}

func (r *Runner) runTask(t Task) {
	attempts := t.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := t.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	err := utils.Retry(r.ctx, r.logger, attempts, backoff, func() error {
		return t.Run(r.ctx)
	})
	if err != nil {
		r.logger.Errorf("Task %s exhausted retries: %v", t.Name, err)
		if t.OnExhausted != nil {
			t.OnExhausted(err)
		}
	}
}
