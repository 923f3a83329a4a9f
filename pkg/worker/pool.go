// Package worker provides the asynchronous worker pool that runs the side
// effects of an answered question: publishing the turn event and storing
// the turn in long-term memory.
//
// The pool decouples those side effects from the request path so a slow
// broker or embedding call never delays an answer.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/xeleb-ai/xeleb/pkg/eventstream"
	"github.com/xeleb-ai/xeleb/pkg/memory"
	"github.com/xeleb-ai/xeleb/pkg/metrics"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = 30 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Event *eventstream.TurnEvent
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives every turn event. Nil disables publishing.
	Publisher eventstream.Publisher

	// Memory remembers every turn. Nil disables memory.
	Memory memory.Driver

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// JobTimeout bounds the side effects of one job (defaults to 30s).
	JobTimeout time.Duration

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Pool processes turn jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is
// closed, resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	if job.Event == nil {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("job not queued, pool closed", "event_id", job.Event.EventID)
		return false
	}

	select {
	case p.queue <- job:
		p.config.Metrics.SetQueueDepth(len(p.queue))
		p.logger.Debug("job queued", "event_id", job.Event.EventID, "agent", job.Event.Source.AgentName)
		return true
	default:
		p.config.Metrics.JobDropped()
		p.logger.Error("job not queued, queue full, job dropped",
			"event_id", job.Event.EventID,
			"agent", job.Event.Source.AgentName,
		)
		return false
	}
}

// Close stops accepting jobs and waits for queued ones to drain. Further
// calls are no-ops.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.config.Metrics.SetQueueDepth(len(p.queue))
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

// processJob publishes the turn event and remembers the turn. Failures are
// logged; a failed publish does not prevent the memory write.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	ev := job.Event
	if err := p.publish(ctx, ev); err != nil {
		p.config.Metrics.TurnEvent("error")
		p.logger.Error("turn event publish failed", "event_id", ev.EventID, "error", err)
	}

	if p.config.Memory != nil {
		if err := p.config.Memory.Store(ctx, TurnOf(ev)); err != nil {
			p.logger.Warn("failed to remember turn", "event_id", ev.EventID, "error", err)
		}
	}
}

func (p *Pool) publish(ctx context.Context, ev *eventstream.TurnEvent) error {
	if p.config.Publisher == nil {
		return nil
	}
	if err := p.config.Publisher.PublishTurn(ctx, ev); err != nil {
		return err
	}
	p.config.Metrics.TurnEvent("ok")
	return nil
}

// TurnOf converts a turn event into the memory turn it describes.
func TurnOf(ev *eventstream.TurnEvent) memory.Turn {
	return memory.Turn{
		UserID:    ev.Source.UserID,
		ThreadID:  ev.Source.ThreadID,
		AgentName: ev.Source.AgentName,
		Question:  ev.Question,
		Answer:    ev.Answer,
		At:        ev.Timing.CompletedAt,
	}
}
