// Package worker provides an asynchronous worker pool that persists finished
// session records with the provided storage.Driver and announces them on the
// provided eventstream.Publisher.
//
// The pool decouples storage operations from the proxy's HTTP hot path so
// that the client-proxy-upstream stream is never held up by a slow database
// or broker.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/bpmnchat/pkg/eventstream"
	"github.com/papercomputeco/bpmnchat/pkg/eventstream/nop"
	"github.com/papercomputeco/bpmnchat/pkg/logger"
	"github.com/papercomputeco/bpmnchat/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	// Record is the finished session.
	Record *storage.Record

	// Path is the proxy route that served the session.
	Path string

	// Status is the HTTP status returned to the client.
	Status int
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting records.
	Driver storage.Driver

	// Publisher announces stored records. Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Pool processes storage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	logger *slog.Logger
	now    func() time.Time
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("worker pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher(c.Logger)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
		now:    time.Now,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	if job.Record == nil {
		p.logger.Error("job not queued, nil record")
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("job not queued, pool closed",
			"session", job.Record.ID,
		)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"session", job.Record.ID,
			"provider", job.Record.Provider,
			"model", job.Record.Model,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"session", job.Record.ID,
			"provider", job.Record.Provider,
			"model", job.Record.Model,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the proxy HTTP server has stopped.
// Close is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("storage worker stopped", "worker_id", id)
}

// processJob stores the record, then publishes its event. A publish failure
// is logged; the stored record stands.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()
	rec := job.Record

	if err := p.config.Driver.Put(ctx, rec); err != nil {
		p.logger.Error("session storage failed",
			"session", rec.ID,
			"provider", rec.Provider,
			"error", err,
		)
		return
	}

	p.logger.Info("session stored",
		"session", rec.ID,
		"provider", rec.Provider,
		"outcome", rec.Outcome,
	)

	event := eventstream.NewSessionFinalizedEvent(rec, job.Path, job.Status, p.now())
	if err := p.config.Publisher.PublishSession(ctx, event); err != nil {
		p.logger.Warn("session event publish failed",
			"session", rec.ID,
			"event_id", event.EventID,
			"error", err,
		)
	}
}
