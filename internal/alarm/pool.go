package alarm

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	deliveryAttempts = 3
	deliveryBackoff  = 500 * time.Millisecond
	deliveryTimeout  = 10 * time.Second
)

type Worker struct {
	ID         int
	WorkerPool chan chan Notification
	JobChannel chan Notification
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Notification, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Notification),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(Notification)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			// announce readiness, unless shutting down
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("alarm worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("alarm worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

// Pool delivers notifications on a fixed set of workers fed from a bounded queue.
type Pool struct {
	notifier Notifier
	logger   *slog.Logger

	jobQueue   chan Notification
	workerPool chan chan Notification
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

func NewPool(notifier Notifier, workers, queueSize int, logger *slog.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	p := &Pool{
		notifier:   notifier,
		logger:     logger,
		maxWorkers: workers,
		jobQueue:   make(chan Notification, queueSize),
		workerPool: make(chan chan Notification, workers),
		ctx:        ctx,
		cancel:     cancel,
	}
	p.start()
	return p
}

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.maxWorkers; i++ {
			worker := NewWorker(i, p.workerPool, p.logger)
			worker.Start(p.ctx, &p.wg, p.deliver)
		}

		p.wg.Add(1)
		go p.dispatch()

		p.logger.Info("alarm worker pool started",
			"max_workers", p.maxWorkers,
			"queue_size", cap(p.jobQueue))
	})
}

func (p *Pool) dispatch() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobQueue:
			select {
			case jobChannel := <-p.workerPool:
				select {
				case jobChannel <- job:
				case <-p.ctx.Done():
					return
				}
			case <-p.ctx.Done():
				return
			}
		case <-p.ctx.Done():
			p.logger.Info("alarm dispatcher shutting down")
			return
		}
	}
}

// Enqueue never blocks. It returns false when the queue is full or the pool
// has been shut down.
func (p *Pool) Enqueue(n Notification) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case p.jobQueue <- n:
		return true
	default:
		return false
	}
}

func (p *Pool) deliver(n Notification) {
	var err error
	for attempt := 1; attempt <= deliveryAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(p.ctx, deliveryTimeout)
		err = p.notifier.Notify(ctx, n)
		cancel()
		if err == nil {
			return
		}

		p.logger.Warn("alarm delivery failed", "device_id", n.DeviceID, "attempt", attempt, "error", err)
		select {
		case <-time.After(time.Duration(attempt) * deliveryBackoff):
		case <-p.ctx.Done():
			return
		}
	}
	p.logger.Error("alarm notification dropped after retries", "device_id", n.DeviceID, "error", err)
}

func (p *Pool) Shutdown() {
	p.logger.Info("shutting down alarm worker pool")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("alarm worker pool shutdown complete")
}
