package worker

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

type userQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher fans jobs out to the pool round-robin across users, so one busy
// user cannot starve the others.
type Dispatcher struct {
	pool      *jobChannelPool
	jobQueue  chan Job
	queueSize int64
	pending   atomic.Int64
	logger    *zap.Logger

	mu        sync.Mutex
	queues    map[string]*userQueue // job queue for each user
	ready     *list.List            // LRU queue storing user keys
	positions map[string]*list.Element

	submitMu  sync.RWMutex
	closed    bool
	quit      chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

func NewDispatcher(cfg Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	d := &Dispatcher{
		pool:      newJobChannelPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.IdleTimeout, logger),
		jobQueue:  make(chan Job, cfg.QueueSize),
		queueSize: int64(cfg.QueueSize),
		logger:    logger,
		queues:    make(map[string]*userQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

// Submit queues task for userKey and returns a channel that receives the
// task's result exactly once.
func (d *Dispatcher) Submit(ctx context.Context, userKey string, task Task) (<-chan error, error) {
	d.submitMu.RLock()
	defer d.submitMu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}
	if d.pending.Add(1) > d.queueSize {
		d.pending.Add(-1)
		return nil, ErrDispatcherBusy
	}
	job := Job{Type: jobRun, UserKey: userKey, ctx: ctx, task: task, result: make(chan error, 1)}
	select {
	case d.jobQueue <- job:
		return job.result, nil
	default:
		d.pending.Add(-1)
		return nil, ErrDispatcherBusy
	}
}

// Do submits task and waits for it. A job that has started always runs to
// completion before Do returns.
func (d *Dispatcher) Do(ctx context.Context, userKey string, task Task) error {
	result, err := d.Submit(ctx, userKey, task)
	if err != nil {
		return err
	}
	return <-result
}

// CancelUser drops every queued job of userKey. Running jobs are left alone.
func (d *Dispatcher) CancelUser(userKey string) {
	d.mu.Lock()
	q := d.queues[userKey]
	delete(d.queues, userKey)
	if elem, ok := d.positions[userKey]; ok {
		d.ready.Remove(elem)
		delete(d.positions, userKey)
	}
	d.mu.Unlock()

	if q == nil {
		return
	}
	for _, job := range q.jobs {
		d.pending.Add(-1)
		job.finish(ErrCanceled)
	}
	d.logger.Debug("dropped queued jobs", zap.String("user", userKey), zap.Int("count", len(q.jobs)))
}

// Close rejects new jobs, fails queued ones with ErrClosed and waits for
// running jobs and every goroutine to stop.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.submitMu.Lock()
		d.closed = true
		d.submitMu.Unlock()
		close(d.quit)
		d.pool.close()
		<-d.done
	})
}

// Workers reports how many workers are alive.
func (d *Dispatcher) Workers() int {
	return d.pool.size()
}

// Pending reports jobs accepted but not yet handed to a worker.
func (d *Dispatcher) Pending() int {
	return int(d.pending.Load())
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		// dispatch one job of the user at the front of LRU queue
		if !d.dispatchOne() {
			select {
			case job := <-d.jobQueue:
				d.enqueueJob(job)
			case <-d.quit:
				d.drain()
				return
			}
			continue
		}
		if !d.collect() {
			d.drain()
			return
		}
	}
}

// collect moves every job waiting on the channel into the per-user queues.
// It reports false once the dispatcher is closing.
func (d *Dispatcher) collect() bool {
	for {
		select {
		case job := <-d.jobQueue:
			d.enqueueJob(job)
		case <-d.quit:
			return false
		default:
			return true
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.UserKey]
	if q == nil {
		q = &userQueue{}
		d.queues[job.UserKey] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	d.positions[job.UserKey] = d.ready.PushBack(job.UserKey)
}

// dispatchOne hands the next job of the first user in the LRU to a worker.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	userKey := elem.Value.(string)
	q := d.queues[userKey]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, userKey)
		delete(d.queues, userKey)
	} else {
		d.ready.MoveToBack(elem)
	}
	d.mu.Unlock()
	d.pending.Add(-1)

	if err := job.ctx.Err(); err != nil {
		job.finish(err)
		return true
	}
	workerChan, ok := d.pool.acquire()
	if !ok {
		job.finish(ErrClosed)
		return false
	}
	select {
	case workerChan <- job:
	case <-d.quit:
		job.finish(ErrClosed)
		return false
	}
	return true
}

// drain fails everything still queued once the dispatcher stops.
func (d *Dispatcher) drain() {
	for {
		select {
		case job := <-d.jobQueue:
			d.pending.Add(-1)
			job.finish(ErrClosed)
		default:
			d.mu.Lock()
			queues := d.queues
			d.queues = make(map[string]*userQueue)
			d.ready.Init()
			d.positions = make(map[string]*list.Element)
			d.mu.Unlock()
			for _, q := range queues {
				for _, job := range q.jobs {
					d.pending.Add(-1)
					job.finish(ErrClosed)
				}
			}
			return
		}
	}
}
