package worker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type workerMeta struct {
	ch        chan Job
	lastUsed  time.Time
	fresh     bool // started but not yet idle
	enqueued  bool // is in the idle queue
	discarded bool // is targeted as delete
}

type jobChannelPool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	idle     []*workerMeta
	metadata map[chan Job]*workerMeta
	min      int
	max      int
	running  int
	starting int
	nextID   int
	expiry   time.Duration
	closed   bool
	quit     chan struct{}
	wg       sync.WaitGroup
	logger   *zap.Logger
}

const defaultWorkerIdle = 30 * time.Second

func newJobChannelPool(minWorkers, maxWorkers int, idle time.Duration, logger *zap.Logger) *jobChannelPool {
	if idle <= 0 {
		idle = defaultWorkerIdle
	}
	if minWorkers < 0 {
		minWorkers = 0
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}
	p := &jobChannelPool{
		metadata: make(map[chan Job]*workerMeta),
		min:      minWorkers,
		max:      maxWorkers,
		expiry:   idle,
		quit:     make(chan struct{}),
		logger:   logger,
	}
	p.cond = sync.NewCond(&p.mu)

	p.mu.Lock()
	for i := 0; i < minWorkers; i++ {
		p.spawnLocked()
	}
	p.mu.Unlock()

	p.wg.Add(1)
	go p.purgeStaleWorkers()
	return p
}

// spawnLocked adds a new worker; it joins the idle queue once running.
func (p *jobChannelPool) spawnLocked() {
	p.nextID++
	worker := newWorker(p.nextID, p)
	p.metadata[worker.jobChannel] = &workerMeta{ch: worker.jobChannel, fresh: true}
	p.running++
	p.starting++
	worker.Start()
}

// acquire gets an idle worker, spawning one when below max. It reports false
// once the pool is closed.
func (p *jobChannelPool) acquire() (chan Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.closed {
			return nil, false
		}
		if meta := p.popIdleLocked(); meta != nil {
			return meta.ch, true
		}
		if p.running < p.max && p.starting == 0 {
			p.spawnLocked()
		}
		p.cond.Wait()
	}
}

// Release adds an idle worker into the pool.
func (p *jobChannelPool) Release(ch chan Job) {
	p.mu.Lock()
	meta, ok := p.metadata[ch]
	if !ok || meta.discarded || meta.enqueued {
		p.mu.Unlock()
		return
	}
	if meta.fresh {
		meta.fresh = false
		p.starting--
	}
	meta.enqueued = true
	meta.lastUsed = time.Now()
	p.idle = append(p.idle, meta)
	p.mu.Unlock()
	p.cond.Signal()
}

// retire deletes a worker.
func (p *jobChannelPool) retire(ch chan Job) {
	p.mu.Lock()
	if meta, ok := p.metadata[ch]; ok {
		delete(p.metadata, ch)
		if meta.fresh {
			p.starting--
		}
		meta.discarded = true
		if p.running > 0 {
			p.running--
		}
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *jobChannelPool) popIdleLocked() *workerMeta {
	for len(p.idle) > 0 {
		meta := p.idle[0]
		p.idle = p.idle[1:]
		if meta.discarded {
			continue
		}
		meta.enqueued = false
		return meta
	}
	return nil
}

func (p *jobChannelPool) purgeStaleWorkers() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.expiry)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.shutdownExpired(time.Now())
		case <-p.quit:
			return
		}
	}
}

// shutdownExpired retires idle workers past expiry, keeping at least min.
func (p *jobChannelPool) shutdownExpired(now time.Time) int {
	var stale []*workerMeta

	p.mu.Lock()
	if len(p.idle) == 0 || p.running <= p.min {
		p.mu.Unlock()
		return 0
	}
	remaining := p.idle[:0]
	for _, meta := range p.idle {
		if meta.discarded {
			continue
		}
		if now.Sub(meta.lastUsed) >= p.expiry && p.running-len(stale) > p.min {
			meta.discarded = true
			meta.enqueued = false
			stale = append(stale, meta)
			continue
		}
		remaining = append(remaining, meta)
	}
	p.idle = remaining
	p.mu.Unlock()

	for _, meta := range stale {
		select {
		case meta.ch <- Job{Type: jobStop}:
		case <-p.quit:
		}
	}
	if len(stale) > 0 {
		p.logger.Debug("retired idle workers", zap.Int("count", len(stale)))
	}
	return len(stale)
}

func (p *jobChannelPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// close stops every worker after its current job and waits for them.
func (p *jobChannelPool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.quit)
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}
