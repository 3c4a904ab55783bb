package transcode

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"lectern/internal/ledger"
	"lectern/internal/logging"
)

// PoolConfig sizes the worker pool.
type PoolConfig struct {
	Workers          int
	PollInterval     time.Duration
	HeartbeatTimeout time.Duration
}

// Pool executes jobs across a fixed set of workers. Per-key mutual exclusion
// comes from the ledger's compare-and-swap claim, so workers across different
// keys run fully parallel with no shared mutable state of their own.
type Pool struct {
	coordinator *Coordinator
	store       *ledger.Store
	cfg         PoolConfig
	logger      *slog.Logger

	mu      sync.Mutex
	queue   jobHeap
	cond    *sync.Cond
	stopped bool

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool constructs a pool over the coordinator and ledger store.
func NewPool(coordinator *Coordinator, store *ledger.Store, cfg PoolConfig, logger *slog.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = 2 * time.Minute
	}
	p := &Pool{
		coordinator: coordinator,
		store:       store,
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "pool"),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Submit enqueues jobs for execution, ordered by priority weight then age.
func (p *Pool) Submit(jobs ...Job) {
	if len(jobs) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	for _, job := range jobs {
		heap.Push(&p.queue, job)
	}
	p.cond.Broadcast()
}

// Start launches the workers and the recovery sweeper. The sweep re-enqueues
// pending ledger entries and reclaims processing entries whose heartbeats
// expired, so a crash never strands work.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.stopped = false
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(p.cfg.Workers + 1)
	for i := 0; i < p.cfg.Workers; i++ {
		go p.runWorker(runCtx)
	}
	go p.runSweeper(runCtx)
	go func() {
		<-runCtx.Done()
		p.cond.Broadcast()
	}()
}

// Stop halts workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.stopped = true
	cancel := p.cancel
	p.cancel = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

// Drain processes every queued job synchronously on the calling goroutine.
// Used by the CLI's one-shot mode and by tests; the daemon uses Start/Stop.
func (p *Pool) Drain(ctx context.Context) (int, error) {
	processed := 0
	for {
		job, ok := p.tryPop()
		if !ok {
			return processed, nil
		}
		if _, err := p.coordinator.ProcessJob(ctx, job); err != nil {
			return processed, err
		}
		processed++
		if err := ctx.Err(); err != nil {
			return processed, err
		}
	}
}

func (p *Pool) runWorker(ctx context.Context) {
	defer p.wg.Done()
	for {
		job, ok := p.pop(ctx)
		if !ok {
			return
		}
		if _, err := p.coordinator.ProcessJob(ctx, job); err != nil {
			p.logger.Error("job processing failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.String(logging.FieldItemID, job.ItemID),
				logging.Error(err),
			)
		}
	}
}

func (p *Pool) runSweeper(ctx context.Context) {
	defer p.wg.Done()
	// Immediate sweep on startup recovers entries left over from a crash.
	p.sweep(ctx)
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *Pool) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-p.cfg.HeartbeatTimeout)
	if reclaimed, err := p.store.ReclaimStaleProcessing(ctx, cutoff); err != nil {
		p.logger.Warn("stale processing reclaim failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ledger database access"),
		)
	} else if reclaimed > 0 {
		p.logger.Info("reclaimed stale processing entries", logging.Int64("count", reclaimed))
	}

	pending, err := p.store.ByStatus(ctx, ledger.StatusPending)
	if err != nil {
		p.logger.Warn("pending sweep failed", logging.Error(err))
		return
	}
	inFlight := p.queuedLedgerIDs()
	for _, entry := range pending {
		if _, ok := inFlight[entry.ID]; ok {
			continue
		}
		job, err := p.coordinator.JobForEntry(ctx, entry)
		if err != nil {
			p.logger.Warn("job rebuild failed",
				logging.Int64("ledger_id", entry.ID),
				logging.Error(err),
			)
			continue
		}
		p.Submit(job)
	}
}

func (p *Pool) queuedLedgerIDs() map[int64]struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make(map[int64]struct{}, len(p.queue))
	for _, job := range p.queue {
		ids[job.LedgerID] = struct{}{}
	}
	return ids
}

func (p *Pool) pop(ctx context.Context) (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 {
		if p.stopped || ctx.Err() != nil {
			return Job{}, false
		}
		p.cond.Wait()
	}
	if p.stopped {
		return Job{}, false
	}
	return heap.Pop(&p.queue).(Job), true
}

func (p *Pool) tryPop() (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return Job{}, false
	}
	return heap.Pop(&p.queue).(Job), true
}

type jobHeap []Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].Weight != h[j].Weight {
		return h[i].Weight < h[j].Weight
	}
	return h[i].EnqueuedAt.Before(h[j].EnqueuedAt)
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(Job)) }

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	*h = old[:n-1]
	return job
}
