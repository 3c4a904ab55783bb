package transcode

import (
	"context"
	"sync"
	"testing"
	"time"

	"lectern/internal/content"
	"lectern/internal/ledger"
	"lectern/internal/logging"
)

type recordingEncoder struct {
	inner Encoder

	mu   sync.Mutex
	seen []content.VariantRequest
}

func (r *recordingEncoder) Encode(ctx context.Context, item *content.Item, request content.VariantRequest) (Result, error) {
	r.mu.Lock()
	r.seen = append(r.seen, request)
	r.mu.Unlock()
	return r.inner.Encode(ctx, item, request)
}

func (r *recordingEncoder) requests() []content.VariantRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]content.VariantRequest, len(r.seen))
	copy(out, r.seen)
	return out
}

func TestPoolDrainProcessesQueue(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	item := videoItem(t, h)

	jobs, err := h.coordinator.QueueJobs(ctx, item.ID, QueueOptions{})
	if err != nil {
		t.Fatalf("QueueJobs: %v", err)
	}

	pool := NewPool(h.coordinator, h.ledger, PoolConfig{Workers: 1}, logging.NewNop())
	pool.Submit(jobs...)

	processed, err := pool.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if processed != len(jobs) {
		t.Fatalf("processed = %d, want %d", processed, len(jobs))
	}

	counts, err := h.ledger.Counts(ctx, item.ID)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Ready != len(jobs) || counts.Pending != 0 {
		t.Fatalf("counts after drain: %+v", counts)
	}
}

func TestPoolOrdersByWeightThenAge(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	item := videoItem(t, h)

	rec := &recordingEncoder{inner: NewSimulator(h.registry)}
	coord := NewCoordinator(h.coordinator.planner, h.ledger, h.items, h.registry, rec, logging.NewNop(), time.Second)

	base := time.Now().UTC()
	makeJob := func(vtype content.VariantType, tier content.NetworkTier, weight int, age time.Duration) Job {
		entry, _, err := h.ledger.GetOrCreate(ctx, item.ID, vtype, tier)
		if err != nil {
			t.Fatalf("GetOrCreate: %v", err)
		}
		return Job{
			ID:         string(vtype) + "/" + string(tier),
			ItemID:     item.ID,
			LedgerID:   entry.ID,
			Request:    content.VariantRequest{Type: vtype, Tier: tier},
			Weight:     weight,
			EnqueuedAt: base.Add(age),
		}
	}

	low := makeJob(content.VariantLowQuality, content.Tier2G, PriorityLow.Weight(), 0)
	normalOld := makeJob(content.VariantMediumQuality, content.Tier4G, PriorityNormal.Weight(), time.Second)
	normalNew := makeJob(content.VariantHighQuality, content.TierWifi, PriorityNormal.Weight(), 2*time.Second)
	high := makeJob(content.VariantThumbnail, content.TierAny, PriorityHigh.Weight(), 3*time.Second)

	pool := NewPool(coord, h.ledger, PoolConfig{Workers: 1}, logging.NewNop())
	pool.Submit(low, normalNew, high, normalOld)

	if _, err := pool.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	seen := rec.requests()
	want := []content.VariantType{
		content.VariantThumbnail,
		content.VariantMediumQuality,
		content.VariantHighQuality,
		content.VariantLowQuality,
	}
	if len(seen) != len(want) {
		t.Fatalf("processed %d jobs, want %d", len(seen), len(want))
	}
	for i, vtype := range want {
		if seen[i].Type != vtype {
			t.Fatalf("position %d: got %s, want %s", i, seen[i].Type, vtype)
		}
	}
}

func TestPoolSweepRequeuesPendingEntries(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	item := videoItem(t, h)

	// Ledger rows with no in-memory jobs, as after a crash.
	if _, _, err := h.ledger.GetOrCreate(ctx, item.ID, content.VariantLowQuality, content.Tier2G); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, _, err := h.ledger.GetOrCreate(ctx, item.ID, content.VariantThumbnail, content.TierAny); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	pool := NewPool(h.coordinator, h.ledger, PoolConfig{Workers: 1}, logging.NewNop())
	pool.sweep(ctx)

	processed, err := pool.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if processed != 2 {
		t.Fatalf("processed = %d, want 2", processed)
	}

	counts, err := h.ledger.Counts(ctx, item.ID)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Ready != 2 {
		t.Fatalf("ready = %d, want 2", counts.Ready)
	}
}

func TestPoolSweepSkipsQueuedJobs(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	item := videoItem(t, h)

	jobs, err := h.coordinator.QueueJobs(ctx, item.ID, QueueOptions{})
	if err != nil {
		t.Fatalf("QueueJobs: %v", err)
	}

	pool := NewPool(h.coordinator, h.ledger, PoolConfig{Workers: 1}, logging.NewNop())
	pool.Submit(jobs...)
	pool.sweep(ctx)

	processed, err := pool.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if processed != len(jobs) {
		t.Fatalf("sweep duplicated queued work: processed %d, want %d", processed, len(jobs))
	}
}

func TestPoolStartStop(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	item := videoItem(t, h)

	jobs, err := h.coordinator.QueueJobs(ctx, item.ID, QueueOptions{})
	if err != nil {
		t.Fatalf("QueueJobs: %v", err)
	}

	pool := NewPool(h.coordinator, h.ledger, PoolConfig{
		Workers:      2,
		PollInterval: 50 * time.Millisecond,
	}, logging.NewNop())
	pool.Start(ctx)
	pool.Submit(jobs...)

	deadline := time.Now().Add(5 * time.Second)
	for {
		counts, err := h.ledger.Counts(ctx, item.ID)
		if err != nil {
			t.Fatalf("Counts: %v", err)
		}
		if counts.Ready == len(jobs) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for workers: %+v", counts)
		}
		time.Sleep(20 * time.Millisecond)
	}
	pool.Stop()

	status, err := h.coordinator.Status(ctx, item.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	for _, entry := range status.Entries {
		if entry.Status != ledger.StatusReady {
			t.Fatalf("entry %s@%s status = %s", entry.Type, entry.Tier, entry.Status)
		}
	}
}
