package transcode

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"lectern/internal/content"
	"lectern/internal/contentstore"
	"lectern/internal/ledger"
	"lectern/internal/logging"
	"lectern/internal/planner"
	"lectern/internal/strategy"
	"lectern/internal/testsupport"
)

type harness struct {
	items       *contentstore.Store
	ledger      *ledger.Store
	registry    *strategy.Registry
	coordinator *Coordinator
}

func newHarness(t *testing.T, encoder Encoder) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	items := testsupport.MustOpenItems(t, cfg)
	store := testsupport.MustOpenLedger(t, cfg)
	registry := strategy.NewRegistry(strategy.DefaultLimits())
	plan := planner.New(registry, items, logging.NewNop())
	if encoder == nil {
		encoder = NewSimulator(registry)
	}
	coord := NewCoordinator(plan, store, items, registry, encoder, logging.NewNop(), 50*time.Millisecond)
	return &harness{items: items, ledger: store, registry: registry, coordinator: coord}
}

func videoItem(t *testing.T, h *harness) *content.Item {
	t.Helper()
	return testsupport.NewItem(t, h.items, &content.Item{
		Title:           "Intro to Thermodynamics",
		Category:        content.CategoryVideo,
		SourceRef:       "media/thermo.mkv",
		DurationSeconds: 600,
		Transcript:      "In this lecture we cover the first law.",
		HasCaptions:     true,
	})
}

func TestQueueJobsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	item := videoItem(t, h)

	jobs, err := h.coordinator.QueueJobs(ctx, item.ID, QueueOptions{})
	if err != nil {
		t.Fatalf("QueueJobs: %v", err)
	}
	if len(jobs) == 0 {
		t.Fatal("expected jobs for a fresh item")
	}

	again, err := h.coordinator.QueueJobs(ctx, item.ID, QueueOptions{})
	if err != nil {
		t.Fatalf("QueueJobs second pass: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no jobs on re-queue, got %d", len(again))
	}
}

func TestQueueJobsRespectsPriority(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	item := videoItem(t, h)

	jobs, err := h.coordinator.QueueJobs(ctx, item.ID, QueueOptions{Priority: PriorityHigh})
	if err != nil {
		t.Fatalf("QueueJobs: %v", err)
	}
	for _, job := range jobs {
		if job.Weight != PriorityHigh.Weight() {
			t.Fatalf("job weight = %d, want %d", job.Weight, PriorityHigh.Weight())
		}
	}
}

func TestQueueJobsRequeuesFailed(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	item := videoItem(t, h)

	jobs, err := h.coordinator.QueueJobs(ctx, item.ID, QueueOptions{})
	if err != nil {
		t.Fatalf("QueueJobs: %v", err)
	}
	target := jobs[0]
	if _, err := h.ledger.MarkProcessing(ctx, target.LedgerID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := h.ledger.MarkFailed(ctx, target.LedgerID, "encoder crashed"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	requeued, err := h.coordinator.QueueJobs(ctx, item.ID, QueueOptions{})
	if err != nil {
		t.Fatalf("QueueJobs after failure: %v", err)
	}
	if len(requeued) != 1 {
		t.Fatalf("expected exactly the failed entry requeued, got %d jobs", len(requeued))
	}
	if requeued[0].LedgerID != target.LedgerID {
		t.Fatalf("requeued ledger id = %d, want %d", requeued[0].LedgerID, target.LedgerID)
	}
}

func TestProcessJobSuccess(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	item := videoItem(t, h)

	jobs, err := h.coordinator.QueueJobs(ctx, item.ID, QueueOptions{})
	if err != nil {
		t.Fatalf("QueueJobs: %v", err)
	}
	for _, job := range jobs {
		variant, err := h.coordinator.ProcessJob(ctx, job)
		if err != nil {
			t.Fatalf("ProcessJob(%s): %v", job.Request, err)
		}
		if variant == nil || variant.Status != ledger.StatusReady {
			t.Fatalf("variant for %s not ready: %+v", job.Request, variant)
		}
		if _, ok := variant.QualityScore(); !ok {
			t.Fatalf("ready variant %s has no quality score", job.Request)
		}
		kb, ok := variant.BandwidthEstimateKB()
		if !ok || kb <= 0 {
			t.Fatalf("ready variant %s has no bandwidth estimate", job.Request)
		}
	}

	status, err := h.coordinator.Status(ctx, item.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Counts.Ready != len(jobs) {
		t.Fatalf("ready count = %d, want %d", status.Counts.Ready, len(jobs))
	}
}

type failingEncoder struct{}

func (failingEncoder) Encode(context.Context, *content.Item, content.VariantRequest) (Result, error) {
	return Result{}, errors.New("codec unavailable")
}

func TestProcessJobRecordsEncodeFailure(t *testing.T) {
	h := newHarness(t, failingEncoder{})
	ctx := context.Background()
	item := videoItem(t, h)

	jobs, err := h.coordinator.QueueJobs(ctx, item.ID, QueueOptions{})
	if err != nil {
		t.Fatalf("QueueJobs: %v", err)
	}
	variant, err := h.coordinator.ProcessJob(ctx, jobs[0])
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if variant.Status != ledger.StatusFailed {
		t.Fatalf("status = %s, want failed", variant.Status)
	}
	if variant.ErrorMsg != "codec unavailable" {
		t.Fatalf("error message = %q", variant.ErrorMsg)
	}
	if _, ok := variant.QualityScore(); ok {
		t.Fatal("failed variant should not expose a quality score")
	}
}

type panickingEncoder struct{}

func (panickingEncoder) Encode(context.Context, *content.Item, content.VariantRequest) (Result, error) {
	panic("encoder went sideways")
}

func TestProcessJobRecoversFromPanic(t *testing.T) {
	h := newHarness(t, panickingEncoder{})
	ctx := context.Background()
	item := videoItem(t, h)

	jobs, err := h.coordinator.QueueJobs(ctx, item.ID, QueueOptions{})
	if err != nil {
		t.Fatalf("QueueJobs: %v", err)
	}
	variant, err := h.coordinator.ProcessJob(ctx, jobs[0])
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if variant.Status != ledger.StatusFailed {
		t.Fatalf("status = %s, want failed after panic", variant.Status)
	}
}

func TestProcessJobPanicStopsHeartbeat(t *testing.T) {
	h := newHarness(t, panickingEncoder{})
	ctx := context.Background()
	item := videoItem(t, h)

	jobs, err := h.coordinator.QueueJobs(ctx, item.ID, QueueOptions{})
	if err != nil {
		t.Fatalf("QueueJobs: %v", err)
	}

	base := runtime.NumGoroutine()
	if _, err := h.coordinator.ProcessJob(ctx, jobs[0]); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > base {
		if time.Now().After(deadline) {
			t.Fatal("heartbeat goroutine still running after recovered panic")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestProcessJobLostClaimRace(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	item := videoItem(t, h)

	jobs, err := h.coordinator.QueueJobs(ctx, item.ID, QueueOptions{})
	if err != nil {
		t.Fatalf("QueueJobs: %v", err)
	}
	job := jobs[0]
	if won, err := h.ledger.MarkProcessing(ctx, job.LedgerID); err != nil || !won {
		t.Fatalf("pre-claim failed: won=%v err=%v", won, err)
	}

	variant, err := h.coordinator.ProcessJob(ctx, job)
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if variant != nil {
		t.Fatalf("lost race should yield no variant, got %+v", variant)
	}
}

func TestProcessJobMissingItemFailsEntry(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	entry, created, err := h.ledger.GetOrCreate(ctx, "ghost-item", content.VariantLowQuality, content.Tier2G)
	if err != nil || !created {
		t.Fatalf("GetOrCreate: created=%v err=%v", created, err)
	}
	variant, err := h.coordinator.ProcessJob(ctx, Job{
		ID:       "test-job",
		ItemID:   "ghost-item",
		LedgerID: entry.ID,
		Request:  content.VariantRequest{Type: content.VariantLowQuality, Tier: content.Tier2G},
	})
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if variant.Status != ledger.StatusFailed {
		t.Fatalf("status = %s, want failed for missing item", variant.Status)
	}
}

func TestJobForEntryRecoversParams(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	item := videoItem(t, h)

	jobs, err := h.coordinator.QueueJobs(ctx, item.ID, QueueOptions{})
	if err != nil {
		t.Fatalf("QueueJobs: %v", err)
	}
	var lowJob Job
	for _, job := range jobs {
		if job.Request.Type == content.VariantLowQuality {
			lowJob = job
			break
		}
	}
	if lowJob.LedgerID == 0 {
		t.Fatal("no low_quality job queued")
	}

	entry, err := h.ledger.GetByID(ctx, lowJob.LedgerID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	rebuilt, err := h.coordinator.JobForEntry(ctx, entry)
	if err != nil {
		t.Fatalf("JobForEntry: %v", err)
	}
	if rebuilt.Request.Params.BitrateKbps != lowJob.Request.Params.BitrateKbps {
		t.Fatalf("rebuilt bitrate = %d, want %d", rebuilt.Request.Params.BitrateKbps, lowJob.Request.Params.BitrateKbps)
	}
	if rebuilt.Request.Params.MaxHeight != lowJob.Request.Params.MaxHeight {
		t.Fatalf("rebuilt height = %d, want %d", rebuilt.Request.Params.MaxHeight, lowJob.Request.Params.MaxHeight)
	}
}

func TestSimulatorTextOnlyCarriesTranscript(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	item := videoItem(t, h)

	sim := NewSimulator(h.registry)
	result, err := sim.Encode(ctx, item, content.VariantRequest{Type: content.VariantTextOnly, Tier: content.TierAny})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if result.InlineText != item.Transcript {
		t.Fatalf("inline text = %q, want the transcript", result.InlineText)
	}
	if result.MimeType != "text/plain" {
		t.Fatalf("mime type = %q", result.MimeType)
	}
}
