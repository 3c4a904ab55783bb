// Package transcode turns optimization plans into ledger entries and jobs,
// and drives jobs through the encoder to completion. Queuing is a fast ledger
// write; execution is the unit of concurrency.
package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lectern/internal/content"
	"lectern/internal/contentstore"
	"lectern/internal/ledger"
	"lectern/internal/logging"
	"lectern/internal/planner"
	"lectern/internal/strategy"
)

// Priority orders jobs within the worker pool. Lower weight runs sooner.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Weight maps a priority to its numeric rank.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityLow:
		return 10
	default:
		return 5
	}
}

// Job ties a variant request to its ledger entry. Jobs are ephemeral: a crash
// loses nothing because the pending ledger row is the durable record.
type Job struct {
	ID         string
	ItemID     string
	LedgerID   int64
	Request    content.VariantRequest
	Weight     int
	EnqueuedAt time.Time
}

// QueueOptions shapes job production.
type QueueOptions struct {
	Plan     planner.Options
	Priority Priority
}

// ItemStatus is the aggregate processing view for one content item.
type ItemStatus struct {
	Counts  ledger.StatusCounts
	Entries []*ledger.Variant
}

// Coordinator mediates between the planner, the ledger, and the encoder.
type Coordinator struct {
	planner  *planner.Planner
	ledger   *ledger.Store
	items    *contentstore.Store
	registry *strategy.Registry
	encoder  Encoder
	logger   *slog.Logger

	heartbeatInterval time.Duration
}

// NewCoordinator constructs a coordinator.
func NewCoordinator(
	plan *planner.Planner,
	ledgerStore *ledger.Store,
	items *contentstore.Store,
	registry *strategy.Registry,
	encoder Encoder,
	logger *slog.Logger,
	heartbeatInterval time.Duration,
) *Coordinator {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 15 * time.Second
	}
	return &Coordinator{
		planner:           plan,
		ledger:            ledgerStore,
		items:             items,
		registry:          registry,
		encoder:           encoder,
		logger:            logging.NewComponentLogger(logger, "transcode"),
		heartbeatInterval: heartbeatInterval,
	}
}

// QueueJobs runs the planner and creates one job per new or previously-failed
// ledger entry. Entries already pending, processing, or ready are left alone:
// re-requesting a ready variant is a no-op.
func (c *Coordinator) QueueJobs(ctx context.Context, itemID string, opts QueueOptions) ([]Job, error) {
	result, err := c.planner.Plan(ctx, itemID, opts.Plan)
	if err != nil {
		return nil, err
	}

	weight := opts.Priority.Weight()
	now := time.Now().UTC()
	var jobs []Job
	for _, request := range result.Requests {
		entry, created, err := c.ledger.GetOrCreate(ctx, itemID, request.Type, request.Tier)
		if err != nil {
			return nil, err
		}
		runnable := created
		if !created && entry.Status == ledger.StatusFailed {
			requeued, err := c.ledger.RequeueFailed(ctx, entry.ID)
			if err != nil {
				return nil, err
			}
			runnable = requeued
		}
		if !runnable {
			continue
		}
		jobs = append(jobs, Job{
			ID:         uuid.NewString(),
			ItemID:     itemID,
			LedgerID:   entry.ID,
			Request:    request,
			Weight:     weight,
			EnqueuedAt: now,
		})
	}

	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].Weight < jobs[j].Weight })

	c.logger.Info("queued transcoding jobs",
		logging.String(logging.FieldItemID, itemID),
		logging.Int("requested", len(result.Requests)),
		logging.Int("jobs", len(jobs)),
	)
	return jobs, nil
}

// ProcessJob drives one job through the encoder. It never returns an encoder
// failure: errors and panics alike are recorded on the ledger entry via
// MarkFailed, and the failed entry is returned. A lost claim race returns
// (nil, nil).
func (c *Coordinator) ProcessJob(ctx context.Context, job Job) (variant *ledger.Variant, err error) {
	won, err := c.ledger.MarkProcessing(ctx, job.LedgerID)
	if err != nil {
		return nil, err
	}
	if !won {
		c.logger.Debug("ledger entry already claimed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Int64("ledger_id", job.LedgerID),
		)
		return nil, nil
	}

	item, err := c.items.Get(ctx, job.ItemID)
	if err != nil || item == nil {
		msg := "content item missing"
		if err != nil {
			msg = err.Error()
		}
		if failErr := c.ledger.MarkFailed(ctx, job.LedgerID, msg); failErr != nil {
			return nil, failErr
		}
		return c.ledger.GetByID(ctx, job.LedgerID)
	}

	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("panic during encode: %v", rec)
			if failErr := c.ledger.MarkFailed(ctx, job.LedgerID, msg); failErr != nil {
				err = failErr
				return
			}
			variant, err = c.ledger.GetByID(ctx, job.LedgerID)
		}
	}()

	stopHeartbeat := c.startHeartbeat(ctx, job.LedgerID)
	defer stopHeartbeat()
	result, encodeErr := c.encoder.Encode(ctx, item, job.Request)

	if encodeErr != nil {
		if failErr := c.ledger.MarkFailed(ctx, job.LedgerID, encodeErr.Error()); failErr != nil {
			return nil, failErr
		}
		c.logger.Warn("encode failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldItemID, job.ItemID),
			logging.String(logging.FieldVariant, string(job.Request.Type)),
			logging.String(logging.FieldTier, string(job.Request.Tier)),
			logging.Error(encodeErr),
		)
		return c.ledger.GetByID(ctx, job.LedgerID)
	}

	meta := ledger.ReadyMetadata{
		MimeType:            result.MimeType,
		ByteSize:            result.ByteSize,
		Width:               result.Width,
		Height:              result.Height,
		BitrateKbps:         result.BitrateKbps,
		Codec:               result.Codec,
		FileRef:             result.FileRef,
		InlineText:          result.InlineText,
		ExternalURL:         result.ExternalURL,
		QualityScore:        result.QualityScore,
		BandwidthEstimateKB: bytesToKB(result.ByteSize),
	}
	if err := c.ledger.MarkReady(ctx, job.LedgerID, meta); err != nil {
		// Bad encoder output must not strand the entry in processing.
		if failErr := c.ledger.MarkFailed(ctx, job.LedgerID, err.Error()); failErr != nil {
			return nil, failErr
		}
		return c.ledger.GetByID(ctx, job.LedgerID)
	}

	c.logger.Info("variant ready",
		logging.String(logging.FieldItemID, job.ItemID),
		logging.String(logging.FieldVariant, string(job.Request.Type)),
		logging.String(logging.FieldTier, string(job.Request.Tier)),
		logging.Int64("size_kb", meta.BandwidthEstimateKB),
	)
	return c.ledger.GetByID(ctx, job.LedgerID)
}

// Status returns the aggregate view used for operational visibility.
func (c *Coordinator) Status(ctx context.Context, itemID string) (ItemStatus, error) {
	counts, err := c.ledger.Counts(ctx, itemID)
	if err != nil {
		return ItemStatus{}, err
	}
	entries, err := c.ledger.ByItem(ctx, itemID)
	if err != nil {
		return ItemStatus{}, err
	}
	return ItemStatus{Counts: counts, Entries: entries}, nil
}

// JobForEntry rebuilds a job for a pending ledger entry after a restart. The
// encode parameters are recovered from the strategy's current plan; an entry
// whose request no longer appears in the plan gets a bare request.
func (c *Coordinator) JobForEntry(ctx context.Context, entry *ledger.Variant) (Job, error) {
	request := content.VariantRequest{Type: entry.Type, Tier: entry.Tier}
	item, err := c.items.Get(ctx, entry.ItemID)
	if err != nil {
		return Job{}, err
	}
	if item != nil {
		strat, _ := c.registry.ForItem(item)
		plan := strat.PlanOptimization(item, strategy.PlanOptions{})
		for _, planned := range plan.Requests {
			if planned.Type == entry.Type && planned.Tier == entry.Tier {
				request = planned
				break
			}
		}
	}
	return Job{
		ID:         uuid.NewString(),
		ItemID:     entry.ItemID,
		LedgerID:   entry.ID,
		Request:    request,
		Weight:     PriorityNormal.Weight(),
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

func (c *Coordinator) startHeartbeat(ctx context.Context, ledgerID int64) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.ledger.UpdateHeartbeat(ctx, ledgerID); err != nil {
					c.logger.Warn("heartbeat update failed",
						logging.Int64("ledger_id", ledgerID),
						logging.Error(err),
					)
				}
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func bytesToKB(size int64) int64 {
	if size <= 0 {
		return 0
	}
	kb := size / 1024
	if size%1024 != 0 {
		kb++
	}
	return kb
}
