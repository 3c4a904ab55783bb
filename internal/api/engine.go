// Package api assembles the delivery engine behind one facade. The CLI and
// any embedding service talk to Engine instead of wiring the planner, ledger,
// coordinator, selector, and advisor individually.
package api

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"lectern/internal/bandwidth"
	"lectern/internal/config"
	"lectern/internal/content"
	"lectern/internal/contentstore"
	"lectern/internal/ledger"
	"lectern/internal/planner"
	"lectern/internal/selector"
	"lectern/internal/services"
	"lectern/internal/strategy"
	"lectern/internal/transcode"
)

// Engine owns the stores and engine components for one data directory.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	items       *contentstore.Store
	ledger      *ledger.Store
	registry    *strategy.Registry
	planner     *planner.Planner
	coordinator *transcode.Coordinator
	selector    *selector.Selector
	advisor     *bandwidth.Advisor
	pool        *transcode.Pool
	encoder     transcode.Encoder
}

// Open builds a fully wired engine over the configured data directory. The
// simulator encoder is the default; Options.Encoder swaps in a real one.
func Open(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	items, err := contentstore.Open(cfg)
	if err != nil {
		return nil, err
	}
	ledgerStore, err := ledger.Open(cfg)
	if err != nil {
		items.Close()
		return nil, err
	}

	limits := strategy.DefaultLimits()
	limits.MaxTextLength = cfg.Delivery.MaxTextLength
	limits.PreviewSeconds = cfg.Delivery.PreviewSeconds
	limits.DocumentPreviewPages = cfg.Delivery.DocumentPreview
	limits.DefaultLanguage = cfg.Delivery.DefaultLanguage
	registry := strategy.NewRegistry(limits)

	eng := &Engine{
		cfg:      cfg,
		logger:   logger,
		items:    items,
		ledger:   ledgerStore,
		registry: registry,
	}
	for _, opt := range opts {
		opt(eng)
	}

	plan := planner.New(registry, items, logger)
	encoder := eng.encoderOrDefault()
	heartbeat := time.Duration(cfg.Workflow.HeartbeatInterval) * time.Second
	eng.planner = plan
	eng.coordinator = transcode.NewCoordinator(plan, ledgerStore, items, registry, encoder, logger, heartbeat)
	eng.selector = selector.New(ledgerStore, logger)
	eng.advisor = bandwidth.New(registry, items, eng.selector, logger)
	eng.pool = transcode.NewPool(eng.coordinator, ledgerStore, transcode.PoolConfig{
		Workers:          cfg.Workflow.Workers,
		PollInterval:     time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		HeartbeatTimeout: time.Duration(cfg.Workflow.HeartbeatTimeout) * time.Second,
	}, logger)
	return eng, nil
}

func (e *Engine) applyPlanDefaults(opts planner.Options) planner.Options {
	if e.cfg.Delivery.TextAlternatives {
		opts.WantTextAlternative = true
	}
	return opts
}

func (e *Engine) encoderOrDefault() transcode.Encoder {
	if e.encoder != nil {
		return e.encoder
	}
	return transcode.NewSimulator(e.registry)
}

// Option customizes engine construction.
type Option func(*Engine)

// WithEncoder replaces the default simulator encoder.
func WithEncoder(encoder transcode.Encoder) Option {
	return func(e *Engine) {
		e.encoder = encoder
	}
}

// Close releases both stores.
func (e *Engine) Close() error {
	return errors.Join(e.items.Close(), e.ledger.Close())
}

// AddItem persists a new content item after strategy validation. Warnings are
// returned alongside the stored item; errors abort the write.
func (e *Engine) AddItem(ctx context.Context, item *content.Item) (*content.Item, []string, error) {
	strat, _ := e.registry.ForItem(item)
	result := strat.Validate(item)
	if !result.Valid {
		return nil, result.Warnings, services.Wrap(services.ErrValidation, "api", "add item",
			"content failed validation: "+strings.Join(result.Errors, "; "), nil)
	}
	stored, err := e.items.Create(ctx, item)
	if err != nil {
		return nil, nil, err
	}
	return stored, result.Warnings, nil
}

// GetItem fetches one item; nil when absent.
func (e *Engine) GetItem(ctx context.Context, id string) (*content.Item, error) {
	return e.items.Get(ctx, id)
}

// ListItems fetches items, optionally filtered by category.
func (e *Engine) ListItems(ctx context.Context, category content.Category) ([]*content.Item, error) {
	return e.items.List(ctx, category)
}

// RemoveItem deletes an item and its ledger entries.
func (e *Engine) RemoveItem(ctx context.Context, id string) (bool, error) {
	removed, err := e.items.Remove(ctx, id)
	if err != nil || !removed {
		return removed, err
	}
	if _, err := e.ledger.Cleanup(ctx, id, nil); err != nil {
		return true, err
	}
	return true, nil
}

// CheckAccessibility runs the category's accessibility checks.
func (e *Engine) CheckAccessibility(ctx context.Context, id string) (strategy.AccessibilityReport, error) {
	item, err := e.items.Get(ctx, id)
	if err != nil {
		return strategy.AccessibilityReport{}, err
	}
	if item == nil {
		return strategy.AccessibilityReport{}, services.Wrap(services.ErrNotFound, "api", "check accessibility",
			"content item "+id+" not found", nil)
	}
	strat, _ := e.registry.ForItem(item)
	return strat.CheckAccessibility(item), nil
}

// PlanContent runs the optimization planner without touching the ledger.
// The delivery.text_alternatives config default applies unless the caller
// already asked for one.
func (e *Engine) PlanContent(ctx context.Context, id string, opts planner.Options) (*planner.Result, error) {
	return e.planner.Plan(ctx, id, e.applyPlanDefaults(opts))
}

// QueueJobs plans and records ledger entries, returning the produced jobs.
func (e *Engine) QueueJobs(ctx context.Context, id string, opts transcode.QueueOptions) ([]transcode.Job, error) {
	opts.Plan = e.applyPlanDefaults(opts.Plan)
	return e.coordinator.QueueJobs(ctx, id, opts)
}

// QueueAndProcess plans, queues, and synchronously drains every produced job.
// The one-shot path for the CLI; daemons use StartWorkers instead.
func (e *Engine) QueueAndProcess(ctx context.Context, id string, opts transcode.QueueOptions) (transcode.ItemStatus, error) {
	opts.Plan = e.applyPlanDefaults(opts.Plan)
	jobs, err := e.coordinator.QueueJobs(ctx, id, opts)
	if err != nil {
		return transcode.ItemStatus{}, err
	}
	e.pool.Submit(jobs...)
	if _, err := e.pool.Drain(ctx); err != nil {
		return transcode.ItemStatus{}, err
	}
	return e.coordinator.Status(ctx, id)
}

// ItemStatus reports ledger counts and entries for one item.
func (e *Engine) ItemStatus(ctx context.Context, id string) (transcode.ItemStatus, error) {
	return e.coordinator.Status(ctx, id)
}

// SelectVariant picks the best ready rendition for a delivery context.
func (e *Engine) SelectVariant(ctx context.Context, id string, tier content.NetworkTier, pref content.QualityPreference, opts selector.Options) (*ledger.Variant, error) {
	return e.selector.Select(ctx, id, tier, pref, opts)
}

// EstimateSavings reports original versus optimized payload for the tier.
func (e *Engine) EstimateSavings(ctx context.Context, id string, tier content.NetworkTier) (bandwidth.Estimate, error) {
	return e.advisor.EstimateSavings(ctx, id, tier)
}

// RetryFailed resets the item's failed entries to pending and reports how
// many were reset. Ready, pending, and processing entries are untouched.
func (e *Engine) RetryFailed(ctx context.Context, id string) (int64, error) {
	return e.ledger.RetryFailed(ctx, id)
}

// Cleanup removes the item's variants except those whose type is listed.
func (e *Engine) Cleanup(ctx context.Context, id string, keepTypes []content.VariantType) (int64, error) {
	return e.ledger.Cleanup(ctx, id, keepTypes)
}

// StartWorkers launches the background pool; Drain-style callers skip this.
func (e *Engine) StartWorkers(ctx context.Context) {
	e.pool.Start(ctx)
}

// StopWorkers halts the pool and waits for in-flight jobs.
func (e *Engine) StopWorkers() {
	e.pool.Stop()
}

// Render produces the display representation for an item.
func (e *Engine) Render(ctx context.Context, id string, opts strategy.RenderOptions) (strategy.Rendered, error) {
	item, err := e.items.Get(ctx, id)
	if err != nil {
		return strategy.Rendered{}, err
	}
	if item == nil {
		return strategy.Rendered{}, services.Wrap(services.ErrNotFound, "api", "render",
			"content item "+id+" not found", nil)
	}
	strat, _ := e.registry.ForItem(item)
	return strat.Render(item, opts), nil
}
