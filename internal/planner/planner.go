// Package planner turns one content item into an ordered list of variant
// requests by delegating to the category strategy, enforcing the cross-cutting
// tier-narrowing, size-cap, and text-alternative rules.
package planner

import (
	"context"
	"log/slog"
	"strings"

	"lectern/internal/content"
	"lectern/internal/contentstore"
	"lectern/internal/logging"
	"lectern/internal/services"
	"lectern/internal/strategy"
)

// Options narrows and extends a plan.
type Options struct {
	// TargetTier restricts the plan to one tier plus tier-independent
	// variants. Empty requests the full ladder.
	TargetTier content.NetworkTier
	// MaxFileSizeKB drops requests whose projected size exceeds the cap.
	// Zero means uncapped.
	MaxFileSizeKB int64
	// WantTextAlternative forces a text_only request and persists the derived
	// text onto the item.
	WantTextAlternative bool
}

// Result is a validated, executable optimization plan.
type Result struct {
	Item               *content.Item
	Requests           []content.VariantRequest
	TextAlternative    string
	HasTextAlternative bool
	Warnings           []string
}

// Planner resolves strategies and produces optimization plans.
type Planner struct {
	registry *strategy.Registry
	items    *contentstore.Store
	logger   *slog.Logger
}

// New constructs a planner.
func New(registry *strategy.Registry, items *contentstore.Store, logger *slog.Logger) *Planner {
	return &Planner{
		registry: registry,
		items:    items,
		logger:   logging.NewComponentLogger(logger, "planner"),
	}
}

// Plan loads the item, validates it, and produces the variant requests. A
// validation failure aborts before any ledger write; the derived text
// alternative is persisted onto the item as a side effect when requested.
func (p *Planner) Plan(ctx context.Context, itemID string, opts Options) (*Result, error) {
	item, err := p.items.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, services.Wrap(services.ErrNotFound, "planner", "load item", itemID, nil)
	}

	strat, known := p.registry.ForItem(item)
	if !known {
		// The text strategy absorbs unmapped categories; surface the anomaly
		// instead of failing delivery.
		p.logger.Warn("unknown content category, using text strategy",
			logging.String(logging.FieldItemID, item.ID),
			logging.String("category", string(item.Category)),
			logging.String(logging.FieldEventType, "category_fallback"),
		)
	}

	validation := strat.Validate(item)
	if !validation.Valid {
		return nil, services.Wrap(services.ErrValidation, "planner", "pre-check",
			strings.Join(validation.Errors, "; "), nil)
	}

	plan := strat.PlanOptimization(item, strategy.PlanOptions{TargetTier: opts.TargetTier})
	requests := dedupeRequests(plan.Requests)

	result := &Result{
		Item:               item,
		TextAlternative:    plan.TextAlternative,
		HasTextAlternative: plan.HasTextAlternative,
		Warnings:           validation.Warnings,
	}

	if opts.WantTextAlternative {
		if alt, ok := strat.DeriveTextAlternative(item); ok {
			result.TextAlternative = alt
			result.HasTextAlternative = true
			if !hasRequest(requests, content.VariantTextOnly, content.TierAny) {
				requests = append(requests, content.VariantRequest{
					Type: content.VariantTextOnly,
					Tier: content.TierAny,
				})
			}
			if err := p.items.SetTextAlternative(ctx, item.ID, alt); err != nil {
				return nil, err
			}
			item.TextAlternative = alt
			item.HasTextAlternative = true
		}
	}

	if opts.MaxFileSizeKB > 0 {
		originalKB := strat.EstimateBandwidthKB(item)
		kept := requests[:0]
		for _, req := range requests {
			if projectSizeKB(originalKB, req) <= opts.MaxFileSizeKB {
				kept = append(kept, req)
				continue
			}
			p.logger.Debug("dropping variant request over size cap",
				logging.String(logging.FieldItemID, item.ID),
				logging.String(logging.FieldVariant, string(req.Type)),
				logging.String(logging.FieldTier, string(req.Tier)),
				logging.Int64("cap_kb", opts.MaxFileSizeKB),
			)
		}
		requests = kept
	}

	result.Requests = requests
	return result, nil
}

// projectSizeKB estimates a request's output size before any encode happens.
// Text renditions are effectively free next to media payloads.
func projectSizeKB(originalKB int64, req content.VariantRequest) int64 {
	if req.Type == content.VariantTextOnly {
		return 1
	}
	projected := int64(float64(originalKB) * content.ReductionFactor(req.Tier))
	if projected < 1 {
		projected = 1
	}
	return projected
}

func dedupeRequests(requests []content.VariantRequest) []content.VariantRequest {
	seen := make(map[string]struct{}, len(requests))
	out := make([]content.VariantRequest, 0, len(requests))
	for _, req := range requests {
		key := string(req.Type) + "@" + string(req.Tier)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, req)
	}
	return out
}

func hasRequest(requests []content.VariantRequest, vtype content.VariantType, tier content.NetworkTier) bool {
	for _, req := range requests {
		if req.Type == vtype && req.Tier == tier {
			return true
		}
	}
	return false
}
