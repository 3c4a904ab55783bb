// Package bandwidth reports how much payload a client saves by taking the
// optimized rendition instead of the original.
package bandwidth

import (
	"context"
	"errors"
	"log/slog"

	"lectern/internal/content"
	"lectern/internal/contentstore"
	"lectern/internal/ledger"
	"lectern/internal/logging"
	"lectern/internal/selector"
	"lectern/internal/services"
	"lectern/internal/strategy"
)

// Estimate is the savings report for one item on one network tier.
type Estimate struct {
	OriginalKB     int64
	OptimizedKB    int64
	SavingsPercent float64
	// RecommendedVariant is the ready rendition the estimate is based on.
	// Nil when no variant is ready and the reduction table was used.
	RecommendedVariant *ledger.Variant
}

// Advisor computes bandwidth savings estimates from the ledger, falling back
// to the per-tier reduction table when nothing concrete is ready yet.
type Advisor struct {
	registry *strategy.Registry
	items    *contentstore.Store
	selector *selector.Selector
	logger   *slog.Logger
}

// New constructs an advisor.
func New(registry *strategy.Registry, items *contentstore.Store, sel *selector.Selector, logger *slog.Logger) *Advisor {
	return &Advisor{
		registry: registry,
		items:    items,
		selector: sel,
		logger:   logging.NewComponentLogger(logger, "bandwidth"),
	}
}

// EstimateSavings reports original versus optimized size for the tier. A
// measured ready entry beats the reduction-table estimate; the percentage is
// clamped to zero so an oversized variant never reports negative savings.
func (a *Advisor) EstimateSavings(ctx context.Context, itemID string, tier content.NetworkTier) (Estimate, error) {
	item, err := a.items.Get(ctx, itemID)
	if err != nil {
		return Estimate{}, err
	}
	if item == nil {
		return Estimate{}, services.Wrap(services.ErrNotFound, "bandwidth", "estimate savings",
			"content item "+itemID+" not found", nil)
	}

	strat, _ := a.registry.ForItem(item)
	originalKB := strat.EstimateBandwidthKB(item)
	estimate := Estimate{OriginalKB: originalKB}

	variant, err := a.selector.Select(ctx, itemID, tier, content.PreferenceAuto, selector.Options{})
	switch {
	case err == nil:
		if kb, ok := variant.BandwidthEstimateKB(); ok {
			estimate.OptimizedKB = kb
			estimate.RecommendedVariant = variant
		}
	case errors.Is(err, selector.ErrNoVariants):
		// Nothing ready yet; project from the tier's reduction factor.
	default:
		return Estimate{}, err
	}

	if estimate.RecommendedVariant == nil {
		estimate.OptimizedKB = int64(float64(originalKB) * content.ReductionFactor(tier))
		a.logger.Debug("no ready variant, using reduction table",
			logging.String(logging.FieldItemID, itemID),
			logging.String(logging.FieldTier, string(tier)),
		)
	}

	if originalKB > 0 {
		saved := float64(originalKB-estimate.OptimizedKB) / float64(originalKB) * 100
		if saved > 0 {
			estimate.SavingsPercent = saved
		}
	}
	return estimate, nil
}
