// Package selector answers delivery requests from the variant ledger. It is a
// pure read: given a network tier, a quality preference, and an optional byte
// budget, it walks a fixed preference order over the ready entries and picks
// the first acceptable rendition.
package selector

import (
	"context"
	"errors"
	"log/slog"

	"lectern/internal/content"
	"lectern/internal/ledger"
	"lectern/internal/logging"
)

// ErrNoVariants reports that a content item has no ready rendition at all.
// The delivery layer treats it as "serve the original or a placeholder".
var ErrNoVariants = errors.New("no ready variants")

// Options refines a selection.
type Options struct {
	// MaxBandwidthKB caps the rendition size. Zero means unconstrained.
	MaxBandwidthKB int64
}

// Selector picks the single best ready variant for a delivery context.
type Selector struct {
	ledger *ledger.Store
	logger *slog.Logger
}

// New constructs a selector over the ledger store.
func New(store *ledger.Store, logger *slog.Logger) *Selector {
	return &Selector{
		ledger: store,
		logger: logging.NewComponentLogger(logger, "selector"),
	}
}

// autoOrders derive the preference order purely from the network tier.
// Constrained tiers lead with the cheapest useful rendition; fast tiers lead
// with full quality.
var autoOrders = map[content.NetworkTier][]content.VariantType{
	content.Tier2G: {
		content.VariantTextOnly,
		content.VariantLowQuality,
		content.VariantCompressed,
		content.VariantAudioOnly,
		content.VariantThumbnail,
	},
	content.Tier3G: {
		content.VariantLowQuality,
		content.VariantCompressed,
		content.VariantMediumQuality,
		content.VariantTextOnly,
		content.VariantThumbnail,
	},
	content.Tier4G: {
		content.VariantMediumQuality,
		content.VariantHighQuality,
		content.VariantLowQuality,
		content.VariantCompressed,
		content.VariantPreview,
	},
	content.Tier5G: {
		content.VariantHighQuality,
		content.VariantOriginal,
		content.VariantMediumQuality,
		content.VariantLowQuality,
	},
	content.TierWifi: {
		content.VariantHighQuality,
		content.VariantOriginal,
		content.VariantMediumQuality,
		content.VariantLowQuality,
	},
	content.TierAny: {
		content.VariantMediumQuality,
		content.VariantLowQuality,
		content.VariantCompressed,
		content.VariantTextOnly,
	},
}

// preferenceOrders maps an explicit quality preference to its ladder. The
// ladder degrades toward cheaper renditions so a constrained client still
// receives something close to the request.
var preferenceOrders = map[content.QualityPreference][]content.VariantType{
	content.PreferenceLow: {
		content.VariantLowQuality,
		content.VariantCompressed,
		content.VariantTextOnly,
		content.VariantThumbnail,
	},
	content.PreferenceMedium: {
		content.VariantMediumQuality,
		content.VariantLowQuality,
		content.VariantCompressed,
		content.VariantTextOnly,
	},
	content.PreferenceHigh: {
		content.VariantHighQuality,
		content.VariantOriginal,
		content.VariantMediumQuality,
		content.VariantLowQuality,
	},
}

// PreferenceOrder exposes the lookup used by Select. Auto derives the order
// from the tier; explicit preferences use their quality ladder.
func PreferenceOrder(tier content.NetworkTier, pref content.QualityPreference) []content.VariantType {
	if pref == content.PreferenceAuto || pref == "" {
		if order, ok := autoOrders[tier]; ok {
			return order
		}
		return autoOrders[content.TierAny]
	}
	if order, ok := preferenceOrders[pref]; ok {
		return order
	}
	return autoOrders[content.TierAny]
}

// Select returns the best ready variant for the delivery context, or
// ErrNoVariants when the item has nothing ready. For each variant type in the
// preference order a tier-exact entry beats one tagged any, regardless of
// quality score. First fit under the budget wins; when nothing fits, the
// globally smallest ready entry is returned so the client never gets an empty
// delivery while data exists.
func (s *Selector) Select(ctx context.Context, itemID string, tier content.NetworkTier, pref content.QualityPreference, opts Options) (*ledger.Variant, error) {
	ready, err := s.ledger.ReadyByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if len(ready) == 0 {
		return nil, ErrNoVariants
	}

	for _, vtype := range PreferenceOrder(tier, pref) {
		candidate := matchType(ready, vtype, tier)
		if candidate == nil {
			continue
		}
		if withinBudget(candidate, opts.MaxBandwidthKB) {
			return candidate, nil
		}
	}

	smallest := smallestReady(ready)
	s.logger.Debug("budget exhausted, serving smallest ready variant",
		logging.String(logging.FieldItemID, itemID),
		logging.String(logging.FieldVariant, string(smallest.Type)),
		logging.String(logging.FieldTier, string(smallest.Tier)),
		logging.Int64("budget_kb", opts.MaxBandwidthKB),
	)
	return smallest, nil
}

func matchType(ready []*ledger.Variant, vtype content.VariantType, tier content.NetworkTier) *ledger.Variant {
	var anyMatch *ledger.Variant
	for _, entry := range ready {
		if entry.Type != vtype {
			continue
		}
		if entry.Tier == tier {
			return entry
		}
		if entry.Tier == content.TierAny && anyMatch == nil {
			anyMatch = entry
		}
	}
	return anyMatch
}

func withinBudget(entry *ledger.Variant, maxKB int64) bool {
	if maxKB <= 0 {
		return true
	}
	kb, ok := entry.BandwidthEstimateKB()
	if !ok {
		return false
	}
	return kb <= maxKB
}

func smallestReady(ready []*ledger.Variant) *ledger.Variant {
	best := ready[0]
	bestKB, _ := best.BandwidthEstimateKB()
	for _, entry := range ready[1:] {
		kb, ok := entry.BandwidthEstimateKB()
		if !ok {
			continue
		}
		if kb < bestKB {
			best = entry
			bestKB = kb
		}
	}
	return best
}
