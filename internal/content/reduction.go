package content

// reductionFactors maps a network tier to the expected optimized payload size
// as a fraction of the original. Used for projections before any concrete
// variant exists; measured ledger sizes always win over these.
var reductionFactors = map[NetworkTier]float64{
	Tier2G:   0.05,
	Tier3G:   0.15,
	Tier4G:   0.40,
	Tier5G:   0.80,
	TierWifi: 0.80,
	// Tier-independent variants (thumbnails, previews, text) are small.
	TierAny: 0.10,
}

// ReductionFactor returns the projected optimized-size fraction for a tier.
func ReductionFactor(tier NetworkTier) float64 {
	if factor, ok := reductionFactors[tier]; ok {
		return factor
	}
	return 1
}
