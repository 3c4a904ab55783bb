package bandwidth

import (
	"context"
	"errors"
	"math"
	"testing"

	"lectern/internal/content"
	"lectern/internal/contentstore"
	"lectern/internal/ledger"
	"lectern/internal/logging"
	"lectern/internal/selector"
	"lectern/internal/services"
	"lectern/internal/strategy"
	"lectern/internal/testsupport"
)

type fixture struct {
	advisor *Advisor
	items   *contentstore.Store
	ledger  *ledger.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	items := testsupport.MustOpenItems(t, cfg)
	store := testsupport.MustOpenLedger(t, cfg)
	registry := strategy.NewRegistry(strategy.DefaultLimits())
	sel := selector.New(store, logging.NewNop())
	return &fixture{
		advisor: New(registry, items, sel, logging.NewNop()),
		items:   items,
		ledger:  store,
	}
}

func (f *fixture) seedReady(t *testing.T, itemID string, vtype content.VariantType, tier content.NetworkTier, sizeKB int64) {
	t.Helper()
	ctx := context.Background()
	entry, _, err := f.ledger.GetOrCreate(ctx, itemID, vtype, tier)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := f.ledger.MarkProcessing(ctx, entry.ID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	meta := ledger.ReadyMetadata{
		MimeType:            "video/mp4",
		ByteSize:            sizeKB * 1024,
		FileRef:             "variants/" + itemID + "/" + string(vtype),
		QualityScore:        50,
		BandwidthEstimateKB: sizeKB,
	}
	if err := f.ledger.MarkReady(ctx, entry.ID, meta); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
}

func TestEstimateSavingsFromReductionTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 600 seconds of video at the medium-quality heuristic is 112500 KB.
	item := testsupport.NewItem(t, f.items, &content.Item{
		Title:           "Lecture",
		Category:        content.CategoryVideo,
		SourceRef:       "media/lecture.mkv",
		DurationSeconds: 600,
	})

	est, err := f.advisor.EstimateSavings(ctx, item.ID, content.Tier2G)
	if err != nil {
		t.Fatalf("EstimateSavings: %v", err)
	}
	if est.OriginalKB != 112500 {
		t.Fatalf("original = %d, want 112500", est.OriginalKB)
	}
	if est.OptimizedKB != 5625 {
		t.Fatalf("optimized = %d, want 5 percent of original", est.OptimizedKB)
	}
	if math.Abs(est.SavingsPercent-95) > 0.01 {
		t.Fatalf("savings = %.2f, want 95", est.SavingsPercent)
	}
	if est.RecommendedVariant != nil {
		t.Fatal("no variant is ready; recommendation must be nil")
	}
}

func TestEstimateSavingsPrefersMeasuredVariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := testsupport.NewItem(t, f.items, &content.Item{
		Title:           "Lecture",
		Category:        content.CategoryVideo,
		SourceRef:       "media/lecture.mkv",
		DurationSeconds: 600,
	})
	f.seedReady(t, item.ID, content.VariantLowQuality, content.Tier2G, 4000)

	est, err := f.advisor.EstimateSavings(ctx, item.ID, content.Tier2G)
	if err != nil {
		t.Fatalf("EstimateSavings: %v", err)
	}
	if est.OptimizedKB != 4000 {
		t.Fatalf("optimized = %d, want the measured 4000", est.OptimizedKB)
	}
	if est.RecommendedVariant == nil || est.RecommendedVariant.Type != content.VariantLowQuality {
		t.Fatalf("recommendation = %+v", est.RecommendedVariant)
	}
}

func TestEstimateSavingsClampedAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Tiny original, oversized variant: savings must not go negative.
	item := testsupport.NewItem(t, f.items, &content.Item{
		Title:    "Note",
		Category: content.CategoryText,
		Body:     "short",
	})
	f.seedReady(t, item.ID, content.VariantTextOnly, content.TierAny, 500)

	est, err := f.advisor.EstimateSavings(ctx, item.ID, content.Tier2G)
	if err != nil {
		t.Fatalf("EstimateSavings: %v", err)
	}
	if est.SavingsPercent != 0 {
		t.Fatalf("savings = %.2f, want clamped 0", est.SavingsPercent)
	}
}

func TestEstimateSavingsMissingItem(t *testing.T) {
	f := newFixture(t)

	_, err := f.advisor.EstimateSavings(context.Background(), "ghost", content.Tier4G)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
