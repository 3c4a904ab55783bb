package strategy

import (
	"strings"
	"testing"

	"lectern/internal/content"
)

func testItem(category content.Category) *content.Item {
	return &content.Item{
		ID:        "item-1",
		Title:     "Photosynthesis",
		Category:  category,
		SourceRef: "media/photosynthesis.bin",
		Status:    content.ItemPublished,
	}
}

func requestTypes(plan Plan) map[content.VariantType]bool {
	types := make(map[content.VariantType]bool, len(plan.Requests))
	for _, req := range plan.Requests {
		types[req.Type] = true
	}
	return types
}

func TestPlanTypesAreSubsetOfRequired(t *testing.T) {
	registry := NewRegistry(DefaultLimits())
	for _, category := range content.AllCategories() {
		t.Run(string(category), func(t *testing.T) {
			item := testItem(category)
			item.Body = "starter"
			item.CodeLanguage = "python"
			item.AltText = "a labeled diagram of a leaf"
			item.Transcript = "full transcript"
			item.DurationSeconds = 120

			s, known := registry.ForCategory(category)
			if !known {
				t.Fatalf("category %s not registered", category)
			}

			allowed := map[content.VariantType]bool{content.VariantTextOnly: true}
			for _, vt := range s.RequiredVariantTypes() {
				allowed[vt] = true
			}
			plan := s.PlanOptimization(item, PlanOptions{})
			for _, req := range plan.Requests {
				if !allowed[req.Type] {
					t.Errorf("plan contains %s, not in required set", req.Type)
				}
				if err := req.Params.Validate(); err != nil {
					t.Errorf("request %s has invalid params: %v", req, err)
				}
			}
		})
	}
}

func TestVideoPlanFullLadder(t *testing.T) {
	s := newVideoStrategy(DefaultLimits())
	item := testItem(content.CategoryVideo)
	item.DurationSeconds = 600 // 10 minutes, no transcript

	plan := s.PlanOptimization(item, PlanOptions{})
	types := requestTypes(plan)
	for _, want := range []content.VariantType{
		content.VariantThumbnail,
		content.VariantPreview,
		content.VariantLowQuality,
		content.VariantMediumQuality,
		content.VariantHighQuality,
		content.VariantAudioOnly,
	} {
		if !types[want] {
			t.Errorf("full ladder missing %s", want)
		}
	}
	if types[content.VariantTextOnly] {
		t.Error("text_only planned without a transcript")
	}

	for _, req := range plan.Requests {
		switch req.Type {
		case content.VariantPreview:
			if req.Params.MaxDurationSeconds <= 0 || req.Params.MaxDurationSeconds > 30 {
				t.Errorf("preview duration cap = %d, want 1-30", req.Params.MaxDurationSeconds)
			}
		case content.VariantLowQuality:
			if req.Tier != content.Tier2G {
				t.Errorf("low quality tier = %s, want 2g", req.Tier)
			}
		case content.VariantMediumQuality:
			if req.Tier != content.Tier4G {
				t.Errorf("medium quality tier = %s, want 4g", req.Tier)
			}
		case content.VariantHighQuality:
			if req.Tier != content.TierWifi {
				t.Errorf("high quality tier = %s, want wifi", req.Tier)
			}
		case content.VariantAudioOnly:
			if req.Tier != content.Tier2G {
				t.Errorf("audio only tier = %s, want 2g", req.Tier)
			}
		}
	}
}

func TestVideoPlanTargetTierNarrowing(t *testing.T) {
	s := newVideoStrategy(DefaultLimits())
	item := testItem(content.CategoryVideo)
	item.DurationSeconds = 600

	plan := s.PlanOptimization(item, PlanOptions{TargetTier: content.Tier4G})
	for _, req := range plan.Requests {
		if req.Tier != content.Tier4G && req.Tier != content.TierAny {
			t.Errorf("narrowed plan contains %s at tier %s", req.Type, req.Tier)
		}
	}
	types := requestTypes(plan)
	if !types[content.VariantMediumQuality] {
		t.Error("narrowed plan missing medium_quality@4g")
	}
	if !types[content.VariantThumbnail] {
		t.Error("narrowed plan dropped tier-independent thumbnail")
	}
}

func TestVideoAccessibilityFlagsCaptionsAndTranscript(t *testing.T) {
	s := newVideoStrategy(DefaultLimits())
	item := testItem(content.CategoryVideo)
	item.DurationSeconds = 600

	report := s.CheckAccessibility(item)
	joined := strings.Join(report.Issues, "; ")
	if !strings.Contains(joined, "missing captions") {
		t.Errorf("expected missing captions flag, got %q", joined)
	}
	if !strings.Contains(joined, "missing transcript") {
		t.Errorf("expected missing transcript flag, got %q", joined)
	}
	if report.Accessible() {
		t.Error("report should not be accessible")
	}
}

func TestImageShortAltTextWarnsButValidates(t *testing.T) {
	s := newImageStrategy(DefaultLimits())
	item := testItem(content.CategoryImage)
	item.AltText = "img"

	result := s.Validate(item)
	if !result.Valid {
		t.Fatalf("expected valid, got errors %v", result.Errors)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "alt text seems too short") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected short alt text warning, got %v", result.Warnings)
	}

	report := s.CheckAccessibility(item)
	if report.Accessible() {
		t.Error("generic alt text should fail accessibility")
	}
}

func TestImageMissingAltTextFailsValidation(t *testing.T) {
	s := newImageStrategy(DefaultLimits())
	item := testItem(content.CategoryImage)

	result := s.Validate(item)
	if result.Valid {
		t.Fatal("expected validation failure without alt text")
	}
}

func TestDeriveTextAlternativeIdempotent(t *testing.T) {
	registry := NewRegistry(DefaultLimits())
	for _, category := range content.AllCategories() {
		item := testItem(category)
		item.DurationSeconds = 95
		item.Description = "An overview of light-dependent reactions"

		s, _ := registry.ForCategory(category)
		first, ok1 := s.DeriveTextAlternative(item)
		second, ok2 := s.DeriveTextAlternative(item)
		if ok1 != ok2 || first != second {
			t.Errorf("%s: derivation not idempotent: %q vs %q", category, first, second)
		}
	}
}

func TestAudioTranscriptPreferredOverSynthesis(t *testing.T) {
	s := newAudioStrategy(DefaultLimits())
	item := testItem(content.CategoryAudio)
	item.Transcript = "spoken word transcript"

	alt, ok := s.DeriveTextAlternative(item)
	if !ok || alt != "spoken word transcript" {
		t.Fatalf("expected transcript passthrough, got %q", alt)
	}
}

func TestEstimateBandwidthHeuristics(t *testing.T) {
	limits := DefaultLimits()
	cases := []struct {
		name string
		s    Strategy
		item *content.Item
		want int64
	}{
		{
			name: "video by duration",
			s:    newVideoStrategy(limits),
			item: &content.Item{Category: content.CategoryVideo, DurationSeconds: 600},
			want: 112500, // 600 * 187.5
		},
		{
			name: "audio by duration",
			s:    newAudioStrategy(limits),
			item: &content.Item{Category: content.CategoryAudio, DurationSeconds: 300},
			want: 4800, // 300 * 16
		},
		{
			name: "byte size wins",
			s:    newVideoStrategy(limits),
			item: &content.Item{Category: content.CategoryVideo, ByteSize: 2048 * 1024, DurationSeconds: 600},
			want: 2048,
		},
		{
			name: "document by pages",
			s:    newDocumentStrategy(limits),
			item: &content.Item{Category: content.CategoryDocument, PageCount: 12},
			want: 1200,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.s.EstimateBandwidthKB(tc.item); got != tc.want {
				t.Fatalf("estimate = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRichTextEstimateCarriesOverhead(t *testing.T) {
	s := newTextStrategy(DefaultLimits())
	body := strings.Repeat("a", 10*1024)

	plain := s.EstimateBandwidthKB(&content.Item{Body: body, Format: content.FormatPlain})
	rich := s.EstimateBandwidthKB(&content.Item{Body: body, Format: content.FormatMarkdown})
	if plain != 10 {
		t.Fatalf("plain estimate = %d, want 10", plain)
	}
	if rich != 12 {
		t.Fatalf("rich estimate = %d, want 12 (plain +20%%)", rich)
	}
}

func TestTextValidateEnforcesMaxLength(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxTextLength = 10
	s := newTextStrategy(limits)

	result := s.Validate(&content.Item{Body: "this body is longer than ten characters"})
	if result.Valid {
		t.Fatal("expected length violation")
	}
}

func TestTextHeadingLevelCheck(t *testing.T) {
	s := newTextStrategy(DefaultLimits())
	item := &content.Item{
		Body:   "# Title\n\n### Deep dive\n",
		Format: content.FormatMarkdown,
	}
	report := s.CheckAccessibility(item)
	if report.Accessible() {
		t.Fatal("expected heading level jump to be flagged")
	}

	item.Body = "# Title\n\n## Section\n\n### Detail\n"
	report = s.CheckAccessibility(item)
	if !report.Accessible() {
		t.Fatalf("sequential headings flagged: %v", report.Issues)
	}
}

func TestTextOnlyRenderIsOffline(t *testing.T) {
	registry := NewRegistry(DefaultLimits())
	for _, category := range content.AllCategories() {
		item := testItem(category)
		item.Body = "inline body"
		item.AltText = "a labeled diagram of a leaf"

		s, _ := registry.ForCategory(category)
		rendered := s.Render(item, RenderOptions{TextOnly: true, Tier: content.Tier2G})
		if !rendered.TextOnly {
			t.Errorf("%s: text-only render not marked text-only", category)
		}
		if rendered.ContentType != "text/plain" {
			t.Errorf("%s: text-only render content type = %s", category, rendered.ContentType)
		}
		if strings.Contains(rendered.Body, "<") && category != content.CategoryCode {
			t.Errorf("%s: text-only render contains markup: %q", category, rendered.Body)
		}
	}
}

func TestRenderLanguageResolution(t *testing.T) {
	s := newTextStrategy(DefaultLimits())
	item := &content.Item{Body: "hola", Language: "es"}

	rendered := s.Render(item, RenderOptions{Language: "es-MX"})
	if rendered.Language != "es" {
		t.Fatalf("language = %q, want es", rendered.Language)
	}

	rendered = s.Render(item, RenderOptions{Language: "not-a-tag-at-all-!!"})
	if rendered.Language == "" {
		t.Fatal("expected a resolved fallback language")
	}
}
