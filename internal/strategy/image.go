package strategy

import (
	"fmt"
	"strings"

	"lectern/internal/content"
)

// genericAltText lists alt text values that describe nothing. Lowercase.
var genericAltText = map[string]struct{}{
	"image":      {},
	"img":        {},
	"photo":      {},
	"picture":    {},
	"graphic":    {},
	"icon":       {},
	"untitled":   {},
	"screenshot": {},
}

const (
	shortAltThreshold = 10
	// defaultImageKB is the planning estimate when byte size is unknown.
	defaultImageKB = 500
)

type imageStrategy struct {
	limits Limits
}

func newImageStrategy(limits Limits) *imageStrategy {
	return &imageStrategy{limits: limits}
}

func (s *imageStrategy) Category() content.Category { return content.CategoryImage }

func (s *imageStrategy) Validate(item *content.Item) ValidationResult {
	result := newValidationResult()
	if strings.TrimSpace(item.SourceRef) == "" && strings.TrimSpace(item.ExternalURL) == "" {
		result.addError("image content requires a source file or external URL")
	}
	alt := strings.TrimSpace(item.AltText)
	if alt == "" {
		result.addError("image content requires alt text")
	} else if len(alt) < shortAltThreshold {
		result.addWarning("alt text seems too short")
	}
	return result
}

func (s *imageStrategy) EstimateBandwidthKB(item *content.Item) int64 {
	if item.ByteSize > 0 {
		return bytesToKB(item.ByteSize)
	}
	return defaultImageKB
}

func (s *imageStrategy) PlanOptimization(item *content.Item, opts PlanOptions) Plan {
	plan := Plan{}
	if tierWanted(opts, content.TierAny) {
		plan.Requests = append(plan.Requests, content.VariantRequest{
			Type:   content.VariantThumbnail,
			Tier:   content.TierAny,
			Params: content.EncodeParams{Quality: 60, MaxWidth: 150, MaxHeight: 150},
		})
	}
	if tierWanted(opts, content.Tier2G) {
		plan.Requests = append(plan.Requests, content.VariantRequest{
			Type:   content.VariantLowQuality,
			Tier:   content.Tier2G,
			Params: content.EncodeParams{Quality: 40, MaxWidth: 320, MaxHeight: 320},
		})
	}
	if tierWanted(opts, content.Tier3G) {
		plan.Requests = append(plan.Requests, content.VariantRequest{
			Type:   content.VariantMediumQuality,
			Tier:   content.Tier3G,
			Params: content.EncodeParams{Quality: 60, MaxWidth: 640, MaxHeight: 640},
		})
	}
	if tierWanted(opts, content.Tier4G) {
		plan.Requests = append(plan.Requests, content.VariantRequest{
			Type:   content.VariantHighQuality,
			Tier:   content.Tier4G,
			Params: content.EncodeParams{Quality: 85, MaxWidth: 1280, MaxHeight: 1280},
		})
	}
	if alt, ok := s.DeriveTextAlternative(item); ok {
		plan.TextAlternative = alt
		plan.HasTextAlternative = true
	}
	return plan
}

func (s *imageStrategy) DeriveTextAlternative(item *content.Item) (string, bool) {
	if alt := strings.TrimSpace(item.AltText); alt != "" {
		return alt, true
	}
	return synthesizeAlternative(item, "Image", ""), true
}

func (s *imageStrategy) Render(item *content.Item, opts RenderOptions) Rendered {
	lang := resolveLanguage(s.limits, item, opts.Language)
	if opts.TextOnly {
		alt, _ := s.DeriveTextAlternative(item)
		return Rendered{ContentType: "text/plain", Body: alt, Language: lang, TextOnly: true}
	}
	src := item.SourceRef
	if src == "" {
		src = item.ExternalURL
	}
	body := fmt.Sprintf("<img src=%q alt=%q>", src, strings.TrimSpace(item.AltText))
	return Rendered{ContentType: "text/html", Body: body, Language: lang}
}

func (s *imageStrategy) CheckAccessibility(item *content.Item) AccessibilityReport {
	report := AccessibilityReport{}
	alt := strings.TrimSpace(item.AltText)
	if alt == "" {
		report.Missing = append(report.Missing, "alt text")
		return report
	}
	if _, generic := genericAltText[strings.ToLower(alt)]; generic || len(alt) < shortAltThreshold {
		report.Issues = append(report.Issues, "alt text is generic or non-descriptive")
		report.Missing = append(report.Missing, "descriptive alt text")
	}
	return report
}

func (s *imageStrategy) RequiredVariantTypes() []content.VariantType {
	return []content.VariantType{
		content.VariantOriginal,
		content.VariantThumbnail,
		content.VariantLowQuality,
		content.VariantMediumQuality,
		content.VariantHighQuality,
	}
}
