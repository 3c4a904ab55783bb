package strategy

import (
	"fmt"
	"strings"

	"lectern/internal/content"
)

// audioKBPerSecond approximates medium-quality compressed audio (128 kbps).
const audioKBPerSecond = 16

type audioStrategy struct {
	limits Limits
}

func newAudioStrategy(limits Limits) *audioStrategy {
	return &audioStrategy{limits: limits}
}

func (s *audioStrategy) Category() content.Category { return content.CategoryAudio }

func (s *audioStrategy) Validate(item *content.Item) ValidationResult {
	result := newValidationResult()
	if strings.TrimSpace(item.SourceRef) == "" && strings.TrimSpace(item.ExternalURL) == "" {
		result.addError("audio content requires a source file or external URL")
	}
	if item.DurationSeconds <= 0 {
		result.addWarning("audio duration is missing; bandwidth estimates will use defaults")
	}
	if strings.TrimSpace(item.Transcript) == "" {
		result.addWarning("audio content has no transcript")
	}
	return result
}

func (s *audioStrategy) EstimateBandwidthKB(item *content.Item) int64 {
	if item.ByteSize > 0 {
		return bytesToKB(item.ByteSize)
	}
	if item.DurationSeconds > 0 {
		return int64(item.DurationSeconds * audioKBPerSecond)
	}
	// Assume a five-minute clip when nothing is known.
	return 300 * audioKBPerSecond
}

func (s *audioStrategy) PlanOptimization(item *content.Item, opts PlanOptions) Plan {
	plan := Plan{}
	if tierWanted(opts, content.Tier2G) {
		plan.Requests = append(plan.Requests, content.VariantRequest{
			Type:   content.VariantLowQuality,
			Tier:   content.Tier2G,
			Params: content.EncodeParams{Quality: 30, BitrateKbps: 32, Codec: "opus"},
		})
	}
	if tierWanted(opts, content.Tier3G) {
		plan.Requests = append(plan.Requests, content.VariantRequest{
			Type:   content.VariantMediumQuality,
			Tier:   content.Tier3G,
			Params: content.EncodeParams{Quality: 60, BitrateKbps: 64, Codec: "opus"},
		})
	}
	if tierWanted(opts, content.TierWifi) {
		plan.Requests = append(plan.Requests, content.VariantRequest{
			Type:   content.VariantHighQuality,
			Tier:   content.TierWifi,
			Params: content.EncodeParams{Quality: 90, BitrateKbps: 128, Codec: "opus"},
		})
	}
	if strings.TrimSpace(item.Transcript) != "" && tierWanted(opts, content.TierAny) {
		plan.Requests = append(plan.Requests, content.VariantRequest{
			Type: content.VariantTextOnly,
			Tier: content.TierAny,
		})
	}
	if alt, ok := s.DeriveTextAlternative(item); ok {
		plan.TextAlternative = alt
		plan.HasTextAlternative = true
	}
	return plan
}

func (s *audioStrategy) DeriveTextAlternative(item *content.Item) (string, bool) {
	if transcript := strings.TrimSpace(item.Transcript); transcript != "" {
		return transcript, true
	}
	detail := ""
	if d := describeDuration(item.DurationSeconds); d != "" {
		detail = fmt.Sprintf("Audio, %s", d)
	}
	return synthesizeAlternative(item, "Audio", detail), true
}

func (s *audioStrategy) Render(item *content.Item, opts RenderOptions) Rendered {
	lang := resolveLanguage(s.limits, item, opts.Language)
	if opts.TextOnly {
		alt, _ := s.DeriveTextAlternative(item)
		return Rendered{ContentType: "text/plain", Body: alt, Language: lang, TextOnly: true}
	}
	src := item.SourceRef
	if src == "" {
		src = item.ExternalURL
	}
	body := fmt.Sprintf("<audio controls src=%q></audio>", src)
	return Rendered{ContentType: "text/html", Body: body, Language: lang}
}

func (s *audioStrategy) CheckAccessibility(item *content.Item) AccessibilityReport {
	report := AccessibilityReport{}
	if strings.TrimSpace(item.Transcript) == "" {
		report.Issues = append(report.Issues, "missing transcript")
		report.Missing = append(report.Missing, "transcript")
	}
	return report
}

func (s *audioStrategy) RequiredVariantTypes() []content.VariantType {
	return []content.VariantType{
		content.VariantOriginal,
		content.VariantLowQuality,
		content.VariantMediumQuality,
		content.VariantHighQuality,
		content.VariantTextOnly,
	}
}
