package strategy

import (
	"fmt"
	"strings"

	"lectern/internal/content"
)

// videoKBPerSecond approximates medium-quality video (1.5 Mbps ≈ 187.5 KB/s).
const videoKBPerSecond = 187.5

type videoStrategy struct {
	limits Limits
}

func newVideoStrategy(limits Limits) *videoStrategy {
	return &videoStrategy{limits: limits}
}

func (s *videoStrategy) Category() content.Category { return content.CategoryVideo }

func (s *videoStrategy) Validate(item *content.Item) ValidationResult {
	result := newValidationResult()
	if strings.TrimSpace(item.SourceRef) == "" && strings.TrimSpace(item.ExternalURL) == "" {
		result.addError("video content requires a source file or external URL")
	}
	if item.DurationSeconds <= 0 {
		result.addWarning("video duration is missing; bandwidth estimates will use defaults")
	}
	if strings.TrimSpace(item.Transcript) == "" {
		result.addWarning("video content has no transcript")
	}
	return result
}

func (s *videoStrategy) EstimateBandwidthKB(item *content.Item) int64 {
	if item.ByteSize > 0 {
		return bytesToKB(item.ByteSize)
	}
	if item.DurationSeconds > 0 {
		return int64(item.DurationSeconds * videoKBPerSecond)
	}
	// Assume a ten-minute lecture when nothing is known.
	return int64(600 * videoKBPerSecond)
}

func (s *videoStrategy) PlanOptimization(item *content.Item, opts PlanOptions) Plan {
	plan := Plan{}
	if tierWanted(opts, content.TierAny) {
		plan.Requests = append(plan.Requests,
			content.VariantRequest{
				Type:   content.VariantThumbnail,
				Tier:   content.TierAny,
				Params: content.EncodeParams{Quality: 60, MaxWidth: 320, MaxHeight: 180},
			},
			content.VariantRequest{
				Type: content.VariantPreview,
				Tier: content.TierAny,
				Params: content.EncodeParams{
					Quality:            50,
					MaxWidth:           640,
					MaxHeight:          360,
					BitrateKbps:        500,
					Codec:              "h264",
					MaxDurationSeconds: s.limits.PreviewSeconds,
				},
			},
		)
	}
	if tierWanted(opts, content.Tier2G) {
		plan.Requests = append(plan.Requests,
			content.VariantRequest{
				Type:   content.VariantLowQuality,
				Tier:   content.Tier2G,
				Params: content.EncodeParams{Quality: 30, MaxWidth: 426, MaxHeight: 240, BitrateKbps: 300, Codec: "h264"},
			},
			content.VariantRequest{
				Type:   content.VariantAudioOnly,
				Tier:   content.Tier2G,
				Params: content.EncodeParams{Quality: 50, BitrateKbps: 64, Codec: "opus"},
			},
		)
	}
	if tierWanted(opts, content.Tier4G) {
		plan.Requests = append(plan.Requests, content.VariantRequest{
			Type:   content.VariantMediumQuality,
			Tier:   content.Tier4G,
			Params: content.EncodeParams{Quality: 60, MaxWidth: 854, MaxHeight: 480, BitrateKbps: 800, Codec: "h264"},
		})
	}
	if tierWanted(opts, content.TierWifi) {
		plan.Requests = append(plan.Requests, content.VariantRequest{
			Type:   content.VariantHighQuality,
			Tier:   content.TierWifi,
			Params: content.EncodeParams{Quality: 85, MaxWidth: 1920, MaxHeight: 1080, BitrateKbps: 2500, Codec: "h264"},
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

func (s *videoStrategy) DeriveTextAlternative(item *content.Item) (string, bool) {
	if transcript := strings.TrimSpace(item.Transcript); transcript != "" {
		return transcript, true
	}
	detail := ""
	if d := describeDuration(item.DurationSeconds); d != "" {
		detail = fmt.Sprintf("Video, %s", d)
	}
	return synthesizeAlternative(item, "Video", detail), true
}

func (s *videoStrategy) Render(item *content.Item, opts RenderOptions) Rendered {
	lang := resolveLanguage(s.limits, item, opts.Language)
	if opts.TextOnly {
		alt, _ := s.DeriveTextAlternative(item)
		return Rendered{ContentType: "text/plain", Body: alt, Language: lang, TextOnly: true}
	}
	src := item.SourceRef
	if src == "" {
		src = item.ExternalURL
	}
	body := fmt.Sprintf("<video controls src=%q></video>", src)
	return Rendered{ContentType: "text/html", Body: body, Language: lang}
}

func (s *videoStrategy) CheckAccessibility(item *content.Item) AccessibilityReport {
	report := AccessibilityReport{}
	if !item.HasCaptions {
		report.Issues = append(report.Issues, "missing captions")
		report.Missing = append(report.Missing, "captions")
	}
	if strings.TrimSpace(item.Transcript) == "" {
		report.Issues = append(report.Issues, "missing transcript")
		report.Missing = append(report.Missing, "transcript")
	}
	return report
}

func (s *videoStrategy) RequiredVariantTypes() []content.VariantType {
	return []content.VariantType{
		content.VariantOriginal,
		content.VariantThumbnail,
		content.VariantPreview,
		content.VariantLowQuality,
		content.VariantMediumQuality,
		content.VariantHighQuality,
		content.VariantAudioOnly,
		content.VariantTextOnly,
	}
}
