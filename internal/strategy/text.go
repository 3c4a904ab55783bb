package strategy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"lectern/internal/content"
)

// textStrategy handles plain and rich text lessons. It also serves as the
// documented fallback for unknown categories.
type textStrategy struct {
	limits Limits
}

func newTextStrategy(limits Limits) *textStrategy {
	return &textStrategy{limits: limits}
}

func (s *textStrategy) Category() content.Category { return content.CategoryText }

func (s *textStrategy) Validate(item *content.Item) ValidationResult {
	result := newValidationResult()
	body := strings.TrimSpace(item.Body)
	if body == "" && strings.TrimSpace(item.SourceRef) == "" {
		result.addError("text content requires an inline body or a source reference")
	}
	if s.limits.MaxTextLength > 0 && len(item.Body) > s.limits.MaxTextLength {
		result.addError("text body exceeds maximum length of %d characters", s.limits.MaxTextLength)
	}
	if strings.TrimSpace(item.Title) == "" {
		result.addWarning("text content has no title")
	}
	return result
}

func (s *textStrategy) EstimateBandwidthKB(item *content.Item) int64 {
	if item.ByteSize > 0 {
		return bytesToKB(item.ByteSize)
	}
	chars := int64(len(item.Body))
	if chars == 0 {
		return 1
	}
	kb := chars / 1024
	if chars%1024 != 0 {
		kb++
	}
	if item.Format.IsRichText() {
		// Markup overhead runs about 20% over the raw character count.
		kb = kb + kb/5
	}
	if kb < 1 {
		kb = 1
	}
	return kb
}

func (s *textStrategy) PlanOptimization(item *content.Item, opts PlanOptions) Plan {
	plan := Plan{}
	if tierWanted(opts, content.TierAny) {
		plan.Requests = append(plan.Requests, content.VariantRequest{
			Type: content.VariantTextOnly,
			Tier: content.TierAny,
		})
	}
	if tierWanted(opts, content.Tier2G) {
		plan.Requests = append(plan.Requests, content.VariantRequest{
			Type:   content.VariantCompressed,
			Tier:   content.Tier2G,
			Params: content.EncodeParams{Quality: 50},
		})
	}
	if alt, ok := s.DeriveTextAlternative(item); ok {
		plan.TextAlternative = alt
		plan.HasTextAlternative = true
	}
	return plan
}

func (s *textStrategy) DeriveTextAlternative(item *content.Item) (string, bool) {
	if body := strings.TrimSpace(item.Body); body != "" {
		return stripMarkup(body, item.Format), true
	}
	detail := ""
	if item.ByteSize > 0 {
		detail = fmt.Sprintf("%d KB of text", bytesToKB(item.ByteSize))
	}
	return synthesizeAlternative(item, "Text", detail), true
}

func (s *textStrategy) Render(item *content.Item, opts RenderOptions) Rendered {
	lang := resolveLanguage(s.limits, item, opts.Language)
	if opts.TextOnly || !item.Format.IsRichText() {
		body := item.Body
		if opts.TextOnly {
			body = stripMarkup(item.Body, item.Format)
		}
		return Rendered{ContentType: "text/plain", Body: body, Language: lang, TextOnly: opts.TextOnly}
	}
	contentType := "text/markdown"
	if item.Format == content.FormatHTML {
		contentType = "text/html"
	}
	return Rendered{ContentType: contentType, Body: item.Body, Language: lang}
}

func (s *textStrategy) CheckAccessibility(item *content.Item) AccessibilityReport {
	report := AccessibilityReport{}
	if !item.Format.IsRichText() {
		return report
	}
	levels := headingLevels(item.Body, item.Format)
	for i := 1; i < len(levels); i++ {
		if levels[i] > levels[i-1]+1 {
			report.Issues = append(report.Issues,
				fmt.Sprintf("heading level jumps from %d to %d", levels[i-1], levels[i]))
			report.Missing = append(report.Missing, "sequential heading levels")
			break
		}
	}
	return report
}

func (s *textStrategy) RequiredVariantTypes() []content.VariantType {
	return []content.VariantType{
		content.VariantOriginal,
		content.VariantTextOnly,
		content.VariantCompressed,
	}
}

var (
	htmlTagPattern     = regexp.MustCompile(`<[^>]+>`)
	htmlHeadingPattern = regexp.MustCompile(`(?i)<h([1-6])[\s>]`)
	mdHeadingPattern   = regexp.MustCompile(`(?m)^(#{1,6})\s`)
	mdMarkupPattern    = regexp.MustCompile("[*_`#>]+")
)

func stripMarkup(body string, format content.TextFormat) string {
	switch format {
	case content.FormatHTML:
		return strings.TrimSpace(htmlTagPattern.ReplaceAllString(body, " "))
	case content.FormatMarkdown:
		return strings.TrimSpace(mdMarkupPattern.ReplaceAllString(body, ""))
	default:
		return strings.TrimSpace(body)
	}
}

func headingLevels(body string, format content.TextFormat) []int {
	var levels []int
	switch format {
	case content.FormatHTML:
		for _, match := range htmlHeadingPattern.FindAllStringSubmatch(body, -1) {
			if level, err := strconv.Atoi(match[1]); err == nil {
				levels = append(levels, level)
			}
		}
	case content.FormatMarkdown:
		for _, match := range mdHeadingPattern.FindAllStringSubmatch(body, -1) {
			levels = append(levels, len(match[1]))
		}
	}
	return levels
}
