package strategy

import (
	"fmt"
	"strings"

	"lectern/internal/content"
)

type codeStrategy struct {
	limits Limits
}

func newCodeStrategy(limits Limits) *codeStrategy {
	return &codeStrategy{limits: limits}
}

func (s *codeStrategy) Category() content.Category { return content.CategoryCode }

func (s *codeStrategy) Validate(item *content.Item) ValidationResult {
	result := newValidationResult()
	if strings.TrimSpace(item.Body) == "" && strings.TrimSpace(item.SourceRef) == "" {
		result.addError("code exercise requires starter code inline or as a source reference")
	}
	if strings.TrimSpace(item.CodeLanguage) == "" {
		result.addError("code exercise requires a programming language")
	}
	if s.limits.MaxTextLength > 0 && len(item.Body) > s.limits.MaxTextLength {
		result.addError("code body exceeds maximum length of %d characters", s.limits.MaxTextLength)
	}
	if strings.TrimSpace(item.Description) == "" {
		result.addWarning("code exercise has no task description")
	}
	return result
}

func (s *codeStrategy) EstimateBandwidthKB(item *content.Item) int64 {
	if item.ByteSize > 0 {
		return bytesToKB(item.ByteSize)
	}
	kb := int64(len(item.Body)) / 1024
	if kb < 1 {
		kb = 1
	}
	return kb
}

func (s *codeStrategy) PlanOptimization(item *content.Item, opts PlanOptions) Plan {
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

func (s *codeStrategy) DeriveTextAlternative(item *content.Item) (string, bool) {
	detail := ""
	if lang := strings.TrimSpace(item.CodeLanguage); lang != "" {
		detail = fmt.Sprintf("Programming exercise in %s", lang)
	}
	return synthesizeAlternative(item, "Code exercise", detail), true
}

func (s *codeStrategy) Render(item *content.Item, opts RenderOptions) Rendered {
	lang := resolveLanguage(s.limits, item, opts.Language)
	if opts.TextOnly {
		// Plain source with the task description; no highlighting markup.
		parts := []string{}
		if desc := strings.TrimSpace(item.Description); desc != "" {
			parts = append(parts, desc)
		}
		parts = append(parts, item.Body)
		return Rendered{ContentType: "text/plain", Body: strings.Join(parts, "\n\n"), Language: lang, TextOnly: true}
	}
	body := fmt.Sprintf("<pre><code class=%q>%s</code></pre>", "language-"+item.CodeLanguage, item.Body)
	return Rendered{ContentType: "text/html", Body: body, Language: lang}
}

func (s *codeStrategy) CheckAccessibility(item *content.Item) AccessibilityReport {
	report := AccessibilityReport{}
	if strings.TrimSpace(item.Description) == "" {
		report.Issues = append(report.Issues, "exercise has no textual task description")
		report.Missing = append(report.Missing, "task description")
	}
	return report
}

func (s *codeStrategy) RequiredVariantTypes() []content.VariantType {
	return []content.VariantType{
		content.VariantOriginal,
		content.VariantTextOnly,
		content.VariantCompressed,
	}
}
