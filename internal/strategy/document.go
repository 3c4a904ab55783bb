package strategy

import (
	"fmt"
	"strings"

	"lectern/internal/content"
)

// documentKBPerPage approximates a mixed text/figure PDF page.
const documentKBPerPage = 100

type documentStrategy struct {
	limits Limits
}

func newDocumentStrategy(limits Limits) *documentStrategy {
	return &documentStrategy{limits: limits}
}

func (s *documentStrategy) Category() content.Category { return content.CategoryDocument }

func (s *documentStrategy) Validate(item *content.Item) ValidationResult {
	result := newValidationResult()
	if strings.TrimSpace(item.SourceRef) == "" && strings.TrimSpace(item.ExternalURL) == "" {
		result.addError("document content requires a source file or external URL")
	}
	if item.PageCount <= 0 {
		result.addWarning("document page count is missing; previews default to the first pages")
	}
	return result
}

func (s *documentStrategy) EstimateBandwidthKB(item *content.Item) int64 {
	if item.ByteSize > 0 {
		return bytesToKB(item.ByteSize)
	}
	if item.PageCount > 0 {
		return int64(item.PageCount) * documentKBPerPage
	}
	return 500
}

func (s *documentStrategy) PlanOptimization(item *content.Item, opts PlanOptions) Plan {
	plan := Plan{}
	if tierWanted(opts, content.TierAny) {
		plan.Requests = append(plan.Requests,
			content.VariantRequest{
				Type:   content.VariantPreview,
				Tier:   content.TierAny,
				Params: content.EncodeParams{Quality: 60, MaxPages: s.limits.DocumentPreviewPages},
			},
			content.VariantRequest{
				Type: content.VariantTextOnly,
				Tier: content.TierAny,
			},
		)
	}
	if tierWanted(opts, content.Tier2G) {
		plan.Requests = append(plan.Requests, content.VariantRequest{
			Type:   content.VariantCompressed,
			Tier:   content.Tier2G,
			Params: content.EncodeParams{Quality: 40},
		})
	}
	if alt, ok := s.DeriveTextAlternative(item); ok {
		plan.TextAlternative = alt
		plan.HasTextAlternative = true
	}
	return plan
}

func (s *documentStrategy) DeriveTextAlternative(item *content.Item) (string, bool) {
	if body := strings.TrimSpace(item.Body); body != "" {
		return body, true
	}
	detail := ""
	if item.PageCount > 0 {
		detail = fmt.Sprintf("Document, %d pages", item.PageCount)
	}
	return synthesizeAlternative(item, "Document", detail), true
}

func (s *documentStrategy) Render(item *content.Item, opts RenderOptions) Rendered {
	lang := resolveLanguage(s.limits, item, opts.Language)
	if opts.TextOnly {
		alt, _ := s.DeriveTextAlternative(item)
		return Rendered{ContentType: "text/plain", Body: alt, Language: lang, TextOnly: true}
	}
	src := item.SourceRef
	if src == "" {
		src = item.ExternalURL
	}
	body := fmt.Sprintf("<embed src=%q type=\"application/pdf\">", src)
	return Rendered{ContentType: "text/html", Body: body, Language: lang}
}

func (s *documentStrategy) CheckAccessibility(item *content.Item) AccessibilityReport {
	report := AccessibilityReport{}
	if strings.TrimSpace(item.Body) == "" {
		report.Issues = append(report.Issues, "no extractable text available")
		report.Missing = append(report.Missing, "extractable text")
	}
	return report
}

func (s *documentStrategy) RequiredVariantTypes() []content.VariantType {
	return []content.VariantType{
		content.VariantOriginal,
		content.VariantPreview,
		content.VariantCompressed,
		content.VariantTextOnly,
	}
}
