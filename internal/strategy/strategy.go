package strategy

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"lectern/internal/content"
)

// Limits carries the configurable bounds strategies plan against. Strategies
// themselves stay pure; everything variable comes in here at construction.
type Limits struct {
	MaxTextLength        int
	PreviewSeconds       int
	DocumentPreviewPages int
	DefaultLanguage      string
}

// DefaultLimits mirrors the config package defaults for callers that do not
// thread a config through (tests, mostly).
func DefaultLimits() Limits {
	return Limits{
		MaxTextLength:        100000,
		PreviewSeconds:       30,
		DocumentPreviewPages: 3,
		DefaultLanguage:      "en",
	}
}

// ValidationResult reports category-specific required-field checks.
// Valid is false exactly when Errors is non-empty; warnings never block.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (r *ValidationResult) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Valid = false
}

func (r *ValidationResult) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func newValidationResult() ValidationResult {
	return ValidationResult{Valid: true}
}

// PlanOptions narrows a strategy's optimization plan.
type PlanOptions struct {
	// TargetTier restricts the plan to one tier plus tier-independent
	// variants. Empty requests the full per-tier ladder.
	TargetTier content.NetworkTier
}

// Plan is the optimization plan a strategy proposes for one item.
type Plan struct {
	Requests []content.VariantRequest
	// TextAlternative is set when the plan includes a derived text fallback.
	TextAlternative    string
	HasTextAlternative bool
}

// RenderOptions controls display rendering.
type RenderOptions struct {
	TextOnly bool
	Tier     content.NetworkTier
	Language string
}

// Rendered is a display-ready representation of an item.
type Rendered struct {
	ContentType string
	Body        string
	Language    string
	TextOnly    bool
}

// AccessibilityReport lists WCAG-style findings for an item.
type AccessibilityReport struct {
	Issues  []string
	Missing []string
}

// Accessible reports whether no requirements are missing.
func (r AccessibilityReport) Accessible() bool {
	return len(r.Missing) == 0
}

// Strategy is the per-category delivery contract. Implementations are pure:
// no I/O, no hidden state.
type Strategy interface {
	Category() content.Category
	Validate(item *content.Item) ValidationResult
	EstimateBandwidthKB(item *content.Item) int64
	PlanOptimization(item *content.Item, opts PlanOptions) Plan
	DeriveTextAlternative(item *content.Item) (string, bool)
	Render(item *content.Item, opts RenderOptions) Rendered
	CheckAccessibility(item *content.Item) AccessibilityReport
	RequiredVariantTypes() []content.VariantType
}

// tierWanted reports whether a request at tier belongs in a plan narrowed by
// opts. Tier-independent (`any`) variants always survive narrowing.
func tierWanted(opts PlanOptions, tier content.NetworkTier) bool {
	if opts.TargetTier == "" || tier == content.TierAny {
		return true
	}
	return tier == opts.TargetTier
}

func bytesToKB(size int64) int64 {
	if size <= 0 {
		return 0
	}
	kb := size / 1024
	if size%1024 != 0 {
		kb++
	}
	return kb
}

// resolveLanguage canonicalizes the requested display language against the
// item's language, falling back to the configured default. Tags that fail to
// parse fall through rather than erroring: rendering never blocks delivery.
func resolveLanguage(limits Limits, item *content.Item, requested string) string {
	supported := make([]language.Tag, 0, 2)
	if tag, err := language.Parse(strings.TrimSpace(item.Language)); err == nil {
		supported = append(supported, tag)
	}
	if tag, err := language.Parse(strings.TrimSpace(limits.DefaultLanguage)); err == nil {
		supported = append(supported, tag)
	}
	if len(supported) == 0 {
		supported = append(supported, language.English)
	}

	matcher := language.NewMatcher(supported)
	if requested = strings.TrimSpace(requested); requested != "" {
		if tag, err := language.Parse(requested); err == nil {
			matched, _, _ := matcher.Match(tag)
			if base, conf := matched.Base(); conf > language.No {
				return base.String()
			}
		}
	}
	tag, _, _ := matcher.Match(language.Und)
	if base, conf := tag.Base(); conf > language.No {
		return base.String()
	}
	return "en"
}

// describeDuration renders a duration in seconds as a compact human phrase
// for synthesized text alternatives. Stable output keeps derivation
// idempotent.
func describeDuration(seconds float64) string {
	total := int(seconds)
	if total <= 0 {
		return ""
	}
	minutes := total / 60
	secs := total % 60
	if minutes == 0 {
		return fmt.Sprintf("%d sec", secs)
	}
	if secs == 0 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%d min %d sec", minutes, secs)
}

// synthesizeAlternative builds the fallback text alternative from the fields
// every category shares. Parts are joined deterministically so repeated
// derivation on an unchanged item is byte-identical.
func synthesizeAlternative(item *content.Item, kind string, detail string) string {
	parts := make([]string, 0, 4)
	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = "Untitled"
	}
	parts = append(parts, fmt.Sprintf("%s: %s", kind, title))
	if detail != "" {
		parts = append(parts, detail)
	}
	if desc := strings.TrimSpace(item.Description); desc != "" {
		parts = append(parts, desc)
	}
	return strings.Join(parts, ". ")
}
