package content

import (
	"strings"
	"time"
)

// Category classifies a content item and selects its delivery strategy.
type Category string

const (
	CategoryText        Category = "text"
	CategoryImage       Category = "image"
	CategoryAudio       Category = "audio"
	CategoryVideo       Category = "video"
	CategoryDocument    Category = "document"
	CategoryCode        Category = "code"
	CategoryInteractive Category = "interactive"
)

var allCategories = []Category{
	CategoryText,
	CategoryImage,
	CategoryAudio,
	CategoryVideo,
	CategoryDocument,
	CategoryCode,
	CategoryInteractive,
}

var categorySet = func() map[Category]struct{} {
	set := make(map[Category]struct{}, len(allCategories))
	for _, category := range allCategories {
		set[category] = struct{}{}
	}
	return set
}()

// AllCategories returns the ordered list of known categories.
func AllCategories() []Category {
	cp := make([]Category, len(allCategories))
	copy(cp, allCategories)
	return cp
}

// ParseCategory converts a string into a known Category.
func ParseCategory(value string) (Category, bool) {
	normalized := Category(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := categorySet[normalized]
	return normalized, ok
}

// VariantType identifies a rendition flavor of a content item.
type VariantType string

const (
	VariantOriginal      VariantType = "original"
	VariantTextOnly      VariantType = "text_only"
	VariantLowQuality    VariantType = "low_quality"
	VariantMediumQuality VariantType = "medium_quality"
	VariantHighQuality   VariantType = "high_quality"
	VariantAudioOnly     VariantType = "audio_only"
	VariantThumbnail     VariantType = "thumbnail"
	VariantPreview       VariantType = "preview"
	VariantCompressed    VariantType = "compressed"
)

var allVariantTypes = []VariantType{
	VariantOriginal,
	VariantTextOnly,
	VariantLowQuality,
	VariantMediumQuality,
	VariantHighQuality,
	VariantAudioOnly,
	VariantThumbnail,
	VariantPreview,
	VariantCompressed,
}

var variantTypeSet = func() map[VariantType]struct{} {
	set := make(map[VariantType]struct{}, len(allVariantTypes))
	for _, vt := range allVariantTypes {
		set[vt] = struct{}{}
	}
	return set
}()

// AllVariantTypes returns the ordered list of known variant types.
func AllVariantTypes() []VariantType {
	cp := make([]VariantType, len(allVariantTypes))
	copy(cp, allVariantTypes)
	return cp
}

// ParseVariantType converts a string into a known VariantType.
func ParseVariantType(value string) (VariantType, bool) {
	normalized := VariantType(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := variantTypeSet[normalized]
	return normalized, ok
}

// NetworkTier is the coarse client connectivity class driving quality trade-offs.
type NetworkTier string

const (
	Tier2G   NetworkTier = "2g"
	Tier3G   NetworkTier = "3g"
	Tier4G   NetworkTier = "4g"
	Tier5G   NetworkTier = "5g"
	TierWifi NetworkTier = "wifi"
	// TierAny tags variants that match regardless of the client tier.
	TierAny NetworkTier = "any"
)

var allTiers = []NetworkTier{Tier2G, Tier3G, Tier4G, Tier5G, TierWifi, TierAny}

var tierSet = func() map[NetworkTier]struct{} {
	set := make(map[NetworkTier]struct{}, len(allTiers))
	for _, tier := range allTiers {
		set[tier] = struct{}{}
	}
	return set
}()

// AllNetworkTiers returns the ordered list of known tiers, wildcard last.
func AllNetworkTiers() []NetworkTier {
	cp := make([]NetworkTier, len(allTiers))
	copy(cp, allTiers)
	return cp
}

// ParseNetworkTier converts a string into a known NetworkTier.
func ParseNetworkTier(value string) (NetworkTier, bool) {
	normalized := NetworkTier(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := tierSet[normalized]
	return normalized, ok
}

// QualityPreference is a client-expressed rendition quality wish.
type QualityPreference string

const (
	PreferenceAuto   QualityPreference = "auto"
	PreferenceLow    QualityPreference = "low"
	PreferenceMedium QualityPreference = "medium"
	PreferenceHigh   QualityPreference = "high"
)

// ParseQualityPreference converts a string into a known QualityPreference.
// Empty input maps to auto.
func ParseQualityPreference(value string) (QualityPreference, bool) {
	normalized := QualityPreference(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case "":
		return PreferenceAuto, true
	case PreferenceAuto, PreferenceLow, PreferenceMedium, PreferenceHigh:
		return normalized, true
	default:
		return "", false
	}
}

// ItemStatus is the authoring lifecycle of a content item.
type ItemStatus string

const (
	ItemDraft     ItemStatus = "draft"
	ItemReview    ItemStatus = "review"
	ItemPublished ItemStatus = "published"
	ItemArchived  ItemStatus = "archived"
)

// TextFormat describes how inline text bodies are marked up.
type TextFormat string

const (
	FormatPlain    TextFormat = "plain"
	FormatMarkdown TextFormat = "markdown"
	FormatHTML     TextFormat = "html"
)

// IsRichText reports whether the format carries markup overhead.
func (f TextFormat) IsRichText() bool {
	return f == FormatMarkdown || f == FormatHTML
}

// Item is the logical content unit the engine reads. It is owned by the
// content-authoring workflow; the engine only writes the text-alternative
// fields back as a planning side effect.
type Item struct {
	ID              string
	Title           string
	Category        Category
	Body            string
	SourceRef       string
	ExternalURL     string
	Format          TextFormat
	DurationSeconds float64
	ByteSize        int64
	PageCount       int
	CodeLanguage    string
	AltText         string
	Transcript      string
	HasCaptions     bool
	Description     string
	Language        string

	TextAlternative    string
	HasTextAlternative bool

	Status    ItemStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasSource reports whether the item carries any payload reference at all.
func (i *Item) HasSource() bool {
	return strings.TrimSpace(i.Body) != "" ||
		strings.TrimSpace(i.SourceRef) != "" ||
		strings.TrimSpace(i.ExternalURL) != ""
}
