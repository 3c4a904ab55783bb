package transcode

import (
	"context"
	"fmt"
	"strings"

	"lectern/internal/content"
	"lectern/internal/services"
	"lectern/internal/strategy"
)

// Simulator is an in-process Encoder that fabricates plausible rendition
// metadata from the strategy heuristics. It backs tests and the offline CLI;
// a deployment swaps in a client for a real transcoder.
type Simulator struct {
	registry *strategy.Registry
}

// NewSimulator constructs a simulator over the given strategy registry.
func NewSimulator(registry *strategy.Registry) *Simulator {
	return &Simulator{registry: registry}
}

// Encode synthesizes rendition metadata without touching any media.
func (s *Simulator) Encode(ctx context.Context, item *content.Item, request content.VariantRequest) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	strat, _ := s.registry.ForItem(item)

	if request.Type == content.VariantTextOnly {
		alt, ok := strat.DeriveTextAlternative(item)
		if !ok || strings.TrimSpace(alt) == "" {
			return Result{}, services.Wrap(services.ErrExternalTool, "simulator", "derive text",
				"no text alternative available for "+string(item.Category), nil)
		}
		return Result{
			MimeType:     "text/plain",
			ByteSize:     int64(len(alt)),
			InlineText:   alt,
			QualityScore: 100,
		}, nil
	}

	originalKB := strat.EstimateBandwidthKB(item)
	sizeKB := int64(float64(originalKB) * content.ReductionFactor(request.Tier))
	if sizeKB < 1 {
		sizeKB = 1
	}

	quality := request.Params.Quality
	if quality == 0 {
		quality = defaultQualityForTier(request.Tier)
	}

	return Result{
		MimeType:     mimeTypeFor(item.Category, request.Type),
		ByteSize:     sizeKB * 1024,
		Width:        request.Params.MaxWidth,
		Height:       request.Params.MaxHeight,
		BitrateKbps:  request.Params.BitrateKbps,
		Codec:        request.Params.Codec,
		FileRef:      fmt.Sprintf("variants/%s/%s_%s%s", item.ID, request.Type, request.Tier, extensionFor(item.Category, request.Type)),
		QualityScore: quality,
	}, nil
}

func defaultQualityForTier(tier content.NetworkTier) int {
	switch tier {
	case content.Tier2G:
		return 30
	case content.Tier3G:
		return 50
	case content.Tier4G:
		return 70
	case content.Tier5G, content.TierWifi:
		return 90
	default:
		return 60
	}
}

func mimeTypeFor(category content.Category, vtype content.VariantType) string {
	if vtype == content.VariantThumbnail {
		return "image/jpeg"
	}
	if vtype == content.VariantAudioOnly {
		return "audio/ogg"
	}
	switch category {
	case content.CategoryImage:
		return "image/webp"
	case content.CategoryAudio:
		return "audio/ogg"
	case content.CategoryVideo:
		return "video/mp4"
	case content.CategoryDocument:
		return "application/pdf"
	default:
		return "text/plain"
	}
}

func extensionFor(category content.Category, vtype content.VariantType) string {
	if vtype == content.VariantThumbnail {
		return ".jpg"
	}
	if vtype == content.VariantAudioOnly {
		return ".ogg"
	}
	switch category {
	case content.CategoryImage:
		return ".webp"
	case content.CategoryAudio:
		return ".ogg"
	case content.CategoryVideo:
		return ".mp4"
	case content.CategoryDocument:
		return ".pdf"
	default:
		return ".txt"
	}
}
