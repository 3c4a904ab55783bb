package transcode

import (
	"context"

	"lectern/internal/content"
)

// Result is the concrete rendition metadata an encoder reports on success.
type Result struct {
	MimeType     string
	ByteSize     int64
	Width        int
	Height       int
	BitrateKbps  int
	Codec        string
	FileRef      string
	InlineText   string
	ExternalURL  string
	QualityScore int
}

// Encoder is the external media-processing collaborator. Implementations are
// responsible for bounding their own runtime; the coordinator records
// whatever error comes back and never retries implicitly.
type Encoder interface {
	Encode(ctx context.Context, item *content.Item, request content.VariantRequest) (Result, error)
}
