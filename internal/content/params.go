package content

import (
	"errors"
	"fmt"
)

// EncodeParams carries the structured encode knobs for one variant request.
// Zero-valued fields mean "unset"; construction-time validation replaces the
// untyped parameter blobs the external encoder protocol would otherwise get.
type EncodeParams struct {
	Quality            int
	MaxWidth           int
	MaxHeight          int
	BitrateKbps        int
	Codec              string
	MaxDurationSeconds int
	MaxPages           int
}

// Validate rejects out-of-range encode parameters.
func (p EncodeParams) Validate() error {
	if p.Quality < 0 || p.Quality > 100 {
		return fmt.Errorf("encode quality %d out of range 0-100", p.Quality)
	}
	if p.MaxWidth < 0 || p.MaxHeight < 0 {
		return errors.New("encode dimensions must not be negative")
	}
	if p.BitrateKbps < 0 {
		return errors.New("encode bitrate must not be negative")
	}
	if p.MaxDurationSeconds < 0 {
		return errors.New("encode max duration must not be negative")
	}
	if p.MaxPages < 0 {
		return errors.New("encode max pages must not be negative")
	}
	return nil
}

// VariantRequest is an ephemeral descriptor produced by a strategy and
// consumed immediately by the transcoding coordinator. Never persisted.
type VariantRequest struct {
	Type   VariantType
	Tier   NetworkTier
	Params EncodeParams
}

func (r VariantRequest) String() string {
	return fmt.Sprintf("%s@%s", r.Type, r.Tier)
}
