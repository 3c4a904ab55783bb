package ledger

import (
	"errors"
	"strings"
	"time"

	"lectern/internal/content"
)

// Status represents the processing lifecycle of a variant.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusReady, StatusFailed}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ErrInvalidTransition is returned when a status change violates the
// pending → processing → {ready|failed} machine (failed → pending only via
// explicit retry).
var ErrInvalidTransition = errors.New("invalid variant status transition")

// Variant is a persisted rendition of a content item, uniquely keyed by
// (content item id, variant type, network tier).
type Variant struct {
	ID       int64
	ItemID   string
	Type     content.VariantType
	Tier     content.NetworkTier
	Status   Status
	ErrorMsg string

	MimeType    string
	ByteSize    int64
	Width       int
	Height      int
	BitrateKbps int
	Codec       string
	FileRef     string
	InlineText  string
	ExternalURL string

	// qualityScore and bandwidthKB are defined only for ready variants and
	// are reachable solely through the gated accessors below.
	qualityScore int
	bandwidthKB  int64

	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastHeartbeat *time.Time
}

// QualityScore returns the 0-100 quality score. ok is false unless the
// variant is ready; callers must not branch on the score otherwise.
func (v *Variant) QualityScore() (int, bool) {
	if v.Status != StatusReady {
		return 0, false
	}
	return v.qualityScore, true
}

// BandwidthEstimateKB returns the measured payload size in kilobytes. ok is
// false unless the variant is ready.
func (v *Variant) BandwidthEstimateKB() (int64, bool) {
	if v.Status != StatusReady {
		return 0, false
	}
	return v.bandwidthKB, true
}

// Key formats the ledger primary key for logs.
func (v *Variant) Key() string {
	return v.ItemID + "/" + string(v.Type) + "@" + string(v.Tier)
}

// ReadyMetadata carries the concrete rendition details recorded when a
// variant transitions to ready.
type ReadyMetadata struct {
	MimeType            string
	ByteSize            int64
	Width               int
	Height              int
	BitrateKbps         int
	Codec               string
	FileRef             string
	InlineText          string
	ExternalURL         string
	QualityScore        int
	BandwidthEstimateKB int64
}

// Validate enforces the ready-transition contract: at least one payload
// reference and a sane quality score.
func (m ReadyMetadata) Validate() error {
	if strings.TrimSpace(m.FileRef) == "" &&
		strings.TrimSpace(m.InlineText) == "" &&
		strings.TrimSpace(m.ExternalURL) == "" {
		return errors.New("ready metadata requires a file reference, inline text, or external URL")
	}
	if m.QualityScore < 0 || m.QualityScore > 100 {
		return errors.New("quality score out of range 0-100")
	}
	if m.BandwidthEstimateKB < 0 {
		return errors.New("bandwidth estimate must not be negative")
	}
	return nil
}

// StatusCounts aggregates ledger entries per status for one content item.
type StatusCounts struct {
	Total      int
	Pending    int
	Processing int
	Ready      int
	Failed     int
}
