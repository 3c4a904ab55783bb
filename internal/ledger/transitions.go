package ledger

import (
	"context"
	"fmt"
	"time"
)

// MarkProcessing attempts the pending → processing transition as a
// compare-and-swap. It reports whether this caller won the entry; losing the
// race is not an error. This is the engine's single critical section: two
// concurrent workers can never both advance the same ledger key.
func (s *Store) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE content_variants
         SET status = ?, error_message = NULL, last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusProcessing, now, now, id, StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark processing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkReady records concrete rendition metadata and completes the
// processing → ready transition. Any other starting status is an
// ErrInvalidTransition.
func (s *Store) MarkReady(ctx context.Context, id int64, meta ReadyMetadata) error {
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("ready metadata: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE content_variants
         SET status = ?, mime_type = ?, byte_size = ?, width = ?, height = ?,
             bitrate_kbps = ?, codec = ?, file_ref = ?, inline_text = ?, external_url = ?,
             quality_score = ?, bandwidth_estimate_kb = ?, error_message = NULL,
             last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusReady,
		nullableString(meta.MimeType),
		nullableInt64(meta.ByteSize),
		nullableInt64(int64(meta.Width)),
		nullableInt64(int64(meta.Height)),
		nullableInt64(int64(meta.BitrateKbps)),
		nullableString(meta.Codec),
		nullableString(meta.FileRef),
		nullableString(meta.InlineText),
		nullableString(meta.ExternalURL),
		meta.QualityScore,
		meta.BandwidthEstimateKB,
		now,
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: variant %d is not processing", ErrInvalidTransition, id)
	}
	return nil
}

// MarkFailed records the error text and completes the processing → failed
// transition.
func (s *Store) MarkFailed(ctx context.Context, id int64, errText string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE content_variants
         SET status = ?, error_message = ?, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusFailed, nullableString(errText), now, id, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: variant %d is not processing", ErrInvalidTransition, id)
	}
	return nil
}

// RequeueFailed resets one failed entry back to pending. It reports whether
// the reset applied; a non-failed entry is left untouched.
func (s *Store) RequeueFailed(ctx context.Context, id int64) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE content_variants
         SET status = ?, error_message = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusPending, now, id, StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("requeue failed variant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// RetryFailed resets every failed entry for the content item back to pending,
// clearing the recorded error. Only failed entries move; the return value is
// the exact number reset.
func (s *Store) RetryFailed(ctx context.Context, itemID string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE content_variants
         SET status = ?, error_message = NULL, updated_at = ?
         WHERE content_item_id = ? AND status = ?`,
		StatusPending, now, itemID, StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("retry failed variants: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat refreshes the liveness timestamp on an in-flight entry.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(
		ctx,
		`UPDATE content_variants SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now, now, id, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns processing entries with expired heartbeats
// back to pending so the crash-recovery sweep can re-enqueue them.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE content_variants
         SET status = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		StatusPending, now, StatusProcessing, cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale variants: %w", err)
	}
	return res.RowsAffected()
}
