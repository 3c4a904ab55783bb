package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"lectern/internal/config"
	"lectern/internal/content"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; existing databases with another version are rejected.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store manages variant persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the variant ledger database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "variants.db"))
}

// OpenPath opens the ledger at an explicit database path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete the database to rebuild)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// GetOrCreate returns the ledger entry for the key, inserting a pending entry
// when none exists. Creation is idempotent: an existing entry of any status
// is returned unchanged with created=false.
func (s *Store) GetOrCreate(ctx context.Context, itemID string, vtype content.VariantType, tier content.NetworkTier) (*Variant, bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT OR IGNORE INTO content_variants (
            content_item_id, variant_type, network_tier, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?)`,
		itemID, string(vtype), string(tier), StatusPending, now, now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert variant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	variant, err := s.Get(ctx, itemID, vtype, tier)
	if err != nil {
		return nil, false, err
	}
	if variant == nil {
		return nil, false, fmt.Errorf("variant %s/%s@%s vanished after insert", itemID, vtype, tier)
	}
	return variant, affected > 0, nil
}

// Get fetches one ledger entry by its natural key, or nil when absent.
func (s *Store) Get(ctx context.Context, itemID string, vtype content.VariantType, tier content.NetworkTier) (*Variant, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+variantColumns+` FROM content_variants
         WHERE content_item_id = ? AND variant_type = ? AND network_tier = ?`,
		itemID, string(vtype), string(tier),
	)
	variant, err := scanVariant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get variant: %w", err)
	}
	return variant, nil
}

// GetByID fetches one ledger entry by row id, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Variant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+variantColumns+` FROM content_variants WHERE id = ?`, id)
	variant, err := scanVariant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get variant by id: %w", err)
	}
	return variant, nil
}

// ByItem returns all ledger entries for a content item, oldest first.
func (s *Store) ByItem(ctx context.Context, itemID string) ([]*Variant, error) {
	return s.queryVariants(
		ctx,
		`SELECT `+variantColumns+` FROM content_variants WHERE content_item_id = ? ORDER BY created_at, id`,
		itemID,
	)
}

// ReadyByItem returns all ready entries for a content item.
func (s *Store) ReadyByItem(ctx context.Context, itemID string) ([]*Variant, error) {
	return s.queryVariants(
		ctx,
		`SELECT `+variantColumns+` FROM content_variants
         WHERE content_item_id = ? AND status = ? ORDER BY created_at, id`,
		itemID, StatusReady,
	)
}

// ByStatus returns all entries with the given status across items.
func (s *Store) ByStatus(ctx context.Context, status Status) ([]*Variant, error) {
	return s.queryVariants(
		ctx,
		`SELECT `+variantColumns+` FROM content_variants WHERE status = ? ORDER BY created_at, id`,
		status,
	)
}

// Counts aggregates entries for one content item by status.
func (s *Store) Counts(ctx context.Context, itemID string) (StatusCounts, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT status, COUNT(1) FROM content_variants WHERE content_item_id = ? GROUP BY status`,
		itemID,
	)
	if err != nil {
		return StatusCounts{}, fmt.Errorf("variant counts: %w", err)
	}
	defer rows.Close()

	counts := StatusCounts{}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return StatusCounts{}, err
		}
		counts.Total += count
		switch status {
		case StatusPending:
			counts.Pending += count
		case StatusProcessing:
			counts.Processing += count
		case StatusReady:
			counts.Ready += count
		case StatusFailed:
			counts.Failed += count
		}
	}
	return counts, rows.Err()
}

// Cleanup deletes entries for the item whose variant type is not in
// keepTypes. Used when a re-categorized item's required variant set shrinks.
func (s *Store) Cleanup(ctx context.Context, itemID string, keepTypes []content.VariantType) (int64, error) {
	if len(keepTypes) == 0 {
		res, err := s.execWithRetry(ctx, `DELETE FROM content_variants WHERE content_item_id = ?`, itemID)
		if err != nil {
			return 0, fmt.Errorf("cleanup variants: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(keepTypes))
	args := make([]any, 0, len(keepTypes)+1)
	args = append(args, itemID)
	for _, vt := range keepTypes {
		args = append(args, string(vt))
	}
	query := `DELETE FROM content_variants WHERE content_item_id = ? AND variant_type NOT IN (` + placeholders + `)`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("cleanup variants: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) queryVariants(ctx context.Context, query string, args ...any) ([]*Variant, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	var variants []*Variant
	for rows.Next() {
		variant, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		variants = append(variants, variant)
	}
	return variants, rows.Err()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

const variantColumns = "id, content_item_id, variant_type, network_tier, status, mime_type, byte_size, width, height, bitrate_kbps, codec, file_ref, inline_text, external_url, quality_score, bandwidth_estimate_kb, error_message, created_at, updated_at, last_heartbeat"

func scanVariant(scanner interface{ Scan(dest ...any) error }) (*Variant, error) {
	var (
		id               int64
		itemID           string
		variantType      string
		networkTier      string
		statusStr        string
		mimeType         sql.NullString
		byteSize         sql.NullInt64
		width            sql.NullInt64
		height           sql.NullInt64
		bitrate          sql.NullInt64
		codec            sql.NullString
		fileRef          sql.NullString
		inlineText       sql.NullString
		externalURL      sql.NullString
		qualityScore     sql.NullInt64
		bandwidthKB      sql.NullInt64
		errorMessage     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&itemID,
		&variantType,
		&networkTier,
		&statusStr,
		&mimeType,
		&byteSize,
		&width,
		&height,
		&bitrate,
		&codec,
		&fileRef,
		&inlineText,
		&externalURL,
		&qualityScore,
		&bandwidthKB,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	variant := &Variant{
		ID:           id,
		ItemID:       itemID,
		Type:         content.VariantType(variantType),
		Tier:         content.NetworkTier(networkTier),
		Status:       Status(statusStr),
		MimeType:     mimeType.String,
		ByteSize:     byteSize.Int64,
		Width:        int(width.Int64),
		Height:       int(height.Int64),
		BitrateKbps:  int(bitrate.Int64),
		Codec:        codec.String,
		FileRef:      fileRef.String,
		InlineText:   inlineText.String,
		ExternalURL:  externalURL.String,
		qualityScore: int(qualityScore.Int64),
		bandwidthKB:  bandwidthKB.Int64,
		ErrorMsg:     errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		variant.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		variant.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			variant.LastHeartbeat = &heartbeat
		}
	}
	return variant, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
