// Package contentstore persists content items in SQLite. The delivery engine
// reads items and writes back text alternatives as a planning side effect;
// everything else here serves the authoring CLI.
package contentstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"lectern/internal/config"
	"lectern/internal/content"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store manages content item persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the content database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "content.db"))
}

// OpenPath opens the content store at an explicit database path.
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

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
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
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

// Create inserts a new content item. A missing ID is generated; a missing
// status defaults to draft.
func (s *Store) Create(ctx context.Context, item *content.Item) (*content.Item, error) {
	if item == nil {
		return nil, errors.New("item is nil")
	}
	if strings.TrimSpace(item.ID) == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = content.ItemDraft
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO content_items (
            id, title, category, body, source_ref, external_url, format,
            duration_seconds, byte_size, page_count, code_language, alt_text,
            transcript, has_captions, description, language, text_alternative,
            has_text_alternative, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.Title,
		string(item.Category),
		nullableString(item.Body),
		nullableString(item.SourceRef),
		nullableString(item.ExternalURL),
		nullableString(string(item.Format)),
		item.DurationSeconds,
		item.ByteSize,
		item.PageCount,
		nullableString(item.CodeLanguage),
		nullableString(item.AltText),
		nullableString(item.Transcript),
		boolToInt(item.HasCaptions),
		nullableString(item.Description),
		nullableString(item.Language),
		nullableString(item.TextAlternative),
		boolToInt(item.HasTextAlternative),
		string(item.Status),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert content item: %w", err)
	}
	return s.Get(ctx, item.ID)
}

// Get fetches a content item by identifier, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*content.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM content_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content item: %w", err)
	}
	return item, nil
}

// List returns items filtered by category (empty matches all), newest first.
func (s *Store) List(ctx context.Context, category content.Category) ([]*content.Item, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if category == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM content_items ORDER BY created_at DESC`)
	} else {
		rows, err = s.db.QueryContext(
			ctx,
			`SELECT `+itemColumns+` FROM content_items WHERE category = ? ORDER BY created_at DESC`,
			string(category),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list content items: %w", err)
	}
	defer rows.Close()

	var items []*content.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Update persists changes to an existing item.
func (s *Store) Update(ctx context.Context, item *content.Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE content_items
         SET title = ?, category = ?, body = ?, source_ref = ?, external_url = ?,
             format = ?, duration_seconds = ?, byte_size = ?, page_count = ?,
             code_language = ?, alt_text = ?, transcript = ?, has_captions = ?,
             description = ?, language = ?, text_alternative = ?,
             has_text_alternative = ?, status = ?, updated_at = ?
         WHERE id = ?`,
		item.Title,
		string(item.Category),
		nullableString(item.Body),
		nullableString(item.SourceRef),
		nullableString(item.ExternalURL),
		nullableString(string(item.Format)),
		item.DurationSeconds,
		item.ByteSize,
		item.PageCount,
		nullableString(item.CodeLanguage),
		nullableString(item.AltText),
		nullableString(item.Transcript),
		boolToInt(item.HasCaptions),
		nullableString(item.Description),
		nullableString(item.Language),
		nullableString(item.TextAlternative),
		boolToInt(item.HasTextAlternative),
		string(item.Status),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update content item: %w", err)
	}
	return nil
}

// SetTextAlternative records the derived text alternative on an item. This is
// the planning side-effect write the engine performs.
func (s *Store) SetTextAlternative(ctx context.Context, id, alternative string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE content_items
         SET text_alternative = ?, has_text_alternative = 1, updated_at = ?
         WHERE id = ?`,
		alternative, now, id,
	)
	if err != nil {
		return fmt.Errorf("set text alternative: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("content item %s not found", id)
	}
	return nil
}

// Remove deletes an item by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM content_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete content item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const itemColumns = "id, title, category, body, source_ref, external_url, format, duration_seconds, byte_size, page_count, code_language, alt_text, transcript, has_captions, description, language, text_alternative, has_text_alternative, status, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*content.Item, error) {
	var (
		id           string
		title        string
		category     string
		body         sql.NullString
		sourceRef    sql.NullString
		externalURL  sql.NullString
		format       sql.NullString
		duration     sql.NullFloat64
		byteSize     sql.NullInt64
		pageCount    sql.NullInt64
		codeLanguage sql.NullString
		altText      sql.NullString
		transcript   sql.NullString
		hasCaptions  sql.NullInt64
		description  sql.NullString
		langTag      sql.NullString
		textAlt      sql.NullString
		hasTextAlt   sql.NullInt64
		statusStr    string
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&category,
		&body,
		&sourceRef,
		&externalURL,
		&format,
		&duration,
		&byteSize,
		&pageCount,
		&codeLanguage,
		&altText,
		&transcript,
		&hasCaptions,
		&description,
		&langTag,
		&textAlt,
		&hasTextAlt,
		&statusStr,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &content.Item{
		ID:                 id,
		Title:              title,
		Category:           content.Category(category),
		Body:               body.String,
		SourceRef:          sourceRef.String,
		ExternalURL:        externalURL.String,
		Format:             content.TextFormat(format.String),
		DurationSeconds:    duration.Float64,
		ByteSize:           byteSize.Int64,
		PageCount:          int(pageCount.Int64),
		CodeLanguage:       codeLanguage.String,
		AltText:            altText.String,
		Transcript:         transcript.String,
		HasCaptions:        hasCaptions.Int64 != 0,
		Description:        description.String,
		Language:           langTag.String,
		TextAlternative:    textAlt.String,
		HasTextAlternative: hasTextAlt.Int64 != 0,
		Status:             content.ItemStatus(statusStr),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
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
