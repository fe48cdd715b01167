package database

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/ebcrawl/internal/model"
)

// FileName is the database file created inside the database directory.
const FileName = "ebcrawl.db"

//go:embed migrations/*.sql
var migrations embed.FS

// Store persists posts, tags, comments and assets in SQLite.
// The posts.url, tags.name and assets.url unique constraints are what
// guarantee that an entity is never stored twice.
type Store struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// Options configures Open.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the store in dbDir and applies pending migrations.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, FileName)

	mode := "rwc"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else {
		mode = "rw"
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	}

	dsn := dbPath + "?mode=" + mode + "&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one connection also keeps per-connection
	// pragmas such as foreign_keys in effect for every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dbPath: dbPath, now: time.Now}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	drv, err := msqlite.WithInstance(db, &msqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to init migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	// m.Close is not called: it would close db.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// UpsertTags returns a tag for every distinct name, creating the missing
// ones. Names match exactly; the result follows first occurrence in names.
func (s *Store) UpsertTags(ctx context.Context, names []string) ([]model.Tag, error) {
	if len(names) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, persistErr("begin tag transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	seen := make(map[string]struct{}, len(names))
	tags := make([]model.Tag, 0, len(names))
	for _, raw := range names {
		name := model.Truncate(strings.TrimSpace(raw), model.MaxTagLength)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		if _, err := tx.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
			return nil, persistErr("insert tag "+name, err)
		}
		var id int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&id); err != nil {
			return nil, persistErr("look up tag "+name, err)
		}
		tags = append(tags, model.Tag{ID: id, Name: name})
	}

	if err := tx.Commit(); err != nil {
		return nil, persistErr("commit tags", err)
	}
	return tags, nil
}

// SavePost stores post and links it to tags in one transaction and returns
// the new row id. It fails with ErrDuplicatePost if the URL is already stored.
func (s *Store) SavePost(ctx context.Context, post *model.Post, tags []model.Tag) (int64, error) {
	if len(post.URL) > model.MaxURLLength {
		return 0, fmt.Errorf("%w: %w: url longer than %d bytes", ErrPersistence, ErrInvalidRecord, model.MaxURLLength)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, persistErr("begin post transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := s.now()
	res, err := tx.ExecContext(ctx, `
	INSERT INTO posts (url, title, author, published_at, published_unix, poster, content, category, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO NOTHING
	`,
		post.URL,
		model.Truncate(post.Title, model.MaxTitleLength),
		model.Truncate(post.Author, model.MaxAuthorLength),
		formatTime(post.Published),
		post.Published.Unix(),
		model.Truncate(post.Poster, model.MaxPosterLength),
		post.Content,
		model.Truncate(post.Category, model.MaxCategoryLength),
		formatTime(now),
	)
	if err != nil {
		return 0, persistErr("insert post", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, fmt.Errorf("%w: %s", ErrDuplicatePost, post.URL)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, persistErr("read post id", err)
	}

	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO post_tags (post_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING`, id, tag.ID); err != nil {
			return 0, persistErr("link tag "+tag.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, persistErr("commit post", err)
	}
	post.ID = id
	post.Updated = now
	return id, nil
}

// SaveComments stores a post's comment forest in one transaction.
// records must be ordered so that every parent precedes its children.
func (s *Store) SaveComments(ctx context.Context, postID int64, records []model.CommentRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin comment transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO comments (post_id, parent_id, author, published_at, content, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return persistErr("prepare comment insert", err)
	}
	defer stmt.Close()

	now := formatTime(s.now())
	ids := make([]int64, len(records))
	for i, r := range records {
		var parent sql.NullInt64
		if !r.IsRoot() {
			if r.Parent < 0 || r.Parent >= i {
				return fmt.Errorf("%w: %w: comment %d has parent index %d", ErrPersistence, ErrInvalidRecord, i, r.Parent)
			}
			parent = sql.NullInt64{Int64: ids[r.Parent], Valid: true}
		}

		res, err := stmt.ExecContext(ctx,
			postID,
			parent,
			model.Truncate(r.Author, model.MaxAuthorLength),
			formatTime(r.Published),
			r.Content,
			now,
		)
		if err != nil {
			return persistErr(fmt.Sprintf("insert comment %d", i), err)
		}
		if ids[i], err = res.LastInsertId(); err != nil {
			return persistErr("read comment id", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return persistErr("commit comments", err)
	}
	return nil
}

// SaveAssets records downloaded assets. An asset whose URL is already
// stored is replaced, so the record always names the latest file.
func (s *Store) SaveAssets(ctx context.Context, assets []model.Asset) error {
	if len(assets) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin asset transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, a := range assets {
		exif := ""
		if len(a.Exif) > 0 {
			data, err := json.Marshal(a.Exif)
			if err != nil {
				return persistErr("encode exif", err)
			}
			exif = string(data)
		}
		fetched := a.Fetched
		if fetched.IsZero() {
			fetched = s.now()
		}

		if _, err := tx.ExecContext(ctx, `
		INSERT INTO assets (url, file_name, size, checksum, exif, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			file_name = excluded.file_name,
			size = excluded.size,
			checksum = excluded.checksum,
			exif = excluded.exif,
			fetched_at = excluded.fetched_at
		`,
			a.URL,
			model.Truncate(a.FileName, model.MaxFileNameLength),
			a.Size,
			a.Checksum,
			exif,
			formatTime(fetched),
		); err != nil {
			return persistErr("insert asset "+a.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return persistErr("commit assets", err)
	}
	return nil
}

// DeletePost removes a post with its tag links and comments.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id); err != nil {
		return persistErr("delete post", err)
	}
	return nil
}

// LastPostURL returns the URL of the newest stored post by publish time,
// or "" when the store is empty. It is the resume boundary of the next crawl.
func (s *Store) LastPostURL(ctx context.Context) (string, error) {
	var url string
	err := s.db.QueryRowContext(ctx,
		`SELECT url FROM posts ORDER BY published_unix DESC, id DESC LIMIT 1`).Scan(&url)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query last post: %w", err)
	}
	return url, nil
}

// Exists reports whether a post with url is stored.
func (s *Store) Exists(ctx context.Context, url string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM posts WHERE url = ?)`, url).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check post: %w", err)
	}
	return exists, nil
}

// AssetByURL returns the stored asset for url, or nil if there is none.
func (s *Store) AssetByURL(ctx context.Context, url string) (*model.Asset, error) {
	var (
		a       model.Asset
		exif    string
		fetched string
	)
	err := s.db.QueryRowContext(ctx, `
	SELECT id, url, file_name, size, checksum, exif, fetched_at
	FROM assets WHERE url = ?
	`, url).Scan(&a.ID, &a.URL, &a.FileName, &a.Size, &a.Checksum, &exif, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query asset: %w", err)
	}

	if exif != "" {
		if err := json.Unmarshal([]byte(exif), &a.Exif); err != nil {
			return nil, fmt.Errorf("failed to decode exif of %s: %w", url, err)
		}
	}
	a.Fetched = parseTimestamp(fetched)
	return &a, nil
}

// Stats returns row counts and the current resume cursor.
func (s *Store) Stats(ctx context.Context) (*model.StoreStats, error) {
	stats := &model.StoreStats{}
	counts := []struct {
		table string
		dst   *int
	}{
		{"posts", &stats.Posts},
		{"comments", &stats.Comments},
		{"tags", &stats.Tags},
		{"assets", &stats.Assets},
	}
	for _, c := range counts {
		// table names come from the fixed list above
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil { //nolint:gosec
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}

	var published string
	err := s.db.QueryRowContext(ctx,
		`SELECT url, published_at FROM posts ORDER BY published_unix DESC, id DESC LIMIT 1`).
		Scan(&stats.LastPostURL, &published)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to query last post: %w", err)
	default:
		stats.LastPublished = parseTimestamp(published)
	}
	return stats, nil
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrPersistence, op, err)
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// timestampFormats contains the formats timestamps may be stored in.
// The order matters: more specific formats come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp parses a stored timestamp, returning the zero time if no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
