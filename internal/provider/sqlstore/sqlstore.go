// Package sqlstore provides a document provider backed by a SQL metadata
// table. PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite) are supported.
// Document ids are the normalized paths stored in the files table.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/fruitsalade/docnav/internal/provider"
	"github.com/fruitsalade/docnav/pkg/models"
)

// RootPath is the document id of the root folder.
const RootPath = "/"

const schema = `CREATE TABLE IF NOT EXISTS files (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	path        TEXT NOT NULL UNIQUE,
	parent_path TEXT NOT NULL,
	size        BIGINT NOT NULL DEFAULT 0,
	mod_time    BIGINT NOT NULL DEFAULT 0,
	is_dir      BOOLEAN NOT NULL DEFAULT FALSE,
	mime_type   TEXT NOT NULL DEFAULT ''
)`

const indexSchema = `CREATE INDEX IF NOT EXISTS idx_files_parent_path ON files (parent_path)`

const selectColumns = `SELECT id, name, path, parent_path, size, mod_time, is_dir, mime_type FROM files`

// Config holds SQL provider settings.
type Config struct {
	Authority string           `yaml:"authority"`
	Profile   models.ProfileID `yaml:"profile"`
	Driver    string           `yaml:"driver"` // "postgres" or "sqlite"
	DSN       string           `yaml:"dsn"`
	Title     string           `yaml:"title"`
}

// Store is a SQL-backed document provider.
type Store struct {
	db        *sql.DB
	driver    string
	authority string
	profile   models.ProfileID
	title     string
}

// FileRow maps to the files table.
type FileRow struct {
	ID         string
	Name       string
	Path       string
	ParentPath string
	Size       int64
	ModTime    time.Time
	IsDir      bool
	MimeType   string
}

// New opens the database and ensures the schema exists.
func New(cfg Config) (*Store, error) {
	driver := cfg.Driver
	switch driver {
	case "postgres", "sqlite":
	case "":
		driver = "postgres"
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == "sqlite" {
		// A single connection keeps ":memory:" databases shared.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := NewWithDB(db, driver, cfg)
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing connection. The schema is not created.
func NewWithDB(db *sql.DB, driver string, cfg Config) *Store {
	authority := cfg.Authority
	if authority == "" {
		authority = "sql"
	}
	title := cfg.Title
	if title == "" {
		title = authority
	}
	return &Store{db: db, driver: driver, authority: authority, profile: cfg.Profile, title: title}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the files table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range []string{schema, indexSchema} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Authority implements provider.Provider.
func (s *Store) Authority() string { return s.authority }

// Roots implements provider.Provider.
func (s *Store) Roots(_ context.Context) ([]models.Root, error) {
	return []models.Root{{
		Authority:  s.authority,
		RootID:     "sql",
		Profile:    s.profile,
		Title:      s.title,
		DocumentID: RootPath,
		Flags:      models.RootSupportsSearch | models.RootSupportsRecents | models.RootSupportsFindPath,
	}}, nil
}

// Document implements provider.Provider.
func (s *Store) Document(ctx context.Context, documentID string) (models.Document, error) {
	path := normalizePath(documentID)
	if path == RootPath {
		r, err := s.getRow(ctx, path)
		if errors.Is(err, provider.ErrNotFound) {
			return s.rootDocument(), nil
		}
		if err != nil {
			return models.Document{}, err
		}
		return s.rowToDocument(r), nil
	}
	r, err := s.getRow(ctx, path)
	if err != nil {
		return models.Document{}, err
	}
	return s.rowToDocument(r), nil
}

func (s *Store) getRow(ctx context.Context, path string) (*FileRow, error) {
	var r FileRow
	var mod int64
	err := s.db.QueryRowContext(ctx, s.rebind(selectColumns+` WHERE path = ?`), path).
		Scan(&r.ID, &r.Name, &r.Path, &r.ParentPath, &r.Size, &mod, &r.IsDir, &r.MimeType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", path, provider.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if mod != 0 {
		r.ModTime = time.Unix(0, mod)
	}
	return &r, nil
}

// ListChildren implements provider.Provider.
func (s *Store) ListChildren(ctx context.Context, documentID string) ([]models.Document, error) {
	path := normalizePath(documentID)
	if path != RootPath {
		r, err := s.getRow(ctx, path)
		if err != nil {
			return nil, err
		}
		if !r.IsDir {
			return nil, fmt.Errorf("document %s is not a directory", path)
		}
	}
	return s.query(ctx, selectColumns+` WHERE parent_path = ? AND path <> ? ORDER BY name`, path, RootPath)
}

// FindPath implements provider.PathFinder by walking parent_path links.
func (s *Store) FindPath(ctx context.Context, documentID string) (models.Path, error) {
	path := normalizePath(documentID)
	var chain []string
	current := path
	for current != RootPath {
		r, err := s.getRow(ctx, current)
		if err != nil {
			return models.Path{}, err
		}
		chain = append(chain, r.Path)
		if r.ParentPath == current || len(chain) > 4096 {
			return models.Path{}, fmt.Errorf("cycle in parent links at %s", current)
		}
		current = normalizePath(r.ParentPath)
	}
	ids := make([]string, 0, len(chain)+1)
	ids = append(ids, RootPath)
	for i := len(chain) - 1; i >= 0; i-- {
		ids = append(ids, chain[i])
	}
	return models.Path{RootID: "sql", IDs: ids}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search implements provider.Searcher with a case-insensitive substring
// match on names. LIKE wildcards in query match literally.
func (s *Store) Search(ctx context.Context, _ string, query string) ([]models.Document, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
	return s.query(ctx, selectColumns+` WHERE LOWER(name) LIKE ? ESCAPE '\' AND path <> ? ORDER BY name`, pattern, RootPath)
}

// Recent implements provider.RecentsLister.
func (s *Store) Recent(ctx context.Context, _ string, limit int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx, selectColumns+` WHERE is_dir = ? AND mod_time > 0 ORDER BY mod_time DESC LIMIT ?`, false, limit)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var r FileRow
		var mod int64
		if err := rows.Scan(&r.ID, &r.Name, &r.Path, &r.ParentPath,
			&r.Size, &mod, &r.IsDir, &r.MimeType); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if mod != 0 {
			r.ModTime = time.Unix(0, mod)
		}
		docs = append(docs, s.rowToDocument(&r))
	}
	return docs, rows.Err()
}

// UpsertFile inserts or updates a file metadata entry.
func (s *Store) UpsertFile(ctx context.Context, f *FileRow) error {
	path := normalizePath(f.Path)
	parent := normalizePath(f.ParentPath)
	if f.ParentPath == "" {
		parent = parentOf(path)
	}
	id := f.ID
	if id == "" {
		id = path
	}
	var mod int64
	if !f.ModTime.IsZero() {
		mod = f.ModTime.UnixNano()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO files (id, name, path, parent_path, size, mod_time, is_dir, mime_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (path) DO UPDATE SET
			name = EXCLUDED.name,
			size = EXCLUDED.size,
			mod_time = EXCLUDED.mod_time,
			is_dir = EXCLUDED.is_dir,
			mime_type = EXCLUDED.mime_type`),
		id, f.Name, path, parent, f.Size, mod, f.IsDir, f.MimeType)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// DeleteFile removes a file entry.
func (s *Store) DeleteFile(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM files WHERE path = ?`), normalizePath(path))
	return err
}

// FileCount returns the total number of file entries.
func (s *Store) FileCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&count)
	return count, err
}

func (s *Store) rootDocument() models.Document {
	return models.Document{
		Authority:   s.authority,
		DocumentID:  RootPath,
		Profile:     s.profile,
		DisplayName: s.title,
		MimeType:    models.MimeDirectory,
	}
}

func (s *Store) rowToDocument(r *FileRow) models.Document {
	doc := models.Document{
		Authority:   s.authority,
		DocumentID:  r.Path,
		Profile:     s.profile,
		DisplayName: r.Name,
		Size:        r.Size,
		ModTime:     r.ModTime,
		MimeType:    r.MimeType,
	}
	if r.IsDir {
		doc.MimeType = models.MimeDirectory
	} else if doc.MimeType == "" {
		doc.MimeType = "application/octet-stream"
	}
	if models.IsMimeArchive(doc.MimeType) {
		doc.Flags |= models.FlagArchive
	}
	return doc
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if path == RootPath {
		return path
	}
	return strings.TrimSuffix(path, "/")
}

func parentOf(path string) string {
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return RootPath
	}
	return path[:i]
}
