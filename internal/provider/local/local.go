// Package local provides a document provider backed by a directory on the
// local filesystem. Document ids are slash paths relative to the root
// directory; the root document is "/".
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fruitsalade/docnav/internal/provider"
	"github.com/fruitsalade/docnav/pkg/models"
)

// RootDocumentID is the document id of the directory the provider serves.
const RootDocumentID = "/"

// Config holds local filesystem provider settings.
type Config struct {
	Authority  string           `yaml:"authority"`
	Profile    models.ProfileID `yaml:"profile"`
	RootPath   string           `yaml:"root_path"`
	Title      string           `yaml:"title"`
	ShowHidden bool             `yaml:"show_hidden"`
	CreateDirs bool             `yaml:"create_dirs"`
}

// Provider implements provider.Provider over the local filesystem.
type Provider struct {
	authority  string
	profile    models.ProfileID
	rootDir    string
	title      string
	showHidden bool
}

// New creates a local provider.
func New(cfg Config) (*Provider, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root_path is required")
	}
	if cfg.Authority == "" {
		cfg.Authority = "local"
	}

	absPath, err := filepath.Abs(cfg.RootPath)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) && cfg.CreateDirs {
			if mkErr := os.MkdirAll(absPath, 0755); mkErr != nil {
				return nil, fmt.Errorf("create root path %s: %w", absPath, mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat root path %s: %w", absPath, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", absPath)
	}

	title := cfg.Title
	if title == "" {
		title = filepath.Base(absPath)
	}

	return &Provider{
		authority:  cfg.Authority,
		profile:    cfg.Profile,
		rootDir:    absPath,
		title:      title,
		showHidden: cfg.ShowHidden,
	}, nil
}

// Authority implements provider.Provider.
func (p *Provider) Authority() string { return p.authority }

// Roots implements provider.Provider.
func (p *Provider) Roots(_ context.Context) ([]models.Root, error) {
	return []models.Root{{
		Authority:  p.authority,
		RootID:     "local",
		Profile:    p.profile,
		Title:      p.title,
		DocumentID: RootDocumentID,
		Flags:      models.RootSupportsSearch | models.RootSupportsRecents | models.RootSupportsFindPath,
	}}, nil
}

// cleanID normalizes a document id and rejects ids escaping the root.
func cleanID(id string) (string, error) {
	if id == "" {
		return RootDocumentID, nil
	}
	if strings.Contains(id, "\\") {
		return "", fmt.Errorf("invalid document id %q", id)
	}
	for _, seg := range strings.Split(id, "/") {
		if seg == ".." {
			return "", fmt.Errorf("invalid document id %q", id)
		}
	}
	return path.Clean("/" + strings.TrimPrefix(id, "/")), nil
}

func (p *Provider) fullPath(id string) string {
	return filepath.Join(p.rootDir, filepath.FromSlash(strings.TrimPrefix(id, "/")))
}

// classify maps filesystem errors onto provider errors.
func (p *Provider) classify(op, id string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s %s: %w", op, id, provider.ErrNotFound)
	case errors.Is(err, fs.ErrPermission):
		return provider.Errorf(provider.KindNoPermission, p.authority, op, err)
	default:
		return fmt.Errorf("%s %s: %w", op, id, err)
	}
}

// Document implements provider.Provider.
func (p *Provider) Document(_ context.Context, documentID string) (models.Document, error) {
	id, err := cleanID(documentID)
	if err != nil {
		return models.Document{}, err
	}
	info, err := os.Stat(p.fullPath(id))
	if err != nil {
		return models.Document{}, p.classify("stat", id, err)
	}
	return p.infoToDocument(id, info), nil
}

// ListChildren implements provider.Provider.
func (p *Provider) ListChildren(_ context.Context, documentID string) ([]models.Document, error) {
	id, err := cleanID(documentID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p.fullPath(id))
	if err != nil {
		return nil, p.classify("list", id, err)
	}

	docs := make([]models.Document, 0, len(entries))
	for _, entry := range entries {
		if !p.showHidden && strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // Skip entries removed while listing
		}
		docs = append(docs, p.infoToDocument(path.Join(id, entry.Name()), info))
	}
	return docs, nil
}

// FindPath implements provider.PathFinder. The path is the chain of
// directory prefixes from the root document down to the document.
func (p *Provider) FindPath(_ context.Context, documentID string) (models.Path, error) {
	id, err := cleanID(documentID)
	if err != nil {
		return models.Path{}, err
	}
	if _, err := os.Stat(p.fullPath(id)); err != nil {
		return models.Path{}, p.classify("find_path", id, err)
	}
	return models.Path{RootID: "local", IDs: Segments(id)}, nil
}

// Segments returns the ids of every ancestor of id plus id itself, starting
// with the root document.
func Segments(id string) []string {
	out := []string{RootDocumentID}
	if id == RootDocumentID {
		return out
	}
	current := ""
	for _, seg := range strings.Split(strings.Trim(id, "/"), "/") {
		current += "/" + seg
		out = append(out, current)
	}
	return out
}

// Search implements provider.Searcher with a case-insensitive name match.
func (p *Provider) Search(ctx context.Context, _ string, query string) ([]models.Document, error) {
	q := strings.ToLower(query)
	var out []models.Document
	err := p.walk(ctx, func(id string, info fs.FileInfo) {
		if strings.Contains(strings.ToLower(info.Name()), q) {
			out = append(out, p.infoToDocument(id, info))
		}
	})
	return out, err
}

// Recent implements provider.RecentsLister: the most recently modified files.
func (p *Provider) Recent(ctx context.Context, _ string, limit int) ([]models.Document, error) {
	var out []models.Document
	err := p.walk(ctx, func(id string, info fs.FileInfo) {
		if !info.IsDir() {
			out = append(out, p.infoToDocument(id, info))
		}
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ModTime.After(out[j].ModTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (p *Provider) walk(ctx context.Context, fn func(id string, info fs.FileInfo)) error {
	return filepath.WalkDir(p.rootDir, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			if full == p.rootDir {
				return p.classify("walk", RootDocumentID, err)
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if full == p.rootDir {
			return nil
		}
		if !p.showHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(p.rootDir, full)
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		fn("/"+filepath.ToSlash(rel), info)
		return nil
	})
}

// Open implements provider.Opener.
func (p *Provider) Open(_ context.Context, documentID string) (io.ReadCloser, int64, error) {
	id, err := cleanID(documentID)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(p.fullPath(id))
	if err != nil {
		return nil, 0, p.classify("open", id, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, p.classify("stat", id, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, fmt.Errorf("cannot read directory %s", id)
	}
	return f, info.Size(), nil
}

func (p *Provider) infoToDocument(id string, info fs.FileInfo) models.Document {
	name := info.Name()
	if id == RootDocumentID {
		name = p.title
	}

	doc := models.Document{
		Authority:   p.authority,
		DocumentID:  id,
		Profile:     p.profile,
		DisplayName: name,
		ModTime:     info.ModTime(),
	}
	if info.IsDir() {
		doc.MimeType = models.MimeDirectory
	} else {
		doc.Size = info.Size()
		doc.MimeType = models.MimeTypeFromName(name)
		if models.IsMimeArchive(doc.MimeType) {
			doc.Flags |= models.FlagArchive
		}
	}
	if info.Mode().Perm()&0200 != 0 {
		doc.Flags |= models.FlagWritable
	}
	return doc
}
