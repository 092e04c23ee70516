// Package archive exposes the contents of zip archives held by other
// providers as browsable documents.
//
// An archive document id is the escaped identity of the archive's source
// document followed by "#" and the entry path. The archive root has an empty
// entry path; folder entries end with "/".
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fruitsalade/docnav/internal/logging"
	"github.com/fruitsalade/docnav/internal/provider"
	"github.com/fruitsalade/docnav/pkg/models"
)

// Authority is the authority under which archive contents are served.
const Authority = "com.docnav.archives"

// Source opens the bytes of a document held by another provider.
type Source interface {
	Open(ctx context.Context, profile models.ProfileID, authority, documentID string) (io.ReadCloser, int64, error)
}

// ID identifies an entry inside an archive.
type ID struct {
	SourceAuthority string
	SourceID        string
	Entry           string
}

// String encodes the id.
func (id ID) String() string {
	return url.PathEscape(id.SourceAuthority) + "/" + url.PathEscape(id.SourceID) + "#" + id.Entry
}

func (id ID) sourceKey() string {
	return url.PathEscape(id.SourceAuthority) + "/" + url.PathEscape(id.SourceID)
}

// ParseID decodes an archive document id.
func ParseID(s string) (ID, error) {
	hash := strings.IndexByte(s, '#')
	if hash < 0 {
		return ID{}, fmt.Errorf("archive id %q: missing entry separator", s)
	}
	src, entry := s[:hash], s[hash+1:]
	slash := strings.IndexByte(src, '/')
	if slash < 0 {
		return ID{}, fmt.Errorf("archive id %q: missing source authority", s)
	}
	authority, err := url.PathUnescape(src[:slash])
	if err != nil {
		return ID{}, fmt.Errorf("archive id %q: %w", s, err)
	}
	docID, err := url.PathUnescape(src[slash+1:])
	if err != nil {
		return ID{}, fmt.Errorf("archive id %q: %w", s, err)
	}
	return ID{SourceAuthority: authority, SourceID: docID, Entry: entry}, nil
}

// RootDocument returns the document standing for the inside of an archive.
func RootDocument(archive models.Document) models.Document {
	id := ID{SourceAuthority: archive.Authority, SourceID: archive.DocumentID}
	return models.Document{
		Authority:   Authority,
		DocumentID:  id.String(),
		Profile:     archive.Profile,
		DisplayName: archive.DisplayName,
		MimeType:    models.MimeDirectory,
		ModTime:     archive.ModTime,
		Flags:       models.FlagVirtual,
	}
}

// index is the parsed directory of one archive.
type index struct {
	files    map[string]*zip.File
	children map[string][]string // folder entry -> child entries
}

// Provider serves archive contents for one profile.
type Provider struct {
	profile models.ProfileID
	source  Source
	cache   *Cache

	mu      sync.Mutex
	indexes map[string]*index
	readers map[string]*zip.ReadCloser
}

// New creates an archive provider reading archives through source and
// keeping local copies in cache.
func New(profile models.ProfileID, source Source, cache *Cache) *Provider {
	return &Provider{
		profile: profile,
		source:  source,
		cache:   cache,
		indexes: make(map[string]*index),
		readers: make(map[string]*zip.ReadCloser),
	}
}

// Authority implements provider.Provider.
func (p *Provider) Authority() string { return Authority }

// Roots implements provider.Provider. Archives are only reachable by
// entering an archive document, so there are no roots.
func (p *Provider) Roots(_ context.Context) ([]models.Root, error) {
	return nil, nil
}

// open returns the index of the archive named by id, fetching and caching
// the archive on first use.
func (p *Provider) open(ctx context.Context, id ID) (*index, error) {
	key := id.sourceKey()

	p.mu.Lock()
	if idx, ok := p.indexes[key]; ok {
		p.mu.Unlock()
		p.cache.Get(key)
		return idx, nil
	}
	p.mu.Unlock()

	// The source may be this provider (nested archives), so the lock is
	// not held while fetching.
	localPath, ok := p.cache.Get(key)
	if !ok {
		rc, size, err := p.source.Open(ctx, p.profile, id.SourceAuthority, id.SourceID)
		if err != nil {
			return nil, fmt.Errorf("open archive %s: %w", id.SourceID, err)
		}
		localPath, err = p.cache.Put(key, rc, size)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("cache archive %s: %w", id.SourceID, err)
		}
		logging.Debug("archive cached",
			zap.String("authority", id.SourceAuthority),
			zap.String("document", id.SourceID),
			zap.Int64("size", size))
	}

	zr, err := zip.OpenReader(localPath)
	if err != nil {
		p.cache.Evict(key)
		return nil, fmt.Errorf("read archive %s: %w", id.SourceID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if idx, ok := p.indexes[key]; ok {
		zr.Close()
		return idx, nil
	}
	p.cache.Pin(key, true)

	idx := buildIndex(zr.File)
	p.indexes[key] = idx
	p.readers[key] = zr
	return idx, nil
}

func buildIndex(files []*zip.File) *index {
	idx := &index{
		files:    make(map[string]*zip.File),
		children: map[string][]string{"": nil},
	}
	seen := map[string]bool{"": true}
	add := func(parent, child string) {
		if seen[child] {
			return
		}
		seen[child] = true
		idx.children[parent] = append(idx.children[parent], child)
	}

	for _, f := range files {
		name := strings.TrimPrefix(path.Clean("/"+f.Name), "/")
		if name == "" || strings.HasPrefix(name, "../") {
			continue
		}
		isDir := strings.HasSuffix(f.Name, "/")
		parts := strings.Split(name, "/")
		parent := ""
		for i, part := range parts {
			entry := parent + part
			last := i == len(parts)-1
			if !last || isDir {
				entry += "/"
				if _, ok := idx.children[entry]; !ok {
					idx.children[entry] = nil
				}
			}
			add(parent, entry)
			if last && !isDir {
				idx.files[entry] = f
			}
			parent = entry
		}
	}
	for k := range idx.children {
		sort.Strings(idx.children[k])
	}
	return idx
}

func (p *Provider) entryDocument(id ID, idx *index) (models.Document, bool) {
	name := path.Base(strings.TrimSuffix(id.Entry, "/"))
	doc := models.Document{
		Authority:   Authority,
		DocumentID:  id.String(),
		Profile:     p.profile,
		DisplayName: name,
	}
	if _, ok := idx.children[id.Entry]; ok {
		doc.MimeType = models.MimeDirectory
		doc.Flags = models.FlagVirtual
		return doc, true
	}
	f, ok := idx.files[id.Entry]
	if !ok {
		return models.Document{}, false
	}
	doc.MimeType = models.MimeTypeFromName(name)
	doc.Size = int64(f.UncompressedSize64)
	doc.ModTime = f.Modified
	if models.IsMimeArchive(doc.MimeType) {
		doc.Flags |= models.FlagArchive
	}
	return doc, true
}

// Document implements provider.Provider.
func (p *Provider) Document(ctx context.Context, documentID string) (models.Document, error) {
	id, err := ParseID(documentID)
	if err != nil {
		return models.Document{}, err
	}
	idx, err := p.open(ctx, id)
	if err != nil {
		return models.Document{}, err
	}
	if id.Entry == "" {
		return models.Document{
			Authority:   Authority,
			DocumentID:  id.String(),
			Profile:     p.profile,
			DisplayName: path.Base(id.SourceID),
			MimeType:    models.MimeDirectory,
			Flags:       models.FlagVirtual,
		}, nil
	}
	doc, ok := p.entryDocument(id, idx)
	if !ok {
		return models.Document{}, fmt.Errorf("entry %s: %w", id.Entry, provider.ErrNotFound)
	}
	return doc, nil
}

// ListChildren implements provider.Provider.
func (p *Provider) ListChildren(ctx context.Context, documentID string) ([]models.Document, error) {
	id, err := ParseID(documentID)
	if err != nil {
		return nil, err
	}
	idx, err := p.open(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, ok := idx.children[id.Entry]
	if !ok {
		return nil, fmt.Errorf("entry %s: %w", id.Entry, provider.ErrNotFound)
	}
	docs := make([]models.Document, 0, len(entries))
	for _, entry := range entries {
		child := ID{SourceAuthority: id.SourceAuthority, SourceID: id.SourceID, Entry: entry}
		if doc, ok := p.entryDocument(child, idx); ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// Open implements provider.Opener, so archives nested in archives can be entered.
func (p *Provider) Open(ctx context.Context, documentID string) (io.ReadCloser, int64, error) {
	id, err := ParseID(documentID)
	if err != nil {
		return nil, 0, err
	}
	idx, err := p.open(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	f, ok := idx.files[id.Entry]
	if !ok {
		return nil, 0, fmt.Errorf("entry %s: %w", id.Entry, provider.ErrNotFound)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, 0, fmt.Errorf("open entry %s: %w", id.Entry, err)
	}
	return rc, int64(f.UncompressedSize64), nil
}

// Close releases every open archive.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for key, zr := range p.readers {
		if err := zr.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.cache.Pin(key, false)
	}
	p.readers = make(map[string]*zip.ReadCloser)
	p.indexes = make(map[string]*index)
	return firstErr
}
