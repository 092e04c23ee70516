// Package memory provides a document provider backed by an in-memory tree.
// It serves scratch roots configured inline and backs the handler tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/fruitsalade/docnav/internal/provider"
	"github.com/fruitsalade/docnav/pkg/models"
)

// Provider serves a single root whose document is the tree's root node.
type Provider struct {
	authority string
	profile   models.ProfileID
	rootID    string
	title     string
	flags     models.RootFlags

	mu       sync.RWMutex
	root     *Node
	failures map[string]error
}

// Option configures a Provider.
type Option func(*Provider)

// WithRootID sets the root id (default "root").
func WithRootID(id string) Option {
	return func(p *Provider) { p.rootID = id }
}

// WithTitle sets the root title (default: the authority).
func WithTitle(title string) Option {
	return func(p *Provider) { p.title = title }
}

// WithFindPath toggles path resolution support.
func WithFindPath(enabled bool) Option {
	return func(p *Provider) {
		if enabled {
			p.flags |= models.RootSupportsFindPath
		} else {
			p.flags &^= models.RootSupportsFindPath
		}
	}
}

// New creates a provider serving root. Search and recents are supported;
// path resolution is on unless disabled with WithFindPath(false).
func New(authority string, profile models.ProfileID, root *Node, opts ...Option) *Provider {
	p := &Provider{
		authority: authority,
		profile:   profile,
		rootID:    "root",
		title:     authority,
		flags:     models.RootSupportsSearch | models.RootSupportsRecents | models.RootSupportsFindPath,
		root:      root,
		failures:  make(map[string]error),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Authority implements provider.Provider.
func (p *Provider) Authority() string { return p.authority }

// Roots implements provider.Provider.
func (p *Provider) Roots(_ context.Context) ([]models.Root, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return []models.Root{{
		Authority:  p.authority,
		RootID:     p.rootID,
		Profile:    p.profile,
		Title:      p.title,
		DocumentID: p.root.ID,
		Flags:      p.flags,
	}}, nil
}

// Document implements provider.Provider.
func (p *Provider) Document(_ context.Context, documentID string) (models.Document, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.failures[documentID]; err != nil {
		return models.Document{}, err
	}
	n := FindByID(p.root, documentID)
	if n == nil {
		return models.Document{}, fmt.Errorf("document %s: %w", documentID, provider.ErrNotFound)
	}
	return p.toDocument(n), nil
}

// ListChildren implements provider.Provider.
func (p *Provider) ListChildren(_ context.Context, documentID string) ([]models.Document, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.failures[documentID]; err != nil {
		return nil, err
	}
	n := FindByID(p.root, documentID)
	if n == nil {
		return nil, fmt.Errorf("document %s: %w", documentID, provider.ErrNotFound)
	}
	if n.MimeType != models.MimeDirectory {
		return nil, fmt.Errorf("document %s is not a directory", documentID)
	}
	docs := make([]models.Document, 0, len(n.Children))
	for _, c := range n.Children {
		docs = append(docs, p.toDocument(c))
	}
	return docs, nil
}

// FindPath implements provider.PathFinder.
func (p *Provider) FindPath(_ context.Context, documentID string) (models.Path, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.flags&models.RootSupportsFindPath == 0 {
		return models.Path{}, provider.ErrNotSupported
	}
	chain := PathTo(p.root, documentID)
	if chain == nil {
		return models.Path{}, fmt.Errorf("document %s: %w", documentID, provider.ErrNotFound)
	}
	ids := make([]string, len(chain))
	for i, n := range chain {
		ids[i] = n.ID
	}
	return models.Path{RootID: p.rootID, IDs: ids}, nil
}

// Search implements provider.Searcher.
func (p *Provider) Search(_ context.Context, rootID, query string) ([]models.Document, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if rootID != p.rootID {
		return nil, fmt.Errorf("root %s: %w", rootID, provider.ErrNotFound)
	}
	var out []models.Document
	Walk(p.root, func(n *Node) bool {
		if n != p.root && matchesQuery(n, query) {
			out = append(out, p.toDocument(n))
		}
		return true
	})
	return out, nil
}

// Recent implements provider.RecentsLister.
func (p *Provider) Recent(_ context.Context, rootID string, limit int) ([]models.Document, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if rootID != p.rootID {
		return nil, fmt.Errorf("root %s: %w", rootID, provider.ErrNotFound)
	}
	var out []models.Document
	Walk(p.root, func(n *Node) bool {
		if n.MimeType != models.MimeDirectory && !n.ModTime.IsZero() {
			out = append(out, p.toDocument(n))
		}
		return true
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].ModTime.After(out[j].ModTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Open implements provider.Opener.
func (p *Provider) Open(_ context.Context, documentID string) (io.ReadCloser, int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := FindByID(p.root, documentID)
	if n == nil {
		return nil, 0, fmt.Errorf("document %s: %w", documentID, provider.ErrNotFound)
	}
	if n.MimeType == models.MimeDirectory {
		return nil, 0, fmt.Errorf("cannot read directory %s", documentID)
	}
	return io.NopCloser(bytes.NewReader(n.Content)), int64(len(n.Content)), nil
}

// SetChildren replaces the children of a directory.
func (p *Provider) SetChildren(documentID string, children ...*Node) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := FindByID(p.root, documentID)
	if n == nil {
		return fmt.Errorf("document %s: %w", documentID, provider.ErrNotFound)
	}
	n.Children = children
	return nil
}

// FailWith makes every call on documentID return err until cleared with a nil err.
func (p *Provider) FailWith(documentID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, documentID)
		return
	}
	p.failures[documentID] = err
}

// MustDocument returns the record for id. It panics when id is unknown and
// is meant for wiring fixtures.
func (p *Provider) MustDocument(id string) models.Document {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := FindByID(p.root, id)
	if n == nil {
		panic("memory: unknown document " + id)
	}
	return p.toDocument(n)
}

func (p *Provider) toDocument(n *Node) models.Document {
	size := n.Size
	if size == 0 && len(n.Content) > 0 {
		size = int64(len(n.Content))
	}
	return models.Document{
		Authority:   p.authority,
		DocumentID:  n.ID,
		Profile:     p.profile,
		DisplayName: n.Name,
		MimeType:    n.MimeType,
		Size:        size,
		ModTime:     n.ModTime,
		Flags:       n.Flags,
	}
}
