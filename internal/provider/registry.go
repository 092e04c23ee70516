package provider

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/docnav/internal/logging"
	"github.com/fruitsalade/docnav/internal/metrics"
	"github.com/fruitsalade/docnav/pkg/models"
)

// Registry resolves which provider serves a (profile, authority) pair and
// wraps provider calls with metrics.
type Registry struct {
	mu        sync.RWMutex
	providers map[models.ProfileID]map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[models.ProfileID]map[string]Provider),
	}
}

// Register makes p available to profile. A provider already registered under
// the same authority is replaced and closed.
func (r *Registry) Register(profile models.ProfileID, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byAuthority := r.providers[profile]
	if byAuthority == nil {
		byAuthority = make(map[string]Provider)
		r.providers[profile] = byAuthority
	}
	if old, ok := byAuthority[p.Authority()]; ok && old != p {
		closeProvider(old)
	}
	byAuthority[p.Authority()] = p

	logging.Debug("provider registered",
		zap.String("profile", string(profile)),
		zap.String("authority", p.Authority()))
}

// Lookup returns the provider for an authority in a profile.
func (r *Registry) Lookup(profile models.ProfileID, authority string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.providers[profile][authority]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("provider %s for profile %s: %w", authority, profile, ErrNotFound)
}

// Profiles returns the profiles that have at least one provider.
func (r *Registry) Profiles() []models.ProfileID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ProfileID, 0, len(r.providers))
	for p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) snapshot(profile models.ProfileID) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.providers[profile]))
	for _, p := range r.providers[profile] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Authority() < out[j].Authority() })
	return out
}

// Roots lists the roots of every provider in a profile, ordered by authority.
// A provider that fails to list its roots is skipped and logged.
func (r *Registry) Roots(ctx context.Context, profile models.ProfileID) []models.Root {
	var roots []models.Root
	for _, p := range r.snapshot(profile) {
		start := time.Now()
		rs, err := p.Roots(ctx)
		metrics.RecordProviderOperation(p.Authority(), "roots", time.Since(start), err == nil)
		if err != nil {
			logging.WithContext(ctx).Warn("failed to list roots",
				zap.String("authority", p.Authority()),
				zap.String("profile", string(profile)),
				zap.Error(err))
			continue
		}
		roots = append(roots, rs...)
	}
	return roots
}

// Root finds a single root.
func (r *Registry) Root(ctx context.Context, profile models.ProfileID, authority, rootID string) (models.Root, error) {
	if authority == models.RecentsAuthority {
		return models.RecentsRoot(profile), nil
	}
	p, err := r.Lookup(profile, authority)
	if err != nil {
		return models.Root{}, err
	}
	roots, err := p.Roots(ctx)
	if err != nil {
		return models.Root{}, fmt.Errorf("list roots of %s: %w", authority, err)
	}
	for _, root := range roots {
		if root.RootID == rootID {
			return root, nil
		}
	}
	return models.Root{}, fmt.Errorf("root %s/%s: %w", authority, rootID, ErrNotFound)
}

// Document fetches a document through its provider.
func (r *Registry) Document(ctx context.Context, profile models.ProfileID, authority, documentID string) (models.Document, error) {
	p, err := r.Lookup(profile, authority)
	if err != nil {
		return models.Document{}, err
	}
	start := time.Now()
	doc, err := p.Document(ctx, documentID)
	metrics.RecordProviderOperation(authority, "document", time.Since(start), err == nil)
	return doc, err
}

// ListChildren lists a container through its provider.
func (r *Registry) ListChildren(ctx context.Context, doc models.Document) ([]models.Document, error) {
	p, err := r.Lookup(doc.Profile, doc.Authority)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	children, err := p.ListChildren(ctx, doc.DocumentID)
	metrics.RecordProviderOperation(doc.Authority, "list_children", time.Since(start), err == nil)
	return children, err
}

// FindPath resolves a document to its path, or ErrNotSupported.
func (r *Registry) FindPath(ctx context.Context, profile models.ProfileID, authority, documentID string) (models.Path, error) {
	p, err := r.Lookup(profile, authority)
	if err != nil {
		return models.Path{}, err
	}
	finder, ok := p.(PathFinder)
	if !ok {
		return models.Path{}, fmt.Errorf("find path on %s: %w", authority, ErrNotSupported)
	}
	start := time.Now()
	path, err := finder.FindPath(ctx, documentID)
	metrics.RecordProviderOperation(authority, "find_path", time.Since(start), err == nil)
	return path, err
}

// Search runs a search under a root.
func (r *Registry) Search(ctx context.Context, root models.Root, query string) ([]models.Document, error) {
	p, err := r.Lookup(root.Profile, root.Authority)
	if err != nil {
		return nil, err
	}
	searcher, ok := p.(Searcher)
	if !ok {
		return nil, fmt.Errorf("search on %s: %w", root.Authority, ErrNotSupported)
	}
	start := time.Now()
	docs, err := searcher.Search(ctx, root.RootID, query)
	metrics.RecordProviderOperation(root.Authority, "search", time.Since(start), err == nil)
	return docs, err
}

// Open streams a document's content through its provider.
func (r *Registry) Open(ctx context.Context, profile models.ProfileID, authority, documentID string) (io.ReadCloser, int64, error) {
	p, err := r.Lookup(profile, authority)
	if err != nil {
		return nil, 0, err
	}
	opener, ok := p.(Opener)
	if !ok {
		return nil, 0, fmt.Errorf("open on %s: %w", authority, ErrNotSupported)
	}
	start := time.Now()
	rc, size, err := opener.Open(ctx, documentID)
	metrics.RecordProviderOperation(authority, "open", time.Since(start), err == nil)
	return rc, size, err
}

// Recent collects recent documents from every recents-capable root of a profile.
// The first classified failure is returned so permission problems are not
// hidden behind partial results.
func (r *Registry) Recent(ctx context.Context, profile models.ProfileID, limit int) ([]models.Document, error) {
	var out []models.Document
	for _, root := range r.Roots(ctx, profile) {
		if !root.SupportsRecents() {
			continue
		}
		p, err := r.Lookup(profile, root.Authority)
		if err != nil {
			continue
		}
		lister, ok := p.(RecentsLister)
		if !ok {
			continue
		}
		start := time.Now()
		docs, err := lister.Recent(ctx, root.RootID, limit)
		metrics.RecordProviderOperation(root.Authority, "recent", time.Since(start), err == nil)
		if err != nil {
			if KindOf(err) != KindOther {
				return nil, err
			}
			logging.WithContext(ctx).Warn("recents query failed",
				zap.String("authority", root.Authority),
				zap.Error(err))
			continue
		}
		out = append(out, docs...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ModTime.After(out[j].ModTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close closes every provider that holds resources.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, byAuthority := range r.providers {
		for _, p := range byAuthority {
			closeProvider(p)
		}
	}
	r.providers = make(map[models.ProfileID]map[string]Provider)
	return nil
}

func closeProvider(p Provider) {
	if c, ok := p.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logging.Warn("failed to close provider",
				zap.String("authority", p.Authority()),
				zap.Error(err))
		}
	}
}
