// Package docs resolves document references and documents into navigation
// stacks by asking providers for the location of a document.
package docs

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fruitsalade/docnav/internal/logging"
	"github.com/fruitsalade/docnav/internal/metrics"
	"github.com/fruitsalade/docnav/internal/provider"
	"github.com/fruitsalade/docnav/internal/provider/archive"
	"github.com/fruitsalade/docnav/internal/stack"
	"github.com/fruitsalade/docnav/pkg/docuri"
	"github.com/fruitsalade/docnav/pkg/models"
)

// Path resolution results reported to metrics.
const (
	ResultOK          = "ok"
	ResultUnsupported = "unsupported"
	ResultFailed      = "failed"
)

// ErrArchiveReference is returned for references into archive contents,
// which cannot be resolved to a provider location.
var ErrArchiveReference = errors.New("reference points inside an archive")

// Resolver gives access to documents and their locations through the
// provider registry.
type Resolver struct {
	registry *provider.Registry
}

// NewResolver creates a resolver over registry.
func NewResolver(registry *provider.Registry) *Resolver {
	return &Resolver{registry: registry}
}

// IsDocumentURI reports whether raw is a document reference.
func (r *Resolver) IsDocumentURI(raw string) bool {
	return docuri.IsDocumentURI(raw)
}

// IsArchiveURI reports whether raw references a document inside an archive.
func (r *Resolver) IsArchiveURI(raw string) bool {
	ref, err := docuri.Parse(raw)
	return err == nil && ref.Authority == archive.Authority
}

// GetDocument fetches the document a reference names. Tree references are
// resolved against their plain document form.
func (r *Resolver) GetDocument(ctx context.Context, raw string, profile models.ProfileID) (models.Document, error) {
	ref, err := docuri.Parse(raw)
	if err != nil {
		return models.Document{}, err
	}
	ref = ref.ToDocument()
	return r.registry.Document(ctx, profile, ref.Authority, ref.DocumentID)
}

// GetDocuments fetches several documents of one authority, in order.
func (r *Resolver) GetDocuments(ctx context.Context, profile models.ProfileID, authority string, ids []string) ([]models.Document, error) {
	out := make([]models.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := r.registry.Document(ctx, profile, authority, id)
		if err != nil {
			return nil, fmt.Errorf("get document %s: %w", id, err)
		}
		out = append(out, doc)
	}
	return out, nil
}

// GetArchiveDocument returns the root document of an archive's contents.
func (r *Resolver) GetArchiveDocument(doc models.Document) models.Document {
	return archive.RootDocument(doc)
}

// FindDocumentPath asks the provider owning doc for its location.
// ErrNotSupported is returned when the provider cannot resolve paths.
func (r *Resolver) FindDocumentPath(ctx context.Context, doc models.Document) (models.Path, error) {
	return r.registry.FindPath(ctx, doc.Profile, doc.Authority, doc.DocumentID)
}

// ResolveStack builds the stack leading to doc: the root it lives under and
// every document from the root document down to doc.
func (r *Resolver) ResolveStack(ctx context.Context, doc models.Document) (*stack.Stack, error) {
	return r.resolve(ctx, doc.Profile, doc.Authority, doc.DocumentID)
}

// LoadStack resolves a raw reference to a stack. Tree references are
// converted to plain document references first, so both forms resolve to
// the same stack.
func (r *Resolver) LoadStack(ctx context.Context, raw string, profile models.ProfileID) (*stack.Stack, error) {
	ref, err := docuri.Parse(raw)
	if err != nil {
		metrics.RecordPathResolution(ResultFailed)
		return nil, err
	}
	if ref.Authority == archive.Authority {
		metrics.RecordPathResolution(ResultUnsupported)
		return nil, fmt.Errorf("load stack %s: %w", raw, ErrArchiveReference)
	}
	ref = ref.ToDocument()
	return r.resolve(ctx, profile, ref.Authority, ref.DocumentID)
}

func (r *Resolver) resolve(ctx context.Context, profile models.ProfileID, authority, documentID string) (*stack.Stack, error) {
	log := logging.WithContext(ctx).With(
		zap.String("authority", authority),
		zap.String("document", documentID))

	path, err := r.registry.FindPath(ctx, profile, authority, documentID)
	if err != nil {
		if errors.Is(err, provider.ErrNotSupported) {
			metrics.RecordPathResolution(ResultUnsupported)
		} else {
			metrics.RecordPathResolution(ResultFailed)
		}
		log.Debug("path resolution failed", zap.Error(err))
		return nil, fmt.Errorf("find path: %w", err)
	}
	if len(path.IDs) == 0 {
		metrics.RecordPathResolution(ResultFailed)
		return nil, fmt.Errorf("find path %s: empty path", documentID)
	}

	root, err := r.registry.Root(ctx, profile, authority, path.RootID)
	if err != nil {
		metrics.RecordPathResolution(ResultFailed)
		return nil, fmt.Errorf("resolve root %s: %w", path.RootID, err)
	}

	docs, err := r.GetDocuments(ctx, profile, authority, path.IDs)
	if err != nil {
		metrics.RecordPathResolution(ResultFailed)
		return nil, err
	}

	st, err := stack.New(root, docs...)
	if err != nil {
		metrics.RecordPathResolution(ResultFailed)
		return nil, fmt.Errorf("build stack: %w", err)
	}
	metrics.RecordPathResolution(ResultOK)
	log.Debug("path resolved", zap.Int("depth", st.Size()))
	return st, nil
}
