// Package files is the document browsing surface: it decides what opening
// a root, a folder or a file means and plugs into handler.Handler.
package files

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fruitsalade/docnav/internal/handler"
	"github.com/fruitsalade/docnav/internal/logging"
	"github.com/fruitsalade/docnav/pkg/models"
)

// Catalog lists roots and fetches documents. *provider.Registry implements it.
type Catalog interface {
	Roots(ctx context.Context, profile models.ProfileID) []models.Root
	Document(ctx context.Context, profile models.ProfileID, authority, documentID string) (models.Document, error)
}

// Lookup turns a raw document reference into a document.
// *docs.Resolver implements it.
type Lookup interface {
	GetDocument(ctx context.Context, raw string, profile models.ProfileID) (models.Document, error)
}

// Viewer shows files to the user.
type Viewer interface {
	// View opens a non-container document.
	View(ctx context.Context, doc models.Document) error
	// Details shows a document's metadata.
	Details(ctx context.Context, doc models.Document) error
}

// Option configures a Surface.
type Option func(*Surface)

// WithViewer sets the file viewer.
func WithViewer(v Viewer) Option {
	return func(s *Surface) { s.viewer = v }
}

// WithRecentsDefault makes the recents root the default location.
func WithRecentsDefault(enabled bool) Option {
	return func(s *Surface) { s.recentsDefault = enabled }
}

// Surface implements handler.Surface and handler.Previewer.
type Surface struct {
	h       *handler.Handler
	catalog Catalog
	lookup  Lookup
	viewer  Viewer

	recentsDefault bool
}

// New creates a surface and attaches it to h.
func New(h *handler.Handler, catalog Catalog, lookup Lookup, opts ...Option) *Surface {
	s := &Surface{h: h, catalog: catalog, lookup: lookup}
	for _, opt := range opts {
		opt(s)
	}
	h.SetSurface(s)
	return s
}

// OpenRoot moves the session to root. Regular roots start at their root
// document; the recents root starts with an empty stack.
func (s *Surface) OpenRoot(ctx context.Context, root models.Root) error {
	st := s.h.State().Stack
	var rootDoc models.Document
	if !root.IsRecents() {
		doc, err := s.catalog.Document(ctx, root.Profile, root.Authority, root.DocumentID)
		if err != nil {
			return fmt.Errorf("open root %s: %w", root, err)
		}
		rootDoc = doc
	}

	st.ChangeRoot(root)
	if !root.IsRecents() {
		if err := st.Push(rootDoc); err != nil {
			return err
		}
	}
	s.h.Host().UpdateNavigator()
	s.h.Host().RefreshCurrentRootAndDirectory()
	s.h.LoadDocumentsForCurrentStack(ctx)
	return nil
}

// OpenItem enters containers and hands files to the viewer. It reports
// false when a file was opened without a viewer.
func (s *Surface) OpenItem(ctx context.Context, doc models.Document) (bool, error) {
	if doc.IsContainer() {
		if err := s.h.OpenContainerDocument(ctx, doc); err != nil {
			return false, err
		}
		s.h.LoadDocumentsForCurrentStack(ctx)
		return true, nil
	}
	if s.viewer == nil {
		return false, nil
	}
	if err := s.viewer.View(ctx, doc); err != nil {
		return false, fmt.Errorf("view %s: %w", doc.Key(), err)
	}
	return true, nil
}

// InitLocation starts the session from a saved stack, then a document
// reference, then the default location, whichever is available first.
func (s *Surface) InitLocation(ctx context.Context, req handler.LaunchRequest) error {
	log := logging.WithContext(logging.WithSession(ctx, s.h.SessionID()))

	if req.Stack != nil {
		if _, hasRoot := req.Stack.Root(); hasRoot {
			s.h.State().Stack.Reset(req.Stack)
			s.h.Host().RefreshCurrentRootAndDirectory()
			s.h.LoadDocumentsForCurrentStack(ctx)
			return nil
		}
	}

	if req.URI != "" {
		if s.h.LaunchToDocument(ctx, req.URI) {
			doc, err := s.lookup.GetDocument(ctx, req.URI, s.h.State().Self)
			if err != nil {
				return fmt.Errorf("init location %s: %w", req.URI, err)
			}
			if doc.IsContainer() {
				_, err := s.OpenItem(ctx, doc)
				return err
			}
			// Show the file's folder, then the file.
			s.h.LoadDocumentsForCurrentStack(ctx)
			_, err = s.OpenItem(ctx, doc)
			return err
		}
		log.Info("launch location not available, using default", zap.String("uri", req.URI))
	}

	return s.LaunchToDefaultLocation(ctx)
}

// LaunchToDefaultLocation opens the first root of the session's own
// profile, or the recents root when configured or when there are no roots.
func (s *Surface) LaunchToDefaultLocation(ctx context.Context) error {
	self := s.h.State().Self
	if !s.recentsDefault {
		for _, root := range s.catalog.Roots(ctx, self) {
			if !root.IsRecents() {
				return s.OpenRoot(ctx, root)
			}
		}
	}
	return s.OpenRoot(ctx, models.RecentsRoot(self))
}

// PreviewItem shows a document's details.
func (s *Surface) PreviewItem(ctx context.Context, doc models.Document) error {
	if s.viewer == nil {
		return fmt.Errorf("preview: %w", handler.ErrUnsupportedOperation)
	}
	return s.viewer.Details(ctx, doc)
}
