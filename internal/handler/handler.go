// Package handler orchestrates navigation intents: it computes the target
// stack with the path resolver, updates the session state and starts loads.
//
// Surface-specific behaviour (what opening a root or a file means) lives
// behind the Surface interface; without a surface those operations return
// ErrUnsupportedOperation.
package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fruitsalade/docnav/internal/events"
	"github.com/fruitsalade/docnav/internal/logging"
	"github.com/fruitsalade/docnav/internal/model"
	"github.com/fruitsalade/docnav/internal/stack"
	"github.com/fruitsalade/docnav/internal/state"
	"github.com/fruitsalade/docnav/pkg/models"
)

// ErrUnsupportedOperation is returned by extension points the current
// navigation surface does not implement.
var ErrUnsupportedOperation = errors.New("operation not supported by this navigation surface")

// Resolver computes stacks for documents and references.
// *docs.Resolver implements it.
type Resolver interface {
	ResolveStack(ctx context.Context, doc models.Document) (*stack.Stack, error)
	LoadStack(ctx context.Context, uri string, profile models.ProfileID) (*stack.Stack, error)
	IsArchiveURI(uri string) bool
	GetArchiveDocument(doc models.Document) models.Document
}

// Loader starts background loads. *model.Model implements it.
type Loader interface {
	Load(ctx context.Context, req model.Request) uint64
}

// Host is the presentation side of a session.
type Host interface {
	RefreshCurrentRootAndDirectory()
	UpdateNavigator()
	NotifyDirectoryNavigated(doc models.Document)
}

// SearchState reports whether the session is showing search results.
// Clear ends the search.
type SearchState interface {
	IsSearching() bool
	Query() string
	Clear()
}

// LaunchRequest describes where a new session should start.
type LaunchRequest struct {
	Stack *stack.Stack
	URI   string
}

// Surface is a concrete navigation surface.
type Surface interface {
	OpenRoot(ctx context.Context, root models.Root) error
	// OpenItem opens a document and reports whether it was handled.
	OpenItem(ctx context.Context, doc models.Document) (bool, error)
	InitLocation(ctx context.Context, req LaunchRequest) error
	LaunchToDefaultLocation(ctx context.Context) error
}

// Previewer is implemented by surfaces that can preview documents.
type Previewer interface {
	PreviewItem(ctx context.Context, doc models.Document) error
}

// Features are the session feature switches the handler honours.
type Features struct {
	LaunchToDocument bool
}

// Handler is the shared navigation orchestrator of one session.
// It is used from a single coordinating goroutine.
type Handler struct {
	state    *state.State
	resolver Resolver
	loader   Loader

	host     Host
	search   SearchState
	events   *events.Broadcaster
	surface  Surface
	features Features

	sessionID string
}

// Option configures a Handler.
type Option func(*Handler)

// WithHost sets the presentation host.
func WithHost(h Host) Option {
	return func(x *Handler) { x.host = h }
}

// WithSearch sets the search state.
func WithSearch(s SearchState) Option {
	return func(x *Handler) { x.search = s }
}

// WithEvents sets the broadcaster used for open-in-new-window requests.
func WithEvents(b *events.Broadcaster) Option {
	return func(x *Handler) { x.events = b }
}

// WithFeatures sets the feature switches.
func WithFeatures(f Features) Option {
	return func(x *Handler) { x.features = f }
}

// WithSurface sets the concrete navigation surface.
func WithSurface(s Surface) Option {
	return func(x *Handler) { x.surface = s }
}

// New creates a handler over the session state.
func New(st *state.State, resolver Resolver, loader Loader, opts ...Option) *Handler {
	h := &Handler{
		state:     st,
		resolver:  resolver,
		loader:    loader,
		host:      nopHost{},
		search:    &Search{},
		events:    events.NewBroadcaster(),
		sessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.state.Stack == nil {
		h.state.Stack = &stack.Stack{}
	}
	return h
}

// SetSurface attaches the concrete surface after construction, for
// surfaces that need the handler themselves.
func (h *Handler) SetSurface(s Surface) { h.surface = s }

// State returns the session state.
func (h *Handler) State() *state.State { return h.state }

// Events returns the navigation request broadcaster.
func (h *Handler) Events() *events.Broadcaster { return h.events }

// Resolver returns the path resolver.
func (h *Handler) Resolver() Resolver { return h.resolver }

// Host returns the presentation host.
func (h *Handler) Host() Host { return h.host }

// Search returns the search state.
func (h *Handler) Search() SearchState { return h.search }

// SessionID identifies the session in logs.
func (h *Handler) SessionID() string { return h.sessionID }

func (h *Handler) logger(ctx context.Context) *zap.Logger {
	return logging.WithContext(logging.WithSession(ctx, h.sessionID))
}

// OpenInNewWindow asks for a copy of st to be opened in a new session.
// The session's own state is not touched.
func (h *Handler) OpenInNewWindow(st *stack.Stack) events.Event {
	return h.events.Publish(events.Event{
		Type:  events.EventOpenWindow,
		Stack: st.Clone(),
	})
}

// OpenContainerDocument navigates into doc.
//
// While searching, the stack is rebuilt from doc's resolved location; when
// the location cannot be resolved the stack falls back to the root
// document with doc on top. Either way the search ends, so the next load
// lists the opened folder. Otherwise doc is pushed onto the current stack.
// Archives are entered through their root document.
func (h *Handler) OpenContainerDocument(ctx context.Context, doc models.Document) error {
	log := h.logger(ctx).With(zap.String("document", doc.Key()))
	current := h.state.Stack

	if h.search.IsSearching() {
		resolved, err := h.resolver.ResolveStack(ctx, doc)
		if err == nil {
			if top, ok := resolved.Peek(); ok && top.IsArchive() {
				resolved.Pop()
				if err := resolved.Push(h.resolver.GetArchiveDocument(top)); err != nil {
					return fmt.Errorf("enter archive %s: %w", top.Key(), err)
				}
			}
			current.Reset(resolved)
			log.Debug("opened search result at resolved location", zap.Int("depth", current.Size()))
		} else {
			log.Debug("location not resolved, pushing onto root document", zap.Error(err))
			current.PopToRootDocument()
			if err := current.Push(h.enterTarget(doc)); err != nil {
				return err
			}
		}
		h.search.Clear()
	} else if err := current.Push(h.enterTarget(doc)); err != nil {
		return err
	}

	h.host.NotifyDirectoryNavigated(doc)
	h.host.RefreshCurrentRootAndDirectory()
	return nil
}

func (h *Handler) enterTarget(doc models.Document) models.Document {
	if doc.IsArchive() {
		return h.resolver.GetArchiveDocument(doc)
	}
	return doc
}

// LaunchToDocument rebuilds the stack for an external document reference:
// the root plus the ancestors of the document, which itself is left for
// the caller to open. It reports false, leaving the state untouched, when
// the feature is off, the reference points inside an archive, or the
// location cannot be resolved.
func (h *Handler) LaunchToDocument(ctx context.Context, uri string) bool {
	log := h.logger(ctx).With(zap.String("uri", uri))
	if !h.features.LaunchToDocument {
		log.Debug("launch to document disabled")
		return false
	}
	if h.resolver.IsArchiveURI(uri) {
		log.Debug("cannot launch into archive contents")
		return false
	}

	st, err := h.resolver.LoadStack(ctx, uri, h.state.Self)
	if err != nil {
		log.Info("failed to resolve launch location", zap.Error(err))
		return false
	}
	if _, err := st.Pop(); err != nil {
		return false
	}

	h.state.Stack.Reset(st)
	h.host.RefreshCurrentRootAndDirectory()
	log.Debug("launched to document", zap.Int("depth", st.Size()))
	return true
}

// LoadDocumentsForCurrentStack starts loading the current location and
// returns the load's generation without waiting for it.
func (h *Handler) LoadDocumentsForCurrentStack(ctx context.Context) uint64 {
	req := model.Request{Snapshot: h.state.Snapshot()}
	if h.search.IsSearching() {
		req.Query = h.search.Query()
	}
	return h.loader.Load(logging.WithSession(ctx, h.sessionID), req)
}

// PreviewItem previews doc when the surface supports it.
func (h *Handler) PreviewItem(ctx context.Context, doc models.Document) error {
	if p, ok := h.surface.(Previewer); ok {
		return p.PreviewItem(ctx, doc)
	}
	return fmt.Errorf("preview: %w", ErrUnsupportedOperation)
}

// OpenRoot delegates to the surface.
func (h *Handler) OpenRoot(ctx context.Context, root models.Root) error {
	if h.surface == nil {
		return fmt.Errorf("open root: %w", ErrUnsupportedOperation)
	}
	return h.surface.OpenRoot(ctx, root)
}

// OpenItem delegates to the surface.
func (h *Handler) OpenItem(ctx context.Context, doc models.Document) (bool, error) {
	if h.surface == nil {
		return false, fmt.Errorf("open item: %w", ErrUnsupportedOperation)
	}
	return h.surface.OpenItem(ctx, doc)
}

// InitLocation delegates to the surface.
func (h *Handler) InitLocation(ctx context.Context, req LaunchRequest) error {
	if h.surface == nil {
		return fmt.Errorf("init location: %w", ErrUnsupportedOperation)
	}
	return h.surface.InitLocation(ctx, req)
}

// LaunchToDefaultLocation delegates to the surface.
func (h *Handler) LaunchToDefaultLocation(ctx context.Context) error {
	if h.surface == nil {
		return fmt.Errorf("launch to default location: %w", ErrUnsupportedOperation)
	}
	return h.surface.LaunchToDefaultLocation(ctx)
}

// Search is a settable SearchState.
type Search struct {
	query string
}

// Set starts searching for q; an empty q ends the search.
func (s *Search) Set(q string) { s.query = q }

// IsSearching implements SearchState.
func (s *Search) IsSearching() bool { return s.query != "" }

// Query implements SearchState.
func (s *Search) Query() string { return s.query }

// Clear implements SearchState.
func (s *Search) Clear() { s.query = "" }

type nopHost struct{}

func (nopHost) RefreshCurrentRootAndDirectory()          {}
func (nopHost) UpdateNavigator()                         {}
func (nopHost) NotifyDirectoryNavigated(models.Document) {}
