// Package model loads the children of the current location in the
// background and publishes each result as an immutable outcome.
//
// Every Load gets a generation number. Starting a load cancels the one in
// flight, and a completion whose generation is no longer the latest is
// dropped, so the last requested load always wins.
package model

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/docnav/internal/logging"
	"github.com/fruitsalade/docnav/internal/metrics"
	"github.com/fruitsalade/docnav/internal/profile"
	"github.com/fruitsalade/docnav/internal/state"
	"github.com/fruitsalade/docnav/pkg/models"
)

// DefaultRecentsLimit caps the recents root listing.
const DefaultRecentsLimit = 64

// Source is what the model needs from the provider layer.
// *provider.Registry implements it.
type Source interface {
	ListChildren(ctx context.Context, doc models.Document) ([]models.Document, error)
	Search(ctx context.Context, root models.Root, query string) ([]models.Document, error)
	Recent(ctx context.Context, profile models.ProfileID, limit int) ([]models.Document, error)
}

// Request describes one load. It is built from a state snapshot taken when
// the load is requested and is never written back.
type Request struct {
	state.Snapshot

	// Query, when set on a searchable root, loads search results instead
	// of the terminal document's children.
	Query string
}

// Outcome is the result of one load. A new outcome replaces the previous
// one entirely.
type Outcome struct {
	Documents  []models.Document
	Err        error
	Generation uint64
}

// Update is delivered to listeners when an outcome is published.
type Update struct {
	Outcome Outcome
}

// Listener receives published updates.
type Listener func(Update)

type listenerEntry struct {
	id int
	fn Listener
}

// Option configures a Model.
type Option func(*Model)

// WithRecentsLimit sets how many documents the recents root shows.
func WithRecentsLimit(n int) Option {
	return func(m *Model) { m.recentsLimit = n }
}

// Model loads and holds the documents of the current location.
type Model struct {
	source       Source
	quiet        profile.QuietModeChecker
	recentsLimit int

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	closed     bool
	outcome    Outcome
	ids        []string
	byID       map[string]models.Document
	listeners  []listenerEntry
	nextID     int

	// publishMu serializes publication so listeners see updates one at a
	// time and in generation order.
	publishMu sync.Mutex
	wg        sync.WaitGroup
}

// New creates a model reading from source. quiet reports locked profiles.
func New(source Source, quiet profile.QuietModeChecker, opts ...Option) *Model {
	m := &Model{
		source:       source,
		quiet:        quiet,
		recentsLimit: DefaultRecentsLimit,
		byID:         make(map[string]models.Document),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load starts loading req in the background and returns its generation.
// It never blocks on the provider. Any load still in flight is cancelled
// and its result will not be published.
func (m *Model) Load(ctx context.Context, req Request) uint64 {
	m.mu.Lock()
	if m.closed {
		gen := m.generation
		m.mu.Unlock()
		return gen
	}
	m.generation++
	gen := m.generation
	if m.cancel != nil {
		m.cancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer cancel()
		start := time.Now()
		docs, err := m.fetch(loadCtx, req)
		m.publish(loadCtx, Outcome{Documents: docs, Err: err, Generation: gen}, start)
	}()
	return gen
}

// fetch runs the checks and the provider query for one load.
func (m *Model) fetch(ctx context.Context, req Request) ([]models.Document, error) {
	recents := req.HasRoot && req.Root.IsRecents()
	if !req.HasDoc && !recents {
		return nil, ErrInvalidState
	}

	target := req.TargetProfile
	if target != req.Self {
		// Permission is checked first so it is reported when both apply.
		if !req.CanAccessTarget {
			return nil, &CrossProfileNoPermissionError{Profile: target}
		}
		if m.quiet != nil && m.quiet.IsQuietMode(target) {
			return nil, &CrossProfileQuietModeError{Profile: target}
		}
	}

	var docs []models.Document
	var err error
	switch {
	case recents && !req.HasDoc:
		docs, err = m.source.Recent(ctx, req.Root.Profile, m.recentsLimit)
	case req.Query != "" && req.HasRoot && req.Root.SupportsSearch():
		docs, err = m.source.Search(ctx, req.Root, req.Query)
	default:
		docs, err = m.source.ListChildren(ctx, req.Terminal)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &LoadFailedError{Err: ctxErr}
		}
		return nil, classify(err, target)
	}
	return req.Sort.Apply(docs), nil
}

func (m *Model) publish(ctx context.Context, o Outcome, start time.Time) {
	m.publishMu.Lock()
	defer m.publishMu.Unlock()

	m.mu.Lock()
	if o.Generation != m.generation || m.closed {
		m.mu.Unlock()
		metrics.RecordLoadSuperseded()
		logging.WithContext(ctx).Debug("load superseded",
			zap.Uint64("generation", o.Generation))
		return
	}
	m.outcome = o
	m.ids = make([]string, 0, len(o.Documents))
	m.byID = make(map[string]models.Document, len(o.Documents))
	for _, d := range o.Documents {
		m.ids = append(m.ids, d.Key())
		m.byID[d.Key()] = d
	}
	listeners := make([]listenerEntry, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	result := resultOf(o)
	metrics.RecordLoad(result, time.Since(start))
	log := logging.WithContext(ctx)
	if o.Err != nil {
		log.Info("load published with error",
			zap.Uint64("generation", o.Generation),
			zap.String("result", result),
			zap.Error(o.Err))
	} else {
		log.Debug("load published",
			zap.Uint64("generation", o.Generation),
			zap.Int("count", len(o.Documents)))
	}

	update := Update{Outcome: o}
	for _, l := range listeners {
		l.fn(update)
	}
}

// AddUpdateListener registers fn for future updates and returns a function
// that removes it. Both are safe to call while a load is in flight.
//
// Listeners run on the loading goroutine with publication serialized. A
// listener may call Load, Outcome or its remove function, but must not call
// Wait or Close: both wait for the goroutine running the listener.
func (m *Model) AddUpdateListener(fn Listener) (remove func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, l := range m.listeners {
				if l.id == id {
					m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Outcome returns the last published outcome.
func (m *Model) Outcome() Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcome
}

// Generation returns the generation of the most recently requested load.
func (m *Model) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// ItemCount returns the number of documents in the last outcome.
func (m *Model) ItemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ids)
}

// ModelIDs returns the ids of the documents in the last outcome, in order.
func (m *Model) ModelIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.ids))
	copy(out, m.ids)
	return out
}

// Document looks up a document of the last outcome by model id.
func (m *Model) Document(modelID string) (models.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[modelID]
	return d, ok
}

// Wait blocks until no load is running.
func (m *Model) Wait() {
	m.wg.Wait()
}

// Close cancels the load in flight and stops publication.
func (m *Model) Close() {
	m.mu.Lock()
	m.closed = true
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}
