// Package provider defines the document provider capability and routes
// requests to the provider registered for a (profile, authority) pair.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fruitsalade/docnav/pkg/models"
)

// Provider is the interface every document source implements.
// Implementations expose folders and files (local filesystem, S3, SQL
// metadata stores, archives); they never see navigation state.
type Provider interface {
	// Authority identifies the provider within its profile.
	Authority() string

	// Roots lists the top-level locations the provider offers.
	Roots(ctx context.Context) ([]models.Root, error)

	// Document returns a single document.
	Document(ctx context.Context, documentID string) (models.Document, error)

	// ListChildren returns the children of a container document.
	ListChildren(ctx context.Context, documentID string) ([]models.Document, error)
}

// PathFinder is implemented by providers that can resolve a document to its
// location in a single call. Providers without it return ErrNotSupported from
// FindPath through the registry.
type PathFinder interface {
	FindPath(ctx context.Context, documentID string) (models.Path, error)
}

// Searcher is implemented by providers that can search under a root.
type Searcher interface {
	Search(ctx context.Context, rootID, query string) ([]models.Document, error)
}

// RecentsLister is implemented by providers that contribute to the recents root.
type RecentsLister interface {
	Recent(ctx context.Context, rootID string, limit int) ([]models.Document, error)
}

// Opener is implemented by providers that can stream document content.
// The archive provider uses it to read archives stored elsewhere.
type Opener interface {
	Open(ctx context.Context, documentID string) (io.ReadCloser, int64, error)
}

var (
	// ErrNotSupported is returned when a provider lacks an optional capability.
	ErrNotSupported = errors.New("operation not supported by provider")
	// ErrNotFound is returned for unknown documents, roots or authorities.
	ErrNotFound = errors.New("not found")
)

// Kind classifies provider failures.
type Kind int

const (
	KindOther Kind = iota
	KindQuietMode
	KindNoPermission
)

func (k Kind) String() string {
	switch k {
	case KindQuietMode:
		return "quiet_mode"
	case KindNoPermission:
		return "no_permission"
	default:
		return "other"
	}
}

// Error is a classified provider failure.
type Error struct {
	Kind      Kind
	Authority string
	Op        string
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Authority, e.Op, e.Kind)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Authority, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds a classified error.
func Errorf(kind Kind, authority, op string, err error) error {
	return &Error{Kind: kind, Authority: authority, Op: op, Err: err}
}

// KindOf returns the classification of err, KindOther when unclassified.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindOther
}
