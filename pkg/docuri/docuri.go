// Package docuri builds and parses document references.
//
// Two reference shapes are supported:
//
//	content://<authority>/document/<id>
//	content://<authority>/tree/<tree-id>/document/<id>
//
// A tree reference names a document relative to a granted subtree; it can be
// converted to the equivalent plain document reference anchored at the same
// authority with ToDocument.
package docuri

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const scheme = "content"

var ErrNotDocumentURI = errors.New("not a document reference")

// Ref is a parsed document reference.
type Ref struct {
	Authority  string
	TreeID     string // empty for plain document references
	DocumentID string
}

// IsTree reports whether the reference was built against a tree.
func (r Ref) IsTree() bool {
	return r.TreeID != ""
}

// ToDocument drops the tree component, producing a plain document reference.
func (r Ref) ToDocument() Ref {
	return Ref{Authority: r.Authority, DocumentID: r.DocumentID}
}

// String renders the reference in its canonical form.
func (r Ref) String() string {
	if r.IsTree() {
		return BuildTreeDocumentURI(r.Authority, r.TreeID, r.DocumentID)
	}
	return BuildDocumentURI(r.Authority, r.DocumentID)
}

// BuildDocumentURI returns a plain document reference.
func BuildDocumentURI(authority, documentID string) string {
	return scheme + "://" + authority + "/document/" + url.PathEscape(documentID)
}

// BuildTreeURI returns a reference to a granted tree.
func BuildTreeURI(authority, treeID string) string {
	return scheme + "://" + authority + "/tree/" + url.PathEscape(treeID)
}

// BuildTreeDocumentURI returns a reference to a document inside a tree.
func BuildTreeDocumentURI(authority, treeID, documentID string) string {
	return BuildTreeURI(authority, treeID) + "/document/" + url.PathEscape(documentID)
}

// Parse parses a document or tree-document reference.
// A bare tree reference (no document segment) resolves to the tree's own document.
func Parse(raw string) (Ref, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Ref{}, fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.Scheme != scheme || u.Host == "" {
		return Ref{}, fmt.Errorf("%w: %s", ErrNotDocumentURI, raw)
	}

	segs := strings.Split(strings.TrimPrefix(u.EscapedPath(), "/"), "/")
	unescape := func(s string) (string, error) {
		v, err := url.PathUnescape(s)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrNotDocumentURI, raw)
		}
		return v, nil
	}

	switch {
	case len(segs) == 2 && segs[0] == "document":
		id, err := unescape(segs[1])
		if err != nil {
			return Ref{}, err
		}
		return Ref{Authority: u.Host, DocumentID: id}, nil
	case len(segs) == 2 && segs[0] == "tree":
		id, err := unescape(segs[1])
		if err != nil {
			return Ref{}, err
		}
		return Ref{Authority: u.Host, TreeID: id, DocumentID: id}, nil
	case len(segs) == 4 && segs[0] == "tree" && segs[2] == "document":
		tree, err := unescape(segs[1])
		if err != nil {
			return Ref{}, err
		}
		id, err := unescape(segs[3])
		if err != nil {
			return Ref{}, err
		}
		return Ref{Authority: u.Host, TreeID: tree, DocumentID: id}, nil
	}
	return Ref{}, fmt.Errorf("%w: %s", ErrNotDocumentURI, raw)
}

// IsDocumentURI reports whether raw parses as a document reference.
func IsDocumentURI(raw string) bool {
	_, err := Parse(raw)
	return err == nil
}
