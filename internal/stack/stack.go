// Package stack implements the navigation stack: the path of documents from a
// root's document to the folder currently shown.
package stack

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fruitsalade/docnav/pkg/models"
)

var (
	// ErrDuplicateDocument is returned when pushing a document that is already on the stack.
	ErrDuplicateDocument = errors.New("document already in stack")
	// ErrEmptyStack is returned when popping a stack that holds no documents.
	ErrEmptyStack = errors.New("stack is empty")
	// ErrNotContainer is returned when a non-container would end up below another document.
	ErrNotContainer = errors.New("only containers may hold children on the stack")
)

// Stack is an ordered path of documents under a root. Index 0 is the root
// document, the last element is the current location.
//
// Stack is not safe for concurrent use; it is owned by the coordinating
// goroutine and copied (Clone) before being handed elsewhere.
type Stack struct {
	root    models.Root
	hasRoot bool
	docs    []models.Document
}

// New builds a stack from a root and a path of documents, validating every invariant.
func New(root models.Root, docs ...models.Document) (*Stack, error) {
	s := &Stack{root: root, hasRoot: true}
	for _, d := range docs {
		if err := s.Push(d); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ChangeRoot replaces the stack with an empty path under root.
func (s *Stack) ChangeRoot(root models.Root) {
	s.root = root
	s.hasRoot = true
	s.docs = nil
}

// Push appends doc as the new current location.
func (s *Stack) Push(doc models.Document) error {
	for _, d := range s.docs {
		if d.Equal(doc) {
			return fmt.Errorf("push %s: %w", doc.Key(), ErrDuplicateDocument)
		}
	}
	if top, ok := s.Peek(); ok && !top.IsContainer() {
		return fmt.Errorf("push %s onto %s: %w", doc.Key(), top.Key(), ErrNotContainer)
	}
	s.docs = append(s.docs, doc)
	return nil
}

// Pop removes and returns the current location.
func (s *Stack) Pop() (models.Document, error) {
	if len(s.docs) == 0 {
		return models.Document{}, ErrEmptyStack
	}
	last := s.docs[len(s.docs)-1]
	s.docs = s.docs[:len(s.docs)-1]
	return last, nil
}

// PopToRootDocument drops everything above the root document.
func (s *Stack) PopToRootDocument() {
	if len(s.docs) > 1 {
		s.docs = s.docs[:1]
	}
}

// Peek returns the current location.
func (s *Stack) Peek() (models.Document, bool) {
	if len(s.docs) == 0 {
		return models.Document{}, false
	}
	return s.docs[len(s.docs)-1], true
}

// Size returns the number of documents (the root record is not counted).
func (s *Stack) Size() int {
	return len(s.docs)
}

// IsEmpty reports whether the stack holds no documents.
func (s *Stack) IsEmpty() bool {
	return len(s.docs) == 0
}

// Root returns the root of the stack, if one was chosen.
func (s *Stack) Root() (models.Root, bool) {
	return s.root, s.hasRoot
}

// IsRecents reports whether the stack sits on the synthetic recents root.
func (s *Stack) IsRecents() bool {
	return s.hasRoot && s.root.IsRecents()
}

// Contains reports whether doc is on the stack.
func (s *Stack) Contains(doc models.Document) bool {
	for _, d := range s.docs {
		if d.Equal(doc) {
			return true
		}
	}
	return false
}

// Documents returns a copy of the documents from root to current.
func (s *Stack) Documents() []models.Document {
	out := make([]models.Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// Reset replaces the contents of s with those of other.
func (s *Stack) Reset(other *Stack) {
	if other == nil {
		s.root, s.hasRoot, s.docs = models.Root{}, false, nil
		return
	}
	s.root = other.root
	s.hasRoot = other.hasRoot
	s.docs = other.Documents()
}

// Clone returns an independent copy.
func (s *Stack) Clone() *Stack {
	c := &Stack{}
	c.Reset(s)
	return c
}

// Equal compares roots and documents.
func (s *Stack) Equal(o *Stack) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.hasRoot != o.hasRoot || (s.hasRoot && !s.root.Equal(o.root)) || len(s.docs) != len(o.docs) {
		return false
	}
	for i := range s.docs {
		if !s.docs[i].Equal(o.docs[i]) {
			return false
		}
	}
	return true
}

func (s *Stack) String() string {
	var b strings.Builder
	if s.hasRoot {
		b.WriteString(s.root.Title)
	} else {
		b.WriteString("<no root>")
	}
	for _, d := range s.docs {
		b.WriteString(" > ")
		b.WriteString(d.DisplayName)
	}
	return b.String()
}

type stackJSON struct {
	Root      *models.Root      `json:"root,omitempty"`
	Documents []models.Document `json:"documents"`
}

// MarshalJSON encodes the stack so it can travel in a launch request.
func (s *Stack) MarshalJSON() ([]byte, error) {
	out := stackJSON{Documents: s.Documents()}
	if s.hasRoot {
		root := s.root
		out.Root = &root
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a stack, re-checking the invariants.
func (s *Stack) UnmarshalJSON(data []byte) error {
	var in stackJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	decoded := &Stack{}
	if in.Root != nil {
		decoded.ChangeRoot(*in.Root)
	}
	for _, d := range in.Documents {
		if err := decoded.Push(d); err != nil {
			return fmt.Errorf("decode stack: %w", err)
		}
	}
	s.Reset(decoded)
	return nil
}
