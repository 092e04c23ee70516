// Package sorting holds the user's sort choice and orders loaded documents by it.
package sorting

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/fruitsalade/docnav/pkg/models"
)

// Dimension is the attribute documents are ordered by.
type Dimension string

const (
	ByTitle    Dimension = "title"
	BySize     Dimension = "size"
	ByModified Dimension = "modified"
	ByType     Dimension = "type"
)

// Direction is the sort direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Spec is an immutable sort choice. The zero value sorts by title, ascending.
type Spec struct {
	Dimension Dimension `json:"dimension" yaml:"dimension"`
	Direction Direction `json:"direction" yaml:"direction"`
}

// Default returns the sort used when the user hasn't chosen one.
func Default() Spec {
	return Spec{Dimension: ByTitle, Direction: Ascending}
}

// Parse reads "dimension[:direction]", e.g. "size:desc".
func Parse(s string) (Spec, error) {
	if s == "" {
		return Default(), nil
	}
	dim, dir, _ := strings.Cut(s, ":")
	spec := Spec{Dimension: Dimension(dim), Direction: Direction(dir)}
	if spec.Direction == "" {
		spec.Direction = Ascending
	}
	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// Validate checks that the dimension and direction are known.
func (s Spec) Validate() error {
	switch s.Dimension {
	case ByTitle, BySize, ByModified, ByType, "":
	default:
		return fmt.Errorf("unknown sort dimension %q", s.Dimension)
	}
	switch s.Direction {
	case Ascending, Descending, "":
	default:
		return fmt.Errorf("unknown sort direction %q", s.Direction)
	}
	return nil
}

func (s Spec) String() string {
	return string(s.normalized().Dimension) + ":" + string(s.normalized().Direction)
}

func (s Spec) normalized() Spec {
	if s.Dimension == "" {
		s.Dimension = ByTitle
	}
	if s.Direction == "" {
		s.Direction = Ascending
	}
	return s
}

// collate.Collator is not safe for concurrent use.
var (
	collatorMu sync.Mutex
	collator   = collate.New(language.Und, collate.IgnoreCase, collate.Numeric)
)

func compareTitles(a, b string) int {
	collatorMu.Lock()
	defer collatorMu.Unlock()
	return collator.CompareString(a, b)
}

// Apply returns docs ordered by the spec. Containers always come first;
// ties fall back to title and then document id so the order is stable
// across loads.
func (s Spec) Apply(docs []models.Document) []models.Document {
	s = s.normalized()
	out := make([]models.Document, len(docs))
	copy(out, docs)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsContainer() != b.IsContainer() {
			return a.IsContainer()
		}

		c := s.compare(a, b)
		if s.Direction == Descending {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		if c = compareTitles(a.DisplayName, b.DisplayName); c != 0 {
			return c < 0
		}
		return a.DocumentID < b.DocumentID
	})
	return out
}

func (s Spec) compare(a, b models.Document) int {
	switch s.Dimension {
	case BySize:
		return cmpInt64(a.Size, b.Size)
	case ByModified:
		return a.ModTime.Compare(b.ModTime)
	case ByType:
		return strings.Compare(a.MimeType, b.MimeType)
	default:
		return compareTitles(a.DisplayName, b.DisplayName)
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
