package config

import (
	"time"

	"github.com/fruitsalade/docnav/internal/provider/memory"
	"github.com/fruitsalade/docnav/pkg/models"
)

// MemoryConfig describes a fixed in-memory document tree.
type MemoryConfig struct {
	Authority string     `yaml:"authority"`
	RootID    string     `yaml:"root_id"`
	Title     string     `yaml:"title"`
	FindPath  *bool      `yaml:"find_path,omitempty"`
	Tree      NodeConfig `yaml:"tree"`
}

// NodeConfig is one document of a memory tree. A node is a directory when
// Dir is set or it has children.
type NodeConfig struct {
	ID       string       `yaml:"id"`
	Name     string       `yaml:"name"`
	Dir      bool         `yaml:"dir"`
	MimeType string       `yaml:"mime_type"`
	Size     int64        `yaml:"size"`
	Modified time.Time    `yaml:"modified"`
	Content  string       `yaml:"content"`
	Children []NodeConfig `yaml:"children"`
}

// Node converts the configuration into a memory tree.
func (n NodeConfig) Node() *memory.Node {
	id := n.ID
	if id == "" {
		id = n.Name
	}
	if n.Dir || len(n.Children) > 0 {
		children := make([]*memory.Node, 0, len(n.Children))
		for _, c := range n.Children {
			children = append(children, c.Node())
		}
		d := memory.Dir(id, n.Name, children...)
		d.ModTime = n.Modified
		return d
	}

	mime := n.MimeType
	if mime == "" {
		mime = models.MimeTypeFromName(n.Name)
	}
	size := n.Size
	if size == 0 && n.Content != "" {
		size = int64(len(n.Content))
	}
	f := memory.File(id, n.Name, mime, size)
	f.ModTime = n.Modified
	if n.Content != "" {
		f.Content = []byte(n.Content)
	}
	return f
}

// Provider builds the memory provider for profile.
func (m MemoryConfig) Provider(profile models.ProfileID) *memory.Provider {
	var opts []memory.Option
	if m.RootID != "" {
		opts = append(opts, memory.WithRootID(m.RootID))
	}
	if m.Title != "" {
		opts = append(opts, memory.WithTitle(m.Title))
	}
	if m.FindPath != nil {
		opts = append(opts, memory.WithFindPath(*m.FindPath))
	}
	return memory.New(m.Authority, profile, m.Tree.Node(), opts...)
}
