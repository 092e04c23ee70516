package memory

import (
	"strings"
	"time"

	"github.com/fruitsalade/docnav/pkg/models"
)

// Node is a document held in memory. Directories have MimeDirectory and
// children; archives carry their bytes in Content.
type Node struct {
	ID       string
	Name     string
	MimeType string
	Size     int64
	ModTime  time.Time
	Flags    models.DocFlags
	Content  []byte
	Children []*Node
}

// Dir builds a directory node.
func Dir(id, name string, children ...*Node) *Node {
	return &Node{ID: id, Name: name, MimeType: models.MimeDirectory, Children: children}
}

// File builds a file node.
func File(id, name, mime string, size int64) *Node {
	n := &Node{ID: id, Name: name, MimeType: mime, Size: size}
	if models.IsMimeArchive(mime) {
		n.Flags |= models.FlagArchive
	}
	return n
}

// FindByID finds a node by its ID in the tree (recursive).
func FindByID(root *Node, id string) *Node {
	if root == nil {
		return nil
	}
	if root.ID == id {
		return root
	}
	for _, child := range root.Children {
		if found := FindByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

// PathTo returns the chain of nodes from root to the node with id (both
// inclusive), or nil when id is not in the tree.
func PathTo(root *Node, id string) []*Node {
	if root == nil {
		return nil
	}
	if root.ID == id {
		return []*Node{root}
	}
	for _, child := range root.Children {
		if chain := PathTo(child, id); chain != nil {
			return append([]*Node{root}, chain...)
		}
	}
	return nil
}

// CountNodes counts all nodes in a tree.
func CountNodes(root *Node) int {
	if root == nil {
		return 0
	}
	count := 1
	for _, child := range root.Children {
		count += CountNodes(child)
	}
	return count
}

// Walk visits every node depth-first; returning false stops descent below that node.
func Walk(root *Node, fn func(*Node) bool) {
	if root == nil || !fn(root) {
		return
	}
	for _, child := range root.Children {
		Walk(child, fn)
	}
}

// RemoveChild removes a child by ID from a parent node.
func RemoveChild(parent *Node, id string) {
	for i, child := range parent.Children {
		if child.ID == id {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			return
		}
	}
}

func matchesQuery(n *Node, query string) bool {
	return strings.Contains(strings.ToLower(n.Name), strings.ToLower(query))
}
