// Package models contains the document and root records shared by all packages.
package models

import (
	"mime"
	"path"
	"strings"
	"time"
)

// MimeDirectory is the MIME type reported for folders by every provider.
const MimeDirectory = "vnd.android.document/directory"

// ProfileID identifies the user profile that owns a document (personal, work, private...).
type ProfileID string

// DocFlags are capability bits carried by a document.
type DocFlags uint32

const (
	FlagArchive DocFlags = 1 << iota
	FlagVirtual
	FlagWritable
)

// Document represents a single entry exposed by a document provider.
// Documents are values: once constructed they are never mutated.
type Document struct {
	Authority   string    `json:"authority"`
	DocumentID  string    `json:"document_id"`
	Profile     ProfileID `json:"profile"`
	DisplayName string    `json:"display_name"`
	MimeType    string    `json:"mime_type"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mtime"`
	Flags       DocFlags  `json:"flags,omitempty"`
}

// IsDirectory reports whether the document is a folder.
func (d Document) IsDirectory() bool {
	return d.MimeType == MimeDirectory
}

// IsArchive reports whether the document is an archive that can be entered.
func (d Document) IsArchive() bool {
	return d.Flags&FlagArchive != 0
}

// IsContainer reports whether the document can hold children.
func (d Document) IsContainer() bool {
	return d.IsDirectory() || d.IsArchive()
}

// Key is the identity of a document: profile, authority and document id.
func (d Document) Key() string {
	return string(d.Profile) + "@" + d.Authority + "|" + d.DocumentID
}

// Equal compares two documents by identity.
func (d Document) Equal(o Document) bool {
	return d.Profile == o.Profile && d.Authority == o.Authority && d.DocumentID == o.DocumentID
}

func (d Document) String() string {
	return d.DisplayName + " (" + d.Key() + ")"
}

// RootFlags are capability bits carried by a root.
type RootFlags uint32

const (
	RootSupportsRecents RootFlags = 1 << iota
	RootSupportsSearch
	RootSupportsFindPath
	RootRecents
)

// RecentsAuthority is the pseudo authority of the synthetic recents root.
const RecentsAuthority = "recents"

// Root identifies a top-level location within a provider.
type Root struct {
	Authority  string    `json:"authority"`
	RootID     string    `json:"root_id"`
	Profile    ProfileID `json:"profile"`
	Title      string    `json:"title"`
	DocumentID string    `json:"document_id"`
	Flags      RootFlags `json:"flags,omitempty"`
}

// RecentsRoot returns the synthetic recents root for a profile.
func RecentsRoot(profile ProfileID) Root {
	return Root{
		Authority: RecentsAuthority,
		RootID:    "recents",
		Profile:   profile,
		Title:     "Recent",
		Flags:     RootRecents,
	}
}

// IsRecents reports whether the root is the synthetic recents root.
func (r Root) IsRecents() bool {
	return r.Flags&RootRecents != 0
}

// SupportsSearch reports whether the root can be searched.
func (r Root) SupportsSearch() bool {
	return r.Flags&RootSupportsSearch != 0
}

// SupportsRecents reports whether the root contributes to the recents root.
func (r Root) SupportsRecents() bool {
	return r.Flags&RootSupportsRecents != 0
}

// SupportsFindPath reports whether documents under the root can be resolved to a path.
func (r Root) SupportsFindPath() bool {
	return r.Flags&RootSupportsFindPath != 0
}

// Equal compares two roots by identity.
func (r Root) Equal(o Root) bool {
	return r.Profile == o.Profile && r.Authority == o.Authority && r.RootID == o.RootID
}

func (r Root) String() string {
	return r.Title + " (" + string(r.Profile) + "@" + r.Authority + "/" + r.RootID + ")"
}

// Path is the result of resolving a document to its location:
// the root it lives under and the ordered document ids from the root
// document down to the document itself (both inclusive).
type Path struct {
	RootID string   `json:"root_id"`
	IDs    []string `json:"path"`
}

// IsMimeArchive reports whether a MIME type names an archive format the
// archive provider can open.
func IsMimeArchive(mime string) bool {
	switch strings.ToLower(mime) {
	case "application/zip", "application/x-zip-compressed", "application/java-archive":
		return true
	}
	return false
}

// MimeTypeFromName guesses a MIME type from a file name.
func MimeTypeFromName(name string) string {
	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".zip":
		return "application/zip"
	case ".jar":
		return "application/java-archive"
	case ".txt":
		return "text/plain"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return "application/octet-stream"
}
