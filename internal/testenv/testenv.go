// Package testenv builds a small, fully wired document world for tests:
// two profiles, in-memory providers with a folder chain, an archive and a
// registry that serves them.
package testenv

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fruitsalade/docnav/internal/profile"
	"github.com/fruitsalade/docnav/internal/provider"
	"github.com/fruitsalade/docnav/internal/provider/archive"
	"github.com/fruitsalade/docnav/internal/provider/memory"
	"github.com/fruitsalade/docnav/internal/state"
	"github.com/fruitsalade/docnav/pkg/models"
)

const (
	Self  models.ProfileID = "personal"
	Other models.ProfileID = "work"

	HomeAuthority = "home"
	WorkAuthority = "corp"
)

// Env is a wired set of providers, profiles and session state.
type Env struct {
	Registry *provider.Registry
	Profiles *profile.Manager
	State    *state.State

	Home     *memory.Provider
	Work     *memory.Provider
	Archives *archive.Provider

	HomeRoot models.Root
	WorkRoot models.Root

	// Home documents: F0 is the root document, F0 > F1 > F2.
	F0, F1, F2   models.Document
	Picture      models.Document // file in F1
	Photo        models.Document // file in F2
	Archive      models.Document // zip in F0
	ArchiveEntry models.Document // inner/doc.txt inside Archive

	// Work documents: WorkTop > WorkFolder > WorkFile.
	WorkTop, WorkFolder, WorkFile models.Document
}

type options struct {
	findPath bool
}

// Option configures the environment.
type Option func(*options)

// WithoutFindPath builds home and work providers that cannot resolve paths.
func WithoutFindPath() Option {
	return func(o *options) { o.findPath = false }
}

// ZipBytes builds a zip archive holding files.
func ZipBytes(t testing.TB, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// New builds the environment. Resources are released with t.Cleanup.
func New(t testing.TB, opts ...Option) *Env {
	t.Helper()
	o := options{findPath: true}
	for _, opt := range opts {
		opt(&o)
	}

	now := time.Now()
	pic := memory.File("gif", "pic.gif", "image/gif", 10)
	pic.ModTime = now
	photo := memory.File("jpg", "beach.jpg", "image/jpeg", 20)
	photo.ModTime = now.Add(-time.Minute)
	zipNode := memory.File("zip", "bundle.zip", "application/zip", 0)
	zipNode.Content = ZipBytes(t, map[string]string{"inner/doc.txt": "hello"})

	home := memory.New(HomeAuthority, Self,
		memory.Dir("f0", "Home",
			memory.Dir("f1", "Folder 1",
				memory.Dir("f2", "Folder 2", photo),
				pic,
			),
			zipNode,
		),
		memory.WithRootID("home-root"),
		memory.WithTitle("Home"),
		memory.WithFindPath(o.findPath),
	)

	report := memory.File("pdf", "report.pdf", "application/pdf", 30)
	report.ModTime = now
	work := memory.New(WorkAuthority, Other,
		memory.Dir("w0", "Work",
			memory.Dir("wdocs", "Documents", report),
		),
		memory.WithRootID("work-root"),
		memory.WithTitle("Work"),
		memory.WithFindPath(o.findPath),
	)

	registry := provider.NewRegistry()
	registry.Register(Self, home)
	registry.Register(Other, work)

	cache, err := archive.NewCache(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("archive cache: %v", err)
	}
	archives := archive.New(Self, registry, cache)
	registry.Register(Self, archives)
	t.Cleanup(func() { registry.Close() })

	profiles := profile.NewManager(Self)
	profiles.Add(profile.Profile{ID: Other, Kind: profile.KindWork, Label: "Work"})

	env := &Env{
		Registry: registry,
		Profiles: profiles,
		State:    state.New(Self),
		Home:     home,
		Work:     work,
		Archives: archives,
		F0:       home.MustDocument("f0"),
		F1:       home.MustDocument("f1"),
		F2:       home.MustDocument("f2"),
		Picture:  home.MustDocument("gif"),
		Photo:    home.MustDocument("jpg"),
		Archive:  home.MustDocument("zip"),

		WorkTop:    work.MustDocument("w0"),
		WorkFolder: work.MustDocument("wdocs"),
		WorkFile:   work.MustDocument("pdf"),
	}

	homeRoots, _ := home.Roots(context.Background())
	env.HomeRoot = homeRoots[0]
	workRoots, _ := work.Roots(context.Background())
	env.WorkRoot = workRoots[0]

	entry := archive.ID{SourceAuthority: HomeAuthority, SourceID: "zip", Entry: "inner/doc.txt"}
	env.ArchiveEntry = models.Document{
		Authority:   archive.Authority,
		DocumentID:  entry.String(),
		Profile:     Self,
		DisplayName: "doc.txt",
		MimeType:    "text/plain",
		Size:        5,
	}
	return env
}
