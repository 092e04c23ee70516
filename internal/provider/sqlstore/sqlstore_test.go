package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruitsalade/docnav/internal/provider"
	"github.com/fruitsalade/docnav/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Authority: "meta", Profile: "work", Driver: "sqlite", DSN: ":memory:", Title: "Team"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	now := time.Now()
	rows := []FileRow{
		{Name: "projects", Path: "/projects", IsDir: true},
		{Name: "alpha", Path: "/projects/alpha", IsDir: true},
		{Name: "plan.pdf", Path: "/projects/alpha/plan.pdf", Size: 10, ModTime: now, MimeType: "application/pdf"},
		{Name: "assets.zip", Path: "/projects/assets.zip", Size: 20, ModTime: now.Add(-time.Hour), MimeType: "application/zip"},
		{Name: "readme", Path: "/readme", Size: 1},
	}
	for i := range rows {
		require.NoError(t, s.UpsertFile(ctx, &rows[i]))
	}
	return s
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: "postgres"}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))
	lite := &Store{driver: "sqlite"}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(Config{Driver: "oracle"})
	assert.Error(t, err)
}

func TestDocumentAndRoot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	root, err := s.Document(ctx, RootPath)
	require.NoError(t, err)
	assert.True(t, root.IsDirectory())
	assert.Equal(t, "Team", root.DisplayName)

	zip, err := s.Document(ctx, "projects/assets.zip")
	require.NoError(t, err)
	assert.True(t, zip.IsArchive())
	assert.Equal(t, models.ProfileID("work"), zip.Profile)

	readme, err := s.Document(ctx, "/readme")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", readme.MimeType)

	_, err = s.Document(ctx, "/nope")
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestListChildren(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	top, err := s.ListChildren(ctx, RootPath)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "/projects", top[0].DocumentID)
	assert.Equal(t, "/readme", top[1].DocumentID)

	kids, err := s.ListChildren(ctx, "/projects")
	require.NoError(t, err)
	assert.Len(t, kids, 2)

	_, err = s.ListChildren(ctx, "/readme")
	assert.Error(t, err)
}

func TestFindPath(t *testing.T) {
	s := newTestStore(t)
	path, err := s.FindPath(context.Background(), "/projects/alpha/plan.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/projects", "/projects/alpha", "/projects/alpha/plan.pdf"}, path.IDs)
	assert.Equal(t, "sql", path.RootID)

	_, err = s.FindPath(context.Background(), "/projects/ghost/x")
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestSearchAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	found, err := s.Search(ctx, "sql", "ALP")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "/projects/alpha", found[0].DocumentID)

	recent, err := s.Recent(ctx, "sql", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "/projects/alpha/plan.pdf", recent[0].DocumentID)
}

func TestSearchMatchesWildcardsLiterally(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"a_b.txt", "axb.txt", "100%.txt", "1000.txt"} {
		require.NoError(t, s.UpsertFile(ctx, &FileRow{Name: name, Path: "/" + name}))
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"a_b", []string{"/a_b.txt"}},
		{"0%", []string{"/100%.txt"}},
		{"_", []string{"/a_b.txt"}},
		{"%", []string{"/100%.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			found, err := s.Search(ctx, "sql", tt.query)
			require.NoError(t, err)
			var ids []string
			for _, d := range found {
				ids = append(ids, d.DocumentID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestUpsertAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertFile(ctx, &FileRow{Name: "README", Path: "/readme", Size: 5}))
	doc, err := s.Document(ctx, "/readme")
	require.NoError(t, err)
	assert.Equal(t, int64(5), doc.Size)

	n, err := s.FileCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	require.NoError(t, s.DeleteFile(ctx, "/readme"))
	n, err = s.FileCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestParentOf(t *testing.T) {
	assert.Equal(t, "/", parentOf("/a"))
	assert.Equal(t, "/a", parentOf("/a/b"))
}
