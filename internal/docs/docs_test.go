package docs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruitsalade/docnav/internal/docs"
	"github.com/fruitsalade/docnav/internal/provider"
	"github.com/fruitsalade/docnav/internal/provider/archive"
	"github.com/fruitsalade/docnav/internal/testenv"
	"github.com/fruitsalade/docnav/pkg/docuri"
)

func TestLoadStack(t *testing.T) {
	env := testenv.New(t)
	r := docs.NewResolver(env.Registry)

	st, err := r.LoadStack(context.Background(), docuri.BuildDocumentURI(testenv.HomeAuthority, "f2"), testenv.Self)
	require.NoError(t, err)

	root, ok := st.Root()
	require.True(t, ok)
	assert.True(t, root.Equal(env.HomeRoot))
	assert.Equal(t, 3, st.Size())
	top, _ := st.Peek()
	assert.True(t, top.Equal(env.F2))
}

func TestLoadStackTreeEqualsPlain(t *testing.T) {
	env := testenv.New(t)
	r := docs.NewResolver(env.Registry)
	ctx := context.Background()

	plain, err := r.LoadStack(ctx, docuri.BuildDocumentURI(testenv.HomeAuthority, "jpg"), testenv.Self)
	require.NoError(t, err)
	tree, err := r.LoadStack(ctx, docuri.BuildTreeDocumentURI(testenv.HomeAuthority, "f1", "jpg"), testenv.Self)
	require.NoError(t, err)
	assert.True(t, plain.Equal(tree))
}

func TestLoadStackFailures(t *testing.T) {
	env := testenv.New(t, testenv.WithoutFindPath())
	r := docs.NewResolver(env.Registry)
	ctx := context.Background()

	_, err := r.LoadStack(ctx, docuri.BuildDocumentURI(testenv.HomeAuthority, "f2"), testenv.Self)
	assert.ErrorIs(t, err, provider.ErrNotSupported)

	_, err = r.LoadStack(ctx, "https://example.com/x", testenv.Self)
	assert.ErrorIs(t, err, docuri.ErrNotDocumentURI)

	archiveURI := docuri.BuildDocumentURI(archive.Authority, env.ArchiveEntry.DocumentID)
	assert.True(t, r.IsArchiveURI(archiveURI))
	_, err = r.LoadStack(ctx, archiveURI, testenv.Self)
	assert.ErrorIs(t, err, docs.ErrArchiveReference)
}

func TestResolveStack(t *testing.T) {
	env := testenv.New(t)
	r := docs.NewResolver(env.Registry)

	st, err := r.ResolveStack(context.Background(), env.Archive)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Size())
	top, _ := st.Peek()
	assert.True(t, top.IsArchive())
}

func TestGetDocumentAndArchive(t *testing.T) {
	env := testenv.New(t)
	r := docs.NewResolver(env.Registry)
	ctx := context.Background()

	doc, err := r.GetDocument(ctx, docuri.BuildTreeDocumentURI(testenv.HomeAuthority, "f0", "f1"), testenv.Self)
	require.NoError(t, err)
	assert.True(t, doc.Equal(env.F1))

	list, err := r.GetDocuments(ctx, testenv.Self, testenv.HomeAuthority, []string{"f0", "f1"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	root := r.GetArchiveDocument(env.Archive)
	children, err := env.Registry.ListChildren(ctx, root)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "inner", children[0].DisplayName)

	path, err := r.FindDocumentPath(ctx, env.F2)
	require.NoError(t, err)
	assert.Equal(t, []string{"f0", "f1", "f2"}, path.IDs)
}
