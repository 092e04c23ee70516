package files_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruitsalade/docnav/internal/docs"
	"github.com/fruitsalade/docnav/internal/files"
	"github.com/fruitsalade/docnav/internal/handler"
	"github.com/fruitsalade/docnav/internal/model"
	"github.com/fruitsalade/docnav/internal/stack"
	"github.com/fruitsalade/docnav/internal/testenv"
	"github.com/fruitsalade/docnav/pkg/docuri"
	"github.com/fruitsalade/docnav/pkg/models"
)

type recordingViewer struct {
	viewed  []models.Document
	details []models.Document
	err     error
}

func (v *recordingViewer) View(_ context.Context, d models.Document) error {
	v.viewed = append(v.viewed, d)
	return v.err
}

func (v *recordingViewer) Details(_ context.Context, d models.Document) error {
	v.details = append(v.details, d)
	return nil
}

type fixture struct {
	env     *testenv.Env
	model   *model.Model
	h       *handler.Handler
	surface *files.Surface
	viewer  *recordingViewer
	search  *handler.Search
}

func newFixture(t *testing.T, features handler.Features, opts ...files.Option) *fixture {
	t.Helper()
	env := testenv.New(t)
	m := model.New(env.Registry, env.Profiles)
	t.Cleanup(m.Close)
	resolver := docs.NewResolver(env.Registry)
	search := &handler.Search{}
	h := handler.New(env.State, resolver, m, handler.WithFeatures(features), handler.WithSearch(search))
	v := &recordingViewer{}
	opts = append([]files.Option{files.WithViewer(v)}, opts...)
	s := files.New(h, env.Registry, resolver, opts...)
	return &fixture{env: env, model: m, h: h, surface: s, viewer: v, search: search}
}

// outcome waits for the loads started so far and returns the latest result.
func (f *fixture) outcome() model.Outcome {
	f.model.Wait()
	return f.model.Outcome()
}

func names(docs []models.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.DisplayName
	}
	return out
}

func TestOpenRoot(t *testing.T) {
	f := newFixture(t, handler.Features{})
	ctx := context.Background()

	require.NoError(t, f.h.OpenRoot(ctx, f.env.HomeRoot))
	assert.Equal(t, 1, f.env.State.Stack.Size())
	top, _ := f.env.State.Stack.Peek()
	assert.True(t, top.Equal(f.env.F0))

	o := f.outcome()
	require.NoError(t, o.Err)
	assert.Equal(t, []string{"bundle.zip", "Folder 1"}, names(o.Documents))
}

func TestOpenRecentsRoot(t *testing.T) {
	f := newFixture(t, handler.Features{})
	ctx := context.Background()

	require.NoError(t, f.h.OpenRoot(ctx, models.RecentsRoot(testenv.Self)))
	assert.True(t, f.env.State.Stack.IsEmpty())
	assert.True(t, f.env.State.Stack.IsRecents())

	o := f.outcome()
	require.NoError(t, o.Err)
	assert.NotEmpty(t, o.Documents)
}

func TestOpenItem(t *testing.T) {
	f := newFixture(t, handler.Features{})
	ctx := context.Background()
	require.NoError(t, f.h.OpenRoot(ctx, f.env.HomeRoot))

	ok, err := f.h.OpenItem(ctx, f.env.F1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, f.env.State.Stack.Size())
	assert.Equal(t, []string{"Folder 2", "pic.gif"}, names(f.outcome().Documents))

	ok, err = f.h.OpenItem(ctx, f.env.Picture)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, f.viewer.viewed, 1)
	assert.True(t, f.viewer.viewed[0].Equal(f.env.Picture))
	assert.Equal(t, 2, f.env.State.Stack.Size())
}

func TestOpenItemFromSearchResults(t *testing.T) {
	f := newFixture(t, handler.Features{})
	ctx := context.Background()
	require.NoError(t, f.h.OpenRoot(ctx, f.env.HomeRoot))

	f.search.Set("folder")
	f.h.LoadDocumentsForCurrentStack(ctx)
	assert.ElementsMatch(t, []string{"Folder 1", "Folder 2"}, names(f.outcome().Documents))

	ok, err := f.h.OpenItem(ctx, f.env.F1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, f.search.IsSearching())
	assert.Equal(t, 2, f.env.State.Stack.Size())
	assert.Equal(t, []string{"Folder 2", "pic.gif"}, names(f.outcome().Documents))
}

func TestOpenItemViewerError(t *testing.T) {
	f := newFixture(t, handler.Features{})
	f.viewer.err = errors.New("no application")

	ok, err := f.h.OpenItem(context.Background(), f.env.Photo)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestOpenItemWithoutViewer(t *testing.T) {
	env := testenv.New(t)
	resolver := docs.NewResolver(env.Registry)
	h := handler.New(env.State, resolver, model.New(env.Registry, env.Profiles))
	files.New(h, env.Registry, resolver)

	ok, err := h.OpenItem(context.Background(), env.Photo)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, h.PreviewItem(context.Background(), env.Photo), handler.ErrUnsupportedOperation)
}

func TestOpenArchiveItem(t *testing.T) {
	f := newFixture(t, handler.Features{})
	ctx := context.Background()
	require.NoError(t, f.h.OpenRoot(ctx, f.env.HomeRoot))

	_, err := f.h.OpenItem(ctx, f.env.Archive)
	require.NoError(t, err)
	o := f.outcome()
	require.NoError(t, o.Err)
	assert.Equal(t, []string{"inner"}, names(o.Documents))
}

func TestInitLocationFromStack(t *testing.T) {
	f := newFixture(t, handler.Features{})
	st, err := stack.New(f.env.HomeRoot, f.env.F0, f.env.F1, f.env.F2)
	require.NoError(t, err)

	require.NoError(t, f.h.InitLocation(context.Background(), handler.LaunchRequest{Stack: st}))
	assert.True(t, st.Equal(f.env.State.Stack))
	assert.Equal(t, []string{"beach.jpg"}, names(f.outcome().Documents))
}

func TestInitLocationFromURI(t *testing.T) {
	ctx := context.Background()

	t.Run("folder", func(t *testing.T) {
		f := newFixture(t, handler.Features{LaunchToDocument: true})
		uri := docuri.BuildDocumentURI(testenv.HomeAuthority, "f2")
		require.NoError(t, f.h.InitLocation(ctx, handler.LaunchRequest{URI: uri}))
		assert.Equal(t, 3, f.env.State.Stack.Size())
		assert.Equal(t, []string{"beach.jpg"}, names(f.outcome().Documents))
	})

	t.Run("file", func(t *testing.T) {
		f := newFixture(t, handler.Features{LaunchToDocument: true})
		uri := docuri.BuildDocumentURI(testenv.HomeAuthority, "gif")
		require.NoError(t, f.h.InitLocation(ctx, handler.LaunchRequest{URI: uri}))
		assert.Equal(t, 2, f.env.State.Stack.Size())
		require.Len(t, f.viewer.viewed, 1)
		assert.True(t, f.viewer.viewed[0].Equal(f.env.Picture))
	})

	t.Run("disabled falls back to default", func(t *testing.T) {
		f := newFixture(t, handler.Features{})
		uri := docuri.BuildDocumentURI(testenv.HomeAuthority, "f2")
		require.NoError(t, f.h.InitLocation(ctx, handler.LaunchRequest{URI: uri}))
		root, ok := f.env.State.Stack.Root()
		require.True(t, ok)
		assert.True(t, root.Equal(f.env.HomeRoot))
		assert.Equal(t, 1, f.env.State.Stack.Size())
	})
}

func TestLaunchToDefaultLocation(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, handler.Features{})
	require.NoError(t, f.h.LaunchToDefaultLocation(ctx))
	root, _ := f.env.State.Stack.Root()
	assert.True(t, root.Equal(f.env.HomeRoot))

	f = newFixture(t, handler.Features{}, files.WithRecentsDefault(true))
	require.NoError(t, f.h.LaunchToDefaultLocation(ctx))
	assert.True(t, f.env.State.Stack.IsRecents())
}

func TestPreviewItem(t *testing.T) {
	f := newFixture(t, handler.Features{})
	require.NoError(t, f.h.PreviewItem(context.Background(), f.env.Photo))
	require.Len(t, f.viewer.details, 1)
	assert.True(t, f.viewer.details[0].Equal(f.env.Photo))
}
