package docuri

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw  string
		want Ref
	}{
		{"content://local/document/%2Fdir%2Fa.txt", Ref{Authority: "local", DocumentID: "/dir/a.txt"}},
		{"content://local/tree/%2Fdir", Ref{Authority: "local", TreeID: "/dir", DocumentID: "/dir"}},
		{"content://local/tree/%2Fdir/document/%2Fdir%2Fa.txt", Ref{Authority: "local", TreeID: "/dir", DocumentID: "/dir/a.txt"}},
	}

	for _, tt := range tests {
		got, err := Parse(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, raw := range []string{
		"",
		"file:///tmp/a",
		"content:///document/x",
		"content://local/other/x",
		"content://local/tree/a/other/b",
	} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrNotDocumentURI, raw)
		assert.False(t, IsDocumentURI(raw), raw)
	}
}

func TestRoundTrip(t *testing.T) {
	id := "folder 1/file#2.gif"
	raw := BuildDocumentURI("home", id)
	ref, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, id, ref.DocumentID)
	assert.Equal(t, raw, ref.String())
}

func TestToDocument(t *testing.T) {
	tree := BuildTreeDocumentURI("home", "F0", "GIF")
	ref, err := Parse(tree)
	require.NoError(t, err)
	assert.True(t, ref.IsTree())

	plain := ref.ToDocument()
	assert.False(t, plain.IsTree())
	assert.Equal(t, BuildDocumentURI("home", "GIF"), plain.String())
}
