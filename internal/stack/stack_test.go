package stack

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruitsalade/docnav/pkg/models"
)

var (
	home    = models.Root{Authority: "local", RootID: "home", Profile: "personal", Title: "Home", DocumentID: "/"}
	folder0 = folder("/")
	folder1 = folder("/a")
	folder2 = folder("/a/b")
	fileGIF = models.Document{Authority: "local", DocumentID: "/a/pic.gif", Profile: "personal", DisplayName: "pic.gif", MimeType: "image/gif"}
)

func folder(id string) models.Document {
	return models.Document{Authority: "local", DocumentID: id, Profile: "personal", DisplayName: id, MimeType: models.MimeDirectory}
}

func populated(t *testing.T) *Stack {
	t.Helper()
	s, err := New(home, folder0)
	require.NoError(t, err)
	return s
}

func TestPushPop(t *testing.T) {
	s := populated(t)
	require.NoError(t, s.Push(folder1))
	require.NoError(t, s.Push(folder2))
	assert.Equal(t, 3, s.Size())

	top, ok := s.Peek()
	require.True(t, ok)
	assert.Equal(t, folder2, top)

	got, err := s.Pop()
	require.NoError(t, err)
	assert.Equal(t, folder2, got)
	got, err = s.Pop()
	require.NoError(t, err)
	assert.Equal(t, folder1, got)
	assert.Equal(t, 1, s.Size())
}

func TestPush_DuplicateLeavesStackUnchanged(t *testing.T) {
	s := populated(t)
	require.NoError(t, s.Push(folder1))
	before := s.Clone()

	for _, d := range []models.Document{folder0, folder1} {
		err := s.Push(d)
		assert.ErrorIs(t, err, ErrDuplicateDocument)
		assert.True(t, s.Equal(before))
	}
}

func TestPush_DuplicateByIdentity(t *testing.T) {
	s := populated(t)
	renamed := folder0
	renamed.DisplayName = "other name"
	assert.ErrorIs(t, s.Push(renamed), ErrDuplicateDocument)

	otherProfile := folder0
	otherProfile.Profile = "work"
	assert.NoError(t, s.Push(otherProfile))
}

func TestPush_OntoFileFails(t *testing.T) {
	s := populated(t)
	require.NoError(t, s.Push(fileGIF))
	assert.ErrorIs(t, s.Push(folder2), ErrNotContainer)
	assert.Equal(t, 2, s.Size())
}

func TestPop_EmptyStack(t *testing.T) {
	s := &Stack{}
	s.ChangeRoot(home)
	_, err := s.Pop()
	assert.ErrorIs(t, err, ErrEmptyStack)

	_, ok := s.Peek()
	assert.False(t, ok)
}

func TestChangeRoot_ClearsDocuments(t *testing.T) {
	s := populated(t)
	require.NoError(t, s.Push(folder1))

	recents := models.RecentsRoot("personal")
	s.ChangeRoot(recents)
	assert.True(t, s.IsEmpty())
	assert.True(t, s.IsRecents())
	root, ok := s.Root()
	require.True(t, ok)
	assert.Equal(t, recents, root)
}

func TestNew_RejectsInvalidPaths(t *testing.T) {
	_, err := New(home, folder0, folder0)
	assert.ErrorIs(t, err, ErrDuplicateDocument)

	_, err = New(home, folder0, fileGIF, folder2)
	assert.ErrorIs(t, err, ErrNotContainer)

	s, err := New(home, folder0, folder1, fileGIF)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Size())
}

func TestPopToRootDocument(t *testing.T) {
	s, err := New(home, folder0, folder1, folder2)
	require.NoError(t, err)
	s.PopToRootDocument()
	assert.Equal(t, []models.Document{folder0}, s.Documents())

	empty := &Stack{}
	empty.PopToRootDocument()
	assert.True(t, empty.IsEmpty())
}

func TestResetAndClone(t *testing.T) {
	src, err := New(home, folder0, folder1)
	require.NoError(t, err)

	dst := &Stack{}
	dst.Reset(src)
	assert.True(t, dst.Equal(src))

	require.NoError(t, dst.Push(folder2))
	assert.Equal(t, 2, src.Size(), "reset must copy, not alias")

	c := src.Clone()
	_, err = c.Pop()
	require.NoError(t, err)
	assert.Equal(t, 2, src.Size())

	dst.Reset(nil)
	_, ok := dst.Root()
	assert.False(t, ok)
	assert.True(t, dst.IsEmpty())
}

func TestJSONRoundTrip(t *testing.T) {
	src, err := New(home, folder0, folder1)
	require.NoError(t, err)

	data, err := json.Marshal(src)
	require.NoError(t, err)

	var decoded Stack
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Equal(src))
}

func TestUnmarshal_RejectsDuplicates(t *testing.T) {
	data, err := json.Marshal(stackJSON{Root: &home, Documents: []models.Document{folder0, folder0}})
	require.NoError(t, err)

	var decoded Stack
	assert.ErrorIs(t, json.Unmarshal(data, &decoded), ErrDuplicateDocument)
}

func TestString(t *testing.T) {
	s, err := New(home, folder0, folder1)
	require.NoError(t, err)
	assert.Equal(t, "Home > / > /a", s.String())
	assert.Equal(t, "<no root>", (&Stack{}).String())
}
