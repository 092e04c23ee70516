package s3

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruitsalade/docnav/internal/provider"
)

// fakeAPI serves a fixed set of objects.
type fakeAPI struct {
	objects map[string]string
	denied  bool
}

func (f *fakeAPI) keys() []string {
	out := make([]string, 0, len(f.objects))
	for k := range f.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (f *fakeAPI) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.denied {
		return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
	}
	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	seen := map[string]bool{}
	now := time.Now()
	for _, k := range f.keys() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := k[len(prefix):]
		if delim != "" {
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+1]
				if !seen[cp] {
					seen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(f.objects[k]))),
			LastModified: aws.Time(now),
		})
	}
	if in.MaxKeys != nil && len(out.Contents) > int(*in.MaxKeys) {
		out.Contents = out.Contents[:*in.MaxKeys]
	}
	out.KeyCount = aws.Int32(int32(len(out.Contents) + len(out.CommonPrefixes)))
	return out, nil
}

func (f *fakeAPI) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.denied {
		return nil, &smithy.GenericAPIError{Code: "AccessDenied"}
	}
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound"}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(body)))}, nil
}

func (f *fakeAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func newTestProvider(denied bool) *Provider {
	api := &fakeAPI{
		denied: denied,
		objects: map[string]string{
			"photos/2024/beach.jpg": "jpg",
			"photos/album.zip":      "PK",
			"notes.txt":             "hi",
		},
	}
	return NewWithClient(api, Config{Bucket: "media", Profile: "work"})
}

func TestAncestors(t *testing.T) {
	assert.Equal(t, []string{"/"}, Ancestors("/"))
	assert.Equal(t, []string{"/", "/photos/", "/photos/2024/", "/photos/2024/beach.jpg"}, Ancestors("/photos/2024/beach.jpg"))
	assert.Equal(t, []string{"/", "/photos/", "/photos/2024/"}, Ancestors("/photos/2024/"))
}

func TestListChildren(t *testing.T) {
	p := newTestProvider(false)
	assert.Equal(t, "s3.media", p.Authority())

	docs, err := p.ListChildren(context.Background(), "/")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "/photos/", docs[0].DocumentID)
	assert.True(t, docs[0].IsDirectory())
	assert.Equal(t, "/notes.txt", docs[1].DocumentID)

	docs, err = p.ListChildren(context.Background(), "/photos/")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "/photos/2024/", docs[0].DocumentID)
	assert.True(t, docs[1].IsArchive())

	_, err = p.ListChildren(context.Background(), "/notes.txt")
	assert.Error(t, err)
}

func TestDocumentAndFindPath(t *testing.T) {
	p := newTestProvider(false)
	ctx := context.Background()

	doc, err := p.Document(ctx, "/photos/2024/")
	require.NoError(t, err)
	assert.Equal(t, "2024", doc.DisplayName)

	_, err = p.Document(ctx, "/missing/")
	assert.ErrorIs(t, err, provider.ErrNotFound)
	_, err = p.Document(ctx, "/missing.txt")
	assert.ErrorIs(t, err, provider.ErrNotFound)

	path, err := p.FindPath(ctx, "/photos/2024/beach.jpg")
	require.NoError(t, err)
	assert.Equal(t, "media", path.RootID)
	assert.Len(t, path.IDs, 4)
}

func TestAccessDeniedIsNoPermission(t *testing.T) {
	p := newTestProvider(true)
	_, err := p.ListChildren(context.Background(), "/")
	assert.Equal(t, provider.KindNoPermission, provider.KindOf(err))
}

func TestSearchAndOpen(t *testing.T) {
	p := newTestProvider(false)
	ctx := context.Background()

	found, err := p.Search(ctx, "media", "PHOTO")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "/photos/", found[0].DocumentID)

	rc, size, err := p.Open(ctx, "/photos/album.zip")
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, int64(2), size)
}
