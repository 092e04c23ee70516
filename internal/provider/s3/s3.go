// Package s3 provides a document provider over an S3-compatible bucket.
// Prefixes are presented as folders. Document ids are "/"-prefixed keys;
// folder ids end with "/" and the bucket itself is "/".
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/fruitsalade/docnav/internal/logging"
	"github.com/fruitsalade/docnav/internal/provider"
	"github.com/fruitsalade/docnav/pkg/models"
)

// RootDocumentID is the document id of the bucket root.
const RootDocumentID = "/"

// Config holds S3 connection settings.
type Config struct {
	Authority string           `yaml:"authority"`
	Profile   models.ProfileID `yaml:"profile"`
	Endpoint  string           `yaml:"endpoint"`
	Bucket    string           `yaml:"bucket"`
	AccessKey string           `yaml:"access_key"`
	SecretKey string           `yaml:"secret_key"`
	Region    string           `yaml:"region"`
	Title     string           `yaml:"title"`
}

// API is the subset of the S3 client the provider uses.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Provider implements provider.Provider over one bucket.
type Provider struct {
	client    API
	bucket    string
	authority string
	profile   models.ProfileID
	title     string
}

// New creates an S3 provider with a client built from cfg.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logging.Debug("s3 provider configured",
		zap.String("bucket", cfg.Bucket),
		zap.String("endpoint", cfg.Endpoint))

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates an S3 provider around an existing client.
func NewWithClient(client API, cfg Config) *Provider {
	authority := cfg.Authority
	if authority == "" {
		authority = "s3." + cfg.Bucket
	}
	title := cfg.Title
	if title == "" {
		title = cfg.Bucket
	}
	return &Provider{
		client:    client,
		bucket:    cfg.Bucket,
		authority: authority,
		profile:   cfg.Profile,
		title:     title,
	}
}

// Authority implements provider.Provider.
func (p *Provider) Authority() string { return p.authority }

// Roots implements provider.Provider.
func (p *Provider) Roots(_ context.Context) ([]models.Root, error) {
	return []models.Root{{
		Authority:  p.authority,
		RootID:     p.bucket,
		Profile:    p.profile,
		Title:      p.title,
		DocumentID: RootDocumentID,
		Flags:      models.RootSupportsSearch | models.RootSupportsFindPath,
	}}, nil
}

// KeyOf converts a document id to an object key or prefix.
func KeyOf(documentID string) string {
	return strings.TrimPrefix(documentID, "/")
}

// IsFolderID reports whether a document id names a prefix.
func IsFolderID(documentID string) bool {
	return strings.HasSuffix(documentID, "/")
}

// Document implements provider.Provider.
func (p *Provider) Document(ctx context.Context, documentID string) (models.Document, error) {
	if documentID == RootDocumentID {
		return p.folderDocument(RootDocumentID), nil
	}
	if IsFolderID(documentID) {
		out, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(p.bucket),
			Prefix:  aws.String(KeyOf(documentID)),
			MaxKeys: aws.Int32(1),
		})
		if err != nil {
			return models.Document{}, p.classify("document", documentID, err)
		}
		if aws.ToInt32(out.KeyCount) == 0 && len(out.Contents) == 0 {
			return models.Document{}, fmt.Errorf("document %s: %w", documentID, provider.ErrNotFound)
		}
		return p.folderDocument(documentID), nil
	}

	out, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(KeyOf(documentID)),
	})
	if err != nil {
		return models.Document{}, p.classify("document", documentID, err)
	}
	doc := p.fileDocument(documentID, aws.ToInt64(out.ContentLength))
	if out.LastModified != nil {
		doc.ModTime = *out.LastModified
	}
	if ct := aws.ToString(out.ContentType); ct != "" && ct != "binary/octet-stream" {
		doc.MimeType = ct
		if models.IsMimeArchive(ct) {
			doc.Flags |= models.FlagArchive
		}
	}
	return doc, nil
}

// ListChildren implements provider.Provider using a "/" delimiter.
func (p *Provider) ListChildren(ctx context.Context, documentID string) ([]models.Document, error) {
	if !IsFolderID(documentID) {
		return nil, fmt.Errorf("document %s is not a folder", documentID)
	}
	prefix := KeyOf(documentID)

	var docs []models.Document
	var token *string
	for {
		out, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(p.bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, p.classify("list", documentID, err)
		}
		for _, cp := range out.CommonPrefixes {
			docs = append(docs, p.folderDocument("/"+aws.ToString(cp.Prefix)))
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue // folder marker
			}
			doc := p.fileDocument("/"+key, aws.ToInt64(obj.Size))
			if obj.LastModified != nil {
				doc.ModTime = *obj.LastModified
			}
			docs = append(docs, doc)
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	return docs, nil
}

// FindPath implements provider.PathFinder: every prefix of the key is an ancestor folder.
func (p *Provider) FindPath(ctx context.Context, documentID string) (models.Path, error) {
	if _, err := p.Document(ctx, documentID); err != nil {
		return models.Path{}, err
	}
	return models.Path{RootID: p.bucket, IDs: Ancestors(documentID)}, nil
}

// Ancestors returns the folder ids leading to documentID, starting with the
// bucket root, followed by documentID itself.
func Ancestors(documentID string) []string {
	ids := []string{RootDocumentID}
	if documentID == RootDocumentID {
		return ids
	}
	key := KeyOf(documentID)
	parts := strings.Split(strings.TrimSuffix(key, "/"), "/")
	current := "/"
	for _, part := range parts[:len(parts)-1] {
		current += part + "/"
		ids = append(ids, current)
	}
	return append(ids, documentID)
}

// Search implements provider.Searcher by scanning keys for a name match.
func (p *Provider) Search(ctx context.Context, _ string, query string) ([]models.Document, error) {
	q := strings.ToLower(query)
	seen := make(map[string]bool)
	var docs []models.Document
	var token *string
	for {
		out, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(p.bucket),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, p.classify("search", RootDocumentID, err)
		}
		for _, obj := range out.Contents {
			id := "/" + aws.ToString(obj.Key)
			// Folders are implied by their keys.
			for _, anc := range Ancestors(id)[1:] {
				if seen[anc] {
					continue
				}
				seen[anc] = true
				if !strings.Contains(strings.ToLower(nameOf(anc)), q) {
					continue
				}
				if IsFolderID(anc) {
					docs = append(docs, p.folderDocument(anc))
				} else {
					doc := p.fileDocument(anc, aws.ToInt64(obj.Size))
					if obj.LastModified != nil {
						doc.ModTime = *obj.LastModified
					}
					docs = append(docs, doc)
				}
			}
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].DocumentID < docs[j].DocumentID })
	return docs, nil
}

// Open implements provider.Opener.
func (p *Provider) Open(ctx context.Context, documentID string) (io.ReadCloser, int64, error) {
	if IsFolderID(documentID) {
		return nil, 0, fmt.Errorf("cannot read folder %s", documentID)
	}
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(KeyOf(documentID)),
	})
	if err != nil {
		return nil, 0, p.classify("open", documentID, err)
	}
	return out.Body, aws.ToInt64(out.ContentLength), nil
}

// classify maps S3 API errors onto provider errors.
func (p *Provider) classify(op, id string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "AllAccessDisabled":
			return provider.Errorf(provider.KindNoPermission, p.authority, op, err)
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return fmt.Errorf("%s %s: %w", op, id, provider.ErrNotFound)
		}
	}
	return fmt.Errorf("%s %s: %w", op, id, err)
}

func nameOf(id string) string {
	return path.Base(strings.TrimSuffix(id, "/"))
}

func (p *Provider) folderDocument(id string) models.Document {
	name := nameOf(id)
	if id == RootDocumentID {
		name = p.title
	}
	return models.Document{
		Authority:   p.authority,
		DocumentID:  id,
		Profile:     p.profile,
		DisplayName: name,
		MimeType:    models.MimeDirectory,
	}
}

func (p *Provider) fileDocument(id string, size int64) models.Document {
	name := nameOf(id)
	doc := models.Document{
		Authority:   p.authority,
		DocumentID:  id,
		Profile:     p.profile,
		DisplayName: name,
		MimeType:    models.MimeTypeFromName(name),
		Size:        size,
	}
	if models.IsMimeArchive(doc.MimeType) {
		doc.Flags |= models.FlagArchive
	}
	return doc
}
