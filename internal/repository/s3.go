package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/debemdeboas/the-pantry/internal/cache"
	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/progress"
	"github.com/debemdeboas/the-pantry/internal/util"
	"github.com/debemdeboas/the-pantry/internal/util/compression"
	"github.com/google/uuid"
)

// S3API is the subset of the S3 client used by S3DraftRepository.
type S3API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Options struct {
	Bucket   string
	Prefix   string
	Endpoint string
	Region   string

	AccessKeyID     string
	AccessKeySecret string
}

// Object metadata keys. S3 returns user metadata keys lowercased.
const (
	metaOwner       = "owner"
	metaTitle       = "title"
	metaCompletion  = "completion"
	metaContentHash = "content-hash"
	metaCreatedAt   = "created-at"
	metaModifiedAt  = "modified-at"
)

// S3DraftRepository stores each draft as one object at <prefix><owner>/<id>.json.zst.
type S3DraftRepository struct { // implements DraftRepository
	client S3API
	bucket string
	prefix string

	// Draft id to object key, filled as objects are written or listed.
	keys *cache.Cache[model.DraftID, string]

	compressor compression.Compressor
}

func NewS3DraftRepository(ctx context.Context, opts S3Options) (*S3DraftRepository, error) {
	region := opts.Region
	if region == "" {
		region = "auto"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.AccessKeySecret, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing S3 client: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3DraftRepositoryWithClient(client, opts.Bucket, opts.Prefix), nil
}

func NewS3DraftRepositoryWithClient(client S3API, bucket, prefix string) *S3DraftRepository {
	return &S3DraftRepository{
		client:     client,
		bucket:     bucket,
		prefix:     prefix,
		keys:       cache.NewCache[model.DraftID, string](),
		compressor: compression.Detecting{Compressor: compression.ZstdCompressor{}},
	}
}

func (r *S3DraftRepository) Create(ctx context.Context, owner model.UserID, content model.RecipeContent) (CreateResult, error) {
	if err := Validate(content); err != nil {
		return CreateResult{}, err
	}
	hash, err := util.JSONHash(content)
	if err != nil {
		return CreateResult{}, err
	}

	ts := now()
	rec := &record{
		ID:          model.DraftID(uuid.New().String()),
		Owner:       owner,
		Content:     content,
		ContentHash: hash,
		CreatedAt:   ts,
		ModifiedAt:  ts,
	}

	key := r.objectKey(owner, rec.ID)
	if err := r.put(ctx, key, rec); err != nil {
		return CreateResult{}, err
	}
	r.keys.Set(rec.ID, key)

	repoLogger.Debug().Str("draft_id", string(rec.ID)).Str("key", key).Msg("Draft created")
	return CreateResult{ID: rec.ID, CreatedAt: ts, ModifiedAt: ts}, nil
}

func (r *S3DraftRepository) Update(ctx context.Context, id model.DraftID, content model.RecipeContent) (time.Time, error) {
	if err := Validate(content); err != nil {
		return time.Time{}, err
	}
	hash, err := util.JSONHash(content)
	if err != nil {
		return time.Time{}, err
	}

	key, err := r.locate(ctx, id)
	if err != nil {
		return time.Time{}, err
	}

	head, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(r.bucket), Key: aws.String(key)})
	if err != nil {
		return time.Time{}, r.mapError(id, err)
	}
	summary := summaryFromMetadata(id, head.Metadata)
	if head.Metadata[metaContentHash] == hash {
		return summary.ModifiedAt, nil
	}

	rec := &record{
		ID:          id,
		Owner:       summary.Owner,
		Content:     content,
		ContentHash: hash,
		CreatedAt:   summary.CreatedAt,
		ModifiedAt:  now(),
	}
	if err := r.put(ctx, key, rec); err != nil {
		return time.Time{}, err
	}
	return rec.ModifiedAt, nil
}

func (r *S3DraftRepository) Get(ctx context.Context, id model.DraftID) (*model.DraftDocument, error) {
	key, err := r.locate(ctx, id)
	if err != nil {
		return nil, err
	}

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(r.bucket), Key: aws.String(key)})
	if err != nil {
		return nil, r.mapError(id, err)
	}
	defer out.Body.Close()

	compressed, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading draft object: %w", err)
	}
	data, err := r.compressor.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("error decompressing draft: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("error decoding draft: %w", err)
	}
	return rec.document(), nil
}

func (r *S3DraftRepository) List(ctx context.Context, owner model.UserID) ([]model.DraftSummary, error) {
	prefix := r.prefix
	if owner != "" {
		prefix += ownerSegment(owner) + "/"
	}

	summaries := make([]model.DraftSummary, 0)
	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error listing drafts: %w", err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			id, ok := r.idFromKey(key)
			if !ok {
				continue
			}
			r.keys.Set(id, key)

			head, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(r.bucket), Key: aws.String(key)})
			if err != nil {
				repoLogger.Warn().Err(err).Str("key", key).Msg("Skipping unreadable draft object")
				continue
			}
			summaries = append(summaries, summaryFromMetadata(id, head.Metadata))
		}
	}

	sortSummaries(summaries)
	return summaries, nil
}

func (r *S3DraftRepository) Delete(ctx context.Context, id model.DraftID) error {
	key, err := r.locate(ctx, id)
	if err != nil {
		return err
	}

	// DeleteObject succeeds for missing keys.
	if _, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(r.bucket), Key: aws.String(key)}); err != nil {
		return r.mapError(id, err)
	}
	if _, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(r.bucket), Key: aws.String(key)}); err != nil {
		return fmt.Errorf("error deleting draft: %w", err)
	}

	r.keys.Delete(id)
	return nil
}

func (r *S3DraftRepository) put(ctx context.Context, key string, rec *record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("error encoding draft: %w", err)
	}
	compressed, err := r.compressor.Compress(data)
	if err != nil {
		return fmt.Errorf("error compressing draft: %w", err)
	}

	summary := rec.summary()
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(compressed),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			metaOwner:       url.QueryEscape(string(rec.Owner)),
			metaTitle:       url.QueryEscape(summary.Title),
			metaCompletion:  strconv.Itoa(progress.Percentage(progress.Compute(rec.Content))),
			metaContentHash: rec.ContentHash,
			metaCreatedAt:   rec.CreatedAt.Format(time.RFC3339Nano),
			metaModifiedAt:  rec.ModifiedAt.Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return fmt.Errorf("error saving draft: %w", err)
	}
	return nil
}

// locate finds the object key of a draft, listing the bucket on a cache miss.
func (r *S3DraftRepository) locate(ctx context.Context, id model.DraftID) (string, error) {
	if key, ok := r.keys.Get(id); ok {
		return key, nil
	}
	if id == "" || strings.Contains(string(id), "/") {
		return "", ErrNotFound
	}

	suffix := "/" + string(id) + draftFileExt
	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(r.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf("error listing drafts: %w", err)
		}
		for _, obj := range page.Contents {
			if key := aws.ToString(obj.Key); strings.HasSuffix(key, suffix) {
				r.keys.Set(id, key)
				return key, nil
			}
		}
	}
	return "", ErrNotFound
}

func (r *S3DraftRepository) mapError(id model.DraftID, err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		r.keys.Delete(id)
		return ErrNotFound
	}
	return fmt.Errorf("error accessing draft object: %w", err)
}

func (r *S3DraftRepository) objectKey(owner model.UserID, id model.DraftID) string {
	return r.prefix + ownerSegment(owner) + "/" + string(id) + draftFileExt
}

func (r *S3DraftRepository) idFromKey(key string) (model.DraftID, bool) {
	rest := strings.TrimPrefix(key, r.prefix)
	_, name, ok := strings.Cut(rest, "/")
	if !ok || !strings.HasSuffix(name, draftFileExt) || strings.Contains(name, "/") {
		return "", false
	}
	return model.DraftID(strings.TrimSuffix(name, draftFileExt)), true
}

func ownerSegment(owner model.UserID) string {
	if owner == "" {
		return "_"
	}
	return url.PathEscape(string(owner))
}

func summaryFromMetadata(id model.DraftID, meta map[string]string) model.DraftSummary {
	s := model.DraftSummary{ID: id}
	if v, err := url.QueryUnescape(meta[metaOwner]); err == nil {
		s.Owner = model.UserID(v)
	}
	if v, err := url.QueryUnescape(meta[metaTitle]); err == nil {
		s.Title = v
	}
	s.CompletionPercentage, _ = strconv.Atoi(meta[metaCompletion])
	s.CreatedAt, _ = time.Parse(time.RFC3339Nano, meta[metaCreatedAt])
	s.ModifiedAt, _ = time.Parse(time.RFC3339Nano, meta[metaModifiedAt])
	return s
}

// SetCompressor sets the codec for content written from now on. Content
// written with any other known codec stays readable.
func (r *S3DraftRepository) SetCompressor(c compression.Compressor) {
	r.compressor = compression.Detecting{Compressor: c}
}

func (r *S3DraftRepository) Import(ctx context.Context, doc model.DraftDocument) error {
	rec, err := importedRecord(doc)
	if err != nil {
		return err
	}
	key := r.objectKey(rec.Owner, rec.ID)
	if err := r.put(ctx, key, rec); err != nil {
		return err
	}
	r.keys.Set(rec.ID, key)
	return nil
}
