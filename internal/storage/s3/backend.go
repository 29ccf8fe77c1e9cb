// Package s3 implements the object-store backend on Amazon S3 and
// S3-compatible services using aws-sdk-go-v2.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
	"github.com/bucketfs/bucketfs/pkg/types"
)

// Config represents S3 backend configuration.
type Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	ForcePathStyle  bool   `yaml:"force_path_style"`

	MaxRetries int `yaml:"max_retries"`
}

// Backend implements types.Backend against S3. All calls are synchronous;
// retry policy lives in the SDK's retryer, not here.
type Backend struct {
	client *s3.Client
	cfg    *Config
	logger *slog.Logger
}

var _ types.Backend = (*Backend)(nil)

// NewBackend creates an S3 backend. A nil cfg uses SDK defaults for
// region and credential resolution.
func NewBackend(ctx context.Context, cfg *Config) (*Backend, error) {
	if cfg == nil {
		cfg = &Config{MaxRetries: 3}
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRetryMaxAttempts(cfg.MaxRetries),
	}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	return &Backend{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "s3-backend"),
	}, nil
}

// GetObject returns an object's metadata via a HEAD request.
func (b *Backend) GetObject(ctx context.Context, bucket, key string) (*types.StoredObject, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translate(err, "head", bucket, key)
	}

	return &types.StoredObject{
		Bucket:             bucket,
		Key:                key,
		Size:               aws.ToInt64(out.ContentLength),
		LastModified:       aws.ToTime(out.LastModified),
		ETag:               trimETag(aws.ToString(out.ETag)),
		ContentType:        aws.ToString(out.ContentType),
		CacheControl:       aws.ToString(out.CacheControl),
		ContentEncoding:    aws.ToString(out.ContentEncoding),
		ContentDisposition: aws.ToString(out.ContentDisposition),
		UserMetadata:       out.Metadata,
	}, nil
}

// GetBytes reads a byte range of an object. Reading at or past the end
// returns an empty slice, mirroring the read channel's end-of-stream
// contract.
func (b *Backend) GetBytes(ctx context.Context, bucket, key string, rng types.ByteRange) ([]byte, error) {
	if rng.Offset < 0 {
		return nil, bfserrors.Newf(bfserrors.ErrCodeInvalidArgument, "negative range offset %d", rng.Offset)
	}

	var httpRange string
	if rng.Length < 0 {
		httpRange = fmt.Sprintf("bytes=%d-", rng.Offset)
	} else {
		if rng.Length == 0 {
			return []byte{}, nil
		}
		httpRange = fmt.Sprintf("bytes=%d-%d", rng.Offset, rng.Offset+rng.Length-1)
	}

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Range:  aws.String(httpRange),
	})
	if err != nil {
		// The service rejects ranges that start at or past the end of
		// the object; the channel layer treats that as end-of-stream.
		if apiErrorCode(err) == "InvalidRange" {
			return []byte{}, nil
		}
		return nil, translate(err, "get", bucket, key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, translate(err, "get", bucket, key)
	}
	return data, nil
}

// PutObject atomically replaces an object's full content. The
// DoesNotExist precondition maps to a conditional write (If-None-Match),
// so a lost race surfaces as PRECONDITION_FAILED and leaves any existing
// object untouched.
func (b *Backend) PutObject(ctx context.Context, bucket, key string, data []byte, meta types.ObjectMetadata, pre types.Precondition) (*types.StoredObject, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	applyMetadata(input, meta)
	if pre == types.PreconditionDoesNotExist {
		input.IfNoneMatch = aws.String("*")
	}

	out, err := b.client.PutObject(ctx, input)
	if err != nil {
		return nil, translate(err, "put", bucket, key)
	}

	b.logger.Debug("object committed", "bucket", bucket, "key", key, "size", len(data))
	return &types.StoredObject{
		Bucket:             bucket,
		Key:                key,
		Size:               int64(len(data)),
		LastModified:       time.Now(),
		ETag:               trimETag(aws.ToString(out.ETag)),
		ContentType:        meta.ContentType,
		CacheControl:       meta.CacheControl,
		ContentEncoding:    meta.ContentEncoding,
		ContentDisposition: meta.ContentDisposition,
		UserMetadata:       meta.UserMetadata,
	}, nil
}

// DeleteObject removes an object. S3's delete is idempotent, so a HEAD
// probe supplies the not-found contract.
func (b *Backend) DeleteObject(ctx context.Context, bucket, key string) error {
	if _, err := b.GetObject(ctx, bucket, key); err != nil {
		return err
	}
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return translate(err, "delete", bucket, key)
	}
	return nil
}

// ListByPrefix enumerates keys with the given prefix, following
// pagination. S3 already returns keys in lexicographic order.
func (b *Backend) ListByPrefix(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, translate(err, "list", bucket, prefix)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// CopyObject copies an object, possibly across buckets. Metadata policy
// maps onto S3's COPY/REPLACE metadata directives; per-field overrides on
// top of a preserving copy are resolved by merging the source's metadata
// client-side and replacing.
func (b *Backend) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string, policy types.CopyPolicy) (*types.StoredObject, error) {
	input := &s3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(url.PathEscape(srcBucket + "/" + srcKey)),
	}

	effective := policy.Override
	switch {
	case policy.Directive == types.MetadataCopy && isZeroMetadata(policy.Override):
		input.MetadataDirective = s3types.MetadataDirectiveCopy
	case policy.Directive == types.MetadataCopy:
		src, err := b.GetObject(ctx, srcBucket, srcKey)
		if err != nil {
			return nil, err
		}
		effective = types.MetadataOf(src).Merge(policy.Override)
		input.MetadataDirective = s3types.MetadataDirectiveReplace
		applyCopyMetadata(input, effective)
	default:
		input.MetadataDirective = s3types.MetadataDirectiveReplace
		applyCopyMetadata(input, effective)
	}

	out, err := b.client.CopyObject(ctx, input)
	if err != nil {
		return nil, translate(err, "copy", srcBucket, srcKey)
	}

	obj := &types.StoredObject{Bucket: dstBucket, Key: dstKey, LastModified: time.Now()}
	if out.CopyObjectResult != nil {
		obj.ETag = trimETag(aws.ToString(out.CopyObjectResult.ETag))
		obj.LastModified = aws.ToTime(out.CopyObjectResult.LastModified)
	}
	return obj, nil
}

// RenameObject renames within one bucket via copy-then-delete. S3's copy
// cannot carry a destination precondition, so the DoesNotExist check is a
// HEAD probe immediately before the copy; the window between probe and
// copy is the store's, not ours.
func (b *Backend) RenameObject(ctx context.Context, bucket, srcKey, dstKey string, pre types.Precondition) error {
	if pre == types.PreconditionDoesNotExist {
		if _, err := b.GetObject(ctx, bucket, dstKey); err == nil {
			return bfserrors.New(bfserrors.ErrCodePreconditionFailed, "target already exists").
				WithOp("rename").WithObject(bucket, dstKey)
		} else if !bfserrors.IsNotFound(err) {
			return err
		}
	}

	if _, err := b.CopyObject(ctx, bucket, srcKey, bucket, dstKey, types.CopyPolicy{Directive: types.MetadataCopy}); err != nil {
		return err
	}
	if err := b.DeleteObject(ctx, bucket, srcKey); err != nil && !bfserrors.IsNotFound(err) {
		return err
	}
	return nil
}

func applyMetadata(input *s3.PutObjectInput, meta types.ObjectMetadata) {
	if meta.ContentType != "" {
		input.ContentType = aws.String(meta.ContentType)
	}
	if meta.CacheControl != "" {
		input.CacheControl = aws.String(meta.CacheControl)
	}
	if meta.ContentEncoding != "" {
		input.ContentEncoding = aws.String(meta.ContentEncoding)
	}
	if meta.ContentDisposition != "" {
		input.ContentDisposition = aws.String(meta.ContentDisposition)
	}
	if len(meta.UserMetadata) > 0 {
		input.Metadata = meta.UserMetadata
	}
}

func applyCopyMetadata(input *s3.CopyObjectInput, meta types.ObjectMetadata) {
	if meta.ContentType != "" {
		input.ContentType = aws.String(meta.ContentType)
	}
	if meta.CacheControl != "" {
		input.CacheControl = aws.String(meta.CacheControl)
	}
	if meta.ContentEncoding != "" {
		input.ContentEncoding = aws.String(meta.ContentEncoding)
	}
	if meta.ContentDisposition != "" {
		input.ContentDisposition = aws.String(meta.ContentDisposition)
	}
	if len(meta.UserMetadata) > 0 {
		input.Metadata = meta.UserMetadata
	}
}

func isZeroMetadata(m types.ObjectMetadata) bool {
	return m.ContentType == "" && m.CacheControl == "" && m.ContentEncoding == "" &&
		m.ContentDisposition == "" && m.UserMetadata == nil && m.ACL == nil
}

// translate maps SDK errors onto the bucketfs error taxonomy.
func translate(err error, op, bucket, key string) error {
	switch apiErrorCode(err) {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return bfserrors.New(bfserrors.ErrCodeNotFound, "no such object").
			WithOp(op).WithObject(bucket, key).WithCause(err)
	case "PreconditionFailed":
		return bfserrors.New(bfserrors.ErrCodePreconditionFailed, "conditional write failed").
			WithOp(op).WithObject(bucket, key).WithCause(err)
	}

	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return bfserrors.New(bfserrors.ErrCodeNotFound, "no such object").
			WithOp(op).WithObject(bucket, key).WithCause(err)
	}

	return bfserrors.New(bfserrors.ErrCodeBackend, "backend request failed").
		WithOp(op).WithObject(bucket, key).WithCause(err)
}

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// trimETag removes the quotes S3 wraps entity tags in.
func trimETag(etag string) string {
	if len(etag) >= 2 && etag[0] == '"' && etag[len(etag)-1] == '"' {
		return etag[1 : len(etag)-1]
	}
	return etag
}
