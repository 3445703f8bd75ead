package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type S3Store struct { // implements Store
	client S3API

	bucket    string
	prefix    string
	publicURL string
}

type S3Options struct {
	AccessKeyID     string
	AccessKeySecret string
	Endpoint        string
	Region          string
	Bucket          string
	KeyPrefix       string
	PublicURL       string
}

func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	region := opts.Region
	if region == "" {
		region = "auto"
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.AccessKeySecret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("error initializing S3 client: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3StoreWithClient(client, opts), nil
}

func NewS3StoreWithClient(client S3API, opts S3Options) *S3Store {
	publicURL := opts.PublicURL
	if publicURL == "" {
		publicURL = "https://" + opts.Bucket + ".s3.amazonaws.com"
	}

	return &S3Store{
		client:    client,
		bucket:    opts.Bucket,
		prefix:    opts.KeyPrefix,
		publicURL: publicURL,
	}
}

func (s *S3Store) Upload(ctx context.Context, u Upload) (Object, error) {
	key := newKey(s.prefix, u.ContentType)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        u.Body,
		ContentType: aws.String(u.ContentType),
	}
	if u.Size > 0 {
		input.ContentLength = aws.Int64(u.Size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return Object{}, fmt.Errorf("error uploading %q: %w", u.Name, err)
	}

	storeLogger.Debug().Str("bucket", s.bucket).Str("key", key).Msg("Object uploaded")

	return Object{RemoteID: key, URL: joinURL(s.publicURL, key)}, nil
}

// Delete removes the object. S3 answers 204 for missing keys, so a HEAD is
// issued first to report ErrNotFound explicitly.
func (s *S3Store) Delete(ctx context.Context, remoteID string, opts DeleteOptions) error {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(remoteID),
	})
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("error checking %q: %w", remoteID, err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(remoteID),
	})
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("error deleting %q: %w", remoteID, err)
	}

	// Buckets are served without an intermediate cache, nothing to purge.
	storeLogger.Debug().
		Str("bucket", s.bucket).
		Str("key", remoteID).
		Bool("invalidate_cache", opts.InvalidateCache).
		Msg("Object deleted")

	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
