package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the settings of an S3 persister.
type S3Config struct {
	Bucket string
	// Prefix is prepended to every key.
	Prefix string
	// Endpoint is an S3 compatible endpoint. Empty means AWS.
	Endpoint string
	Region   string
	// AccessKeyID and SecretAccessKey are optional static credentials.
	// Without them the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
	// UsePathStyle is needed by most S3 compatible servers.
	UsePathStyle bool
}

// S3FilePersister persists files as objects of an S3 bucket.
type S3FilePersister struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ FilePersister = &S3FilePersister{}

// NewS3FilePersister creates an S3 client from cfg.
func NewS3FilePersister(ctx context.Context, cfg S3Config) (*S3FilePersister, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 persister: bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	sdkConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3FilePersisterFromClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3FilePersisterFromClient wraps an existing client.
func NewS3FilePersisterFromClient(client *s3.Client, bucket, prefix string) *S3FilePersister {
	return &S3FilePersister{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Key returns the object key p is stored under.
func (s *S3FilePersister) Key(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if s.prefix == "" {
		return p
	}
	return s.prefix + "/" + p
}

// Persist uploads data to the object for p. The content type is derived
// from the extension of p.
func (s *S3FilePersister) Persist(ctx context.Context, p string, data io.Reader) error {
	// the SDK needs a seekable body to sign the payload
	b, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("reading data for %q: %w", p, err)
	}

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.Key(p)),
		Body:   bytes.NewReader(b),
	}
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		in.ContentType = aws.String(ct)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("uploading %q to bucket %q: %w", *in.Key, s.bucket, err)
	}

	return nil
}
