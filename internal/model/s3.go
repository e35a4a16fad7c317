package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config locates a bundle in an S3-compatible bucket.
type S3Config struct {
	Bucket string
	Prefix string
	Region string
	// Endpoint overrides the AWS endpoint, e.g. "http://127.0.0.1:9000" for minio.
	Endpoint  string
	AccessKey string
	SecretKey string
}

type objectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads a bundle from objects under a bucket prefix.
type S3Source struct {
	client objectGetter
	bucket string
	prefix string
}

// NewS3Source connects to the bucket described by cfg. Without an access key
// requests are sent anonymously.
func NewS3Source(cfg S3Config) *S3Source {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client := s3.NewFromConfig(aws.Config{Region: region}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.AccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		} else {
			o.Credentials = aws.AnonymousCredentials{}
		}
	})
	return &S3Source{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}
}

// Open fetches prefix/name. Missing keys map to ErrNotFound; any other
// failure is returned as is so the loader can retry it.
func (s *S3Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := path.Join(s.prefix, path.Clean("/" + name)[1:])
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, key)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	return out.Body, nil
}

func (s *S3Source) String() string { return "s3://" + path.Join(s.bucket, s.prefix) }
