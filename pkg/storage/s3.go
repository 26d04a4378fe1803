package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of *s3.Client used by S3Engine.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Engine stores each key as one object in an S3 bucket.
//
// Example usage:
//
//	cfg, _ := config.LoadDefaultConfig(context.Background())
//	engine := storage.NewS3Engine(s3.NewFromConfig(cfg), "my-bucket", "chunks/")
//	chunk.ConfigureEngine(engine)
type S3Engine struct {
	client S3API
	bucket string
	prefix string
	closed atomic.Bool
}

// NewS3Engine creates a new S3 engine.
//
// Parameters:
//   - client: AWS S3 client from aws-sdk-go-v2
//   - bucket: S3 bucket name
//   - prefix: Key prefix for objects (e.g., "chunks/")
func NewS3Engine(client S3API, bucket, prefix string) *S3Engine {
	return &S3Engine{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func (s *S3Engine) objectKey(key string) *string {
	return aws.String(s.prefix + key)
}

// Set uploads value as the object for key.
func (s *S3Engine) Set(ctx context.Context, key, value string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         s.objectKey(key),
		Body:        strings.NewReader(value),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return &OpError{Op: "set", Backend: "s3", Key: key, Err: err}
	}
	return nil
}

// Get downloads the object for key.
func (s *S3Engine) Get(ctx context.Context, key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, ErrClosed
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.objectKey(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return "", false, nil
		}
		return "", false, &OpError{Op: "get", Backend: "s3", Key: key, Err: err}
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", false, &OpError{Op: "get", Backend: "s3", Key: key, Err: err}
	}
	return string(data), true, nil
}

// Remove deletes the object for key.
func (s *S3Engine) Remove(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.objectKey(key),
	})
	if err != nil {
		return &OpError{Op: "remove", Backend: "s3", Key: key, Err: err}
	}
	return nil
}

// Close marks the engine as closed.
func (s *S3Engine) Close() error {
	s.closed.Store(true)
	return nil
}

var (
	_ Engine = (*S3Engine)(nil)
	_ Getter = (*S3Engine)(nil)
	_ S3API  = (*s3.Client)(nil)
)
