package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	buckets []string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]string)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets = append(f.buckets, aws.ToString(in.Bucket))
	f.objects[aws.ToString(in.Key)] = string(data)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(v))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3EngineRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	e := NewS3Engine(client, "state-bucket", "chunks/")

	if err := e.Set(ctx, "cartStore", `{"items":"[]"}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := client.objects["chunks/cartStore"]; !ok {
		t.Fatalf("object not stored under prefixed key: %v", client.objects)
	}
	if client.buckets[0] != "state-bucket" {
		t.Fatalf("bucket = %q", client.buckets[0])
	}

	v, ok, err := e.Get(ctx, "cartStore")
	if err != nil || !ok || v != `{"items":"[]"}` {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}

	if err := e.Remove(ctx, "cartStore"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, err := e.Get(ctx, "cartStore"); ok || err != nil {
		t.Fatalf("Get after Remove = %v, %v; want missing without error", ok, err)
	}
}

func TestS3EngineClosed(t *testing.T) {
	e := NewS3Engine(newFakeS3(), "b", "")
	_ = e.Close()
	if _, _, err := e.Get(context.Background(), "k"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Get after Close = %v", err)
	}
}
