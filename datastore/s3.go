package datastore

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gurre/s3streamer"
)

// S3API is the subset of *s3.Client this package depends on, mirroring the
// teacher's aws.S3Client interface so tests can substitute a fake.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Store is a Store backed by a single S3 bucket. Downloads stream through
// s3streamer rather than buffering the whole GetObject response at once;
// uploads go through a single PutObject.
type S3Store struct {
	client   S3API
	streamer s3streamer.Streamer
	bucket   string
	prefix   string
}

// NewS3Store constructs an S3Store for bucket, with keys resolved relative
// to prefix (may be empty).
func NewS3Store(client S3API, streamer s3streamer.Streamer, bucket, prefix string) *S3Store {
	return &S3Store{client: client, streamer: streamer, bucket: bucket, prefix: prefix}
}

func (s *S3Store) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// List returns the keys under the store's prefix, with the prefix stripped.
func (s *S3Store) List(ctx context.Context) ([]string, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: &s.prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, s.prefix, err)
	}
	names := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if obj.Key != nil {
			name := *obj.Key
			if s.prefix != "" {
				name = strings.TrimPrefix(name, s.prefix+"/")
			}
			names = append(names, name)
		}
	}
	return names, nil
}

// Download streams the object's contents line-by-line through s3streamer,
// appending every line to a single in-memory buffer, so the whole object is
// held in memory by the time Download returns (as the frame it feeds always
// is).
func (s *S3Store) Download(ctx context.Context, key string) ([]byte, error) {
	var buf bytes.Buffer
	err := s.streamer.Stream(ctx, s.bucket, s.fullKey(key), 0, func(line []byte, byteOffset int64) error {
		buf.Write(line)
		buf.WriteByte('\n')
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("download s3://%s/%s: %w", s.bucket, s.fullKey(key), err)
	}
	return buf.Bytes(), nil
}

// Upload writes data to key via a single PutObject call.
func (s *S3Store) Upload(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    strPtr(s.fullKey(key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", s.bucket, s.fullKey(key), err)
	}
	return nil
}

func strPtr(s string) *string { return &s }
