// Package datastore implements the file surface CSV blocks and the HTTP API
// resolve file_path/file_name against: a local data directory by default,
// or an S3 bucket when a path is given as an s3:// URI.
package datastore

import (
	"context"
	"fmt"
	"regexp"
)

// Store is the file surface collaborator: list, upload, and download of
// named files. The HTTP API builds its file preview on Download.
type Store interface {
	List(ctx context.Context) ([]string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

var s3URIPattern = regexp.MustCompile(`^s3://([^/]+)/(.+)$`)

// IsS3URI reports whether path is an s3://bucket/key URI.
func IsS3URI(path string) bool {
	return s3URIPattern.MatchString(path)
}

// ParseS3URI splits an s3://bucket/key URI into its bucket and key parts.
func ParseS3URI(uri string) (bucket, key string, err error) {
	m := s3URIPattern.FindStringSubmatch(uri)
	if m == nil {
		return "", "", fmt.Errorf("invalid S3 URI: %q", uri)
	}
	return m[1], m[2], nil
}
