package report

import (
	"bytes"
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gurre/leadpipe/datastore"
)

// S3Uploader uploads reports straight through datastore.S3API, parsing the
// destination bucket/key out of each call's URI rather than being bound to
// one bucket, since a report's S3 destination is independent of whichever
// bucket (if any) backs the file surface. Grounded on the teacher's
// S3ReportUploader, which does the same per-call URI parse.
type S3Uploader struct {
	client datastore.S3API
}

// NewS3Uploader constructs an S3Uploader against client.
func NewS3Uploader(client datastore.S3API) *S3Uploader {
	return &S3Uploader{client: client}
}

// UploadReport JSON-marshals r and PutObjects it to uri.
func (u *S3Uploader) UploadReport(ctx context.Context, uri string, r Report) error {
	bucket, key, err := datastore.ParseS3URI(uri)
	if err != nil {
		return err
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = u.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("upload report to %s: %w", uri, err)
	}
	return nil
}
