/*
s3.go - Archive timeline snapshots to S3

PURPOSE:
  Writes the JSON snapshot of a timeline to a bucket so the state behind a
  published filter can be looked up later.

KEY LAYOUT:
  <prefix>/<timeline id>/<ulid>.json

  ULIDs sort by creation time, so listing a timeline's folder returns its
  exports oldest first.

SEE ALSO:
  - timeline/snapshot.go: what gets written
  - api/handlers.go: POST /api/timelines/{id}/export
*/
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"

	"github.com/warp/timeline-engine/timeline"
)

// ErrNoBucket is returned when an exporter is built without a bucket.
var ErrNoBucket = errors.New("export bucket not configured")

// PutObjectAPI is the part of the S3 client the exporter needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config selects the destination and the AWS credentials.
type Config struct {
	Bucket  string
	Prefix  string
	Region  string
	Profile string
}

// S3Exporter writes snapshots to one bucket.
type S3Exporter struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// NewS3Exporter wraps an existing client.
func NewS3Exporter(client PutObjectAPI, bucket, prefix string) (*S3Exporter, error) {
	if bucket == "" {
		return nil, ErrNoBucket
	}
	return &S3Exporter{client: client, bucket: bucket, prefix: prefix}, nil
}

// New loads the AWS configuration (environment, shared profile) and builds
// an exporter on a fresh S3 client.
func New(ctx context.Context, cfg Config) (*S3Exporter, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config for export: %w", err)
	}
	return NewS3Exporter(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix)
}

// Key returns the object key for one export of timeline id.
func (e *S3Exporter) Key(id, exportID string) string {
	return path.Join(e.prefix, id, exportID+".json")
}

// Export writes snap and returns its s3:// location.
func (e *S3Exporter) Export(ctx context.Context, id string, snap timeline.Snapshot) (string, error) {
	body, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := e.Key(id, ulid.Make().String())
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata:    map[string]string{"timeline-id": id},
	})
	if err != nil {
		return "", fmt.Errorf("failed to put s3://%s/%s: %w", e.bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", e.bucket, key), nil
}
