// Package archive copies audit entries to S3-compatible object storage
// before retention cleanup deletes them locally.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/ordersync/internal/client/models"
)

// Archiver stores a batch of audit entries and returns where it put them.
type Archiver interface {
	Archive(ctx context.Context, entries []models.AuditEntry) (string, error)
}

type Config struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS endpoint, e.g. a MinIO server.
	Endpoint  string
	AccessKey string
	SecretKey string
	// Prefix is prepended to every object key.
	Prefix string
}

// putter is the part of *s3.Client the archiver uses.
type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

type S3Archiver struct {
	client putter
	bucket string
	prefix string
	now    func() time.Time
}

func NewS3Archiver(ctx context.Context, c Config) (*S3Archiver, error) {
	if c.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is not set")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")))
	}
	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newArchiver(client, c.Bucket, c.Prefix), nil
}

func newArchiver(client putter, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), now: time.Now}
}

func (a *S3Archiver) key() string {
	d := a.now().UTC()
	k := fmt.Sprintf("audit/%d/%02d/%02d/%s.jsonl", d.Year(), d.Month(), d.Day(), uuid.NewString())
	if a.prefix != "" {
		k = a.prefix + "/" + k
	}
	return k
}

// Archive writes entries as one JSON-lines object. An empty batch writes
// nothing and returns "".
func (a *S3Archiver) Archive(ctx context.Context, entries []models.AuditEntry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return "", fmt.Errorf("failed to encode audit entry %d: %w", entries[i].ID, err)
		}
	}

	key := a.key()
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return key, nil
}
