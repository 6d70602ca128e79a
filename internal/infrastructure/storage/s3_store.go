package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"Briefcaster/internal/config"
	"Briefcaster/internal/ports"
)

// ObjectPutter is the subset of the S3 client the store needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3AudioStore uploads rendered briefings to a bucket.
type S3AudioStore struct {
	client ObjectPutter
	bucket string
	prefix string
}

var _ ports.AudioStore = (*S3AudioStore)(nil)

// NewS3AudioStore builds a client from the default AWS credential chain.
func NewS3AudioStore(ctx context.Context, cfg config.S3Config) (*S3AudioStore, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3AudioStoreWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3AudioStoreWithClient wraps an existing client.
func NewS3AudioStoreWithClient(client ObjectPutter, bucket, prefix string) *S3AudioStore {
	return &S3AudioStore{client: client, bucket: bucket, prefix: prefix}
}

// PutAudio uploads the file at localPath as <prefix><id><ext> and returns the key.
func (s *S3AudioStore) PutAudio(ctx context.Context, id, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(localPath))
	key := path.Join(strings.Trim(s.prefix, "/"), id+ext)

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		in.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}
