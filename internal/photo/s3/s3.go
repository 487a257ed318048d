// Package s3 stores photos in an S3 bucket.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/crimson-sun/kartavya/internal/photo"
)

// PutObjectAPI is the subset of the S3 client used by Store.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store uploads photos under bucket/prefix.
type Store struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// New loads the default AWS configuration (environment, shared config,
// instance role) and returns a Store. An empty region keeps the SDK default.
func New(ctx context.Context, bucket, prefix, region string) (*Store, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("photo/s3: unable to load SDK config: %w", err)
	}
	return NewWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewWithClient returns a Store using an existing client.
func NewWithClient(client PutObjectAPI, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

// Put uploads data and returns its s3:// URL.
func (s *Store) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := photo.CheckName(name); err != nil {
		return "", err
	}
	key := path.Join(s.prefix, name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("photo/s3: put %s: %w", key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}
