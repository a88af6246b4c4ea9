// This file contains the S3 / S3-compatible record store. Records are small
// JSON documents, one object per node identity, so plain GetObject/PutObject
// round-trips are all that is needed; PutObject is already an atomic full
// replace.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	operatorerrors "github.com/dc-tec/node-label-preserver/internal/errors"
)

// S3Options holds configuration for the S3 record store.
type S3Options struct {
	// Bucket is the target bucket name. Required.
	Bucket string
	// Region is the AWS region (e.g., "us-east-1"). Required for AWS S3.
	Region string
	// Endpoint is an optional custom endpoint URL for MinIO and other
	// S3-compatible stores.
	Endpoint string
	// Prefix is an optional object key prefix under which records are stored.
	Prefix string
	// AccessKeyID is the access key for authentication. If empty, the
	// default credential chain is used.
	AccessKeyID string
	// SecretAccessKey is the secret key for authentication.
	SecretAccessKey string
	// SessionToken is an optional session token for temporary credentials.
	SessionToken string
	// UsePathStyle forces path-style addressing (required for MinIO and some
	// S3-compatible stores).
	UsePathStyle bool
}

// S3Store stores records as JSON objects in an S3-compatible bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// OpenS3Store opens an S3-compatible bucket as a record store.
func OpenS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return &S3Store{
		client: s3Client,
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
	}, nil
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Get returns the record stored at key, or ErrNotFound.
func (s *S3Store) Get(ctx context.Context, key string) (*Record, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, operatorerrors.WrapTransientStore(err)
	}
	defer func() { _ = out.Body.Close() }()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, operatorerrors.WrapTransientStore(err)
	}

	var record Record
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, operatorerrors.WrapDecodeFailure(fmt.Errorf("record %s: %w", key, err))
	}

	return &record, nil
}

// ForceReplace writes the full record as a single PutObject.
func (s *S3Store) ForceReplace(ctx context.Context, key string, record *Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", key, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return operatorerrors.WrapTransientStore(err)
	}

	return nil
}

// List returns info for every record object under the store prefix.
func (s *S3Store) List(ctx context.Context) ([]RecordInfo, error) {
	var infos []RecordInfo

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix + "/")
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, operatorerrors.WrapTransientStore(err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if s.prefix != "" {
				key = strings.TrimPrefix(key, s.prefix+"/")
			}
			infos = append(infos, RecordInfo{
				Key:     key,
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}

	return infos, nil
}

// Delete removes the record object at key. S3 DeleteObject is already a
// no-op for absent keys.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return operatorerrors.WrapTransientStore(err)
	}
	return nil
}
