package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config describes an S3 compatible bucket (AWS, Cloudflare R2, MinIO)
type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string // Empty for AWS
	AccessKey     string
	SecretKey     string
	PublicBaseURL string // Prefix of the public object URL, e.g. a CDN
}

// S3Store uploads images to a bucket and hands out public URLs
type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3Store builds the client from static credentials
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		if cfg.Endpoint != "" {
			base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, region)
		}
	}
	return &S3Store{client: client, bucket: cfg.Bucket, baseURL: base}, nil
}

func (s *S3Store) Put(ctx context.Context, key, mimeType string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return s.baseURL + "/" + key, nil
}

// objectKey recovers the key from a URL produced by Put
func (s *S3Store) objectKey(ref string) (string, bool) {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	return strings.TrimPrefix(ref, prefix), true
}

func (s *S3Store) Get(ctx context.Context, ref string) (string, []byte, error) {
	if strings.HasPrefix(ref, "data:") { // Rows restored from an inline backup
		return decodeDataURL(ref)
	}
	key, ok := s.objectKey(ref)
	if !ok {
		return "", nil, ErrNotFound
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return "", nil, ErrNotFound
		}
		return "", nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read image: %w", err)
	}
	return aws.ToString(out.ContentType), data, nil
}

func (s *S3Store) Delete(ctx context.Context, ref string) error {
	key, ok := s.objectKey(ref)
	if !ok {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
