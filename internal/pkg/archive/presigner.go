// Package archive turns the archive reference reported by the workflow engine
// into a link a customer can download from.
package archive

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/videogen-ai/videogen/internal/pkg/config"
)

// LinkTTL is how long a presigned download link stays valid.
const LinkTTL = 7 * 24 * time.Hour

// Linker resolves a stored archive reference into a download URL.
type Linker interface {
	DownloadURL(ctx context.Context, ref string) (string, error)
}

// PassThrough returns references unchanged. Used when no bucket is configured.
type PassThrough struct{}

func (PassThrough) DownloadURL(_ context.Context, ref string) (string, error) {
	return ref, nil
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error)
}

// PresignedRequest is the subset of the SDK's presign result used here.
type PresignedRequest struct {
	URL string
}

type sdkPresigner struct {
	client *s3.PresignClient
}

func (p sdkPresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error) {
	req, err := p.client.PresignGetObject(ctx, params, optFns...)
	if err != nil {
		return nil, err
	}
	return &PresignedRequest{URL: req.URL}, nil
}

// S3Linker presigns s3://bucket/key references and bare object keys.
// http(s) URLs are returned as they are.
type S3Linker struct {
	bucket  string
	presign presignAPI
	ttl     time.Duration
}

// NewS3Linker builds a presigner from the S3_* settings.
func NewS3Linker(ctx context.Context, cfg config.S3) (*S3Linker, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("S3_BUCKET_NAME is required for archive links")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	log.Infof("[Archive] Presigning download links for bucket %s", cfg.BucketName)
	return &S3Linker{
		bucket:  cfg.BucketName,
		presign: sdkPresigner{client: s3.NewPresignClient(client)},
		ttl:     LinkTTL,
	}, nil
}

func (l *S3Linker) DownloadURL(ctx context.Context, ref string) (string, error) {
	bucket, key, ok := l.parseRef(ref)
	if !ok {
		return ref, nil
	}
	req, err := l.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(l.ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}

// parseRef splits a reference into bucket and key. ok is false for
// references that are already public URLs.
func (l *S3Linker) parseRef(ref string) (bucket, key string, ok bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", false
	}
	u, err := url.Parse(ref)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return "", "", false
	}
	if err == nil && u.Scheme == "s3" {
		return u.Host, strings.TrimPrefix(u.Path, "/"), u.Host != "" && u.Path != ""
	}
	return l.bucket, strings.TrimPrefix(ref, "/"), true
}

// NewLinker returns an S3Linker when a bucket is configured and PassThrough
// otherwise. Presigner setup failures degrade to PassThrough.
func NewLinker(ctx context.Context, cfg *config.Config) Linker {
	if !cfg.S3Enabled() {
		return PassThrough{}
	}
	linker, err := NewS3Linker(ctx, cfg.S3)
	if err != nil {
		log.Warnf("[Archive] S3 presigning disabled: %v", err)
		return PassThrough{}
	}
	return linker
}
