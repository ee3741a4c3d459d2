// Package attachments moves job media from local durable storage to
// remote content-addressed storage before a job is encoded, replacing
// blobs with stable URLs the attestation can carry.
package attachments

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader pushes a blob to remote storage and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// S3Options configure the S3 uploader.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string // custom endpoint for S3-compatible storage
	PathStyle bool
	BaseURL   string // public URL prefix; defaults to the bucket endpoint
	KeyPrefix string
}

// S3Uploader stores blobs in an S3 (or S3-compatible) bucket.
type S3Uploader struct {
	client  *s3.Client
	options S3Options
}

// NewS3Uploader builds the uploader from ambient AWS configuration.
func NewS3Uploader(ctx context.Context, options S3Options) (*S3Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(options.Region),
	}
	if options.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               options.Endpoint,
					HostnameImmutable: options.PathStyle,
					SigningRegion:     options.Region,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3Uploader{
		client:  s3.NewFromConfig(awsCfg),
		options: options,
	}, nil
}

// Upload writes the blob and returns its public URL.
func (u *S3Uploader) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	fullKey := path.Join(u.options.KeyPrefix, key)
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.options.Bucket),
		Key:         aws.String(fullKey),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", fullKey, err)
	}

	if u.options.BaseURL != "" {
		return u.options.BaseURL + "/" + fullKey, nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s",
		u.options.Bucket, u.options.Region, fullKey), nil
}
