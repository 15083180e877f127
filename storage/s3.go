package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"bluray-lister/utils"
)

// ObjectPutter is the slice of the S3 client the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures an S3Uploader.
type S3Options struct {
	Bucket    string
	Region    string
	KeyPrefix string
	MaxEdge   int
	Retry     utils.RetryConfig
	Logger    *utils.Logger
}

// S3Uploader optimises listing photos and publishes them to a public bucket.
type S3Uploader struct {
	client ObjectPutter
	opts   S3Options
	newKey func() string
}

// NewS3Client builds an S3 client from static credentials.
func NewS3Client(ctx context.Context, accessKey, secretKey, region string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// NewS3Uploader returns an uploader writing through client.
func NewS3Uploader(client ObjectPutter, opts S3Options) (*S3Uploader, error) {
	if client == nil {
		return nil, errors.New("s3: nil client")
	}
	if opts.Bucket == "" {
		return nil, errors.New("s3: bucket name required")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "bluray-images"
	}
	if opts.MaxEdge <= 0 {
		opts.MaxEdge = 1600
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = utils.RetryConfig{MaxAttempts: 3, BaseDelay: time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewDiscardLogger()
	}
	if opts.Retry.Logger == nil {
		opts.Retry.Logger = opts.Logger
	}
	return &S3Uploader{
		client: client,
		opts:   opts,
		newKey: func() string { return uuid.NewString() },
	}, nil
}

// Upload reads the image at filePath, re-encodes it as an optimised JPEG and
// stores it under a random key. It returns the object's public URL.
func (u *S3Uploader) Upload(ctx context.Context, filePath string) (string, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("s3: read %q: %w", filePath, err)
	}
	body, err := utils.OptimizeImage(raw, u.opts.MaxEdge)
	if err != nil {
		return "", fmt.Errorf("s3: optimise %q: %w", filePath, err)
	}

	key := path.Join(u.opts.KeyPrefix, u.newKey()+".jpg")
	err = u.opts.Retry.DoContext(ctx, "s3 upload "+key, func() error {
		_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(u.opts.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("image/jpeg"),
			ACL:         types.ObjectCannedACLPublicRead,
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("s3: %w", err)
	}

	url := u.PublicURL(key)
	u.opts.Logger.Info("[s3] Uploaded %s (%d bytes) to %s", filePath, len(body), url)
	return url, nil
}

// PublicURL returns the virtual-hosted URL of key.
func (u *S3Uploader) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.opts.Bucket, u.opts.Region, key)
}
