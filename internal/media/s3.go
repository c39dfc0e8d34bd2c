package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	appconfig "vidtube/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Asset is a stored media object: the public URL handed to clients and the
// object key needed to delete it later.
type Asset struct {
	URL string
	Key string
}

// Client is a thin wrapper around the AWS SDK v2 S3 client pointed at an
// S3-compatible media host.
type Client struct {
	api           *s3.Client
	bucket        string
	publicBaseURL string
}

func New(ctx context.Context, cfg appconfig.Media) (*Client, error) {
	const op = "media.New"

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(cfg.Endpoint)
	})

	return &Client{
		api:           client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// Upload stores the object under a random key inside folder and returns the
// hosted asset. The original filename only contributes its extension.
func (c *Client) Upload(ctx context.Context, folder, filename string, r io.Reader, size int64, contentType string) (Asset, error) {
	const op = "media.Upload"

	key := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), path.Ext(filename))

	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &c.bucket,
		Key:           &key,
		Body:          r,
		ContentLength: &size,
		ContentType:   &contentType,
	})
	if err != nil {
		return Asset{}, fmt.Errorf("%s: %w", op, err)
	}

	return Asset{
		URL: fmt.Sprintf("%s/%s", c.publicBaseURL, key),
		Key: key,
	}, nil
}

// Delete removes an object. Deleting a key that no longer exists is not an
// error, which keeps compensating cleanup idempotent.
func (c *Client) Delete(ctx context.Context, key string) error {
	const op = "media.Delete"

	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
