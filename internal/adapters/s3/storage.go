// Package s3 adapts Amazon S3 (or any S3-compatible endpoint) to the
// ObjectStore port. Configuration is explicit; nothing reads ambient global
// state beyond the SDK's standard credential chain.
package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/design-smith/AWSDataScanner/internal/ports"
)

type Config struct {
	Region string
	// Endpoint overrides the AWS endpoint, for MinIO/LocalStack.
	Endpoint       string
	ForcePathStyle bool
}

type Store struct {
	client *s3.Client
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return &Store{client: client}, nil
}

// NewFromClient wraps an existing SDK client, for callers that share one.
func NewFromClient(client *s3.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Stat(ctx context.Context, bucket, key string) (ports.ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return ports.ObjectInfo{}, fmt.Errorf("s3 head %s/%s: %w", bucket, key, err)
	}
	return ports.ObjectInfo{Key: key, SizeBytes: aws.ToInt64(out.ContentLength)}, nil
}

func (s *Store) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}

func (s *Store) List(ctx context.Context, bucket, prefix string) ([]ports.ObjectInfo, error) {
	var out []ports.ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list %s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			out = append(out, ports.ObjectInfo{
				Key:       aws.ToString(obj.Key),
				SizeBytes: aws.ToInt64(obj.Size),
			})
		}
	}
	return out, nil
}
