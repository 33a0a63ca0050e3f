package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/hapdco/catalog-engine/pkg/config"
)

// S3Store is the production ObjectStore over an S3 (or S3-compatible)
// bucket. Product files are expected under the configured prefix, named
// <supplierID>_productos_<YYYY_MM_DD>.csv.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Store builds an S3-backed store. Credentials come from the SDK's
// default chain (env, shared config, instance role).
func NewS3Store(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.ProductPrefix,
		logger: logger.Named("s3-store"),
	}, nil
}

var _ ObjectStore = (*S3Store)(nil)

// ListProductFiles pages through the prefix and keeps only the keys stamped
// with the requested date. The listing already carries each object's ETag,
// so no extra metadata calls are needed.
func (s *S3Store) ListProductFiles(ctx context.Context, dateSuffix string) ([]FileRef, error) {
	suffix := fmt.Sprintf("_productos_%s.csv", dateSuffix)

	var refs []FileRef
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, suffix) {
				continue
			}
			refs = append(refs, FileRef{
				Key:  key,
				ETag: strings.Trim(aws.ToString(obj.ETag), `"`),
			})
		}
	}

	s.logger.Debug("listed product files",
		zap.String("date", dateSuffix), zap.Int("count", len(refs)))
	return refs, nil
}

// Fetch downloads one object in full.
func (s *S3Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// Fingerprint returns the object's ETag from a HEAD call, unquoted.
func (s *S3Store) Fingerprint(ctx context.Context, key string) (string, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("head object %s: %w", key, err)
	}
	return strings.Trim(aws.ToString(out.ETag), `"`), nil
}
