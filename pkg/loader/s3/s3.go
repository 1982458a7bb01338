package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/singleflight"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/loader"
)

// ObjectGetter is the part of the S3 client the loader needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3TableFileLoader is a TableFileLoader implementation that loads table
// exports from an S3 bucket. FilePath is the object key, optionally
// below Prefix.
type S3TableFileLoader struct {
	bucket string
	prefix string
	client ObjectGetter

	group singleflight.Group
}

// NewS3TableFileLoaderWithClient creates a new S3TableFileLoader using an
// existing client. This is useful to reuse a preconfigured AWS client or to
// pass a fake in tests.
func NewS3TableFileLoaderWithClient(bucket, prefix string, client ObjectGetter) *S3TableFileLoader {
	return &S3TableFileLoader{
		bucket: bucket,
		prefix: prefix,
		client: client,
	}
}

// NewS3TableFileLoaderParams defines the configuration parameters for
// creating a new S3TableFileLoader.
//
// Endpoint allows overriding the S3 endpoint (useful for S3-compatible
// storage like MinIO, which also needs path-style addressing).
type NewS3TableFileLoaderParams struct {
	Bucket       string
	Prefix       string
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// NewS3TableFileLoader creates a new S3TableFileLoader with static
// credentials and the given endpoint and region.
//
// Example:
//
//	l, err := s3.NewS3TableFileLoader(ctx, s3.NewS3TableFileLoaderParams{
//		Bucket:       "herbflow",
//		Prefix:       "tables",
//		Endpoint:     "http://localhost:9000",
//		Region:       "us-east-1",
//		AccessKey:    os.Getenv("AWS_ACCESS_KEY"),
//		SecretKey:    os.Getenv("AWS_SECRET_KEY"),
//		UsePathStyle: true,
//	})
func NewS3TableFileLoader(ctx context.Context, params NewS3TableFileLoaderParams) (*S3TableFileLoader, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(params.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			params.AccessKey,
			params.SecretKey,
			"",
		)),
	}
	if params.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(params.Endpoint))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = params.UsePathStyle
	})

	return NewS3TableFileLoaderWithClient(params.Bucket, params.Prefix, client), nil
}

// Key returns the object key a file is stored under.
func (l *S3TableFileLoader) Key(file loader.TableFile) string {
	if l.prefix == "" {
		return file.FilePath
	}
	return path.Join(l.prefix, file.FilePath)
}

// GetFileBytes retrieves the object of the given file. A missing key is
// reported as loader.ErrNotFound.
func (l *S3TableFileLoader) GetFileBytes(ctx context.Context, file loader.TableFile) ([]byte, error) {
	key := l.Key(file)

	result, err, _ := l.group.Do(loader.CacheKey(file), func() (any, error) {
		out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(l.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var nsk *types.NoSuchKey
			if errors.As(err, &nsk) {
				return nil, fmt.Errorf("%w: s3://%s/%s", loader.ErrNotFound, l.bucket, key)
			}
			return nil, fmt.Errorf("failed to get object %s: %w", key, err)
		}
		defer out.Body.Close()

		buf := new(bytes.Buffer)
		if _, err := io.Copy(buf, out.Body); err != nil {
			return nil, fmt.Errorf("failed to read object %s: %w", key, err)
		}
		return buf.Bytes(), nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}
