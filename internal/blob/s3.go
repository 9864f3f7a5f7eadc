package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/roach88/cascade/internal/ir"
)

// maxDeleteKeys is the S3 limit of keys per DeleteObjects call.
const maxDeleteKeys = 1000

// S3API is the part of the S3 client S3Cleaner uses.
type S3API interface {
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Config selects the bucket and, for S3-compatible stores, the endpoint
// and static credentials. Empty fields fall back to the AWS default chain.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// NewS3Client builds an S3 client from cfg.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// S3Cleaner removes objects from one bucket.
type S3Cleaner struct {
	client S3API
	bucket string
	prefix string
	model  *ir.Model
}

// NewS3Cleaner creates a cleaner. prefix, if set, is prepended to every key
// with a "/" separator.
func NewS3Cleaner(client S3API, bucket, prefix string, model *ir.Model) *S3Cleaner {
	return &S3Cleaner{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		model:  model,
	}
}

func (c *S3Cleaner) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + "/" + k
}

// Clean deletes the objects of the deleted rows in batches. Missing objects
// are not an error in S3.
func (c *S3Cleaner) Clean(ctx context.Context, deleted map[string][]int64) error {
	keys := Keys(c.model, deleted)
	var errs []error
	for start := 0; start < len(keys); start += maxDeleteKeys {
		end := min(start+maxDeleteKeys, len(keys))
		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(c.key(k))})
		}

		out, err := c.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("delete objects in %s: %w", c.bucket, err))
			continue
		}
		for _, e := range out.Errors {
			errs = append(errs, fmt.Errorf("delete %s: %s", aws.ToString(e.Key), aws.ToString(e.Message)))
		}
	}
	return errors.Join(errs...)
}
