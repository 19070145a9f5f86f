// Package s3store keeps registration uploads in an S3 compatible bucket.
package s3store

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/campusportal/go-auth"
	"github.com/samber/oops"
)

// Config points the store at a bucket. Endpoint is only needed for
// MinIO and other non AWS servers.
type Config struct {
	Region    string `koanf:"region" json:"region"`
	Endpoint  string `koanf:"endpoint" json:"endpoint"`
	Bucket    string `koanf:"bucket" json:"bucket"`
	AccessKey string `koanf:"access_key" json:"access_key"`
	SecretKey string `koanf:"secret_key" json:"-"`
	// PublicURL prefixes object keys in returned URLs. Defaults to
	// {Endpoint}/{Bucket}.
	PublicURL string `koanf:"public_url" json:"public_url"`
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectPutter {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// Store implements auth.FileStore
type Store struct {
	bucket    string
	publicURL string
	client    objectPutter
}

var _ auth.FileStore = (*Store)(nil)

// New builds an S3 client out of cfg
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, oops.In("s3store").Errorf("bucket is required")
	}

	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, oops.In("s3store").Wrapf(err, "failed to load aws config")
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newStore(cfg, client), nil
}

func newStore(cfg Config, client objectPutter) *Store {
	public := cfg.PublicURL
	if public == "" {
		if cfg.Endpoint != "" {
			public = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			public = "https://" + cfg.Bucket + ".s3.amazonaws.com"
		}
	}
	return &Store{
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(public, "/"),
		client:    client,
	}
}

// Put uploads body under key and returns its public URL
func (s *Store) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", oops.In("s3store").Errorf("object key is required")
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", oops.In("s3store").With("bucket", s.bucket, "key", key).Wrapf(err, "failed to put object")
	}
	return s.URL(key), nil
}

// URL returns the public address of key
func (s *Store) URL(key string) string {
	parts := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.publicURL + "/" + strings.Join(parts, "/")
}
