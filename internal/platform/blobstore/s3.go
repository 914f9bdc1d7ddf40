package blobstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	raven "github.com/getsentry/raven-go"
	"go.uber.org/zap"

	"bookshelf/internal/metrics"
)

// S3Config describes the bucket and how to reach it. Endpoint is only set
// for S3 compatible services such as MinIO.
type S3Config struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKeyID   string
	SecretKey     string
	PublicBaseURL string
	MaxRetries    int
}

// A S3 store keeps blobs in a single bucket. Objects are uploaded with
// the s3manager uploader so large book files go up in parts.
type S3 struct {
	svc      *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	baseURL  string
	log      *zap.Logger
	metrics  *metrics.Metrics
}

var _ Store = (*S3)(nil)

// NewS3 builds the session and client for cfg.
func NewS3(cfg S3Config, log *zap.Logger, m *metrics.Metrics) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("blobstore: no bucket name")
	}
	if log == nil {
		log = zap.NewNop()
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}

	conf := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretKey, ""),
		MaxRetries:  aws.Int(retries),
	}
	if cfg.Endpoint != "" {
		conf.Endpoint = aws.String(cfg.Endpoint)
		conf.S3ForcePathStyle = aws.Bool(true)
		// disable SSL for local development
		if strings.HasPrefix(cfg.Endpoint, "http://") || strings.Contains(cfg.Endpoint, "localhost") {
			conf.DisableSSL = aws.Bool(true)
		}
	}
	sess, err := session.NewSession(conf)
	if err != nil {
		return nil, fmt.Errorf("blobstore: new session: %w", err)
	}

	svc := s3.New(sess)
	return &S3{
		svc:      svc,
		uploader: s3manager.NewUploaderWithClient(svc),
		bucket:   cfg.Bucket,
		baseURL:  publicBaseURL(cfg, region),
		log:      log,
		metrics:  m,
	}, nil
}

func publicBaseURL(cfg S3Config, region string) string {
	switch {
	case cfg.PublicBaseURL != "":
		return strings.TrimSuffix(cfg.PublicBaseURL, "/")
	case cfg.Endpoint != "":
		ep := strings.TrimSuffix(cfg.Endpoint, "/")
		if !strings.Contains(ep, "://") {
			ep = "http://" + ep
		}
		return ep + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, region)
	}
}

// Put uploads body and returns the object's public URL.
func (s *S3) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	s.metrics.BlobOp("put", err)
	if err != nil {
		s.log.Error("s3 put failed", zap.String("bucket", s.bucket), zap.String("key", key), zap.Error(err))
		raven.CaptureError(err, map[string]string{"Bucket": s.bucket, "Key": key})
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}

// Delete removes the object behind url. It is not an error to delete
// something that doesn't exist.
func (s *S3) Delete(ctx context.Context, url string) error {
	key, ok := keyFromURL(s.baseURL, url)
	if !ok {
		s.metrics.BlobOp("delete", ErrNotFound)
		return fmt.Errorf("s3 delete %q: %w", url, ErrNotFound)
	}
	_, err := s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
		err = nil
	}
	s.metrics.BlobOp("delete", err)
	if err != nil {
		s.log.Error("s3 delete failed", zap.String("bucket", s.bucket), zap.String("key", key), zap.Error(err))
		raven.CaptureError(err, map[string]string{"Bucket": s.bucket, "Key": key})
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}
