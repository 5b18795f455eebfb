// Package audio hands out presigned URLs so clients can upload recordings
// straight to an S3-compatible bucket and play them back later.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const uriScheme = "s3://"

var (
	ErrDisabled   = errors.New("audio storage is not configured")
	ErrInvalidURI = errors.New("invalid audio uri")
)

type Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PresignExpiry time.Duration
}

// Presigner is the part of *s3.PresignClient used here.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Storage struct {
	presigner Presigner
	bucket    string
	expiry    time.Duration
	now       func() time.Time
}

// Upload describes where a client should PUT a recording and the uri to
// store on the entry afterwards.
type Upload struct {
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
	AudioURI  string `json:"audioUri"`
}

func New(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Bucket == "" {
		return nil, ErrDisabled
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewWithPresigner(s3.NewPresignClient(client), cfg.Bucket, cfg.PresignExpiry), nil
}

func NewWithPresigner(p Presigner, bucket string, expiry time.Duration) *Storage {
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &Storage{presigner: p, bucket: bucket, expiry: expiry, now: time.Now}
}

// NewUpload reserves a fresh object key and presigns a PUT for it.
func (s *Storage) NewUpload(ctx context.Context, ext string) (*Upload, error) {
	key := ObjectKey(s.now(), ext)

	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}

	return &Upload{Key: key, UploadURL: req.URL, AudioURI: uriScheme + s.bucket + "/" + key}, nil
}

// DownloadURL presigns a GET for key.
func (s *Storage) DownloadURL(ctx context.Context, key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", ErrInvalidURI
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// ObjectKey returns audio/<yyyy>/<mm>/<dd>/<uuid>.<ext>.
func ObjectKey(now time.Time, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		ext = "m4a"
	}
	return fmt.Sprintf("audio/%04d/%02d/%02d/%s.%s", now.Year(), now.Month(), now.Day(), uuid.New(), ext)
}

// ParseURI splits s3://bucket/key.
func ParseURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, uriScheme)
	if !ok {
		return "", "", ErrInvalidURI
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", ErrInvalidURI
	}
	return bucket, key, nil
}
