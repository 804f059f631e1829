package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

// S3Config holds the settings for an S3-compatible bucket.
type S3Config struct {
	// Endpoint is the S3 endpoint URL. Leave empty for AWS S3.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// Prefix is prepended to every object key, e.g. "contracts/".
	Prefix string
	// UsePathStyle is required by most S3-compatible services and by gofakes3.
	UsePathStyle bool
}

// S3Store keeps one CSV object per contract in a bucket, so runs on
// different CI machines share the same records.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Store builds an S3 client from cfg.
func NewS3Store(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3StoreFromClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewS3StoreFromClient wraps an existing client.
func NewS3StoreFromClient(client *s3.Client, bucket, prefix string, logger *slog.Logger) *S3Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

// Key returns the object key of a contract's record.
func (s *S3Store) Key(contractID string) string {
	return strings.TrimPrefix(s.prefix+contractID+".csv", "/")
}

// Load fetches and decodes a contract's object. A missing object is an empty record.
func (s *S3Store) Load(ctx context.Context, contractID string) (*model.ContractRecord, error) {
	if err := checkID(contractID); err != nil {
		return nil, err
	}
	key := s.Key(contractID)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &notFound) {
			s.logger.Debug("no contract object yet", "contract", contractID, "key", key)
			return &model.ContractRecord{ContractID: contractID}, nil
		}
		return nil, fmt.Errorf("getting contract object %s: %w", key, err)
	}
	defer out.Body.Close()

	rec, err := ReadRecord(out.Body, contractID, s.logger)
	if err != nil {
		return nil, fmt.Errorf("reading contract object %s: %w", key, err)
	}
	return rec, nil
}

// Save uploads a contract's record, replacing the previous object.
func (s *S3Store) Save(ctx context.Context, rec *model.ContractRecord) error {
	if err := checkID(rec.ContractID); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := WriteRecord(&buf, rec); err != nil {
		return fmt.Errorf("encoding contract %s: %w", rec.ContractID, err)
	}
	key := s.Key(rec.ContractID)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("putting contract object %s: %w", key, err)
	}
	return nil
}
