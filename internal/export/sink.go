package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Sink stores a finished workbook and reports where it went.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Name() string
}

// fileSink writes workbooks into a local directory.
type fileSink struct {
	dir    string
	logger zerolog.Logger
}

// NewFileSink creates a sink that writes into dir, creating it if needed.
func NewFileSink(dir string, logger zerolog.Logger) Sink {
	return &fileSink{
		dir:    dir,
		logger: logger.With().Str("component", "file-export-sink").Logger(),
	}
}

func (s *fileSink) Name() string { return "local" }

// Put writes through a temporary file so readers never see half a workbook.
func (s *fileSink) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Error().Err(err).Str("dir", s.dir).Msg("failed to create export directory")
		return "", fmt.Errorf("failed to create export directory %s: %w", s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close export file: %w", err)
	}

	path := filepath.Join(s.dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("failed to move export into place")
		return "", fmt.Errorf("failed to write export file %s: %w", path, err)
	}

	s.logger.Info().Str("path", path).Int("bytes", len(data)).Msg("workbook written")
	return path, nil
}

// S3PutAPI is the part of the S3 client the sink needs.
type S3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// s3Sink uploads workbooks to an S3 bucket under a key prefix.
type s3Sink struct {
	client S3PutAPI
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Sink creates a sink backed by AWS S3 using the default credential chain.
func NewS3Sink(ctx context.Context, bucket, region, prefix string, logger zerolog.Logger) (Sink, error) {
	logger = logger.With().Str("component", "s3-export-sink").Logger()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Str("prefix", prefix).
		Msg("S3 export sink initialised")

	return NewS3SinkWithClient(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

// NewS3SinkWithClient creates an S3 sink over an existing client.
func NewS3SinkWithClient(client S3PutAPI, bucket, prefix string, logger zerolog.Logger) Sink {
	return &s3Sink{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}
}

func (s *s3Sink) Name() string { return "s3" }

// Put uploads data to prefix+name and returns its s3:// location.
func (s *s3Sink) Put(ctx context.Context, name string, data []byte) (string, error) {
	key := s.prefix + name

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ContentType),
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("bucket", s.bucket).
			Str("key", key).
			Msg("failed to put object to S3")
		return "", fmt.Errorf("failed to put object to S3 (bucket=%s, key=%s): %w", s.bucket, key, err)
	}

	location := fmt.Sprintf("s3://%s/%s", s.bucket, key)
	s.logger.Info().Str("location", location).Int("bytes", len(data)).Msg("workbook uploaded")
	return location, nil
}

// fallbackSink tries S3 first and falls back to the local directory.
type fallbackSink struct {
	s3Sink    Sink
	fileSink  Sink
	s3Enabled bool
	logger    zerolog.Logger
}

// NewFallbackSink creates a sink that uploads to S3 when enabled and
// configured, and writes locally when S3 is off or the upload fails.
func NewFallbackSink(s3Sink, fileSink Sink, s3Enabled bool, logger zerolog.Logger) Sink {
	return &fallbackSink{
		s3Sink:    s3Sink,
		fileSink:  fileSink,
		s3Enabled: s3Enabled,
		logger:    logger.With().Str("component", "fallback-export-sink").Logger(),
	}
}

func (s *fallbackSink) Name() string {
	if s.s3Enabled && s.s3Sink != nil {
		return "s3+local"
	}
	return s.fileSink.Name()
}

func (s *fallbackSink) Put(ctx context.Context, name string, data []byte) (string, error) {
	if s.s3Enabled && s.s3Sink != nil {
		location, err := s.s3Sink.Put(ctx, name, data)
		if err == nil {
			return location, nil
		}

		s.logger.Warn().
			Err(err).
			Str("name", name).
			Msg("failed to upload to S3, falling back to local file system")
	} else {
		s.logger.Debug().
			Bool("s3_enabled", s.s3Enabled).
			Bool("has_s3_sink", s.s3Sink != nil).
			Msg("S3 disabled or not configured, using local file system")
	}

	return s.fileSink.Put(ctx, name, data)
}
