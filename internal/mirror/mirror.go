// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package mirror keeps a copy of the data directory in an S3 bucket so
// fetched resources can be shared between machines.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	awsx "github.com/staranto/isoctl/internal/aws"
)

// S3API is the subset of the S3 client the mirror needs.
type S3API interface {
	GetObject(ctx context.Context, in *s3v2.GetObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3v2.PutObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.PutObjectOutput, error)
}

type Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Profile  string
	Endpoint string
}

// Enabled reports whether a bucket is configured.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

// S3 mirrors resources to s3://Bucket/Prefix/<name>.
type S3 struct {
	api    S3API
	bucket string
	prefix string
}

// New loads AWS configuration and returns a mirror for cfg.
func New(ctx context.Context, cfg Config) (*S3, error) {
	if !cfg.Enabled() {
		return nil, errors.New("mirror bucket is not set")
	}

	awsCfg, err := awsx.LoadAWSConfig(ctx, awsx.WithProfile(cfg.Profile), awsx.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awsx.NewS3(awsCfg, awsx.WithS3Endpoint(cfg.Endpoint))
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

func NewWithClient(api S3API, bucket, prefix string) *S3 {
	return &S3{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for name.
func (m *S3) Key(name string) string {
	return path.Join(m.prefix, filepath.ToSlash(name))
}

// Pull writes the object for name to dst. It returns false, and leaves dst
// alone, when the object does not exist.
func (m *S3) Pull(ctx context.Context, name, dst string) (bool, error) {
	key := m.Key(name)
	out, err := m.api.GetObject(ctx, &s3v2.GetObjectInput{
		Bucket: awsv2.String(m.bucket),
		Key:    awsv2.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			log.Debugf("s3://%s/%s not found", m.bucket, key)
			return false, nil
		}
		return false, fmt.Errorf("failed to get s3://%s/%s: %w", m.bucket, key, err)
	}
	defer out.Body.Close()

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644) //nolint:mnd
	if err != nil {
		return false, err
	}
	n, err := io.Copy(f, out.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return false, fmt.Errorf("failed to read s3://%s/%s: %w", m.bucket, key, err)
	}

	log.WithField("bytes", n).Debugf("pulled s3://%s/%s", m.bucket, key)
	return true, nil
}

// Push uploads src as the object for name.
func (m *S3) Push(ctx context.Context, name, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	key := m.Key(name)
	_, err = m.api.PutObject(ctx, &s3v2.PutObjectInput{
		Bucket:        awsv2.String(m.bucket),
		Key:           awsv2.String(key),
		Body:          f,
		ContentLength: awsv2.Int64(fi.Size()),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", m.bucket, key, err)
	}

	log.WithField("bytes", fi.Size()).Debugf("pushed s3://%s/%s", m.bucket, key)
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
