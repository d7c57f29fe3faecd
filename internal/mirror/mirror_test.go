// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package mirror

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	getErr  error
}

func (f *fakeS3) GetObject(_ context.Context, in *s3v2.GetObjectInput, _ ...func(*s3v2.Options)) (*s3v2.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3v2.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3v2.PutObjectInput, _ ...func(*s3v2.Options)) (*s3v2.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if in.ContentLength == nil || *in.ContentLength != int64(len(b)) {
		return nil, errors.New("content length mismatch")
	}
	f.objects[*in.Bucket+"/"+*in.Key] = b
	return &s3v2.PutObjectOutput{}, nil
}

func TestKey(t *testing.T) {
	tests := []struct {
		prefix string
		name   string
		want   string
	}{
		{prefix: "", name: "network.graphml", want: "network.graphml"},
		{prefix: "isoctl", name: "network.graphml", want: "isoctl/network.graphml"},
		{prefix: "/isoctl/data/", name: "isochrones/isochrone_0.gpkg", want: "isoctl/data/isochrones/isochrone_0.gpkg"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			m := NewWithClient(&fakeS3{}, "bucket", tt.prefix)
			assert.Equal(t, tt.want, m.Key(tt.name))
		})
	}
}

func TestPushPull(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	api := &fakeS3{objects: map[string][]byte{}}
	m := NewWithClient(api, "bucket", "isoctl")

	src := filepath.Join(dir, "network.graphml")
	require.NoError(t, os.WriteFile(src, []byte("<graphml/>"), 0o600))
	require.NoError(t, m.Push(ctx, "network.graphml", src))
	assert.Equal(t, []byte("<graphml/>"), api.objects["bucket/isoctl/network.graphml"])

	dst := filepath.Join(dir, "pulled.graphml")
	ok, err := m.Pull(ctx, "network.graphml", dst)
	require.NoError(t, err)
	assert.True(t, ok)
	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "<graphml/>", string(b))
}

func TestPull_Missing(t *testing.T) {
	ctx := context.Background()
	dst := filepath.Join(t.TempDir(), "boundary.gpkg")

	m := NewWithClient(&fakeS3{objects: map[string][]byte{}}, "bucket", "")
	ok, err := m.Pull(ctx, "boundary.gpkg", dst)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoFileExists(t, dst)
}

func TestPull_Errors(t *testing.T) {
	ctx := context.Background()
	dst := filepath.Join(t.TempDir(), "boundary.gpkg")

	notFound := &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"}
	m := NewWithClient(&fakeS3{getErr: notFound}, "bucket", "")
	ok, err := m.Pull(ctx, "boundary.gpkg", dst)
	require.NoError(t, err)
	assert.False(t, ok)

	denied := &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}
	m = NewWithClient(&fakeS3{getErr: denied}, "bucket", "")
	ok, err = m.Pull(ctx, "boundary.gpkg", dst)
	assert.False(t, ok)
	assert.ErrorIs(t, err, denied)
	assert.ErrorContains(t, err, "s3://bucket/boundary.gpkg")
}

func TestPush_MissingSource(t *testing.T) {
	m := NewWithClient(&fakeS3{objects: map[string][]byte{}}, "bucket", "")
	err := m.Push(context.Background(), "network.graphml", filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNew_RequiresBucket(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}
