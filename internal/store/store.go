// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"golang.org/x/sync/singleflight"

	"github.com/staranto/isoctl/internal/cacheutil"
)

// Fetcher produces a resource on a cache miss, usually with a network call.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Mirror is a secondary copy of the data directory that is consulted on a
// local miss and updated after a fetch.
type Mirror interface {
	// Pull copies the named resource to dst. It returns false when the mirror
	// does not have it.
	Pull(ctx context.Context, name, dst string) (bool, error)
	Push(ctx context.Context, name, src string) error
}

// Store resolves named resources under a data directory, loading them from
// disk when present and fetching and persisting them otherwise. There is no
// in-memory layer; every call re-checks the filesystem.
type Store struct {
	dir    string
	mirror Mirror
	codecs map[Format]codec
	group  singleflight.Group
}

type Option func(*Store)

// WithMirror enables a Mirror. A nil m is ignored.
func WithMirror(m Mirror) Option {
	return func(s *Store) {
		if m != nil {
			s.mirror = m
		}
	}
}

// New returns a Store rooted at dir. The directory is not created; callers
// make sure it exists before the first write.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir: dir,
		codecs: map[Format]codec{
			FormatVectorGeometry: vectorCodec{},
			FormatGraph:          graphCodec{},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir is the data directory.
func (s *Store) Dir() string { return s.dir }

// Path returns where the named resource lives.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Exists reports whether a regular file exists for name.
func (s *Store) Exists(name string) bool {
	_, ok := cacheutil.EntryPath(s.dir, name)
	return ok
}

// Remove deletes the named resource. A missing file is not an error.
func (s *Store) Remove(name string) error {
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Obtain returns the named resource from disk, or calls fetch, persists the
// result and returns it. fetch is never called when the file exists.
// Concurrent calls for the same name share one load or fetch. The shared
// work is detached from the caller that started it, so a cancelled caller
// returns early without failing the others.
func Obtain[T any](ctx context.Context, s *Store, name string, fetch Fetcher[T]) (T, error) {
	var zero T

	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(name, func() (any, error) {
		return s.obtain(detached, name, func(ctx context.Context) (any, error) {
			return fetch(ctx)
		})
	})

	var r singleflight.Result
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r = <-ch:
	}

	if r.Err != nil {
		return zero, r.Err
	}
	if r.Shared {
		log.Debugf("shared result for %s", name)
	}
	v := r.Val

	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%s holds %T, not %T", name, v, zero)
	}
	return t, nil
}

// Load decodes the named resource from disk.
func (s *Store) Load(ctx context.Context, name string) (any, error) {
	c, err := s.codecFor(name)
	if err != nil {
		return nil, err
	}
	return s.decode(ctx, c, s.Path(name))
}

// Save persists v under name, replacing any existing file.
func (s *Store) Save(ctx context.Context, name string, v any) error {
	c, err := s.codecFor(name)
	if err != nil {
		return err
	}
	return s.persist(ctx, c, s.Path(name), v)
}

func (s *Store) obtain(ctx context.Context, name string, fetch Fetcher[any]) (any, error) {
	c, err := s.codecFor(name)
	if err != nil {
		return nil, err
	}

	path := s.Path(name)
	if s.Exists(name) {
		log.Debugf("cache hit: %s", path)
		return s.decode(ctx, c, path)
	}

	if s.mirror != nil {
		pulled, err := s.pull(ctx, name, path)
		if err != nil {
			log.WithError(err).Warnf("failed to pull %s from mirror", name)
		} else if pulled {
			log.Debugf("mirror hit: %s", name)
			return s.decode(ctx, c, path)
		}
	}

	log.Debugf("cache miss: %s", path)
	v, err := fetch(ctx)
	if err != nil {
		return nil, &FetchError{Name: name, Err: err}
	}

	if err := s.persist(ctx, c, path, v); err != nil {
		return nil, err
	}

	if s.mirror != nil {
		if err := s.mirror.Push(ctx, name, path); err != nil {
			log.WithError(err).Warnf("failed to push %s to mirror", name)
		}
	}

	return v, nil
}

func (s *Store) codecFor(name string) (codec, error) {
	f, err := FormatOf(name)
	if err != nil {
		return nil, err
	}
	return s.codecs[f], nil
}

func (s *Store) decode(ctx context.Context, c codec, path string) (any, error) {
	v, err := c.decode(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return v, nil
}

// persist encodes v to a temporary sibling of path and renames it into place
// so an interrupted write never leaves a file at path.
func (s *Store) persist(ctx context.Context, c codec, path string, v any) error {
	tmp, err := tempSibling(path)
	if err != nil {
		return &PersistError{Path: path, Err: err}
	}

	if err := c.encode(ctx, tmp, path, v); err != nil {
		os.Remove(tmp)
		return &PersistError{Path: path, Err: err}
	}
	if err := os.Chmod(tmp, 0o644); err != nil { //nolint:mnd
		os.Remove(tmp)
		return &PersistError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &PersistError{Path: path, Err: err}
	}

	log.Debugf("persisted %s", path)
	return nil
}

func (s *Store) pull(ctx context.Context, name, path string) (bool, error) {
	tmp, err := tempSibling(path)
	if err != nil {
		return false, err
	}

	pulled, err := s.mirror.Pull(ctx, name, tmp)
	if err != nil || !pulled {
		os.Remove(tmp)
		return false, err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return false, err
	}
	return true, nil
}

// tempSibling creates an empty hidden file next to path.
func tempSibling(path string) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}
