// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned when a resource name has neither a .gpkg
// nor a .graphml suffix.
var ErrUnsupportedFormat = errors.New("unsupported format")

// FetchError wraps the error returned by a Fetcher.
type FetchError struct {
	Name string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.Name, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PersistError wraps a failure to write a resource to its path, e.g. when
// the data directory does not exist.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to persist %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
