// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cacheutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/apex/log"
)

// DefaultDir is the data directory used when nothing else is configured. It
// is relative to the working directory.
const DefaultDir = "data"

// Entry represents a cached artifact on disk.
// Name is the path relative to the data directory.
type Entry struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Dir resolves the data directory.
// Precedence:
//  1. explicit, if non-empty (usually the --data-dir flag)
//  2. ISOCTL_DATA_DIR, if set and non-empty
//  3. DefaultDir
func Dir(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if c, ok := os.LookupEnv("ISOCTL_DATA_DIR"); ok && c != "" {
		return c
	}
	return DefaultDir
}

// EnsureDir creates dir and any requested subdirectories beneath it.
func EnsureDir(dir string, subdirs ...string) error {
	if err := os.MkdirAll(filepath.Join(append([]string{dir}, subdirs...)...), 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// EntryPath returns the path where the named entry lives under dir. It also
// returns true if a regular file currently exists at that path.
func EntryPath(dir, name string) (string, bool) {
	p := filepath.Join(dir, name)
	if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
		return p, true
	}
	return p, false
}

// List walks dir and returns every regular file in it, sorted by name. A
// missing dir yields no entries.
func List(dir string) ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			Name:    filepath.ToSlash(rel),
			Path:    path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Purge removes files under dir older than the provided number of hours and
// returns the entries it removed. If hours <= 0 it is a no-op.
func Purge(dir string, hours int) ([]Entry, error) {
	if hours <= 0 {
		log.Debug("cache cleaning disabled")
		return nil, nil
	}

	entries, err := List(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to purge cache: %w", err)
	}

	maxAge := time.Duration(hours) * time.Hour
	var removed []Entry
	for _, e := range entries {
		if time.Since(e.ModTime) <= maxAge {
			continue
		}
		if err := os.Remove(e.Path); err != nil {
			log.WithError(err).Warnf("failed to remove cache file %s", e.Path)
			continue
		}
		log.Debugf("removed cache file %s", e.Path)
		removed = append(removed, e)
	}
	return removed, nil
}
