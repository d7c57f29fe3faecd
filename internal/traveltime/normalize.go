// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package traveltime

import (
	"fmt"
	"time"

	"github.com/apex/log"
)

// Window is how far from now an arrival time may be before it is replaced.
const Window = 14 * 24 * time.Hour

// ParseError reports an arrival time that is not an RFC 3339 timestamp with
// an explicit offset.
type ParseError struct {
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid arrival time %q: %v", e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NormalizeArrivalTime returns s when it lies within Window of now, bounds
// included. Otherwise it returns now in UTC, formatted RFC 3339.
func NormalizeArrivalTime(s string, now time.Time) (string, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return "", &ParseError{Value: s, Err: err}
	}

	if t.Before(now.Add(-Window)) || t.After(now.Add(Window)) {
		replaced := now.UTC().Format(time.RFC3339)
		log.WithField("arrival_time", s).Warnf("arrival time outside window, using %s", replaced)
		return replaced, nil
	}

	return s, nil
}
