// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package traveltime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://api.traveltimeapp.com/v4"
	DefaultTimeout = 60 * time.Second
)

var ErrMissingCredentials = errors.New("traveltime application id and api key are required")

type Config struct {
	ApplicationID string
	APIKey        string
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
}

// Client talks to the TravelTime API.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.ApplicationID == "" || cfg.APIKey == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = cfg.Timeout

	return &Client{cfg: cfg, http: hc}, nil
}

// RemoteRequestError is returned for any non-200 time-map response.
// ErrorCode and Description are taken from the API's error body when present.
type RemoteRequestError struct {
	StatusCode  int
	Body        string
	ErrorCode   int64
	Description string
}

func (e *RemoteRequestError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("time-map request failed: %d %s (error %d): %s",
			e.StatusCode, http.StatusText(e.StatusCode), e.ErrorCode, e.Description)
	}
	return fmt.Sprintf("time-map request failed: %d %s: %s",
		e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

func newRemoteRequestError(status int, body []byte) *RemoteRequestError {
	e := &RemoteRequestError{StatusCode: status, Body: string(body)}
	if gjson.ValidBytes(body) {
		e.ErrorCode = gjson.GetBytes(body, "error_code").Int()
		e.Description = gjson.GetBytes(body, "description").String()
	}
	return e
}

// TimeMap posts batch to the time-map endpoint and returns the parsed
// response along with the raw body.
func (c *Client) TimeMap(ctx context.Context, batch *Batch) (*geojson.FeatureCollection, []byte, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode batch: %w", err)
	}

	url := c.cfg.BaseURL + "/time-map"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/geo+json")
	req.Header.Set("X-Application-Id", c.cfg.ApplicationID)
	req.Header.Set("X-Api-Key", c.cfg.APIKey)

	log.WithField("searches", len(batch.ArrivalSearches)).Debugf("POST %s", url)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("time-map request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read time-map response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, body, newRemoteRequestError(resp.StatusCode, body)
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, body, fmt.Errorf("failed to parse time-map response: %w", err)
	}
	log.Debugf("time-map returned %d features", len(fc.Features))

	return fc, body, nil
}

// GroupBySearchID splits fc by each feature's search_id property. The result
// holds one collection per batch entry, in batch order; entries that share
// an id share the same features.
func GroupBySearchID(batch *Batch, fc *geojson.FeatureCollection) ([]*geojson.FeatureCollection, error) {
	out := make([]*geojson.FeatureCollection, len(batch.ArrivalSearches))
	index := make(map[string][]int, len(batch.ArrivalSearches))
	for i, s := range batch.ArrivalSearches {
		out[i] = geojson.NewFeatureCollection()
		index[s.ID] = append(index[s.ID], i)
	}

	for _, f := range fc.Features {
		id := f.Properties.MustString("search_id", "")
		idx, ok := index[id]
		if !ok {
			return nil, fmt.Errorf("response feature has unknown search_id %q", id)
		}
		for _, i := range idx {
			out[i].Append(f)
		}
	}

	return out, nil
}
