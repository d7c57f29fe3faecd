// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package osm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/staranto/isoctl/internal/graph"
)

const (
	DefaultBaseURL = "https://overpass-api.de/api/interpreter"
	DefaultTimeout = 180 * time.Second

	// NetworkWalk names graphs built from WalkFilter.
	NetworkWalk = "walk"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client fetches street networks from an Overpass API endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = cfg.Timeout

	return &Client{cfg: cfg, http: hc}
}

// Response is the JSON body of an Overpass query.
type Response struct {
	Version   float64   `json:"version"`
	Generator string    `json:"generator"`
	Elements  []Element `json:"elements"`
}

type Element struct {
	Type  string            `json:"type"`
	ID    int64             `json:"id"`
	Lat   float64           `json:"lat,omitempty"`
	Lon   float64           `json:"lon,omitempty"`
	Nodes []int64           `json:"nodes,omitempty"`
	Tags  map[string]string `json:"tags,omitempty"`
}

// WalkNetwork returns the walkable street network inside boundary, which
// must be a Polygon, MultiPolygon or a collection holding them.
func (c *Client) WalkNetwork(ctx context.Context, boundary orb.Geometry) (*graph.Graph, error) {
	query, err := WalkQuery(boundary, int(c.cfg.Timeout.Seconds()))
	if err != nil {
		return nil, err
	}

	r, err := c.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	g := Build(NetworkWalk, r)
	log.WithField("nodes", len(g.Nodes)).
		WithField("edges", len(g.Edges)).
		Debug("built walk network")
	return g, nil
}

// Query posts an Overpass QL query and decodes the response.
func (c *Client) Query(ctx context.Context, query string) (*Response, error) {
	form := url.Values{}
	form.Set("data", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	log.Debugf("POST %s", c.cfg.BaseURL)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read overpass response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("overpass request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var r Response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("failed to parse overpass response: %w", err)
	}
	log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).
		Debugf("overpass returned %d elements", len(r.Elements))

	return &r, nil
}

// Build turns an Overpass response into a walkable graph. Every consecutive
// node pair of a way becomes an edge in each direction. Ways referring to
// nodes absent from the response are split around the gap.
func Build(name string, r *Response) *graph.Graph {
	g := graph.New(name)

	for _, e := range r.Elements {
		if e.Type == "node" {
			g.AddNode(e.ID, e.Lat, e.Lon)
		}
	}

	for _, e := range r.Elements {
		if e.Type != "way" {
			continue
		}
		for i := 1; i < len(e.Nodes); i++ {
			from, ok1 := g.Nodes[e.Nodes[i-1]]
			to, ok2 := g.Nodes[e.Nodes[i]]
			if !ok1 || !ok2 || from.ID == to.ID {
				continue
			}
			length := geo.Distance(from.Point(), to.Point())
			for _, pair := range [2][2]int64{{from.ID, to.ID}, {to.ID, from.ID}} {
				g.AddEdge(&graph.Edge{
					From:    pair[0],
					To:      pair[1],
					Length:  length,
					WayID:   e.ID,
					Highway: e.Tags["highway"],
					Name:    e.Tags["name"],
				})
			}
		}
	}

	// Drop nodes no way touches.
	used := make(map[int64]bool, len(g.Nodes))
	for _, e := range g.Edges {
		used[e.From] = true
		used[e.To] = true
	}
	for id := range g.Nodes {
		if !used[id] {
			delete(g.Nodes, id)
		}
	}

	return g
}
