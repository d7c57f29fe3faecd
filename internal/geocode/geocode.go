// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "SydneyIsochrones"
	DefaultTimeout   = 30 * time.Second
)

var (
	// ErrNotFound is returned when the query matches nothing.
	ErrNotFound = errors.New("place not found")
	// ErrNoBoundary is returned when a place has no polygonal outline.
	ErrNoBoundary = errors.New("place has no boundary polygon")
)

type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = cfg.Timeout

	return &Client{cfg: cfg, http: hc}
}

// Place is the best match for a query.
type Place struct {
	DisplayName string
	// Point is lon/lat.
	Point orb.Point
	// Boundary is a Polygon or MultiPolygon, or nil when the match is not an
	// area.
	Boundary orb.Geometry
}

func (p *Place) Coords() (lat, lng float64) {
	return p.Point.Lat(), p.Point.Lon()
}

// BoundaryCollection wraps the boundary in a one-feature collection.
func (p *Place) BoundaryCollection() (*geojson.FeatureCollection, error) {
	if p.Boundary == nil {
		return nil, fmt.Errorf("%s: %w", p.DisplayName, ErrNoBoundary)
	}

	f := geojson.NewFeature(p.Boundary)
	f.Properties["display_name"] = p.DisplayName
	f.Properties["lat"] = p.Point.Lat()
	f.Properties["lon"] = p.Point.Lon()

	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	return fc, nil
}

// Geocode resolves query to its first Nominatim match.
func (c *Client) Geocode(ctx context.Context, query string) (*Place, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("polygon_geojson", "1")
	params.Set("limit", "1")

	u := c.cfg.BaseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	log.WithField("query", query).Debugf("GET %s", u)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", query, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", query, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding %q: %s: %s", query, resp.Status, strings.TrimSpace(string(body)))
	}

	return parse(query, body)
}

func parse(query string, body []byte) (*Place, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("geocoding %q: invalid response", query)
	}

	hit := gjson.GetBytes(body, "0")
	if !hit.Exists() {
		return nil, fmt.Errorf("%q: %w", query, ErrNotFound)
	}

	lat, lon := hit.Get("lat"), hit.Get("lon")
	if !lat.Exists() || !lon.Exists() {
		return nil, fmt.Errorf("geocoding %q: result has no coordinates", query)
	}

	p := &Place{
		DisplayName: hit.Get("display_name").String(),
		Point:       orb.Point{lon.Float(), lat.Float()},
	}

	if raw := hit.Get("geojson"); raw.Exists() {
		g, err := geojson.UnmarshalGeometry([]byte(raw.Raw))
		if err != nil {
			return nil, fmt.Errorf("geocoding %q: invalid geometry: %w", query, err)
		}
		switch b := g.Geometry().(type) {
		case orb.Polygon, orb.MultiPolygon:
			p.Boundary = b
		default:
			log.Debugf("ignoring %T outline for %q", b, query)
		}
	}

	log.WithField("display_name", p.DisplayName).Debugf("geocoded %q", query)
	return p, nil
}
