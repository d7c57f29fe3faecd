// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package traveltime

import (
	"errors"
	"fmt"

	"github.com/apex/log"
)

// Fixed request parameters. Times are in seconds.
const (
	TransportPublic = "public_transport"
	BoardingTime    = 15
	PTChangeDelay   = 15
	RangeWidth      = 30 * 60
	ScaleType       = "simple"
	DetailLevel     = "medium"
	SearchIDPrefix  = "isochrone-"
)

var (
	ErrInvalidTravelTime = errors.New("travel time must be a positive number of minutes")
	ErrNoArrivalTime     = errors.New("arrival time is required")
)

// Coords is a WGS84 location.
type Coords struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

type Transportation struct {
	Type                  string `json:"type" yaml:"type"`
	WalkingTime           int    `json:"walking_time" yaml:"walking_time"`
	ParkingTime           int    `json:"parking_time" yaml:"parking_time"`
	BoardingTime          int    `json:"boarding_time" yaml:"boarding_time"`
	PTChangeDelay         int    `json:"pt_change_delay" yaml:"pt_change_delay"`
	DisableBorderCrossing bool   `json:"disable_border_crossing" yaml:"disable_border_crossing"`
}

type LevelOfDetail struct {
	ScaleType string `json:"scale_type" yaml:"scale_type"`
	Level     string `json:"level" yaml:"level"`
}

type Range struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Width   int  `json:"width" yaml:"width"`
}

// ArrivalSearch asks for the area from which Coords can be reached by
// ArrivalTime within TravelTime seconds.
type ArrivalSearch struct {
	ID             string         `json:"id" yaml:"id"`
	Coords         Coords         `json:"coords" yaml:"coords"`
	ArrivalTime    string         `json:"arrival_time" yaml:"arrival_time"`
	TravelTime     int            `json:"travel_time" yaml:"travel_time"`
	Transportation Transportation `json:"transportation" yaml:"transportation"`
	LevelOfDetail  LevelOfDetail  `json:"level_of_detail" yaml:"level_of_detail"`
	NoHoles        bool           `json:"no_holes" yaml:"no_holes"`
	Range          Range          `json:"range" yaml:"range"`
}

// Minutes is the travel time budget in whole minutes.
func (a ArrivalSearch) Minutes() int {
	return a.TravelTime / 60
}

// Batch is the body of a time-map request.
type Batch struct {
	ArrivalSearches []ArrivalSearch `json:"arrival_searches" yaml:"arrival_searches"`
}

// SearchID is the id given to the search for a budget of m minutes.
func SearchID(m int) string {
	return fmt.Sprintf("%s%d", SearchIDPrefix, m)
}

// BuildBatch returns one ArrivalSearch per entry of minutes, in order. An
// empty minutes yields an empty batch. Repeated values are kept and share an
// id.
func BuildBatch(origin Coords, arrivalTime string, minutes []int) (*Batch, error) {
	if arrivalTime == "" {
		return nil, ErrNoArrivalTime
	}

	b := &Batch{ArrivalSearches: make([]ArrivalSearch, 0, len(minutes))}
	seen := make(map[int]bool, len(minutes))

	for _, m := range minutes {
		if m <= 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidTravelTime, m)
		}
		if seen[m] {
			log.WithField("id", SearchID(m)).Warn("duplicate travel time")
		}
		seen[m] = true

		b.ArrivalSearches = append(b.ArrivalSearches, ArrivalSearch{
			ID:          SearchID(m),
			Coords:      origin,
			ArrivalTime: arrivalTime,
			TravelTime:  m * 60,
			Transportation: Transportation{
				Type:          TransportPublic,
				WalkingTime:   m * 60,
				BoardingTime:  BoardingTime,
				PTChangeDelay: PTChangeDelay,
			},
			LevelOfDetail: LevelOfDetail{ScaleType: ScaleType, Level: DetailLevel},
			Range:         Range{Enabled: true, Width: RangeWidth},
		})
	}

	return b, nil
}
