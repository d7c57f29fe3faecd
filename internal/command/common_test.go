// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/isoctl/internal/traveltime"
)

func TestParseTimes(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "10,20,30", want: []int{10, 20, 30}},
		{in: "10, 20, 30", want: []int{10, 20, 30}},
		{in: "[10 20 30]", want: []int{10, 20, 30}},
		{in: "45", want: []int{45}},
		{in: "10,10", want: []int{10, 10}},
		{in: "10,0", wantErr: true},
		{in: "-5", wantErr: true},
		{in: "ten", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTimes(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseTimes("0")
	assert.ErrorIs(t, err, traveltime.ErrInvalidTravelTime)
}

func TestParseCoords(t *testing.T) {
	c, err := parseCoords("-33.8832, 151.2067")
	require.NoError(t, err)
	assert.Equal(t, traveltime.Coords{Lat: -33.8832, Lng: 151.2067}, c)

	for _, in := range []string{"", "1", "1,2,3", "x,1", "1,y"} {
		_, err := parseCoords(in)
		assert.Error(t, err, in)
	}

	// Out of range values parse; the API rejects them.
	c, err = parseCoords("91,-181")
	require.NoError(t, err)
	assert.Equal(t, traveltime.Coords{Lat: 91, Lng: -181}, c)
}

func TestPresets(t *testing.T) {
	assert.Equal(t, "boundary.gpkg", FullPreset.BoundaryName())
	assert.Equal(t, "network.graphml", FullPreset.NetworkName())
	assert.Equal(t, "boundary_small.gpkg", SmallPreset.BoundaryName())
	assert.Equal(t, "network_small.graphml", SmallPreset.NetworkName())
	assert.Equal(t, "Parramatta, NSW, Australia", SmallPreset.Place)
	assert.Equal(t, "isochrones/isochrone_3.gpkg", IsochroneName(3))
}

func TestValidators(t *testing.T) {
	assert.NoError(t, FlagValidators("json", OutputValidator))
	assert.Error(t, FlagValidators("xml", OutputValidator))

	assert.Error(t, FlagValidators("--output", JammedFlagValidator))
	assert.NoError(t, FlagValidators("Parramatta", JammedFlagValidator))

	assert.NoError(t, ArrivalTimeValidator("2024-06-29T09:30:00-10:00"))
	assert.Error(t, ArrivalTimeValidator("2024-06-29 09:30"))

	assert.NoError(t, TimesValidator("10,20"))
	assert.Error(t, TimesValidator("10,x"))

	assert.NoError(t, CoordsValidator(""))
	assert.Error(t, CoordsValidator("1"))

	assert.NoError(t, PositiveIntValidator(1))
	assert.NoError(t, PositiveIntValidator(int64(2)))
	assert.Error(t, PositiveIntValidator(0))
	assert.Error(t, PositiveIntValidator(int64(-1)))
}
