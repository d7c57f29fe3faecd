// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataset() []Row {
	return []Row{
		{"name": "network.graphml", "size": int64(4096), "kind": "graph"},
		{"name": "boundary.gpkg", "size": int64(98304), "kind": "vector-geometry"},
		{"name": "isochrones/isochrone_0.gpkg", "size": int64(1024), "kind": "vector-geometry"},
		{"name": "Isochrones.geojson", "size": int64(20480), "kind": nil},
	}
}

func names(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r["name"].(string))
	}
	return out
}

func TestSortDataset(t *testing.T) {
	tests := []struct {
		name      string
		spec      string
		wantOrder []string
	}{
		{
			name:      "ascending by name",
			spec:      "name",
			wantOrder: []string{"boundary.gpkg", "Isochrones.geojson", "isochrones/isochrone_0.gpkg", "network.graphml"},
		},
		{
			name:      "descending by name",
			spec:      "-name",
			wantOrder: []string{"network.graphml", "isochrones/isochrone_0.gpkg", "Isochrones.geojson", "boundary.gpkg"},
		},
		{
			name:      "case sensitive",
			spec:      "!name",
			wantOrder: []string{"Isochrones.geojson", "boundary.gpkg", "isochrones/isochrone_0.gpkg", "network.graphml"},
		},
		{
			name:      "numeric",
			spec:      "size",
			wantOrder: []string{"isochrones/isochrone_0.gpkg", "network.graphml", "Isochrones.geojson", "boundary.gpkg"},
		},
		{
			name:      "nil first then name",
			spec:      "kind,-name",
			wantOrder: []string{"Isochrones.geojson", "network.graphml", "isochrones/isochrone_0.gpkg", "boundary.gpkg"},
		},
		{
			name:      "empty spec",
			spec:      "",
			wantOrder: []string{"network.graphml", "boundary.gpkg", "isochrones/isochrone_0.gpkg", "Isochrones.geojson"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := dataset()
			SortDataset(data, tt.spec)
			assert.Equal(t, tt.wantOrder, names(data))
		})
	}
}

func TestBuildFilters(t *testing.T) {
	got := BuildFilters("name^iso,size!>100,kind/^vector")
	assert.Equal(t, []Filter{
		{Key: "name", Operand: "^", Target: "iso"},
		{Key: "size", Negate: true, Operand: ">", Target: "100"},
		{Key: "kind", Operand: "/", Target: "^vector"},
	}, got)

	assert.Empty(t, BuildFilters(""))
	assert.Empty(t, BuildFilters("nooperand"))
}

func TestBuildFilters_Delimiter(t *testing.T) {
	t.Setenv("ISOCTL_FILTER_DELIM", ";")
	got := BuildFilters("name@a,b;size>1")
	require.Len(t, got, 2)
	assert.Equal(t, "a,b", got[0].Target)
}

func TestFilterDataset(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want []string
	}{
		{name: "prefix", spec: "name^isochrones/", want: []string{"isochrones/isochrone_0.gpkg"}},
		{name: "equal fold", spec: "name~ISOCHRONES.GEOJSON", want: []string{"Isochrones.geojson"}},
		{name: "numeric greater", spec: "size>10000", want: []string{"boundary.gpkg", "Isochrones.geojson"}},
		{name: "numeric negated", spec: "size!>10000", want: []string{"network.graphml", "isochrones/isochrone_0.gpkg"}},
		{name: "regex", spec: `name/\.gpkg$`, want: []string{"boundary.gpkg", "isochrones/isochrone_0.gpkg"}},
		{name: "nil value fails", spec: "kind=graph", want: []string{"network.graphml"}},
		{name: "contains and", spec: "name@iso,kind=vector-geometry", want: []string{"isochrones/isochrone_0.gpkg"}},
		{name: "unknown key ignored", spec: "colour=red", want: []string{"network.graphml", "boundary.gpkg", "isochrones/isochrone_0.gpkg", "Isochrones.geojson"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(FilterDataset(dataset(), tt.spec)))
		})
	}
}

func TestSpit(t *testing.T) {
	cols := []string{"name", "size"}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Spit(&buf, dataset(), cols, Options{Format: "json", Filter: "name=boundary.gpkg"}))
		assert.JSONEq(t, `[{"name":"boundary.gpkg","size":98304,"kind":"vector-geometry"}]`, buf.String())
	})

	t.Run("json empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Spit(&buf, dataset(), cols, Options{Format: "json", Filter: "name=nothing"}))
		assert.JSONEq(t, `[]`, buf.String())
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Spit(&buf, dataset(), cols, Options{Format: "yaml", Filter: "name=network.graphml"}))
		assert.Contains(t, buf.String(), "- kind: graph\n  name: network.graphml\n  size: 4096\n")
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Spit(&buf, dataset(), cols, Options{Sort: "name", Titles: true}))
		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		require.Len(t, lines, 5)
		assert.Contains(t, lines[0], "name")
		assert.Contains(t, lines[0], "size")
		assert.Contains(t, lines[1], "boundary.gpkg")
		assert.Contains(t, lines[1], "98304")
	})

	t.Run("text without rows", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Spit(&buf, nil, cols, Options{}))
		assert.Empty(t, buf.String())
	})

	t.Run("bad format", func(t *testing.T) {
		assert.Error(t, Spit(&bytes.Buffer{}, dataset(), cols, Options{Format: "csv"}))
	})
}

func TestEmitDocument(t *testing.T) {
	doc := map[string]any{"arrival_searches": []any{}}

	var buf bytes.Buffer
	require.NoError(t, EmitDocument(&buf, "json", doc))
	assert.Equal(t, "{\n  \"arrival_searches\": []\n}\n", buf.String())

	buf.Reset()
	require.NoError(t, EmitDocument(&buf, "raw", doc))
	assert.Equal(t, "{\"arrival_searches\":[]}\n", buf.String())

	buf.Reset()
	require.NoError(t, EmitDocument(&buf, "yaml", doc))
	assert.Equal(t, "arrival_searches: []\n", buf.String())

	buf.Reset()
	var none []Row
	require.NoError(t, EmitDocument(&buf, "json", none))
	assert.Equal(t, "[]\n", buf.String())

	assert.Error(t, EmitDocument(&buf, "xml", doc))
}

func TestInterfaceToString(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		emptyVal string
		want     string
	}{
		{name: "string", value: "hello", want: "hello"},
		{name: "int", value: 42, want: "42"},
		{name: "int64", value: int64(4096), want: "4096"},
		{name: "float64", value: 42.5, want: "42.5"},
		{name: "bool true", value: true, want: "true"},
		{name: "bool false is zero value", value: false, want: ""},
		{name: "nil default", value: nil, want: ""},
		{name: "nil custom", value: nil, emptyVal: "-", want: "-"},
		{name: "slice", value: []string{"a", "b"}, want: `["a","b"]`},
		{name: "map", value: map[string]int{"x": 1}, want: `{"x":1}`},
		{name: "zero value with custom empty", value: 0, emptyVal: "N/A", want: "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			if tt.emptyVal != "" {
				got = InterfaceToString(tt.value, tt.emptyVal)
			} else {
				got = InterfaceToString(tt.value)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetColors(t *testing.T) {
	header, even, odd := getColors("colors")
	assert.NotEmpty(t, header)
	assert.NotEmpty(t, even)
	assert.NotEmpty(t, odd)
}

func BenchmarkSortDataset(b *testing.B) {
	for i := 0; i < b.N; i++ {
		SortDataset(dataset(), "-size,name")
	}
}
