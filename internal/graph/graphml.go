// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
)

const graphMLNamespace = "http://graphml.graphdrawing.org/xmlns"

// Attribute names used for <key> declarations. They follow the names OSMnx
// writes so files are interchangeable for the attributes we carry.
const (
	attrName    = "name"
	attrLat     = "y"
	attrLon     = "x"
	attrOSMID   = "osmid"
	attrLength  = "length"
	attrHighway = "highway"
)

type graphML struct {
	XMLName xml.Name `xml:"graphml"`
	XMLNS   string   `xml:"xmlns,attr,omitempty"`
	Keys    []gmlKey `xml:"key"`
	Graph   gmlGraph `xml:"graph"`
}

type gmlKey struct {
	ID   string `xml:"id,attr"`
	For  string `xml:"for,attr"`
	Name string `xml:"attr.name,attr"`
	Type string `xml:"attr.type,attr"`
}

type gmlGraph struct {
	ID          string    `xml:"id,attr,omitempty"`
	EdgeDefault string    `xml:"edgedefault,attr"`
	Data        []gmlData `xml:"data"`
	Nodes       []gmlNode `xml:"node"`
	Edges       []gmlEdge `xml:"edge"`
}

type gmlNode struct {
	ID   string    `xml:"id,attr"`
	Data []gmlData `xml:"data"`
}

type gmlEdge struct {
	Source string    `xml:"source,attr"`
	Target string    `xml:"target,attr"`
	Data   []gmlData `xml:"data"`
}

type gmlData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

var gmlKeys = []gmlKey{
	{ID: "g_name", For: "graph", Name: attrName, Type: "string"},
	{ID: "n_y", For: "node", Name: attrLat, Type: "double"},
	{ID: "n_x", For: "node", Name: attrLon, Type: "double"},
	{ID: "e_osmid", For: "edge", Name: attrOSMID, Type: "long"},
	{ID: "e_length", For: "edge", Name: attrLength, Type: "double"},
	{ID: "e_highway", For: "edge", Name: attrHighway, Type: "string"},
	{ID: "e_name", For: "edge", Name: attrName, Type: "string"},
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// EncodeGraphML writes g as a GraphML document. Nodes are written in id
// order and edges in graph order.
func EncodeGraphML(w io.Writer, g *Graph) error {
	doc := graphML{
		XMLNS: graphMLNamespace,
		Keys:  gmlKeys,
		Graph: gmlGraph{ID: "G", EdgeDefault: "directed"},
	}
	if g.Name != "" {
		doc.Graph.Data = []gmlData{{Key: "g_name", Value: g.Name}}
	}

	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		doc.Graph.Nodes = append(doc.Graph.Nodes, gmlNode{
			ID: strconv.FormatInt(id, 10),
			Data: []gmlData{
				{Key: "n_y", Value: formatFloat(n.Lat)},
				{Key: "n_x", Value: formatFloat(n.Lon)},
			},
		})
	}

	for _, e := range g.Edges {
		data := []gmlData{
			{Key: "e_osmid", Value: strconv.FormatInt(e.WayID, 10)},
			{Key: "e_length", Value: formatFloat(e.Length)},
		}
		if e.Highway != "" {
			data = append(data, gmlData{Key: "e_highway", Value: e.Highway})
		}
		if e.Name != "" {
			data = append(data, gmlData{Key: "e_name", Value: e.Name})
		}
		doc.Graph.Edges = append(doc.Graph.Edges, gmlEdge{
			Source: strconv.FormatInt(e.From, 10),
			Target: strconv.FormatInt(e.To, 10),
			Data:   data,
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode graphml: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// DecodeGraphML reads a GraphML document. Data values are matched through
// the document's own <key> declarations by attribute name, so key ids do not
// have to match the ones EncodeGraphML writes.
func DecodeGraphML(r io.Reader) (*Graph, error) {
	var doc graphML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode graphml: %w", err)
	}

	// for -> key id -> attr.name
	names := map[string]map[string]string{"graph": {}, "node": {}, "edge": {}}
	for _, k := range doc.Keys {
		if m, ok := names[k.For]; ok {
			m[k.ID] = k.Name
		} else if k.For == "all" {
			for _, m := range names {
				m[k.ID] = k.Name
			}
		}
	}

	g := New("")
	for _, d := range doc.Graph.Data {
		if names["graph"][d.Key] == attrName {
			g.Name = d.Value
		}
	}

	for _, xn := range doc.Graph.Nodes {
		id, err := strconv.ParseInt(xn.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("node %q: invalid id: %w", xn.ID, err)
		}
		n := &Node{ID: id}
		for _, d := range xn.Data {
			var err error
			switch names["node"][d.Key] {
			case attrLat:
				n.Lat, err = strconv.ParseFloat(d.Value, 64)
			case attrLon:
				n.Lon, err = strconv.ParseFloat(d.Value, 64)
			}
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", id, err)
			}
		}
		g.Nodes[id] = n
	}

	for i, xe := range doc.Graph.Edges {
		e := &Edge{}
		var err error
		if e.From, err = strconv.ParseInt(xe.Source, 10, 64); err != nil {
			return nil, fmt.Errorf("edge %d: invalid source: %w", i, err)
		}
		if e.To, err = strconv.ParseInt(xe.Target, 10, 64); err != nil {
			return nil, fmt.Errorf("edge %d: invalid target: %w", i, err)
		}
		for _, d := range xe.Data {
			switch names["edge"][d.Key] {
			case attrOSMID:
				e.WayID, err = strconv.ParseInt(d.Value, 10, 64)
			case attrLength:
				e.Length, err = strconv.ParseFloat(d.Value, 64)
			case attrHighway:
				e.Highway = d.Value
			case attrName:
				e.Name = d.Value
			}
			if err != nil {
				return nil, fmt.Errorf("edge %d: %w", i, err)
			}
		}
		if !g.AddEdge(e) {
			return nil, fmt.Errorf("edge %d: unknown endpoint %d -> %d", i, e.From, e.To)
		}
	}

	return g, nil
}
