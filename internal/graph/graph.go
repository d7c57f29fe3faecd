// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"sort"

	"github.com/paulmach/orb"
)

// Node is a street network vertex keyed by its OpenStreetMap id.
type Node struct {
	ID  int64
	Lat float64
	Lon float64
}

// Point returns the node location in lon/lat order.
func (n *Node) Point() orb.Point {
	return orb.Point{n.Lon, n.Lat}
}

// Edge is a directed street segment between two nodes.
type Edge struct {
	From    int64
	To      int64
	Length  float64 // metres
	WayID   int64
	Highway string
	Name    string
}

// Graph is a directed street network. Walkable networks carry both
// directions of every segment.
type Graph struct {
	Name  string
	Nodes map[int64]*Node
	Edges []*Edge
}

func New(name string) *Graph {
	return &Graph{
		Name:  name,
		Nodes: make(map[int64]*Node),
	}
}

// AddNode inserts or replaces a node.
func (g *Graph) AddNode(id int64, lat, lon float64) *Node {
	n := &Node{ID: id, Lat: lat, Lon: lon}
	g.Nodes[id] = n
	return n
}

// AddEdge appends e. Both endpoints must already be nodes of the graph;
// edges referring to unknown nodes are dropped and false is returned.
func (g *Graph) AddEdge(e *Edge) bool {
	if _, ok := g.Nodes[e.From]; !ok {
		return false
	}
	if _, ok := g.Nodes[e.To]; !ok {
		return false
	}
	g.Edges = append(g.Edges, e)
	return true
}

// NodeIDs returns the node ids in ascending order.
func (g *Graph) NodeIDs() []int64 {
	ids := make([]int64, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Bound is the bounding box of all nodes.
func (g *Graph) Bound() orb.Bound {
	var mp orb.MultiPoint
	for _, id := range g.NodeIDs() {
		mp = append(mp, g.Nodes[id].Point())
	}
	return mp.Bound()
}

// TotalLength sums edge lengths in metres.
func (g *Graph) TotalLength() float64 {
	var total float64
	for _, e := range g.Edges {
		total += e.Length
	}
	return total
}
