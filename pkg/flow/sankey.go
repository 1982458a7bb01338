package flow

import (
	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
)

// SankeyNodes holds the node arrays of a Sankey trace.
type SankeyNodes struct {
	Label     []string `json:"label"`
	Color     []string `json:"color"`
	Level     []string `json:"level"`
	Pad       int      `json:"pad"`
	Thickness int      `json:"thickness"`
}

// SankeyLinks holds the link arrays of a Sankey trace.
type SankeyLinks struct {
	Source []int     `json:"source"`
	Target []int     `json:"target"`
	Value  []float64 `json:"value"`
	Color  []string  `json:"color"`
}

// SankeyPayload is a structure laid out as parallel arrays, the shape
// Sankey renderers consume.
type SankeyPayload struct {
	Title string      `json:"title"`
	Node  SankeyNodes `json:"node"`
	Link  SankeyLinks `json:"link"`
}

// Sankey converts a structure into parallel arrays with CSS color strings.
func Sankey(title string, s common.Structure) SankeyPayload {
	p := SankeyPayload{
		Title: title,
		Node: SankeyNodes{
			Label:     make([]string, len(s.Nodes)),
			Color:     make([]string, len(s.Nodes)),
			Level:     make([]string, len(s.Nodes)),
			Pad:       15,
			Thickness: 20,
		},
		Link: SankeyLinks{
			Source: make([]int, len(s.Edges)),
			Target: make([]int, len(s.Edges)),
			Value:  make([]float64, len(s.Edges)),
			Color:  make([]string, len(s.Edges)),
		},
	}
	for i, n := range s.Nodes {
		p.Node.Label[i] = n.Label
		p.Node.Color[i] = n.Color.RGBA()
		p.Node.Level[i] = n.Level.String()
	}
	for i, e := range s.Edges {
		p.Link.Source[i] = e.Source
		p.Link.Target[i] = e.Target
		p.Link.Value[i] = e.Value
		p.Link.Color[i] = e.Color.RGBA()
	}
	return p
}
