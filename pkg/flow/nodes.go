package flow

import (
	"slices"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
)

// ItemSet is an unordered set of labels.
type ItemSet map[string]struct{}

// Sorted returns the members in lexicographic order.
func (s ItemSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Union returns a new set holding the members of both.
func (s ItemSet) Union(o ItemSet) ItemSet {
	out := make(ItemSet, len(s)+len(o))
	for k := range s {
		out[k] = struct{}{}
	}
	for k := range o {
		out[k] = struct{}{}
	}
	return out
}

// Intersect returns a new set holding the members present in both.
func (s ItemSet) Intersect(o ItemSet) ItemSet {
	out := make(ItemSet)
	for k := range s {
		if _, ok := o[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

// ItemsFor returns the distinct non-null values of level among the facts of
// one prescription.
func ItemsFor(facts []Fact, prescription string, level common.Level) ItemSet {
	out := make(ItemSet)
	for _, f := range facts {
		if f.Prescription != prescription {
			continue
		}
		if v, ok := f.Value(level); ok {
			out[v] = struct{}{}
		}
	}
	return out
}

// membership holds the A-side and B-side sets of one level.
type membership struct {
	a ItemSet
	b ItemSet
}

type nodeKey struct {
	level common.Level
	label string
}

// graphBuilder owns the node list and the (level, label) → index map of one
// build. Indices are handed out once and never recomputed.
type graphBuilder struct {
	nodes []common.Node
	edges []common.Edge
	index map[nodeKey]int
}

func newGraphBuilder() *graphBuilder {
	return &graphBuilder{
		nodes: make([]common.Node, 0),
		edges: make([]common.Edge, 0),
		index: make(map[nodeKey]int),
	}
}

// addPrescription appends a prescription slot. When both slots carry the
// same label, edges resolve to the first one.
func (b *graphBuilder) addPrescription(label string, role common.Membership, color common.Color) {
	key := nodeKey{level: common.LevelPrescription, label: label}
	if _, ok := b.index[key]; !ok {
		b.index[key] = len(b.nodes)
	}
	b.nodes = append(b.nodes, common.Node{
		Label: label,
		Level: common.LevelPrescription,
		Role:  role,
		Color: color,
	})
}

// addLevel appends the sorted union of both sides of one level.
func (b *graphBuilder) addLevel(level common.Level, m membership, color func(common.Membership) common.Color) {
	for _, item := range m.a.Union(m.b).Sorted() {
		role := Classify(item, m.a, m.b)
		b.index[nodeKey{level: level, label: item}] = len(b.nodes)
		b.nodes = append(b.nodes, common.Node{
			Label: item,
			Level: level,
			Role:  role,
			Color: color(role),
		})
	}
}

func (b *graphBuilder) lookup(level common.Level, label string) (int, bool) {
	i, ok := b.index[nodeKey{level: level, label: label}]
	return i, ok
}

func (b *graphBuilder) structure() common.Structure {
	return common.Structure{Nodes: b.nodes, Edges: b.edges}
}
