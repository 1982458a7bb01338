package flow

import (
	"cmp"
	"math"
	"slices"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/logger"
)

// Reduction folds the amounts of one (source, target) group into a value.
type Reduction int

const (
	ReduceSum Reduction = iota
	ReduceMax
)

// Pair is a grouped (source, target) value at one level transition.
type Pair struct {
	Source string
	Target string
	Value  float64
}

func comparePairs(a, b Pair) int {
	if c := cmp.Compare(a.Source, b.Source); c != 0 {
		return c
	}
	return cmp.Compare(a.Target, b.Target)
}

// GroupPairs groups facts by their (from, to) values and reduces the amount.
// Rows with a null endpoint are left out before grouping. Pairs come back
// sorted by source, then target.
func GroupPairs(facts []Fact, from, to common.Level, reduce Reduction) []Pair {
	type key struct{ s, t string }
	values := make(map[key]float64)
	for _, f := range facts {
		s, ok := f.Value(from)
		if !ok {
			continue
		}
		t, ok := f.Value(to)
		if !ok {
			continue
		}
		k := key{s, t}
		cur, seen := values[k]
		switch {
		case !seen:
			values[k] = f.Amount
		case reduce == ReduceMax:
			values[k] = math.Max(cur, f.Amount)
		default:
			values[k] = cur + f.Amount
		}
	}

	pairs := make([]Pair, 0, len(values))
	for k, v := range values {
		pairs = append(pairs, Pair{Source: k.s, Target: k.t, Value: v})
	}
	slices.SortFunc(pairs, comparePairs)
	return pairs
}

// AllocationPairs sums amounts per (prescription, herb) over distinct
// allocation rows. Fan-out copies of a row are counted once.
func AllocationPairs(facts []Fact) []Pair {
	seen := make(map[int]struct{})
	unique := make([]Fact, 0, len(facts))
	for _, f := range facts {
		if _, ok := seen[f.Row]; ok {
			continue
		}
		seen[f.Row] = struct{}{}
		unique = append(unique, f)
	}
	return GroupPairs(unique, common.LevelPrescription, common.LevelHerb, ReduceSum)
}

// EvenSplit spreads each source's largest value evenly over its distinct
// targets, so a source with maximum m and k targets emits k values of m/k.
func EvenSplit(pairs []Pair) []Pair {
	maxBySource := make(map[string]float64)
	fanOut := make(map[string]int)
	for _, p := range pairs {
		if cur, ok := maxBySource[p.Source]; !ok || p.Value > cur {
			maxBySource[p.Source] = p.Value
		}
		fanOut[p.Source]++
	}

	out := make([]Pair, len(pairs))
	for i, p := range pairs {
		out[i] = Pair{
			Source: p.Source,
			Target: p.Target,
			Value:  maxBySource[p.Source] / float64(fanOut[p.Source]),
		}
	}
	return out
}

// link appends one edge per pair. Non-positive values are dropped and pairs
// whose endpoints are not in the node index are skipped.
func (b *graphBuilder) link(
	from, to common.Level,
	pairs []Pair,
	style func(source string) (common.Membership, common.Color),
) {
	for _, p := range pairs {
		if !(p.Value > 0) || math.IsInf(p.Value, 0) {
			continue
		}
		src, ok := b.lookup(from, p.Source)
		if !ok {
			logger.Debug("[Flow] Skipping edge with unknown source", "level", from, "label", p.Source)
			continue
		}
		tgt, ok := b.lookup(to, p.Target)
		if !ok {
			logger.Debug("[Flow] Skipping edge with unknown target", "level", to, "label", p.Target)
			continue
		}
		role, color := style(p.Source)
		b.edges = append(b.edges, common.Edge{
			Source: src,
			Target: tgt,
			Value:  p.Value,
			Role:   role,
			Color:  color,
		})
	}
}
