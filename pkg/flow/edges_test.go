package flow

import (
	"math"
	"testing"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fact(row int, prescription, herb string, amount float64, compound, action string) Fact {
	return Fact{
		Row:          row,
		Prescription: prescription,
		Herb:         herb,
		Amount:       amount,
		Compound:     common.Ptr(compound),
		Action:       common.Ptr(action),
	}
}

func TestGroupPairs(t *testing.T) {
	facts := []Fact{
		fact(0, "Rx1", "H1", 10, "C1", "A1"),
		fact(0, "Rx1", "H1", 10, "C1", "A2"),
		fact(1, "Rx2", "H1", 3, "C1", "A1"),
		fact(2, "Rx2", "H2", 7, "", "A1"),
	}

	tests := []struct {
		name   string
		from   common.Level
		to     common.Level
		reduce Reduction
		want   []Pair
	}{
		{
			name:   "sum across prescriptions and fan-out",
			from:   common.LevelHerb,
			to:     common.LevelIngredient,
			reduce: ReduceSum,
			want:   []Pair{{Source: "H1", Target: "C1", Value: 23}},
		},
		{
			name:   "max per pair",
			from:   common.LevelHerb,
			to:     common.LevelAction,
			reduce: ReduceMax,
			want: []Pair{
				{Source: "H1", Target: "A1", Value: 10},
				{Source: "H1", Target: "A2", Value: 10},
				{Source: "H2", Target: "A1", Value: 7},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GroupPairs(facts, tt.from, tt.to, tt.reduce)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllocationPairs_CountsEachRowOnce(t *testing.T) {
	facts := []Fact{
		fact(0, "Rx1", "H1", 10, "C1", "A1"),
		fact(0, "Rx1", "H1", 10, "C2", "A1"),
		fact(0, "Rx1", "H1", 10, "C3", "A1"),
		fact(1, "Rx1", "H1", 2, "C1", "A1"),
		fact(2, "Rx1", "H2", 5, "", ""),
	}
	got := AllocationPairs(facts)
	assert.Equal(t, []Pair{
		{Source: "Rx1", Target: "H1", Value: 12},
		{Source: "Rx1", Target: "H2", Value: 5},
	}, got)
}

func TestEvenSplit(t *testing.T) {
	pairs := []Pair{
		{Source: "H1", Target: "A", Value: 4},
		{Source: "H1", Target: "B", Value: 10},
		{Source: "H1", Target: "C", Value: 1},
		{Source: "H2", Target: "A", Value: 3},
	}
	got := EvenSplit(pairs)
	require.Len(t, got, 4)

	sums := make(map[string]float64)
	for _, p := range got {
		sums[p.Source] += p.Value
	}
	assert.InDelta(t, 10.0/3, got[0].Value, 1e-9)
	assert.InDelta(t, 10.0/3, got[1].Value, 1e-9)
	assert.InDelta(t, 10.0/3, got[2].Value, 1e-9)
	assert.InDelta(t, 10.0, sums["H1"], 1e-9)
	assert.InDelta(t, 3.0, sums["H2"], 1e-9)
}

func TestLink_DropsInvalidEdges(t *testing.T) {
	b := newGraphBuilder()
	b.addLevel(common.LevelHerb, membership{a: ItemSet{"H1": {}}, b: ItemSet{}}, ComparisonColor)
	b.addLevel(common.LevelAction, membership{a: ItemSet{"A1": {}}, b: ItemSet{}}, ComparisonColor)

	b.link(common.LevelHerb, common.LevelAction, []Pair{
		{Source: "H1", Target: "A1", Value: 1},
		{Source: "H1", Target: "A1", Value: 0},
		{Source: "H1", Target: "A1", Value: -3},
		{Source: "H1", Target: "A1", Value: math.NaN()},
		{Source: "Ghost", Target: "A1", Value: 2},
		{Source: "H1", Target: "Ghost", Value: 2},
	}, func(string) (common.Membership, common.Color) {
		return common.MembershipA, ComparisonLinkColor(common.MembershipA)
	})

	s := b.structure()
	require.Len(t, s.Edges, 1)
	assert.Equal(t, common.Edge{
		Source: 0,
		Target: 1,
		Value:  1,
		Role:   common.MembershipA,
		Color:  common.ColorRed.WithAlpha(LinkAlpha),
	}, s.Edges[0])
}
