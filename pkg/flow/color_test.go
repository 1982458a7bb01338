package flow

import (
	"encoding/json"
	"testing"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	setA := ItemSet{"x": {}, "both": {}}
	setB := ItemSet{"y": {}, "both": {}}

	tests := []struct {
		item string
		want common.Membership
	}{
		{"both", common.MembershipShared},
		{"x", common.MembershipA},
		{"y", common.MembershipB},
		{"none", common.MembershipNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.item, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.item, setA, setB))
		})
	}

	assert.Equal(t, common.MembershipNeutral, Classify("x", nil, nil))
}

func TestComparisonLinkColor(t *testing.T) {
	assert.Equal(t, "rgba(255,0,0,0.4)", ComparisonLinkColor(common.MembershipA).RGBA())
	assert.Equal(t, "rgba(0,0,255,0.4)", ComparisonLinkColor(common.MembershipB).RGBA())
	assert.Equal(t, "rgba(128,0,128,0.4)", ComparisonLinkColor(common.MembershipShared).RGBA())
	assert.Equal(t, "rgba(192,192,192,0.4)", ComparisonLinkColor(common.MembershipNeutral).RGBA())
	assert.Equal(t, "rgba(128,128,128,1)", ComparisonColor(common.MembershipNeutral).RGBA())
}

func TestLevelColor(t *testing.T) {
	assert.Equal(t, "#2e7d32", LevelColor(common.LevelHerb).Hex())
	assert.Equal(t, common.ColorGrey, LevelColor(common.Level(42)))
}

func TestSankey(t *testing.T) {
	a := newTestAnalyzer(t, sampleDataset(), "Rx1", "Rx2")
	s := a.Comparison()
	p := Sankey("Rx1 vs Rx2 Comparison", s)

	require.Len(t, p.Node.Label, len(s.Nodes))
	require.Len(t, p.Link.Source, len(s.Edges))
	assert.Equal(t, "Rx1", p.Node.Label[0])
	assert.Equal(t, "rgba(255,0,0,1)", p.Node.Color[0])
	assert.Equal(t, "Prescription", p.Node.Level[0])
	for i, e := range s.Edges {
		assert.Equal(t, e.Source, p.Link.Source[i])
		assert.Equal(t, e.Value, p.Link.Value[i])
	}

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"title":"Rx1 vs Rx2 Comparison"`)
}
