package flow

import (
	"testing"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alloc(prescription, herb string, amount float64) common.Allocation {
	return common.Allocation{Prescription: prescription, Herb: herb, Amount: amount}
}

func herbRow(herb, compound, target, action string) common.HerbRecord {
	return common.HerbRecord{
		Herb:     herb,
		Compound: common.Ptr(compound),
		Target:   common.Ptr(target),
		Action:   common.Ptr(action),
	}
}

func integratedDataset(allocs []common.Allocation, herbs []common.HerbRecord) *common.Dataset {
	return &common.Dataset{
		Allocations: common.Table[common.Allocation]{
			Name:    common.TablePrescriptions,
			Columns: []string{common.ColPrescriptionName, common.ColHerbName, common.ColAmount},
			Rows:    allocs,
		},
		Herbs: common.Table[common.HerbRecord]{
			Name: common.TableHerbs,
			Columns: []string{
				common.ColHerbName,
				common.ColCompoundName,
				common.ColTargetProtein,
				common.ColCoreAction,
			},
			Rows: herbs,
		},
	}
}

// sampleDataset has two overlapping prescriptions:
//
//	Rx1: HerbX 10, HerbY 5
//	Rx2: HerbY 8, HerbW 4, HerbQ 2 (HerbQ has no library entry)
//	Rx3: HerbW 6
//	Rx4: HerbM 12
func sampleDataset() *common.Dataset {
	return integratedDataset(
		[]common.Allocation{
			alloc("Rx1", "HerbX", 10),
			alloc("Rx1", "HerbY", 5),
			alloc("Rx2", "HerbY", 8),
			alloc("Rx2", "HerbW", 4),
			alloc("Rx2", "HerbQ", 2),
			alloc("Rx3", "HerbW", 6),
			alloc("Rx4", "HerbM", 12),
		},
		[]common.HerbRecord{
			herbRow("HerbX", "C1", "T1", "Z"),
			herbRow("HerbX", "C3", "T2", "Y"),
			herbRow("HerbY", "C2", "T1", "Z"),
			herbRow("HerbW", "C4", "T3", ""),
			herbRow("HerbM", "C5", "T1", "Z"),
			herbRow("HerbM", "C6", "T4", "Z"),
			herbRow("HerbM", "C7", "T5", "Y"),
		},
	)
}

func newTestAnalyzer(t *testing.T, d *common.Dataset, a, b string) *Analyzer {
	t.Helper()
	analyzer, err := NewAnalyzer(NewAnalyzerParams{Dataset: d, PrescriptionA: a, PrescriptionB: b})
	require.NoError(t, err)
	return analyzer
}

// assertWellFormed checks the invariants every structure must satisfy.
func assertWellFormed(t *testing.T, s common.Structure) {
	t.Helper()

	type key struct {
		level common.Level
		label string
	}
	seen := make(map[key]bool)
	for _, n := range s.Nodes {
		if n.Level == common.LevelPrescription {
			continue
		}
		k := key{n.Level, n.Label}
		assert.False(t, seen[k], "duplicate node %s/%s", n.Level, n.Label)
		seen[k] = true
	}

	type pair struct{ s, t int }
	edges := make(map[pair]bool)
	for _, e := range s.Edges {
		assert.Greater(t, e.Value, 0.0)
		assert.GreaterOrEqual(t, e.Source, 0)
		assert.Less(t, e.Source, len(s.Nodes))
		assert.GreaterOrEqual(t, e.Target, 0)
		assert.Less(t, e.Target, len(s.Nodes))
		p := pair{e.Source, e.Target}
		assert.False(t, edges[p], "duplicate edge %d -> %d", e.Source, e.Target)
		edges[p] = true
	}
}

func nodeIndex(t *testing.T, s common.Structure, level common.Level, label string) int {
	t.Helper()
	for i, n := range s.Nodes {
		if n.Level == level && n.Label == label {
			return i
		}
	}
	t.Fatalf("node %s/%s not found", level, label)
	return -1
}

func edgeValue(s common.Structure, source, target int) (float64, bool) {
	for _, e := range s.Edges {
		if e.Source == source && e.Target == target {
			return e.Value, true
		}
	}
	return 0, false
}
