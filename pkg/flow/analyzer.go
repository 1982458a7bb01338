package flow

import (
	"errors"
	"fmt"
	"slices"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/logger"
)

// Mode selects the single-prescription view.
type Mode int

const (
	// ModeDeep walks Prescription → Herb → Ingredient → Target → Action.
	ModeDeep Mode = iota
	// ModeCondensed walks Prescription → Herb → Action and balances each
	// herb's outflow across its actions.
	ModeCondensed
)

func (m Mode) String() string {
	if m == ModeCondensed {
		return "condensed"
	}
	return "deep"
}

// ParseMode accepts "deep" or "condensed". The empty string means deep.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "deep":
		return ModeDeep, nil
	case "condensed":
		return ModeCondensed, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// DefaultComparisonLevels are used when Comparison is called without levels.
var DefaultComparisonLevels = []common.Level{
	common.LevelHerb,
	common.LevelIngredient,
	common.LevelAction,
}

// Analyzer builds flow structures for a pair of prescriptions over one
// dataset. It only reads the dataset; every build works on its own
// intermediate state, so an Analyzer may be shared between goroutines.
//
// An Analyzer should be created using NewAnalyzer.
type Analyzer struct {
	dataset       *common.Dataset
	reference     Reference
	prescriptionA string
	prescriptionB string
}

// NewAnalyzerParams defines the inputs of an Analyzer.
//
// PrescriptionA and PrescriptionB select the compared prescriptions. Equal
// values are valid and mark every derived node as shared.
type NewAnalyzerParams struct {
	Dataset       *common.Dataset
	PrescriptionA string
	PrescriptionB string
}

// NewAnalyzer checks the dataset schema and returns an Analyzer.
//
// Example:
//
//	a, err := flow.NewAnalyzer(flow.NewAnalyzerParams{
//		Dataset:       dataset,
//		PrescriptionA: "Rx1",
//		PrescriptionB: "Rx2",
//	})
//	if err != nil {
//		return err
//	}
//	structure := a.Comparison()
//
// Returns an error wrapping common.ErrMissingColumn when an input table
// lacks a required column.
func NewAnalyzer(params NewAnalyzerParams) (*Analyzer, error) {
	if params.Dataset == nil {
		return nil, errors.New("dataset is nil")
	}
	if err := params.Dataset.Allocations.Require(
		common.ColPrescriptionName,
		common.ColHerbName,
		common.ColAmount,
	); err != nil {
		return nil, err
	}
	ref, err := NewReference(params.Dataset)
	if err != nil {
		return nil, err
	}

	return &Analyzer{
		dataset:       params.Dataset,
		reference:     ref,
		prescriptionA: params.PrescriptionA,
		prescriptionB: params.PrescriptionB,
	}, nil
}

// Facts returns the joined rows of both prescriptions.
func (a *Analyzer) Facts() []Fact {
	return Join(a.dataset.Allocations.Rows, a.reference, a.prescriptionA, a.prescriptionB)
}

// Comparison builds the two-prescription structure over the requested
// levels. The prescription and herb levels are always present, so every
// allocation flows out of its prescription exactly once; the remaining
// levels are put in hierarchy order and deduplicated.
func (a *Analyzer) Comparison(levels ...common.Level) common.Structure {
	facts := a.Facts()
	if len(facts) == 0 {
		return emptyStructure()
	}

	chain := normalizeLevels(levels)
	sets := memberships(facts, a.prescriptionA, a.prescriptionB, chain)

	b := newGraphBuilder()
	b.addPrescription(a.prescriptionA, common.MembershipA, ComparisonColor(common.MembershipA))
	b.addPrescription(a.prescriptionB, common.MembershipB, ComparisonColor(common.MembershipB))
	for _, level := range chain[1:] {
		b.addLevel(level, sets[level], ComparisonColor)
	}

	b.link(common.LevelPrescription, common.LevelHerb, AllocationPairs(facts), func(source string) (common.Membership, common.Color) {
		role := common.MembershipB
		if source == a.prescriptionA {
			role = common.MembershipA
		}
		return role, ComparisonLinkColor(role)
	})

	for i := 1; i+1 < len(chain); i++ {
		from, to := chain[i], chain[i+1]
		m := sets[from]
		b.link(from, to, GroupPairs(facts, from, to, ReduceSum), func(source string) (common.Membership, common.Color) {
			role := Classify(source, m.a, m.b)
			return role, ComparisonLinkColor(role)
		})
	}

	s := b.structure()
	logger.Debug("[Flow] Built comparison structure",
		"a", a.prescriptionA,
		"b", a.prescriptionB,
		"nodes", len(s.Nodes),
		"edges", len(s.Edges),
	)
	return s
}

// Single builds the view of one prescription. Every node is shared, since
// the prescription is compared with itself, and colors follow the level
// palette.
func (a *Analyzer) Single(prescription string, mode Mode) common.Structure {
	facts := Join(a.dataset.Allocations.Rows, a.reference, prescription)
	if len(facts) == 0 {
		return emptyStructure()
	}

	chain := []common.Level{
		common.LevelPrescription,
		common.LevelHerb,
		common.LevelIngredient,
		common.LevelTarget,
		common.LevelAction,
	}
	if mode == ModeCondensed {
		chain = []common.Level{common.LevelPrescription, common.LevelHerb, common.LevelAction}
	}
	sets := memberships(facts, prescription, prescription, chain)

	b := newGraphBuilder()
	b.addPrescription(prescription, common.MembershipShared, LevelColor(common.LevelPrescription))
	for _, level := range chain[1:] {
		color := LevelColor(level)
		b.addLevel(level, sets[level], func(common.Membership) common.Color { return color })
	}

	b.link(common.LevelPrescription, common.LevelHerb, AllocationPairs(facts), singleStyle(common.LevelPrescription))

	for i := 1; i+1 < len(chain); i++ {
		from, to := chain[i], chain[i+1]
		var pairs []Pair
		if mode == ModeCondensed && from == common.LevelHerb && to == common.LevelAction {
			pairs = EvenSplit(GroupPairs(facts, from, to, ReduceMax))
		} else {
			pairs = GroupPairs(facts, from, to, ReduceSum)
		}
		b.link(from, to, pairs, singleStyle(from))
	}

	s := b.structure()
	logger.Debug("[Flow] Built single structure",
		"prescription", prescription,
		"mode", mode,
		"nodes", len(s.Nodes),
		"edges", len(s.Edges),
	)
	return s
}

// CommonInsights intersects the target and action labels of both
// prescriptions. It does not depend on any built structure.
func (a *Analyzer) CommonInsights() common.Insights {
	facts := a.Facts()
	targets := ItemsFor(facts, a.prescriptionA, common.LevelTarget).
		Intersect(ItemsFor(facts, a.prescriptionB, common.LevelTarget))
	actions := ItemsFor(facts, a.prescriptionA, common.LevelAction).
		Intersect(ItemsFor(facts, a.prescriptionB, common.LevelAction))

	return common.Insights{
		CommonTargets: targets.Sorted(),
		CommonActions: actions.Sorted(),
	}
}

func emptyStructure() common.Structure {
	return common.Structure{Nodes: []common.Node{}, Edges: []common.Edge{}}
}

// normalizeLevels returns Prescription and Herb followed by the requested
// deeper levels in hierarchy order.
func normalizeLevels(levels []common.Level) []common.Level {
	if len(levels) == 0 {
		levels = DefaultComparisonLevels
	}
	chain := []common.Level{common.LevelPrescription, common.LevelHerb}
	for _, l := range common.Levels[2:] {
		if slices.Contains(levels, l) {
			chain = append(chain, l)
		}
	}
	return chain
}

func memberships(facts []Fact, a, b string, chain []common.Level) map[common.Level]membership {
	sets := make(map[common.Level]membership, len(chain))
	for _, level := range chain[1:] {
		sets[level] = membership{
			a: ItemsFor(facts, a, level),
			b: ItemsFor(facts, b, level),
		}
	}
	return sets
}

func singleStyle(from common.Level) func(string) (common.Membership, common.Color) {
	color := LevelColor(from).WithAlpha(LinkAlpha)
	return func(string) (common.Membership, common.Color) {
		return common.MembershipShared, color
	}
}
