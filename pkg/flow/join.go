package flow

import (
	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
)

// Fact is one denormalised row: an allocation joined to one mechanism
// branch of its herb. Row is the index of the allocation it came from, so
// fan-out copies of the same allocation can be told apart from real ones.
type Fact struct {
	Row          int
	Prescription string
	Herb         string
	Amount       float64

	Compound *string
	Target   *string
	Action   *string
	Pathway  *string
}

// Value projects the fact onto a level. The second result is false when the
// field is null for this row.
func (f Fact) Value(level common.Level) (string, bool) {
	var v *string
	switch level {
	case common.LevelPrescription:
		return f.Prescription, f.Prescription != ""
	case common.LevelHerb:
		return f.Herb, f.Herb != ""
	case common.LevelIngredient:
		v = f.Compound
	case common.LevelTarget:
		v = f.Target
	case common.LevelAction:
		v = f.Action
	}
	if v == nil || *v == "" {
		return "", false
	}
	return *v, true
}

// Join left-joins allocation rows to the reference. A herb with several
// branches yields one fact per branch, each repeating the allocation amount.
// A herb without a reference entry yields a single fact with null mechanism
// fields. When prescriptions are given, only their rows are joined.
func Join(allocations []common.Allocation, ref Reference, prescriptions ...string) []Fact {
	keep := make(map[string]struct{}, len(prescriptions))
	for _, p := range prescriptions {
		keep[p] = struct{}{}
	}

	facts := make([]Fact, 0, len(allocations))
	for i, a := range allocations {
		if len(keep) > 0 {
			if _, ok := keep[a.Prescription]; !ok {
				continue
			}
		}

		base := Fact{
			Row:          i,
			Prescription: a.Prescription,
			Herb:         a.Herb,
			Amount:       a.Amount,
		}

		var branches []Branch
		if ref != nil {
			branches = ref.Branches(a.Herb)
		}
		if len(branches) == 0 {
			facts = append(facts, base)
			continue
		}
		for _, b := range branches {
			f := base
			f.Compound = b.Compound
			f.Target = b.Target
			f.Action = b.Action
			f.Pathway = b.Pathway
			facts = append(facts, f)
		}
	}
	return facts
}
