package flow

// MechanismRow is one distinct mechanism path of a herb.
type MechanismRow struct {
	Compound *string `json:"compound"`
	Target   *string `json:"target"`
	Pathway  *string `json:"pathway"`
	Action   *string `json:"action"`
}

// HerbMechanisms lists the distinct mechanism rows of one herb.
type HerbMechanisms struct {
	Herb   string         `json:"herb"`
	Amount float64        `json:"amount"`
	Rows   []MechanismRow `json:"rows"`
}

// Mechanisms returns, per herb of the prescription in allocation order, the
// distinct (compound, target, pathway, action) rows reached through the join.
func (a *Analyzer) Mechanisms(prescription string) []HerbMechanisms {
	facts := Join(a.dataset.Allocations.Rows, a.reference, prescription)

	type rowKey struct{ compound, target, pathway, action string }
	deref := func(s *string) string {
		if s == nil {
			return "\x00"
		}
		return *s
	}

	out := make([]HerbMechanisms, 0)
	position := make(map[string]int)
	seen := make(map[string]map[rowKey]struct{})
	counted := make(map[int]struct{})

	for _, f := range facts {
		i, ok := position[f.Herb]
		if !ok {
			i = len(out)
			position[f.Herb] = i
			out = append(out, HerbMechanisms{Herb: f.Herb, Rows: make([]MechanismRow, 0)})
			seen[f.Herb] = make(map[rowKey]struct{})
		}
		if _, ok := counted[f.Row]; !ok {
			counted[f.Row] = struct{}{}
			out[i].Amount += f.Amount
		}

		if f.Compound == nil && f.Target == nil && f.Pathway == nil && f.Action == nil {
			continue
		}
		k := rowKey{deref(f.Compound), deref(f.Target), deref(f.Pathway), deref(f.Action)}
		if _, dup := seen[f.Herb][k]; dup {
			continue
		}
		seen[f.Herb][k] = struct{}{}
		out[i].Rows = append(out[i].Rows, MechanismRow{
			Compound: f.Compound,
			Target:   f.Target,
			Pathway:  f.Pathway,
			Action:   f.Action,
		})
	}
	return out
}
