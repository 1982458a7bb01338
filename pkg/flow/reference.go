package flow

import (
	"errors"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
)

// Branch is one mechanism path a herb fans out into.
type Branch struct {
	Compound *string
	Target   *string
	Action   *string
	Pathway  *string
}

// Reference resolves a herb name to its mechanism branches. A herb without
// a reference entry returns no branches.
type Reference interface {
	Branches(herb string) []Branch
}

// IntegratedReference serves a herb library that already carries the
// compound, target and action columns.
type IntegratedReference struct {
	byHerb map[string][]Branch
}

// NewIntegratedReference indexes herb records by herb name, keeping table order.
func NewIntegratedReference(herbs []common.HerbRecord) *IntegratedReference {
	r := &IntegratedReference{byHerb: make(map[string][]Branch)}
	for _, h := range herbs {
		if h.Herb == "" {
			continue
		}
		r.byHerb[h.Herb] = append(r.byHerb[h.Herb], Branch{
			Compound: h.Compound,
			Target:   h.Target,
			Action:   h.Action,
			Pathway:  h.Pathway,
		})
	}
	return r
}

func (r *IntegratedReference) Branches(herb string) []Branch {
	return r.byHerb[herb]
}

// SplitReference joins herb records to a pathology map on the target
// protein. The loop node of the pathology row becomes the action label.
type SplitReference struct {
	byHerb map[string][]Branch
}

// NewSplitReference performs the herb → pathology left join once up front.
func NewSplitReference(herbs []common.HerbRecord, pathology []common.PathologyRecord) *SplitReference {
	byTarget := make(map[string][]common.PathologyRecord)
	for _, p := range pathology {
		if p.Target == "" {
			continue
		}
		byTarget[p.Target] = append(byTarget[p.Target], p)
	}

	r := &SplitReference{byHerb: make(map[string][]Branch)}
	for _, h := range herbs {
		if h.Herb == "" {
			continue
		}
		var matches []common.PathologyRecord
		if h.Target != nil {
			matches = byTarget[*h.Target]
		}
		if len(matches) == 0 {
			r.byHerb[h.Herb] = append(r.byHerb[h.Herb], Branch{
				Compound: h.Compound,
				Target:   h.Target,
				Pathway:  h.Pathway,
			})
			continue
		}
		for _, p := range matches {
			r.byHerb[h.Herb] = append(r.byHerb[h.Herb], Branch{
				Compound: h.Compound,
				Target:   h.Target,
				Action:   p.LoopNode,
				Pathway:  h.Pathway,
			})
		}
	}
	return r
}

func (r *SplitReference) Branches(herb string) []Branch {
	return r.byHerb[herb]
}

// NewReference picks the join topology of the dataset and checks that the
// reference tables carry the columns it needs.
func NewReference(d *common.Dataset) (Reference, error) {
	if d == nil {
		return nil, errors.New("dataset is nil")
	}
	if d.Pathology != nil {
		if err := d.Herbs.Require(common.ColHerbName, common.ColCompoundName, common.ColTargetProtein); err != nil {
			return nil, err
		}
		if err := d.Pathology.Require(common.ColTargetProtein, common.ColLoopNode); err != nil {
			return nil, err
		}
		return NewSplitReference(d.Herbs.Rows, d.Pathology.Rows), nil
	}

	if err := d.Herbs.Require(
		common.ColHerbName,
		common.ColCompoundName,
		common.ColTargetProtein,
		common.ColCoreAction,
	); err != nil {
		return nil, err
	}
	return NewIntegratedReference(d.Herbs.Rows), nil
}
