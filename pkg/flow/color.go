package flow

import (
	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
)

// LinkAlpha is the opacity applied to edge colors.
const LinkAlpha = 0.4

// Classify places item relative to the A and B sets. It is total: an item
// in neither set is Neutral.
func Classify(item string, setA, setB ItemSet) common.Membership {
	_, inA := setA[item]
	_, inB := setB[item]
	switch {
	case inA && inB:
		return common.MembershipShared
	case inA:
		return common.MembershipA
	case inB:
		return common.MembershipB
	default:
		return common.MembershipNeutral
	}
}

// ComparisonColor is the node color for a membership.
func ComparisonColor(m common.Membership) common.Color {
	switch m {
	case common.MembershipA:
		return common.ColorRed
	case common.MembershipB:
		return common.ColorBlue
	case common.MembershipShared:
		return common.ColorPurple
	default:
		return common.ColorGrey
	}
}

// ComparisonLinkColor is the translucent edge color for a membership.
// Neutral links are drawn in silver rather than grey.
func ComparisonLinkColor(m common.Membership) common.Color {
	if m == common.MembershipNeutral {
		return common.ColorSilver.WithAlpha(LinkAlpha)
	}
	return ComparisonColor(m).WithAlpha(LinkAlpha)
}

// levelPalette colors the single-prescription views by level.
var levelPalette = map[common.Level]common.Color{
	common.LevelPrescription: common.Hex("#37474F"),
	common.LevelHerb:         common.Hex("#2E7D32"),
	common.LevelIngredient:   common.Hex("#F9A825"),
	common.LevelTarget:       common.Hex("#00838F"),
	common.LevelAction:       common.Hex("#6A1B9A"),
}

// LevelColor is the fixed single-view color of a level.
func LevelColor(level common.Level) common.Color {
	if c, ok := levelPalette[level]; ok {
		return c
	}
	return common.ColorGrey
}
