package common

import (
	"fmt"
	"strconv"
)

// Level is a tier of the flow hierarchy.
type Level int

const (
	LevelPrescription Level = iota
	LevelHerb
	LevelIngredient
	LevelTarget
	LevelAction
)

// Levels lists all levels in hierarchy order.
var Levels = []Level{LevelPrescription, LevelHerb, LevelIngredient, LevelTarget, LevelAction}

func (l Level) String() string {
	switch l {
	case LevelPrescription:
		return "Prescription"
	case LevelHerb:
		return "Herb"
	case LevelIngredient:
		return "Ingredient"
	case LevelTarget:
		return "Target"
	case LevelAction:
		return "Action"
	default:
		return "Level(" + strconv.Itoa(int(l)) + ")"
	}
}

// MarshalText encodes the level by name.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText accepts any spelling ParseLevel does.
func (l *Level) UnmarshalText(text []byte) error {
	v, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ParseLevel accepts the level name in any of its common spellings.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "prescription", "Prescription":
		return LevelPrescription, nil
	case "herb", "Herb":
		return LevelHerb, nil
	case "ingredient", "Ingredient", "compound", "Compound":
		return LevelIngredient, nil
	case "target", "Target":
		return LevelTarget, nil
	case "action", "Action", "pathway", "Pathway", "loop", "Loop":
		return LevelAction, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

// Membership tells which prescriptions a node or edge belongs to.
type Membership int

const (
	MembershipNeutral Membership = iota
	MembershipA
	MembershipB
	MembershipShared
)

func (m Membership) String() string {
	switch m {
	case MembershipA:
		return "A"
	case MembershipB:
		return "B"
	case MembershipShared:
		return "Shared"
	default:
		return "Neutral"
	}
}

// MarshalText encodes the membership by name.
func (m Membership) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Membership) UnmarshalText(text []byte) error {
	switch string(text) {
	case "A":
		*m = MembershipA
	case "B":
		*m = MembershipB
	case "Shared":
		*m = MembershipShared
	case "Neutral":
		*m = MembershipNeutral
	default:
		return fmt.Errorf("unknown membership %q", text)
	}
	return nil
}

// Node is a vertex of the flow graph. Below the prescription level a node
// is identified by (Level, Label).
type Node struct {
	Label string     `json:"label"`
	Level Level      `json:"level"`
	Role  Membership `json:"role"`
	Color Color      `json:"color"`
}

// Edge is a flow between two nodes referenced by index into Structure.Nodes.
type Edge struct {
	Source int        `json:"source"`
	Target int        `json:"target"`
	Value  float64    `json:"value"`
	Role   Membership `json:"role"`
	Color  Color      `json:"color"`
}

// Structure is the result of one build. It is never mutated after return.
type Structure struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Insights holds the labels two prescriptions have in common.
type Insights struct {
	CommonTargets []string `json:"common_targets"`
	CommonActions []string `json:"common_actions"`
}
