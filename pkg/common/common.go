package common

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Column names as they appear in the source spreadsheets.
const (
	ColPrescriptionName = "Prescription_Name"
	ColHerbName         = "Herb_Name"
	ColAmount           = "Amount"
	ColCompoundName     = "Compound_Name"
	ColTargetProtein    = "Target_Protein"
	ColCoreAction       = "Core_Action"
	ColPathway          = "Pathway"
	ColLoopNode         = "Loop_Node"
	ColActionType       = "Action_Type"
	ColAction           = "Action"
	ColSymptomStatus    = "Symptom_Status"
	ColExplanation      = "Explanation"
)

// Table names used in errors and logs.
const (
	TablePrescriptions = "Prescription_Input"
	TableHerbs         = "Herb_Library"
	TablePathology     = "Pathology_Map"
	TableScripts       = "Prescription_script"
)

// ErrMissingColumn is returned when a table lacks a column the caller needs.
var ErrMissingColumn = errors.New("missing column")

// MissingColumnError names the table and column that were expected.
type MissingColumnError struct {
	Table  string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: table %q has no column %q", ErrMissingColumn, e.Table, e.Column)
}

func (e *MissingColumnError) Unwrap() error {
	return ErrMissingColumn
}

// Table is a typed table together with the header it was read from.
// Columns is what the ingestion boundary saw; Rows carry the typed values.
type Table[T any] struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    []T      `json:"rows"`
}

// HasColumn reports whether the table header contains column.
func (t Table[T]) HasColumn(column string) bool {
	return slices.Contains(t.Columns, column)
}

// Require returns a *MissingColumnError for the first absent column.
func (t Table[T]) Require(columns ...string) error {
	for _, c := range columns {
		if !t.HasColumn(c) {
			return &MissingColumnError{Table: t.Name, Column: c}
		}
	}
	return nil
}

// Allocation is one herb entry of a prescription.
type Allocation struct {
	Prescription string  `json:"prescription"`
	Herb         string  `json:"herb"`
	Amount       float64 `json:"amount"`
}

// HerbRecord is one mechanism branch of a herb. In the integrated library
// Action carries Core_Action; in the split layout Action is empty and the
// pathology map provides the label through Target.
type HerbRecord struct {
	Herb     string  `json:"herb"`
	Compound *string `json:"compound,omitempty"`
	Target   *string `json:"target,omitempty"`
	Action   *string `json:"action,omitempty"`
	Pathway  *string `json:"pathway,omitempty"`
}

// PathologyRecord maps a target protein to a feedback loop.
type PathologyRecord struct {
	Target     string  `json:"target"`
	LoopNode   *string `json:"loop_node,omitempty"`
	ActionType *string `json:"action_type,omitempty"`
	Action     *string `json:"action,omitempty"`
}

// ScriptRecord is a clinical note attached to a prescription.
type ScriptRecord struct {
	Prescription string `json:"prescription"`
	Symptom      string `json:"symptom"`
	Explanation  string `json:"explanation"`
}

// Dataset is one consistent snapshot of all input tables.
//
// Pathology is nil when the herb library is the integrated variant that
// already carries the action column.
type Dataset struct {
	Version  string    `json:"version"`
	LoadID   string    `json:"load_id"`
	LoadedAt time.Time `json:"loaded_at"`

	Allocations Table[Allocation]       `json:"allocations"`
	Herbs       Table[HerbRecord]       `json:"herbs"`
	Pathology   *Table[PathologyRecord] `json:"pathology,omitempty"`
	Scripts     Table[ScriptRecord]     `json:"scripts"`
}

// Prescriptions returns the sorted distinct prescription names.
func (d *Dataset) Prescriptions() []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, a := range d.Allocations.Rows {
		if a.Prescription == "" {
			continue
		}
		if _, ok := seen[a.Prescription]; ok {
			continue
		}
		seen[a.Prescription] = struct{}{}
		names = append(names, a.Prescription)
	}
	slices.Sort(names)
	return names
}

// ScriptsFor returns the clinical scripts of one prescription in table order.
func (d *Dataset) ScriptsFor(prescription string) []ScriptRecord {
	out := make([]ScriptRecord, 0)
	for _, s := range d.Scripts.Rows {
		if s.Prescription == prescription {
			out = append(out, s)
		}
	}
	return out
}

// Topology reports which join layout the dataset uses.
func (d *Dataset) Topology() string {
	if d.Pathology != nil {
		return "split"
	}
	return "integrated"
}

// Ptr returns a pointer to s, or nil for the empty string.
func Ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
