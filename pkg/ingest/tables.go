package ingest

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/herbflow/backend/internal/util"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/loader/csv"
)

// ErrEmptyTable is returned when a required table has a header but no rows.
var ErrEmptyTable = errors.New("table has no rows")

// compoundAliases are header spellings accepted for Compound_Name.
var compoundAliases = []string{common.ColCompoundName, "Compound_Name (성분)"}

var (
	reAmountJunk  = regexp.MustCompile(`[^0-9.]`)
	reCompoundSep = regexp.MustCompile(`\s*,\s*`)
)

// CleanAmount strips everything except digits and dots and parses the rest.
// Values that still do not parse count as zero.
func CleanAmount(raw string) float64 {
	v, err := strconv.ParseFloat(reAmountJunk.ReplaceAllString(raw, ""), 64)
	if err != nil {
		return 0
	}
	return v
}

// SplitCompounds explodes a comma separated compound cell. Blank pieces are
// dropped; a cell without any compound yields a single nil entry so the herb
// row is kept.
func SplitCompounds(raw string) []*string {
	if util.IsBlank(raw) {
		return []*string{nil}
	}
	var out []*string
	for _, p := range reCompoundSep.Split(strings.TrimSpace(raw), -1) {
		if util.IsBlank(p) {
			continue
		}
		out = append(out, common.Ptr(strings.TrimSpace(p)))
	}
	if len(out) == 0 {
		return []*string{nil}
	}
	return out
}

// Nullable maps blank and "nan" cells to nil.
func Nullable(raw string) *string {
	if util.IsBlank(raw) {
		return nil
	}
	return common.Ptr(strings.TrimSpace(raw))
}

func requireColumns(table string, r csv.Records, columns ...string) error {
	for _, c := range columns {
		if r.Index(c) < 0 {
			return &common.MissingColumnError{Table: table, Column: c}
		}
	}
	return nil
}

// ParseAllocations maps Prescription_Input records. Only Prescription_Name is
// required here; the herb and amount columns are checked when a dataset is
// analysed. Rows without a prescription name are dropped.
func ParseAllocations(r csv.Records) (common.Table[common.Allocation], error) {
	t := common.Table[common.Allocation]{
		Name:    common.TablePrescriptions,
		Columns: r.Header,
		Rows:    make([]common.Allocation, 0, len(r.Rows)),
	}
	if err := requireColumns(t.Name, r, common.ColPrescriptionName); err != nil {
		return t, err
	}
	if len(r.Rows) == 0 {
		return t, fmt.Errorf("%s: %w", t.Name, ErrEmptyTable)
	}

	for _, row := range r.Rows {
		name := r.Cell(row, common.ColPrescriptionName)
		if util.IsBlank(name) {
			continue
		}
		herb := r.Cell(row, common.ColHerbName)
		if util.IsBlank(herb) {
			herb = ""
		}
		t.Rows = append(t.Rows, common.Allocation{
			Prescription: name,
			Herb:         herb,
			Amount:       CleanAmount(r.Cell(row, common.ColAmount)),
		})
	}
	return t, nil
}

// ParseHerbs maps Herb_Library records, one row per compound.
func ParseHerbs(r csv.Records) (common.Table[common.HerbRecord], error) {
	header := make([]string, len(r.Header))
	compoundCol := ""
	for i, h := range r.Header {
		header[i] = h
		for _, alias := range compoundAliases {
			if h == alias {
				header[i] = common.ColCompoundName
				if compoundCol == "" {
					compoundCol = h
				}
			}
		}
	}

	t := common.Table[common.HerbRecord]{
		Name:    common.TableHerbs,
		Columns: header,
		Rows:    make([]common.HerbRecord, 0, len(r.Rows)),
	}
	if err := requireColumns(t.Name, r, common.ColHerbName); err != nil {
		return t, err
	}
	if len(r.Rows) == 0 {
		return t, fmt.Errorf("%s: %w", t.Name, ErrEmptyTable)
	}

	for _, row := range r.Rows {
		herb := r.Cell(row, common.ColHerbName)
		if util.IsBlank(herb) {
			continue
		}
		compounds := []*string{nil}
		if compoundCol != "" {
			compounds = SplitCompounds(r.Cell(row, compoundCol))
		}
		target := Nullable(r.Cell(row, common.ColTargetProtein))
		action := Nullable(r.Cell(row, common.ColCoreAction))
		pathway := Nullable(r.Cell(row, common.ColPathway))
		for _, c := range compounds {
			t.Rows = append(t.Rows, common.HerbRecord{
				Herb:     herb,
				Compound: c,
				Target:   target,
				Action:   action,
				Pathway:  pathway,
			})
		}
	}
	return t, nil
}

// ParsePathology maps Pathology_Map records. Rows without a target protein
// cannot be joined and are dropped.
func ParsePathology(r csv.Records) (*common.Table[common.PathologyRecord], error) {
	t := &common.Table[common.PathologyRecord]{
		Name:    common.TablePathology,
		Columns: r.Header,
		Rows:    make([]common.PathologyRecord, 0, len(r.Rows)),
	}
	if err := requireColumns(t.Name, r, common.ColTargetProtein); err != nil {
		return nil, err
	}

	for _, row := range r.Rows {
		target := r.Cell(row, common.ColTargetProtein)
		if util.IsBlank(target) {
			continue
		}
		t.Rows = append(t.Rows, common.PathologyRecord{
			Target:     target,
			LoopNode:   Nullable(r.Cell(row, common.ColLoopNode)),
			ActionType: Nullable(r.Cell(row, common.ColActionType)),
			Action:     Nullable(r.Cell(row, common.ColAction)),
		})
	}
	return t, nil
}

// ScriptColumns names the columns of a headerless script table of the given
// width: the three known columns followed by extra_0, extra_1, ...
func ScriptColumns(width int) []string {
	cols := []string{common.ColPrescriptionName, common.ColSymptomStatus, common.ColExplanation}
	if width <= len(cols) {
		return cols
	}
	for i := 0; i < width-3; i++ {
		cols = append(cols, fmt.Sprintf("extra_%d", i))
	}
	return cols
}

// ParseScripts maps the headerless Prescription_script records.
func ParseScripts(r csv.Records) common.Table[common.ScriptRecord] {
	width := 0
	if len(r.Rows) > 0 {
		width = len(r.Rows[0])
	}
	t := common.Table[common.ScriptRecord]{
		Name:    common.TableScripts,
		Columns: ScriptColumns(width),
		Rows:    make([]common.ScriptRecord, 0, len(r.Rows)),
	}
	cell := func(row []string, i int) string {
		if i < len(row) && !util.IsBlank(row[i]) {
			return row[i]
		}
		return ""
	}
	for _, row := range r.Rows {
		name := cell(row, 0)
		if name == "" {
			continue
		}
		t.Rows = append(t.Rows, common.ScriptRecord{
			Prescription: name,
			Symptom:      cell(row, 1),
			Explanation:  cell(row, 2),
		})
	}
	return t
}
