package stats

import (
	"fmt"

	"zqa-pipeline/internal/model"
)

// Grid is a 2-D array of one statistic, rows indexed by spectral type and
// columns by target class. Row and column labels are fixed by the caller
// and shared by every grid of a run so cells line up across template sets.
type Grid struct {
	Rows  []string    `json:"rows"`
	Cols  []string    `json:"cols"`
	Cells [][]float64 `json:"cells"`
}

func newGrid(rows, cols []string) Grid {
	cells := make([][]float64, len(rows))
	for i := range cells {
		cells[i] = make([]float64, len(cols))
	}
	return Grid{Rows: rows, Cols: cols, Cells: cells}
}

// GridSet bundles the four statistic grids for one template set, plus the
// TARGETIDs of catastrophic outliers per cell for visual inspection.
type GridSet struct {
	TemplateSet  string             `json:"template_set,omitempty"`
	Count        Grid               `json:"count"`
	Purity       Grid               `json:"purity"`
	Completeness Grid               `json:"completeness"`
	OutlierFrac  Grid               `json:"outlier_frac"`
	Outliers     map[string][]int64 `json:"outliers,omitempty"` // key "SPECTYPE/CLASS"
}

// CellKey names one (spectral type, target class) cell.
func CellKey(specType, class string) string {
	return specType + "/" + class
}

// BuildGridSet computes the QA grids for one template set's objects.
//
// The synthetic row ANY and column ALL select every object on their axis;
// other rows match SpecType exactly and other columns match the targeting
// bitmask. Unknown class labels are an error rather than an empty column.
func BuildGridSet(objs []model.ObjectRecord, specTypes, targetClasses []string, opts Options) (*GridSet, error) {
	if len(specTypes) == 0 {
		specTypes = model.DefaultSpecTypes
	}
	if len(targetClasses) == 0 {
		targetClasses = model.DefaultTargetClasses
	}

	gs := &GridSet{
		Count:        newGrid(specTypes, targetClasses),
		Purity:       newGrid(specTypes, targetClasses),
		Completeness: newGrid(specTypes, targetClasses),
		OutlierFrac:  newGrid(specTypes, targetClasses),
		Outliers:     make(map[string][]int64),
	}

	cellOpts := opts
	cellOpts.WithIndices = true

	for i, st := range specTypes {
		for j, class := range targetClasses {
			mask, ok := model.ClassMask(class)
			if !ok {
				return nil, fmt.Errorf("unknown target class %q", class)
			}

			var subset []model.ObjectRecord
			for _, obj := range objs {
				if st != model.SpecTypeAny && obj.SpecType != st {
					continue
				}
				if class != model.ClassAll && obj.TargetClass&mask == 0 {
					continue
				}
				subset = append(subset, obj)
			}

			zm := make([]float64, len(subset))
			zt := make([]float64, len(subset))
			warn := make([]int64, len(subset))
			for k, obj := range subset {
				zm[k] = obj.Z
				zt[k] = obj.ZTrue
				warn[k] = obj.ZWarn
			}

			s, err := GetStats(zm, zt, warn, cellOpts)
			if err != nil {
				return nil, fmt.Errorf("cell %s: %w", CellKey(st, class), err)
			}

			gs.Count.Cells[i][j] = float64(s.N)
			gs.Purity.Cells[i][j] = s.Purity
			gs.Completeness.Cells[i][j] = s.Completeness
			gs.OutlierFrac.Cells[i][j] = s.OutlierFrac

			for _, idx := range s.OutlierIdx {
				key := CellKey(st, class)
				gs.Outliers[key] = append(gs.Outliers[key], subset[idx].TargetID)
			}
		}
	}

	return gs, nil
}

// DeltaGridSet computes elementwise comparison grids between a current and
// a reference template set. Purity, completeness and count are current
// minus reference; the outlier fraction is reference minus current, so a
// positive delta always reads as an improvement.
func DeltaGridSet(current, reference *GridSet) (*GridSet, error) {
	count, err := deltaGrid(current.Count, reference.Count, false)
	if err != nil {
		return nil, err
	}
	purity, err := deltaGrid(current.Purity, reference.Purity, false)
	if err != nil {
		return nil, err
	}
	completeness, err := deltaGrid(current.Completeness, reference.Completeness, false)
	if err != nil {
		return nil, err
	}
	outlier, err := deltaGrid(current.OutlierFrac, reference.OutlierFrac, true)
	if err != nil {
		return nil, err
	}

	return &GridSet{
		TemplateSet:  current.TemplateSet + "-" + reference.TemplateSet,
		Count:        count,
		Purity:       purity,
		Completeness: completeness,
		OutlierFrac:  outlier,
	}, nil
}

// deltaGrid subtracts grids cellwise. flip reverses the subtraction
// direction (used for the outlier fraction).
func deltaGrid(current, reference Grid, flip bool) (Grid, error) {
	if len(current.Rows) != len(reference.Rows) || len(current.Cols) != len(reference.Cols) {
		return Grid{}, fmt.Errorf("grid shape mismatch: %dx%d vs %dx%d",
			len(current.Rows), len(current.Cols), len(reference.Rows), len(reference.Cols))
	}
	for i := range current.Rows {
		if current.Rows[i] != reference.Rows[i] {
			return Grid{}, fmt.Errorf("grid row mismatch at %d: %q vs %q", i, current.Rows[i], reference.Rows[i])
		}
	}
	for j := range current.Cols {
		if current.Cols[j] != reference.Cols[j] {
			return Grid{}, fmt.Errorf("grid column mismatch at %d: %q vs %q", j, current.Cols[j], reference.Cols[j])
		}
	}

	out := newGrid(current.Rows, current.Cols)
	for i := range out.Cells {
		for j := range out.Cells[i] {
			if flip {
				out.Cells[i][j] = reference.Cells[i][j] - current.Cells[i][j]
			} else {
				out.Cells[i][j] = current.Cells[i][j] - reference.Cells[i][j]
			}
		}
	}
	return out, nil
}
