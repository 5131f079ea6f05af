package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zqa-pipeline/internal/model"
)

func testObjects() []model.ObjectRecord {
	return []model.ObjectRecord{
		// Good galaxy fit in the LRG class.
		{TargetID: 1, SpecType: "GALAXY", TargetClass: model.ClassLRG, Z: 1.0, ZTrue: 1.0, ZWarn: 0},
		// Catastrophic outlier: ELG galaxy with a badly wrong redshift.
		{TargetID: 2, SpecType: "GALAXY", TargetClass: model.ClassELG, Z: 1.5, ZTrue: 1.0, ZWarn: 0},
		// Flagged QSO fit, excluded from purity everywhere.
		{TargetID: 3, SpecType: "QSO", TargetClass: model.ClassQSO, Z: 2.1, ZTrue: 2.1, ZWarn: 4},
		// Good stellar fit, only visible in the ALL column.
		{TargetID: 4, SpecType: "STAR", TargetClass: model.ClassMWS, Z: 0.0, ZTrue: 0.0, ZWarn: 0},
	}
}

func cellIndex(t *testing.T, g Grid, row, col string) (int, int) {
	t.Helper()
	for i, r := range g.Rows {
		if r != row {
			continue
		}
		for j, c := range g.Cols {
			if c == col {
				return i, j
			}
		}
	}
	t.Fatalf("cell %s/%s not found", row, col)
	return 0, 0
}

func TestBuildGridSet(t *testing.T) {
	gs, err := BuildGridSet(testObjects(), nil, nil, Options{})
	require.NoError(t, err)

	assert.Equal(t, model.DefaultSpecTypes, gs.Count.Rows)
	assert.Equal(t, model.DefaultTargetClasses, gs.Count.Cols)

	// ANY/ALL covers everything: 3 trusted fits, 2 good, 1 outlier.
	i, j := cellIndex(t, gs.Count, model.SpecTypeAny, model.ClassAll)
	assert.Equal(t, 4.0, gs.Count.Cells[i][j])
	assert.InDelta(t, 2.0/3.0, gs.Purity.Cells[i][j], 1e-12)
	assert.InDelta(t, 2.0/4.0, gs.Completeness.Cells[i][j], 1e-12)
	assert.InDelta(t, 1.0/3.0, gs.OutlierFrac.Cells[i][j], 1e-12)

	// The GALAXY/ELG cell holds only the outlier.
	i, j = cellIndex(t, gs.Count, "GALAXY", "ELG")
	assert.Equal(t, 1.0, gs.Count.Cells[i][j])
	assert.Equal(t, 0.0, gs.Purity.Cells[i][j])
	assert.Equal(t, 1.0, gs.OutlierFrac.Cells[i][j])

	// The MWS star only shows up where the class filter is open.
	i, j = cellIndex(t, gs.Count, "STAR", model.ClassAll)
	assert.Equal(t, 1.0, gs.Count.Cells[i][j])
	i, j = cellIndex(t, gs.Count, "STAR", "BGS")
	assert.Equal(t, 0.0, gs.Count.Cells[i][j])
}

func TestBuildGridSetOutlierTargets(t *testing.T) {
	gs, err := BuildGridSet(testObjects(), nil, nil, Options{})
	require.NoError(t, err)

	assert.Equal(t, []int64{2}, gs.Outliers[CellKey(model.SpecTypeAny, model.ClassAll)])
	assert.Equal(t, []int64{2}, gs.Outliers[CellKey("GALAXY", "ELG")])
	assert.Empty(t, gs.Outliers[CellKey("STAR", model.ClassAll)])
}

func TestBuildGridSetUnknownClass(t *testing.T) {
	_, err := BuildGridSet(testObjects(), nil, []string{"ALL", "SKYFIBER"}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SKYFIBER")
}

func TestDeltaGridSet(t *testing.T) {
	rows := []string{"ANY"}
	cols := []string{"ALL"}

	ref := &GridSet{TemplateSet: "v1", Count: newGrid(rows, cols), Purity: newGrid(rows, cols),
		Completeness: newGrid(rows, cols), OutlierFrac: newGrid(rows, cols)}
	cur := &GridSet{TemplateSet: "v2", Count: newGrid(rows, cols), Purity: newGrid(rows, cols),
		Completeness: newGrid(rows, cols), OutlierFrac: newGrid(rows, cols)}

	ref.Count.Cells[0][0] = 100
	cur.Count.Cells[0][0] = 100
	ref.Purity.Cells[0][0] = 0.90
	cur.Purity.Cells[0][0] = 0.94
	ref.Completeness.Cells[0][0] = 0.80
	cur.Completeness.Cells[0][0] = 0.85
	ref.OutlierFrac.Cells[0][0] = 0.10
	cur.OutlierFrac.Cells[0][0] = 0.04

	delta, err := DeltaGridSet(cur, ref)
	require.NoError(t, err)

	assert.Equal(t, "v2-v1", delta.TemplateSet)
	assert.Equal(t, 0.0, delta.Count.Cells[0][0])
	assert.InDelta(t, 0.04, delta.Purity.Cells[0][0], 1e-12)
	assert.InDelta(t, 0.05, delta.Completeness.Cells[0][0], 1e-12)
	// Outlier delta is flipped so improvement reads positive.
	assert.InDelta(t, 0.06, delta.OutlierFrac.Cells[0][0], 1e-12)
}

func TestDeltaGridSetLabelMismatch(t *testing.T) {
	mkSet := func(rows []string) *GridSet {
		cols := []string{"ALL"}
		return &GridSet{Count: newGrid(rows, cols), Purity: newGrid(rows, cols),
			Completeness: newGrid(rows, cols), OutlierFrac: newGrid(rows, cols)}
	}

	_, err := DeltaGridSet(mkSet([]string{"ANY"}), mkSet([]string{"STAR"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row mismatch")

	_, err = DeltaGridSet(mkSet([]string{"ANY"}), mkSet([]string{"ANY", "STAR"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shape mismatch")
}
