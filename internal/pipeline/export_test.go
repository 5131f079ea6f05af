package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zqa-pipeline/internal/model"
	"zqa-pipeline/internal/stats"
)

func sampleFixture() *model.SampleResult {
	return &model.SampleResult{
		Conditions:  []string{"SEEING", "AIRMASS"},
		Seed:        42,
		Combos:      [][]int{{0, 0}, {0, 1}, {1, 2}},
		TileIDs:     []int64{1001, 1002, 1003},
		MatchCounts: []int{5, 3, 1},
	}
}

func TestWriteSampleCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.csv")
	fixture := sampleFixture()

	result, err := WriteSampleCSV(path, fixture, false)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Skipped)
	assert.Equal(t, 3, result.RecordCount)

	got, err := ReadSampleCSV(path)
	require.NoError(t, err)
	assert.Equal(t, fixture.Conditions, got.Conditions)
	assert.Equal(t, fixture.Combos, got.Combos)
	assert.Equal(t, fixture.TileIDs, got.TileIDs)
	assert.Equal(t, fixture.MatchCounts, got.MatchCounts)
}

func TestWriteSampleCSVSkipsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.csv")
	fixture := sampleFixture()

	_, err := WriteSampleCSV(path, fixture, false)
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// Second write without overwrite leaves the file alone.
	fixture.TileIDs[0] = 9999
	result, err := WriteSampleCSV(path, fixture, false)
	require.NoError(t, err)
	assert.True(t, result.Skipped)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// Overwrite regenerates it.
	result, err = WriteSampleCSV(path, fixture, true)
	require.NoError(t, err)
	assert.False(t, result.Skipped)

	after, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(after), "9999")
}

func TestReadSampleCSVErrors(t *testing.T) {
	_, err := ReadSampleCSV(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "no-tileid.csv")
	require.NoError(t, os.WriteFile(path, []byte("BAND_SEEING,X\n0,1\n"), 0644))
	_, err = ReadSampleCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TILEID")
}

func gridSetFixture(templateSet string) *stats.GridSet {
	objs := []model.ObjectRecord{
		{TargetID: 1, SpecType: "GALAXY", TargetClass: model.ClassLRG, Z: 1.0, ZTrue: 1.0, ZWarn: 0},
		{TargetID: 2, SpecType: "GALAXY", TargetClass: model.ClassELG, Z: 1.5, ZTrue: 1.0, ZWarn: 0},
	}
	gs, err := stats.BuildGridSet(objs, nil, nil, stats.Options{})
	if err != nil {
		panic(err)
	}
	gs.TemplateSet = templateSet
	return gs
}

func TestExportGridsToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grids.csv")
	gridSets := []*stats.GridSet{gridSetFixture("v2")}

	result := exportGridsToFile(path, gridSets, false)
	require.True(t, result.Success)

	// 4 statistics x 4 spectypes x 5 classes.
	assert.Equal(t, 80, result.RecordCount)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "template_set,statistic,spectype,target_class,value", lines[0])
	assert.Len(t, lines, 81)
	assert.Contains(t, string(data), "v2,purity,ANY,ALL,")
}

func TestExportGridsToJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grids.json")
	gridSets := []*stats.GridSet{gridSetFixture("v2"), gridSetFixture("v1")}

	result := exportGridsToFile(path, gridSets, false)
	require.True(t, result.Success)
	assert.Equal(t, 2, result.RecordCount)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"export_type": "qa_grids"`)
	assert.Contains(t, string(data), `"template_set": "v2"`)
}

func TestExportGridsSkipsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grids.csv")
	gridSets := []*stats.GridSet{gridSetFixture("v2")}

	first := exportGridsToFile(path, gridSets, false)
	require.True(t, first.Success)

	second := exportGridsToFile(path, gridSets, false)
	assert.True(t, second.Skipped)
	assert.True(t, second.Success)

	third := exportGridsToFile(path, gridSets, true)
	assert.False(t, third.Skipped)
	assert.True(t, third.Success)
}
