package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zqa-pipeline/internal/model"
)

func TestTileFromRecord(t *testing.T) {
	rec := GenericRecord{
		"TILEID":       1234,
		"SURVEY":       "main",
		"PROGRAM":      "dark",
		"EXPTIME":      1200.5,
		"EFFTIME_SPEC": 950.0,
		"SOURCE_URL":   "file:///tiles.csv",
	}

	tile, err := TileFromRecord(rec)
	require.NoError(t, err)

	assert.Equal(t, int64(1234), tile.TileID)
	assert.Equal(t, "main", tile.Survey)
	assert.Equal(t, "dark", tile.Program)

	// Every numeric column becomes a condition; strings and the
	// provenance column do not.
	assert.Equal(t, 1200.5, tile.Conditions["EXPTIME"])
	assert.Equal(t, 950.0, tile.Conditions["EFFTIME_SPEC"])
	assert.NotContains(t, tile.Conditions, "SURVEY")
	assert.NotContains(t, tile.Conditions, "SOURCE_URL")
	assert.NotContains(t, tile.Conditions, "TILEID")
}

func TestTileFromRecordMissingID(t *testing.T) {
	_, err := TileFromRecord(GenericRecord{"EXPTIME": 100.0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TILEID")
}

func TestTruthFromRecord(t *testing.T) {
	rec := GenericRecord{
		"TARGETID":    int64(39627000000001),
		"ZTRUE":       1.2,
		"DESI_TARGET": int64(model.ClassLRG),
		"SPECTYPE":    "GALAXY",
	}

	obj, err := TruthFromRecord(rec)
	require.NoError(t, err)

	assert.Equal(t, int64(39627000000001), obj.TargetID)
	assert.Equal(t, 1.2, obj.ZTrue)
	assert.Equal(t, model.ClassLRG, obj.TargetClass)
	assert.Equal(t, "GALAXY", obj.SpecType)

	_, err = TruthFromRecord(GenericRecord{"TARGETID": int64(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZTRUE")
}

func TestFitFromRecord(t *testing.T) {
	rec := GenericRecord{
		"TARGETID": int64(42),
		"Z":        0.85,
		"ZWARN":    int64(0),
		"SPECTYPE": "QSO",
	}

	obj, err := FitFromRecord(rec, "templates-v2")
	require.NoError(t, err)

	assert.Equal(t, int64(42), obj.TargetID)
	assert.Equal(t, 0.85, obj.Z)
	assert.Equal(t, int64(0), obj.ZWarn)
	assert.Equal(t, "QSO", obj.SpecType)
	assert.Equal(t, "templates-v2", obj.TemplateSet)

	_, err = FitFromRecord(GenericRecord{"TARGETID": int64(42)}, "templates-v2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing Z")
}

func TestMatchByTargetID(t *testing.T) {
	truth := []model.ObjectRecord{
		{TargetID: 1, ZTrue: 0.5, TargetClass: model.ClassLRG, SpecType: "GALAXY"},
		{TargetID: 2, ZTrue: 1.1, TargetClass: model.ClassQSO},
	}
	fits := []model.ObjectRecord{
		// Fit order differs from truth order on purpose.
		{TargetID: 2, Z: 1.1002, ZWarn: 0, SpecType: "QSO", TemplateSet: "v2"},
		{TargetID: 1, Z: 0.4999, ZWarn: 4, TemplateSet: "v2"},
	}

	matched, err := MatchByTargetID(truth, fits)
	require.NoError(t, err)
	require.Len(t, matched, 2)

	// Output follows truth order, measured quantities come from the fit.
	assert.Equal(t, int64(1), matched[0].TargetID)
	assert.Equal(t, 0.4999, matched[0].Z)
	assert.Equal(t, int64(4), matched[0].ZWarn)
	assert.Equal(t, 0.5, matched[0].ZTrue)
	assert.Equal(t, "v2", matched[0].TemplateSet)
	// The fitter gave no class for target 1, so the truth label stays.
	assert.Equal(t, "GALAXY", matched[0].SpecType)

	assert.Equal(t, int64(2), matched[1].TargetID)
	assert.Equal(t, "QSO", matched[1].SpecType)
	assert.Equal(t, model.ClassQSO, matched[1].TargetClass)
}

func TestMatchByTargetIDKeyMismatch(t *testing.T) {
	truth := []model.ObjectRecord{{TargetID: 1}, {TargetID: 2}}

	// Fewer fitted targets than truth targets.
	_, err := MatchByTargetID(truth, []model.ObjectRecord{{TargetID: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key mismatch")

	// Same count, disjoint keys.
	_, err = MatchByTargetID(truth, []model.ObjectRecord{{TargetID: 1}, {TargetID: 3}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entry for TARGETID 2")
}

func TestMatchByTargetIDDuplicates(t *testing.T) {
	_, err := MatchByTargetID(
		[]model.ObjectRecord{{TargetID: 1}},
		[]model.ObjectRecord{{TargetID: 1}, {TargetID: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate TARGETID 1 in fit catalog")

	_, err = MatchByTargetID(
		[]model.ObjectRecord{{TargetID: 1}, {TargetID: 1}},
		[]model.ObjectRecord{{TargetID: 1}, {TargetID: 2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate TARGETID 1 in truth catalog")
}

func TestFilterTiles(t *testing.T) {
	tiles := []model.TileRecord{
		{TileID: 1, Survey: "main", Program: "dark", Conditions: map[string]float64{ColEffTime: 1000}},
		{TileID: 2, Survey: "main", Program: "bright", Conditions: map[string]float64{ColEffTime: 900}},
		{TileID: 3, Survey: "sv3", Program: "dark", Conditions: map[string]float64{ColEffTime: 1100}},
		{TileID: 4, Survey: "main", Program: "dark", Conditions: map[string]float64{ColEffTime: 100}},
		{TileID: 5, Survey: "main", Program: "dark", Conditions: map[string]float64{}},
	}

	out := FilterTiles(tiles, "main", "dark", 500)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].TileID)

	// Zero-valued filters pass everything.
	assert.Len(t, FilterTiles(tiles, "", "", 0), 5)
	assert.Len(t, FilterTiles(tiles, "main", "", 0), 4)
}
