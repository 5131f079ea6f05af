package catalog

import (
	"fmt"

	"zqa-pipeline/internal/model"
	"zqa-pipeline/pkg/utils"
)

// Column names shared by the survey catalogs this pipeline consumes.
const (
	ColTileID     = "TILEID"
	ColTargetID   = "TARGETID"
	ColSurvey     = "SURVEY"
	ColProgram    = "PROGRAM"
	ColEffTime    = "EFFTIME_SPEC"
	ColZ          = "Z"
	ColZTrue      = "ZTRUE"
	ColZWarn      = "ZWARN"
	ColSpecType   = "SPECTYPE"
	ColTargetMask = "DESI_TARGET"
	colSourceURL  = "SOURCE_URL"
)

// TileFromRecord converts one tiles-catalog row. Every numeric column
// becomes a condition value so the sampler can stratify on any of them.
func TileFromRecord(rec GenericRecord) (model.TileRecord, error) {
	raw, ok := rec[ColTileID]
	if !ok {
		return model.TileRecord{}, fmt.Errorf("tile record missing %s", ColTileID)
	}

	tile := model.TileRecord{
		TileID:     int64(utils.Numeric(raw)),
		Conditions: make(map[string]float64),
	}
	if s, ok := rec[ColSurvey].(string); ok {
		tile.Survey = s
	}
	if s, ok := rec[ColProgram].(string); ok {
		tile.Program = s
	}

	for key, val := range rec {
		if key == ColTileID || key == colSourceURL {
			continue
		}
		switch val.(type) {
		case int, int64, float32, float64:
			tile.Conditions[key] = utils.Numeric(val)
		}
	}

	return tile, nil
}

// TruthFromRecord converts one visually-inspected truth-catalog row.
// Truth rows carry the reference redshift and the targeting bitmask; the
// measured quantities are filled in later by the cross-match.
func TruthFromRecord(rec GenericRecord) (model.ObjectRecord, error) {
	idRaw, ok := rec[ColTargetID]
	if !ok {
		return model.ObjectRecord{}, fmt.Errorf("truth record missing %s", ColTargetID)
	}
	ztRaw, ok := rec[ColZTrue]
	if !ok {
		return model.ObjectRecord{}, fmt.Errorf("truth record missing %s", ColZTrue)
	}

	obj := model.ObjectRecord{
		TargetID: int64(utils.Numeric(idRaw)),
		ZTrue:    utils.Numeric(ztRaw),
	}
	if mask, ok := rec[ColTargetMask]; ok {
		obj.TargetClass = int64(utils.Numeric(mask))
	}
	if st, ok := rec[ColSpecType].(string); ok {
		obj.SpecType = st
	}
	if src, ok := rec[colSourceURL].(string); ok {
		obj.SourceURL = src
	}
	return obj, nil
}

// FitFromRecord converts one fit-result row produced by the redshift
// fitter for a given template set.
func FitFromRecord(rec GenericRecord, templateSet string) (model.ObjectRecord, error) {
	idRaw, ok := rec[ColTargetID]
	if !ok {
		return model.ObjectRecord{}, fmt.Errorf("fit record missing %s", ColTargetID)
	}
	zRaw, ok := rec[ColZ]
	if !ok {
		return model.ObjectRecord{}, fmt.Errorf("fit record missing %s", ColZ)
	}

	obj := model.ObjectRecord{
		TargetID:    int64(utils.Numeric(idRaw)),
		Z:           utils.Numeric(zRaw),
		TemplateSet: templateSet,
	}
	if zw, ok := rec[ColZWarn]; ok {
		obj.ZWarn = int64(utils.Numeric(zw))
	}
	if st, ok := rec[ColSpecType].(string); ok {
		obj.SpecType = st
	}
	if src, ok := rec[colSourceURL].(string); ok {
		obj.SourceURL = src
	}
	return obj, nil
}
