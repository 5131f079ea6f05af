package catalog

import (
	"fmt"

	"zqa-pipeline/internal/model"
)

// MatchByTargetID joins truth records with one template set's fit records
// on TARGETID.
//
// The two catalogs must cover exactly the same targets after filtering: a
// missing or surplus key is a correctness-invariant violation, and
// proceeding with a partial join would silently skew every statistic
// downstream, so it fails here instead. Output order follows the truth
// catalog.
func MatchByTargetID(truth, fits []model.ObjectRecord) ([]model.ObjectRecord, error) {
	fitByID := make(map[int64]model.ObjectRecord, len(fits))
	for _, fit := range fits {
		if _, dup := fitByID[fit.TargetID]; dup {
			return nil, fmt.Errorf("duplicate TARGETID %d in fit catalog", fit.TargetID)
		}
		fitByID[fit.TargetID] = fit
	}

	if len(truth) != len(fitByID) {
		return nil, fmt.Errorf("catalog key mismatch: %d truth targets vs %d fitted targets",
			len(truth), len(fitByID))
	}

	matched := make([]model.ObjectRecord, 0, len(truth))
	seen := make(map[int64]bool, len(truth))
	for _, t := range truth {
		if seen[t.TargetID] {
			return nil, fmt.Errorf("duplicate TARGETID %d in truth catalog", t.TargetID)
		}
		seen[t.TargetID] = true

		fit, ok := fitByID[t.TargetID]
		if !ok {
			return nil, fmt.Errorf("fit catalog has no entry for TARGETID %d", t.TargetID)
		}

		merged := t
		merged.Z = fit.Z
		merged.ZWarn = fit.ZWarn
		merged.TemplateSet = fit.TemplateSet
		// The fitter's spectral classification labels the grid rows;
		// fall back to the truth label when the fitter has none.
		if fit.SpecType != "" {
			merged.SpecType = fit.SpecType
		}
		matched = append(matched, merged)
	}

	return matched, nil
}

// FilterTiles applies the survey/program/efftime pre-selection used before
// sampling. Zero-valued filters pass everything.
func FilterTiles(tiles []model.TileRecord, survey, program string, minEffTime float64) []model.TileRecord {
	var out []model.TileRecord
	for _, tile := range tiles {
		if survey != "" && tile.Survey != survey {
			continue
		}
		if program != "" && tile.Program != program {
			continue
		}
		if minEffTime > 0 {
			eff, ok := tile.Condition(ColEffTime)
			if !ok || eff < minEffTime {
				continue
			}
		}
		out = append(out, tile)
	}
	return out
}
