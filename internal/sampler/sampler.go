// Package sampler draws a balanced evaluation subset from a tile catalog.
//
// Each requested condition column is split into LOW/MIDDLE/HIGH percentile
// bands over the full candidate set, and one representative tile is drawn
// uniformly at random for every combination of bands. The draw is
// repeatable: the generator is seeded once per call.
package sampler

import (
	"fmt"

	xrand "golang.org/x/exp/rand"

	"zqa-pipeline/internal/model"
)

// SampleTiles picks one representative tile per band combination.
//
// Combinations are enumerated in lexicographic order starting from
// (0,0,...,0), advancing the last condition fastest, so the output always
// holds 3^len(conditions) entries in a fixed order. A combination that no
// candidate tile falls into is an error: it usually means the band
// boundaries are wrong, and silently skipping it would break the
// fixed-size output contract.
func SampleTiles(tiles []model.TileRecord, conditions []string, seed uint64) (*model.SampleResult, error) {
	if len(tiles) == 0 {
		return nil, fmt.Errorf("no candidate tiles to sample from")
	}
	if len(conditions) == 0 {
		return nil, fmt.Errorf("at least one condition is required")
	}

	// Per-condition values, in tile order. Every tile must carry every
	// condition column.
	values := make(map[string][]float64, len(conditions))
	for _, cond := range conditions {
		vals := make([]float64, len(tiles))
		for i, tile := range tiles {
			v, ok := tile.Condition(cond)
			if !ok {
				return nil, fmt.Errorf("tile %d has no value for condition %q", tile.TileID, cond)
			}
			vals[i] = v
		}
		values[cond] = vals
	}

	// Band boundaries are computed once over the full candidate set.
	bands := make(map[string][3]Band, len(conditions))
	for _, cond := range conditions {
		bands[cond] = conditionBands(values[cond])
	}

	// Seed once for the whole call so identical inputs reproduce the
	// identical sequence of draws.
	rng := xrand.New(xrand.NewSource(seed))

	total := 1
	for range conditions {
		total *= 3
	}

	result := &model.SampleResult{
		Conditions:  conditions,
		Seed:        seed,
		Combos:      make([][]int, 0, total),
		TileIDs:     make([]int64, 0, total),
		MatchCounts: make([]int, 0, total),
	}

	combo := make([]int, len(conditions))
	for n := 0; n < total; n++ {
		// Fixed-radix odometer over base 3, last condition fastest.
		rem := n
		for j := len(conditions) - 1; j >= 0; j-- {
			combo[j] = rem % 3
			rem /= 3
		}

		var matches []int
		for i := range tiles {
			inAll := true
			for j, cond := range conditions {
				if !bands[cond][combo[j]].Contains(values[cond][i]) {
					inAll = false
					break
				}
			}
			if inAll {
				matches = append(matches, i)
			}
		}

		if len(matches) == 0 {
			return nil, fmt.Errorf("no candidate tiles for band combination %v over %v", combo, conditions)
		}

		pick := matches[rng.Intn(len(matches))]

		result.Combos = append(result.Combos, append([]int(nil), combo...))
		result.TileIDs = append(result.TileIDs, tiles[pick].TileID)
		result.MatchCounts = append(result.MatchCounts, len(matches))
	}

	return result, nil
}
