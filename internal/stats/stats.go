// Package stats computes redshift-fit outcome statistics: per-slice purity,
// completeness and catastrophic-outlier fractions, and the QA grids built
// from them across spectral types and target classes.
package stats

import (
	"fmt"
	"math"
)

// DefaultMaxDeltaZ is the catastrophic redshift error threshold on
// |z - z_true| / (1 + z_true), equivalent to a ~1000 km/s velocity cut.
const DefaultMaxDeltaZ = 0.0033

// Options configures a statistics computation.
type Options struct {
	// MaxDeltaZ overrides the catastrophic threshold. Zero means
	// DefaultMaxDeltaZ.
	MaxDeltaZ float64
	// WithIndices also collects the slice positions of catastrophic
	// outliers (objects with a trusted fit but a bad redshift), for
	// downstream inspection.
	WithIndices bool
}

func (o Options) threshold() float64 {
	if o.MaxDeltaZ > 0 {
		return o.MaxDeltaZ
	}
	return DefaultMaxDeltaZ
}

// Stats holds the outcome statistics for one slice of objects.
//
// Purity is good/warn-ok over warn-ok, Completeness is good/warn-ok over
// everything, OutlierFrac is bad/warn-ok over warn-ok. All three are
// defined as 0 (not NaN) when their denominator is empty.
type Stats struct {
	N            int     `json:"n"`
	Purity       float64 `json:"purity"`
	Completeness float64 `json:"completeness"`
	OutlierFrac  float64 `json:"outlier_frac"`
	// OutlierIdx is only populated when Options.WithIndices is set.
	OutlierIdx []int `json:"outlier_idx,omitempty"`
}

// GetStats computes outcome statistics over three equal-length columns:
// measured redshifts, reference ("true") redshifts and fit warning flags.
// A warning flag of zero means the fit is trusted.
func GetStats(zMeasured, zTrue []float64, warnFlags []int64, opts Options) (Stats, error) {
	if len(zMeasured) != len(zTrue) || len(zMeasured) != len(warnFlags) {
		return Stats{}, fmt.Errorf("column length mismatch: z=%d z_true=%d zwarn=%d",
			len(zMeasured), len(zTrue), len(warnFlags))
	}

	thr := opts.threshold()
	s := Stats{N: len(zMeasured)}

	var nWarnOK, nGoodWarnOK, nBadWarnOK int
	for i := range zMeasured {
		if warnFlags[i] != 0 {
			continue
		}
		nWarnOK++
		dz := math.Abs(zMeasured[i]-zTrue[i]) / (1 + zTrue[i])
		if dz < thr {
			nGoodWarnOK++
		} else {
			nBadWarnOK++
			if opts.WithIndices {
				s.OutlierIdx = append(s.OutlierIdx, i)
			}
		}
	}

	if nWarnOK > 0 {
		s.Purity = float64(nGoodWarnOK) / float64(nWarnOK)
		s.OutlierFrac = float64(nBadWarnOK) / float64(nWarnOK)
	}
	if s.N > 0 {
		s.Completeness = float64(nGoodWarnOK) / float64(s.N)
	}

	return s, nil
}
