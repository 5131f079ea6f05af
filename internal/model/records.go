package model

// TileRecord is a single candidate tile from the survey tiles catalog.
// Conditions holds the numeric observing-condition columns the sampler
// stratifies on (e.g. EXPTIME, EFFTIME_SPEC, DEC).
type TileRecord struct {
	TileID     int64              `json:"tileid"`
	Survey     string             `json:"survey,omitempty"`
	Program    string             `json:"program,omitempty"`
	Conditions map[string]float64 `json:"conditions"`
}

// Condition returns the value for a named condition column.
func (t TileRecord) Condition(name string) (float64, bool) {
	v, ok := t.Conditions[name]
	return v, ok
}

// ObjectRecord is one fitted object: the measured redshift from a template
// set, the visually-inspected truth redshift, and the fit warning bitmask
// (zero means the fit is trusted).
type ObjectRecord struct {
	TargetID    int64   `json:"targetid"`
	SpecType    string  `json:"spectype"`
	TargetClass int64   `json:"target_class"`
	Z           float64 `json:"z"`
	ZTrue       float64 `json:"z_true"`
	ZWarn       int64   `json:"zwarn"`
	TemplateSet string  `json:"template_set,omitempty"`
	SourceURL   string  `json:"source_url,omitempty"`
}

// Target-classification bits, mirroring the survey targeting bitmask.
const (
	ClassBGS int64 = 1 << iota
	ClassLRG
	ClassELG
	ClassQSO
	ClassMWS
)

// Synthetic labels selecting everything on their axis of the QA grid.
const (
	SpecTypeAny = "ANY"
	ClassAll    = "ALL"
)

var targetClassMasks = map[string]int64{
	"BGS": ClassBGS,
	"LRG": ClassLRG,
	"ELG": ClassELG,
	"QSO": ClassQSO,
	"MWS": ClassMWS,
}

// ClassMask returns the targeting bit for a named class. ALL matches
// every object and returns ok with a zero mask.
func ClassMask(name string) (mask int64, ok bool) {
	if name == ClassAll {
		return 0, true
	}
	mask, ok = targetClassMasks[name]
	return mask, ok
}

// Default grid axes. Row/column order is the order cells are reported in.
var (
	DefaultSpecTypes     = []string{SpecTypeAny, "STAR", "GALAXY", "QSO"}
	DefaultTargetClasses = []string{ClassAll, "BGS", "LRG", "ELG", "QSO"}
)
