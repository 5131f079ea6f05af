package model

// CatalogSource points at one input catalog (CSV/JSON file or API endpoint)
type CatalogSource struct {
	Type string `json:"type"` // csv, json, api
	URL  string `json:"url"`
}

// FitCatalog is the fit-result catalog produced by one template set
type FitCatalog struct {
	TemplateSet string        `json:"templateSet"`
	Source      CatalogSource `json:"source"`
}

// Export defines export targets for the QA run outputs
type Export struct {
	DB   string `json:"db"`   // sqlite path, empty disables db export
	File string `json:"file"` // e.g. grids.csv or grids.json
}

// Workers defines number of workers per stage
type Workers struct {
	Ingest     int `json:"ingest"`
	Validation int `json:"validation"`
}

// ConcurrencyConfig defines extra concurrency and run options
type ConcurrencyConfig struct {
	Workers           Workers `json:"workers"`
	ChannelBufferSize int     `json:"channelBufferSize"`
	RunTimeout        string  `json:"runTimeout"` // e.g. "5m"
	FetchRetry        int     `json:"fetchRetry"`
}

// QARunSpec defines one template-set comparison run: a truth catalog, one
// fit catalog per template set, and which set the deltas are taken against.
type QARunSpec struct {
	Truth         CatalogSource     `json:"truth"`
	Fits          []FitCatalog      `json:"fits"`
	ReferenceSet  string            `json:"referenceSet"`
	SpecTypes     []string          `json:"specTypes,omitempty"`     // defaults to DefaultSpecTypes
	TargetClasses []string          `json:"targetClasses,omitempty"` // defaults to DefaultTargetClasses
	MaxDeltaZ     float64           `json:"maxDeltaZ,omitempty"`     // 0 means the builtin catastrophic threshold
	Export        *Export           `json:"export,omitempty"`
	Concurrency   ConcurrencyConfig `json:"concurrency"`
	Overwrite     bool              `json:"overwrite"`
}

// SampleSpec configures a stratified tile-sampling run
type SampleSpec struct {
	Tiles      CatalogSource `json:"tiles"`
	Conditions []string      `json:"conditions"` // order fixes combination enumeration order
	Seed       uint64        `json:"seed"`
	Survey     string        `json:"survey,omitempty"`
	Program    string        `json:"program,omitempty"`
	MinEffTime float64       `json:"minEffTime,omitempty"`
	OutFile    string        `json:"outFile"`
	Overwrite  bool          `json:"overwrite"`
}
