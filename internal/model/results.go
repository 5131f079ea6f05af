package model

import "time"

// SampleResult is the output of the stratified tile sampler: one
// representative tile and one match count per band combination, in
// enumeration order. Combos records the band indices for provenance.
type SampleResult struct {
	Conditions  []string `json:"conditions"`
	Seed        uint64   `json:"seed"`
	Combos      [][]int  `json:"combos"`
	TileIDs     []int64  `json:"tileids"`
	MatchCounts []int    `json:"match_counts"`
}

// Len returns the number of band combinations in the sample.
func (s SampleResult) Len() int { return len(s.TileIDs) }

// ExportResult represents the result of an export operation
type ExportResult struct {
	Type        string    `json:"type"` // "database", "csv", "json"
	Path        string    `json:"path"` // file path or table name
	RecordCount int       `json:"record_count"`
	Skipped     bool      `json:"skipped,omitempty"` // existing file kept, overwrite not set
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	ExportedAt  time.Time `json:"exported_at"`
}
