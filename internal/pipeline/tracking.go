package pipeline

import (
	"sync"
	"time"
)

// StageMetrics tracks metrics for one pipeline stage
type StageMetrics struct {
	StartTime        time.Time     `json:"start_time"`
	EndTime          *time.Time    `json:"end_time,omitempty"`
	Duration         time.Duration `json:"duration,omitempty"`
	RecordsProcessed int64         `json:"records_processed"`
	RecordsPerSecond float64       `json:"records_per_second"`
	ErrorCount       int64         `json:"error_count"`
	WorkerCount      int           `json:"worker_count"`
	Status           string        `json:"status"` // "running", "completed", "failed"
}

// CatalogMetrics tracks metrics for one input catalog
type CatalogMetrics struct {
	CatalogName     string `json:"catalog_name"`
	SourceURL       string `json:"source_url"`
	RecordsIngested int64  `json:"records_ingested"`
	RecordsValid    int64  `json:"records_valid"`
	RecordsInvalid  int64  `json:"records_invalid"`
	ErrorCount      int64  `json:"error_count"`
	LastError       string `json:"last_error,omitempty"`
}

// RunMetrics is the full metrics snapshot for a QA run
type RunMetrics struct {
	RunID          string                     `json:"run_id"`
	StartTime      time.Time                  `json:"start_time"`
	EndTime        *time.Time                 `json:"end_time,omitempty"`
	Duration       time.Duration              `json:"duration,omitempty"`
	Status         string                     `json:"status"`
	TotalRecords   int64                      `json:"total_records"`
	ValidRecords   int64                      `json:"valid_records"`
	InvalidRecords int64                      `json:"invalid_records"`
	MatchedTargets int64                      `json:"matched_targets"`
	GridsBuilt     int64                      `json:"grids_built"`
	ErrorCount     int64                      `json:"error_count"`
	StageMetrics   map[string]*StageMetrics   `json:"stage_metrics"`
	CatalogMetrics map[string]*CatalogMetrics `json:"catalog_metrics"`
}

// RunTracker collects metrics while a QA run executes. All methods are
// safe for concurrent use by the stage workers.
type RunTracker struct {
	mu      sync.Mutex
	metrics RunMetrics
}

// NewRunTracker creates a tracker with one catalog slot per input catalog
func NewRunTracker(runID string, catalogs map[string]string) *RunTracker {
	t := &RunTracker{
		metrics: RunMetrics{
			RunID:          runID,
			StartTime:      time.Now().UTC(),
			Status:         "running",
			StageMetrics:   make(map[string]*StageMetrics),
			CatalogMetrics: make(map[string]*CatalogMetrics),
		},
	}
	for name, url := range catalogs {
		t.metrics.CatalogMetrics[name] = &CatalogMetrics{
			CatalogName: name,
			SourceURL:   url,
		}
	}
	return t
}

// StageStarted marks a stage as running
func (t *RunTracker) StageStarted(stage string, workers int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.StageMetrics[stage] = &StageMetrics{
		StartTime:   time.Now().UTC(),
		WorkerCount: workers,
		Status:      "running",
	}
}

// StageCompleted marks a stage as done and computes its throughput
func (t *RunTracker) StageCompleted(stage string, records, errors int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sm, ok := t.metrics.StageMetrics[stage]
	if !ok {
		sm = &StageMetrics{StartTime: time.Now().UTC()}
		t.metrics.StageMetrics[stage] = sm
	}
	now := time.Now().UTC()
	sm.EndTime = &now
	sm.Duration = now.Sub(sm.StartTime)
	sm.RecordsProcessed = records
	sm.ErrorCount = errors
	sm.Status = "completed"
	if sm.Duration > 0 {
		sm.RecordsPerSecond = float64(records) / sm.Duration.Seconds()
	}
}

// RecordIngested counts one ingested record for a catalog
func (t *RunTracker) RecordIngested(catalogName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.TotalRecords++
	if cm, ok := t.metrics.CatalogMetrics[catalogName]; ok {
		cm.RecordsIngested++
	}
}

// RecordValid counts one record that passed validation
func (t *RunTracker) RecordValid(catalogName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.ValidRecords++
	if cm, ok := t.metrics.CatalogMetrics[catalogName]; ok {
		cm.RecordsValid++
	}
}

// RecordInvalid counts one record that failed validation
func (t *RunTracker) RecordInvalid(catalogName string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.InvalidRecords++
	t.metrics.ErrorCount++
	if cm, ok := t.metrics.CatalogMetrics[catalogName]; ok {
		cm.RecordsInvalid++
		cm.ErrorCount++
		if err != nil {
			cm.LastError = err.Error()
		}
	}
}

// MatchedTargets records the size of the cross-matched catalog
func (t *RunTracker) MatchedTargets(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.MatchedTargets = n
}

// GridBuilt counts one completed grid set
func (t *RunTracker) GridBuilt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.GridsBuilt++
}

// Finish closes out the run metrics with a final status
func (t *RunTracker) Finish(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now().UTC()
	t.metrics.EndTime = &now
	t.metrics.Duration = now.Sub(t.metrics.StartTime)
	t.metrics.Status = status
}

// Snapshot returns a copy of the current metrics
func (t *RunTracker) Snapshot() RunMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.metrics
	snap.StageMetrics = make(map[string]*StageMetrics, len(t.metrics.StageMetrics))
	for k, v := range t.metrics.StageMetrics {
		sm := *v
		snap.StageMetrics[k] = &sm
	}
	snap.CatalogMetrics = make(map[string]*CatalogMetrics, len(t.metrics.CatalogMetrics))
	for k, v := range t.metrics.CatalogMetrics {
		cm := *v
		snap.CatalogMetrics[k] = &cm
	}
	return snap
}
