package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"zqa-pipeline/internal/catalog"
	"zqa-pipeline/internal/model"
	"zqa-pipeline/internal/stats"
	"zqa-pipeline/internal/store"
	"zqa-pipeline/pkg/utils"
)

// truthCatalog is the reserved catalog tag for the visually-inspected
// truth redshifts; every other tag is a template-set name.
const truthCatalog = "truth"

// taggedRecord is a raw catalog row plus the catalog it came from
type taggedRecord struct {
	catalogName string
	rec         catalog.GenericRecord
}

// taggedObject is a validated object plus the catalog it came from
type taggedObject struct {
	catalogName string
	obj         model.ObjectRecord
}

// ------------------- QA Run -------------------

// Run executes a full template-set comparison: ingest the truth catalog
// and one fit catalog per template set, validate, cross-match on TARGETID,
// build the QA grids per set plus delta grids against the reference set,
// and export the results.
func Run(ctx context.Context, runID string, spec model.QARunSpec, om *utils.OutputManager) (err error) {
	start := time.Now()
	fmt.Printf("🚀 Starting QA run: %s\n", runID)

	if len(spec.Fits) == 0 {
		return fmt.Errorf("at least one fit catalog is required")
	}
	if spec.ReferenceSet == "" {
		spec.ReferenceSet = spec.Fits[0].TemplateSet
	}
	refFound := false
	for _, fit := range spec.Fits {
		if fit.TemplateSet == spec.ReferenceSet {
			refFound = true
		}
	}
	if !refFound {
		return fmt.Errorf("reference template set %q has no fit catalog", spec.ReferenceSet)
	}

	store.UpdateRunStatus(runID, "running")

	// Defer function to handle status updates on completion/error
	defer func() {
		if err != nil {
			store.UpdateRunStatus(runID, "failed")
			store.SaveRunError(runID, err)
		}
	}()

	timeout := utils.ParseDuration(spec.Concurrency.RunTimeout, 10*time.Minute)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bufSize := spec.Concurrency.ChannelBufferSize
	if bufSize == 0 {
		bufSize = 256
	}

	catalogs := map[string]string{truthCatalog: spec.Truth.URL}
	for _, fit := range spec.Fits {
		catalogs[fit.TemplateSet] = fit.Source.URL
	}
	tracker := NewRunTracker(runID, catalogs)

	recordsCh := make(chan taggedRecord, bufSize)
	validatedCh := make(chan taggedObject, bufSize)
	errorCh := make(chan error, bufSize)
	gridsCh := make(chan *stats.GridSet, 16)

	// First fatal error wins; later stages drain and bail out.
	var fatalMu sync.Mutex
	var fatalErr error
	setFatal := func(e error) {
		fatalMu.Lock()
		if fatalErr == nil {
			fatalErr = e
			cancel()
		}
		fatalMu.Unlock()
	}

	var wg sync.WaitGroup

	// --- ERROR LOGGER ---
	var errWg sync.WaitGroup
	errWg.Add(1)
	go func() {
		defer errWg.Done()
		for e := range errorCh {
			log.Printf("❌ Error in run %s: %v\n", runID, e)
			store.SaveRunError(runID, e)
		}
	}()

	// --- INGESTION STAGE ---
	wg.Add(1)
	go func() {
		defer wg.Done()
		startTime := time.Now()
		store.UpdateRunStatus(runID, "ingesting")
		store.SaveStageProgress(runID, "ingestion", "started", &startTime, nil, 0, 0)
		store.SaveRunLog(runID, "ingestion", "info", "Starting catalog ingestion", map[string]interface{}{
			"catalog_count": len(catalogs),
		})
		tracker.StageStarted("ingestion", len(catalogs))

		ingested := ingestCatalogs(ctx, spec, recordsCh, errorCh, tracker, setFatal)
		close(recordsCh) // safe: only this goroutine closes recordsCh

		endTime := time.Now()
		tracker.StageCompleted("ingestion", ingested, 0)
		store.SaveStageProgress(runID, "ingestion", "completed", &startTime, &endTime, int(ingested), 0)
		store.SaveRunLog(runID, "ingestion", "info", "Catalog ingestion completed", map[string]interface{}{
			"records":     ingested,
			"duration_ms": endTime.Sub(startTime).Milliseconds(),
		})
	}()

	// --- VALIDATION STAGE ---
	wg.Add(1)
	go func() {
		defer wg.Done()
		fmt.Println("🔍 Starting validation stage...")
		store.UpdateRunStatus(runID, "validating")

		numWorkers := spec.Concurrency.Workers.Validation
		if numWorkers == 0 {
			numWorkers = 3 // default
		}
		tracker.StageStarted("validation", numWorkers)

		ValidateRecords(ctx, recordsCh, validatedCh, errorCh, numWorkers, tracker)
	}()

	// --- MATCH + GRID STAGE ---
	wg.Add(1)
	go func() {
		defer wg.Done()
		startTime := time.Now()
		fmt.Println("📊 Starting match and grid stage...")
		store.UpdateRunStatus(runID, "building-grids")
		store.SaveStageProgress(runID, "grids", "started", &startTime, nil, 0, 0)
		tracker.StageStarted("grids", 1)

		built := buildGrids(ctx, runID, spec, validatedCh, gridsCh, errorCh, tracker, setFatal)
		close(gridsCh)

		endTime := time.Now()
		tracker.StageCompleted("grids", built, 0)
		store.SaveStageProgress(runID, "grids", "completed", &startTime, &endTime, int(built), 0)
	}()

	// --- EXPORT STAGE ---
	wg.Add(1)
	go func() {
		defer wg.Done()
		fmt.Println("💾 Starting export stage...")

		exportCount := 0
		for result := range ExportGrids(ctx, gridsCh, spec, runID, om) {
			exportCount++
			switch {
			case result.Skipped:
				fmt.Printf("⏭️ Export %d: %s exists, skipped (use overwrite to regenerate)\n", exportCount, result.Path)
			case result.Success:
				fmt.Printf("✅ Export %d: %d records exported to %s (%s)\n",
					exportCount, result.RecordCount, result.Path, result.Type)
			default:
				fmt.Printf("❌ Export %d failed: %s\n", exportCount, result.Error)
				errorCh <- fmt.Errorf("export to %s failed: %s", result.Path, result.Error)
			}
		}
		fmt.Printf("💾 Export Summary: %d export operations completed\n", exportCount)
	}()

	// Wait for all stages to finish
	wg.Wait()

	// Close errorCh at the very end
	close(errorCh)
	errWg.Wait()

	fatalMu.Lock()
	err = fatalErr
	fatalMu.Unlock()
	if err != nil {
		tracker.Finish("failed")
		store.SaveRunMetrics(runID, tracker.Snapshot())
		return err
	}

	duration := time.Since(start)
	fmt.Printf("🏁 QA run completed successfully: %s in %v\n", runID, duration)

	tracker.Finish("completed")
	store.SaveRunMetrics(runID, tracker.Snapshot())
	store.UpdateRunStatus(runID, "completed")
	return nil
}

// ingestCatalogs reads the truth catalog and every fit catalog in
// parallel, with retries for transient fetch failures, and feeds tagged
// rows into out. Returns the total number of rows ingested.
func ingestCatalogs(
	ctx context.Context,
	spec model.QARunSpec,
	out chan<- taggedRecord,
	errs chan<- error,
	tracker *RunTracker,
	setFatal func(error),
) int64 {
	retryCfg := DefaultRetryConfigs["ingestion"]
	if spec.Concurrency.FetchRetry > 0 {
		retryCfg.MaxAttempts = spec.Concurrency.FetchRetry
	}

	type namedSource struct {
		name string
		src  model.CatalogSource
	}
	sources := []namedSource{{truthCatalog, spec.Truth}}
	for _, fit := range spec.Fits {
		sources = append(sources, namedSource{fit.TemplateSet, fit.Source})
	}

	var total int64
	var totalMu sync.Mutex
	var wg sync.WaitGroup

	for _, ns := range sources {
		wg.Add(1)
		go func(name string, src model.CatalogSource) {
			defer wg.Done()

			var records []catalog.GenericRecord
			err := withRetry(ctx, "ingestion of "+name, retryCfg, func() error {
				recs, e := catalog.ReadRecords(ctx, src)
				if e != nil {
					return e
				}
				records = recs
				return nil
			})
			if err != nil {
				errs <- err
				// A whole missing catalog cannot be worked around:
				// the run output contract needs every template set.
				setFatal(fmt.Errorf("catalog %s: %w", name, err))
				return
			}

			for _, rec := range records {
				select {
				case <-ctx.Done():
					return
				case out <- taggedRecord{catalogName: name, rec: rec}:
					tracker.RecordIngested(name)
					totalMu.Lock()
					total++
					totalMu.Unlock()
				}
			}
		}(ns.name, ns.src)
	}

	wg.Wait()
	return total
}

// buildGrids drains the validated stream, cross-matches each template set
// against the truth catalog and emits one grid set per template set plus
// one delta set per non-reference set. Returns the number of grid sets.
func buildGrids(
	ctx context.Context,
	runID string,
	spec model.QARunSpec,
	in <-chan taggedObject,
	out chan<- *stats.GridSet,
	errs chan<- error,
	tracker *RunTracker,
	setFatal func(error),
) int64 {
	var truth []model.ObjectRecord
	fitsBySet := make(map[string][]model.ObjectRecord)

	for t := range in {
		select {
		case <-ctx.Done():
			return 0
		default:
			if t.catalogName == truthCatalog {
				truth = append(truth, t.obj)
			} else {
				fitsBySet[t.catalogName] = append(fitsBySet[t.catalogName], t.obj)
			}
		}
	}

	opts := stats.Options{MaxDeltaZ: spec.MaxDeltaZ}

	gridSets := make(map[string]*stats.GridSet, len(spec.Fits))
	var built int64

	// Fit-catalog order follows the run spec so output ordering is stable.
	for _, fit := range spec.Fits {
		set := fit.TemplateSet
		matched, err := catalog.MatchByTargetID(truth, fitsBySet[set])
		if err != nil {
			setFatal(fmt.Errorf("template set %s: %w", set, err))
			return built
		}
		tracker.MatchedTargets(int64(len(matched)))

		gs, err := stats.BuildGridSet(matched, spec.SpecTypes, spec.TargetClasses, opts)
		if err != nil {
			setFatal(fmt.Errorf("template set %s: %w", set, err))
			return built
		}
		gs.TemplateSet = set
		gridSets[set] = gs

		if err := store.SaveGridSet(runID, gs); err != nil {
			errs <- fmt.Errorf("failed to persist grids for %s: %w", set, err)
		}
		tracker.GridBuilt()
		built++

		select {
		case <-ctx.Done():
			return built
		case out <- gs:
		}
		fmt.Printf("📊 Grids built for template set %s (%d matched targets)\n", set, len(matched))
	}

	// Delta grids against the reference set, improvement positive.
	ref := gridSets[spec.ReferenceSet]
	for _, fit := range spec.Fits {
		if fit.TemplateSet == spec.ReferenceSet {
			continue
		}
		delta, err := stats.DeltaGridSet(gridSets[fit.TemplateSet], ref)
		if err != nil {
			setFatal(fmt.Errorf("delta grids for %s: %w", fit.TemplateSet, err))
			return built
		}
		if err := store.SaveGridSet(runID, delta); err != nil {
			errs <- fmt.Errorf("failed to persist delta grids for %s: %w", delta.TemplateSet, err)
		}
		tracker.GridBuilt()
		built++

		select {
		case <-ctx.Done():
			return built
		case out <- delta:
		}
	}

	return built
}
