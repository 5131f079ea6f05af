package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"zqa-pipeline/internal/catalog"
	"zqa-pipeline/internal/model"
	"zqa-pipeline/internal/sampler"
	"zqa-pipeline/internal/store"
)

// RunSample executes a stratified tile-sampling run: read the tiles
// catalog, apply the survey/program pre-selection, draw one tile per band
// combination and write the sample table.
func RunSample(ctx context.Context, runID string, spec model.SampleSpec) (res *model.SampleResult, err error) {
	start := time.Now()
	fmt.Printf("🚀 Starting tile sampling run: %s\n", runID)

	store.UpdateRunStatus(runID, "sampling")
	defer func() {
		if err != nil {
			store.UpdateRunStatus(runID, "failed")
			store.SaveRunError(runID, err)
		}
	}()

	// A missing tiles catalog is an operator error; fail before doing
	// any work so the exit status is useful in batch scripts.
	if !strings.HasPrefix(spec.Tiles.URL, "http") {
		if _, statErr := os.Stat(spec.Tiles.URL); statErr != nil {
			return nil, fmt.Errorf("tiles catalog not found: %w", statErr)
		}
	}

	records, err := catalog.ReadRecords(ctx, spec.Tiles)
	if err != nil {
		return nil, fmt.Errorf("failed to read tiles catalog: %w", err)
	}

	tiles := make([]model.TileRecord, 0, len(records))
	for _, rec := range records {
		tile, convErr := catalog.TileFromRecord(rec)
		if convErr != nil {
			return nil, convErr
		}
		tiles = append(tiles, tile)
	}

	tiles = catalog.FilterTiles(tiles, spec.Survey, spec.Program, spec.MinEffTime)
	fmt.Printf("🔍 %d candidate tiles after survey/program selection\n", len(tiles))

	res, err = sampler.SampleTiles(tiles, spec.Conditions, spec.Seed)
	if err != nil {
		return nil, err
	}

	if err := store.SaveSampleResult(runID, res); err != nil {
		return nil, fmt.Errorf("failed to persist sample: %w", err)
	}

	result, err := WriteSampleCSV(spec.OutFile, res, spec.Overwrite)
	if err != nil {
		return nil, err
	}
	if result.Skipped {
		fmt.Printf("⏭️ Sample table %s exists, skipped (use --overwrite to regenerate)\n", result.Path)
	} else {
		fmt.Printf("✅ Sample table written: %d combinations to %s\n", result.RecordCount, result.Path)
	}

	store.UpdateRunStatus(runID, "completed")
	fmt.Printf("🏁 Tile sampling completed: %s in %v\n", runID, time.Since(start))
	return res, nil
}
